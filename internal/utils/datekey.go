package utils

import (
	"fmt"
	"regexp"
	"time"
)

// All daily allocation buckets are keyed by the civil date in one fixed
// time zone (Asia/Kathmandu, UTC+5:45). Deriving the key from a single zone
// keeps (branch, dateKey) scopes unambiguous regardless of where a request
// originates.

const dateKeyLayout = "2006-01-02"

var dateKeyRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// queueZone is resolved once at init. When the tzdata database is not
// available (scratch containers), fall back to the fixed +05:45 offset.
var queueZone = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kathmandu"); err == nil {
		return loc
	}
	return time.FixedZone("NPT", 5*3600+45*60)
}()

// DateKey converts an instant to its civil date string in the queue zone.
func DateKey(t time.Time) string {
	return t.In(queueZone).Format(dateKeyLayout)
}

// TodayKey returns the dateKey for the current instant.
func TodayKey() string {
	return DateKey(time.Now())
}

// ValidDateKey reports whether s is a well-formed "YYYY-MM-DD" key.
func ValidDateKey(s string) bool {
	if !dateKeyRe.MatchString(s) {
		return false
	}
	_, err := time.ParseInLocation(dateKeyLayout, s, queueZone)
	return err == nil
}

// ResolveDateKey returns the requested key when it is well formed, otherwise
// today's key. Mirrors the ?date= query parameter handling on every queue
// endpoint: an absent or malformed date means "today".
func ResolveDateKey(requested string) string {
	if ValidDateKey(requested) {
		return requested
	}
	return TodayKey()
}

// QueueNumber renders the display form of a queue index, e.g. 7 -> "A-07".
func QueueNumber(index int) string {
	return fmt.Sprintf("A-%02d", index)
}

// ServingNumber is QueueNumber with the "nothing served yet" placeholder.
func ServingNumber(index int) string {
	if index <= 0 {
		return "--"
	}
	return QueueNumber(index)
}
