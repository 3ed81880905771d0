package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sujal-shrestha/queless-backend/internal/model"
	"github.com/sujal-shrestha/queless-backend/internal/repository"
	"github.com/sujal-shrestha/queless-backend/internal/utils"
)

// ----- fakes -----

type fakeQueueStateStore struct {
	getFn   func(ctx context.Context, branchID uint64, dateKey string) (model.QueueState, error)
	startFn func(ctx context.Context, branchID uint64, dateKey string, now time.Time) (model.QueueState, error)
	nextFn  func(ctx context.Context, branchID uint64, dateKey string, totalIssued int) (model.QueueState, error)
}

func (f *fakeQueueStateStore) Get(ctx context.Context, branchID uint64, dateKey string) (model.QueueState, error) {
	return f.getFn(ctx, branchID, dateKey)
}
func (f *fakeQueueStateStore) Start(ctx context.Context, branchID uint64, dateKey string, now time.Time) (model.QueueState, error) {
	return f.startFn(ctx, branchID, dateKey, now)
}
func (f *fakeQueueStateStore) Next(ctx context.Context, branchID uint64, dateKey string, totalIssued int) (model.QueueState, error) {
	return f.nextFn(ctx, branchID, dateKey, totalIssued)
}

type fakeTicketStore struct {
	getByIDFn     func(ctx context.Context, id uint64) (model.Booking, error)
	checkInFn     func(ctx context.Context, bookingID uint64, now time.Time) error
	consumeFn     func(ctx context.Context, bookingID, staffID uint64, now time.Time) error
	rosterFn      func(ctx context.Context, branchID uint64, dateKey string) ([]repository.RosterEntry, error)
	countIssuedFn func(ctx context.Context, branchID uint64, dateKey string) (int, error)
}

func (f *fakeTicketStore) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	return f.getByIDFn(ctx, id)
}
func (f *fakeTicketStore) CheckIn(ctx context.Context, bookingID uint64, now time.Time) error {
	return f.checkInFn(ctx, bookingID, now)
}
func (f *fakeTicketStore) Consume(ctx context.Context, bookingID, staffID uint64, now time.Time) error {
	return f.consumeFn(ctx, bookingID, staffID, now)
}
func (f *fakeTicketStore) RosterForDay(ctx context.Context, branchID uint64, dateKey string) ([]repository.RosterEntry, error) {
	return f.rosterFn(ctx, branchID, dateKey)
}
func (f *fakeTicketStore) CountIssued(ctx context.Context, branchID uint64, dateKey string) (int, error) {
	return f.countIssuedFn(ctx, branchID, dateKey)
}

// ----- helpers -----

// newStaffContext builds an echo context for a staff member of the given
// branch, with the :branchId path parameter set when branchParamVal != "".
func newStaffContext(t *testing.T, method, target, body string, staffID, assignedBranch uint64, branchParamVal string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", staffID)
	c.Set("role", model.RoleStaff)
	c.Set("branch_id", assignedBranch)
	if branchParamVal != "" {
		c.SetParamNames("branchId")
		c.SetParamValues(branchParamVal)
	}
	return c, rec
}

func activeBooking() model.Booking {
	return model.Booking{
		ID: 7, UserID: 42, VenueID: 1, BranchID: 3,
		DateKey: "2026-09-01", QueueIndex: 2, QueueNumber: "A-02",
		Status: model.StatusUpcoming,
	}
}

func ticketFor(t *testing.T, b model.Booking) string {
	t.Helper()
	raw, err := utils.NewTicketToken(testCfg().JWTSecret, utils.TicketClaims{
		BookingID:   b.ID,
		VenueID:     b.VenueID,
		BranchID:    b.BranchID,
		DateKey:     b.DateKey,
		QueueIndex:  b.QueueIndex,
		QueueNumber: b.QueueNumber,
	}, time.Hour)
	if err != nil {
		t.Fatalf("mint ticket: %v", err)
	}
	return raw
}

// ----- tests -----

func TestLiveBeforeStart(t *testing.T) {
	states := &fakeQueueStateStore{
		getFn: func(_ context.Context, _ uint64, _ string) (model.QueueState, error) {
			return model.QueueState{}, sql.ErrNoRows
		},
	}
	tickets := &fakeTicketStore{
		countIssuedFn: func(_ context.Context, _ uint64, _ string) (int, error) { return 3, nil },
	}
	_, branches := testCatalogs()
	h := NewQueueHandler(testCfg(), states, tickets, branches)

	c, rec := newStaffContext(t, http.MethodGet, "/v1/queue/3/live", "", 0, 0, "3")
	if err := h.Live(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	got := decodeBody(t, rec)
	if got["started"] != false {
		t.Fatalf("started=%v, want false", got["started"])
	}
	if got["now_serving"] != "--" {
		t.Fatalf("now_serving=%v, want --", got["now_serving"])
	}
	if got["waiting"] != float64(3) {
		t.Fatalf("waiting=%v, want 3", got["waiting"])
	}
}

func TestLiveUnknownBranch(t *testing.T) {
	_, branches := testCatalogs()
	h := NewQueueHandler(testCfg(), &fakeQueueStateStore{}, &fakeTicketStore{}, branches)

	c, rec := newStaffContext(t, http.MethodGet, "/v1/queue/77/live", "", 0, 0, "77")
	if err := h.Live(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rec.Code)
	}
}

func TestStartDeniedOutsideAssignedBranch(t *testing.T) {
	_, branches := testCatalogs()
	h := NewQueueHandler(testCfg(), &fakeQueueStateStore{}, &fakeTicketStore{}, branches)

	c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/3/start", "", 9, 4, "3")
	if err := h.Start(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", rec.Code)
	}
}

func TestNextAdvancesOneStep(t *testing.T) {
	states := &fakeQueueStateStore{
		nextFn: func(_ context.Context, _ uint64, _ string, totalIssued int) (model.QueueState, error) {
			if totalIssued != 3 {
				t.Fatalf("totalIssued=%d, want 3", totalIssued)
			}
			return model.QueueState{BranchID: 3, Started: true, CurrentServingIndex: 2}, nil
		},
	}
	tickets := &fakeTicketStore{
		countIssuedFn: func(_ context.Context, _ uint64, _ string) (int, error) { return 3, nil },
	}
	_, branches := testCatalogs()
	h := NewQueueHandler(testCfg(), states, tickets, branches)

	c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/3/next", "", 9, 3, "3")
	if err := h.Next(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	got := decodeBody(t, rec)
	if got["now_serving"] != "A-02" {
		t.Fatalf("now_serving=%v, want A-02", got["now_serving"])
	}
	if got["finished"] != false {
		t.Fatalf("finished=%v, want false", got["finished"])
	}
}

func TestNextReportsFinished(t *testing.T) {
	states := &fakeQueueStateStore{
		nextFn: func(_ context.Context, _ uint64, _ string, _ int) (model.QueueState, error) {
			return model.QueueState{BranchID: 3, Started: true, CurrentServingIndex: 3},
				repository.ErrQueueExhausted
		},
	}
	tickets := &fakeTicketStore{
		countIssuedFn: func(_ context.Context, _ uint64, _ string) (int, error) { return 3, nil },
	}
	_, branches := testCatalogs()
	h := NewQueueHandler(testCfg(), states, tickets, branches)

	c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/3/next", "", 9, 3, "3")
	if err := h.Next(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	got := decodeBody(t, rec)
	if got["finished"] != true {
		t.Fatalf("finished=%v, want true", got["finished"])
	}
	if got["current_serving_index"] != float64(3) {
		t.Fatalf("cursor=%v, want unchanged 3", got["current_serving_index"])
	}
}

func TestNextBeforeStart(t *testing.T) {
	states := &fakeQueueStateStore{
		nextFn: func(_ context.Context, _ uint64, _ string, _ int) (model.QueueState, error) {
			return model.QueueState{}, repository.ErrQueueNotStarted
		},
	}
	tickets := &fakeTicketStore{
		countIssuedFn: func(_ context.Context, _ uint64, _ string) (int, error) { return 3, nil },
	}
	_, branches := testCatalogs()
	h := NewQueueHandler(testCfg(), states, tickets, branches)

	c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/3/next", "", 9, 3, "3")
	if err := h.Next(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status=%d, want 409", rec.Code)
	}
}

func TestVerifyCheckIn(t *testing.T) {
	b := activeBooking()
	checkedIn := false
	tickets := &fakeTicketStore{
		getByIDFn: func(_ context.Context, id uint64) (model.Booking, error) {
			if id != b.ID {
				return model.Booking{}, sql.ErrNoRows
			}
			if checkedIn {
				cb := b
				cb.Status = model.StatusCheckedIn
				cb.CheckedIn = true
				return cb, nil
			}
			return b, nil
		},
		checkInFn: func(_ context.Context, bookingID uint64, _ time.Time) error {
			checkedIn = true
			return nil
		},
	}
	_, branches := testCatalogs()
	h := NewQueueHandler(testCfg(), &fakeQueueStateStore{}, tickets, branches)

	body := `{"token":"` + ticketFor(t, b) + `","action":"check_in"}`
	c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/verify", body, 9, 3, "")
	if err := h.Verify(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)
	if got["result"] != "check_in" {
		t.Fatalf("result=%v, want check_in", got["result"])
	}
	booking := got["booking"].(map[string]any)
	if booking["status"] != model.StatusCheckedIn {
		t.Fatalf("status=%v, want checked_in", booking["status"])
	}
}

func TestVerifyConsume(t *testing.T) {
	b := activeBooking()
	consumed := false
	var consumedBy uint64
	tickets := &fakeTicketStore{
		getByIDFn: func(_ context.Context, _ uint64) (model.Booking, error) {
			if consumed {
				cb := b
				cb.Status = model.StatusCompleted
				used := time.Now().UTC()
				cb.UsedAt = &used
				return cb, nil
			}
			return b, nil
		},
		consumeFn: func(_ context.Context, _, staffID uint64, _ time.Time) error {
			consumed = true
			consumedBy = staffID
			return nil
		},
	}
	_, branches := testCatalogs()
	h := NewQueueHandler(testCfg(), &fakeQueueStateStore{}, tickets, branches)

	body := `{"token":"` + ticketFor(t, b) + `","action":"consume"}`
	c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/verify", body, 9, 3, "")
	if err := h.Verify(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if consumedBy != 9 {
		t.Fatalf("consumedBy=%d, want staff id 9", consumedBy)
	}
	booking := decodeBody(t, rec)["booking"].(map[string]any)
	if booking["status"] != model.StatusCompleted {
		t.Fatalf("status=%v, want completed", booking["status"])
	}
}

func TestVerifyRejections(t *testing.T) {
	b := activeBooking()
	_, branches := testCatalogs()

	t.Run("access token is not a ticket", func(t *testing.T) {
		access, err := utils.NewAccessToken(testCfg().JWTSecret, 9, model.RoleStaff, 3, 60)
		if err != nil {
			t.Fatalf("mint access: %v", err)
		}
		h := NewQueueHandler(testCfg(), &fakeQueueStateStore{}, &fakeTicketStore{}, branches)
		body := `{"token":"` + access.Token + `"}`
		c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/verify", body, 9, 3, "")
		if err := h.Verify(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status=%d, want 401", rec.Code)
		}
	})

	t.Run("staff of another branch", func(t *testing.T) {
		h := NewQueueHandler(testCfg(), &fakeQueueStateStore{}, &fakeTicketStore{}, branches)
		body := `{"token":"` + ticketFor(t, b) + `"}`
		c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/verify", body, 9, 4, "")
		if err := h.Verify(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status=%d, want 403", rec.Code)
		}
	})

	t.Run("payload mismatch", func(t *testing.T) {
		stale := b
		stale.QueueNumber = "A-09" // token says A-09, store says A-02
		tickets := &fakeTicketStore{
			getByIDFn: func(_ context.Context, _ uint64) (model.Booking, error) { return b, nil },
		}
		h := NewQueueHandler(testCfg(), &fakeQueueStateStore{}, tickets, branches)
		body := `{"token":"` + ticketFor(t, stale) + `"}`
		c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/verify", body, 9, 3, "")
		if err := h.Verify(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusConflict {
			t.Fatalf("status=%d, want 409", rec.Code)
		}
		if decodeBody(t, rec)["error"] != "ticket mismatch" {
			t.Fatalf("unexpected error body: %s", rec.Body.String())
		}
	})

	t.Run("already used", func(t *testing.T) {
		used := time.Now().UTC()
		spent := b
		spent.Status = model.StatusCompleted
		spent.UsedAt = &used
		tickets := &fakeTicketStore{
			getByIDFn: func(_ context.Context, _ uint64) (model.Booking, error) { return spent, nil },
		}
		h := NewQueueHandler(testCfg(), &fakeQueueStateStore{}, tickets, branches)
		body := `{"token":"` + ticketFor(t, b) + `"}`
		c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/verify", body, 9, 3, "")
		if err := h.Verify(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusConflict {
			t.Fatalf("status=%d, want 409", rec.Code)
		}
		if decodeBody(t, rec)["error"] != "ticket already used" {
			t.Fatalf("unexpected error body: %s", rec.Body.String())
		}
	})

	t.Run("cancelled booking", func(t *testing.T) {
		gone := b
		gone.Status = model.StatusCancelled
		tickets := &fakeTicketStore{
			getByIDFn: func(_ context.Context, _ uint64) (model.Booking, error) { return gone, nil },
		}
		h := NewQueueHandler(testCfg(), &fakeQueueStateStore{}, tickets, branches)
		body := `{"token":"` + ticketFor(t, b) + `"}`
		c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/verify", body, 9, 3, "")
		if err := h.Verify(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusConflict {
			t.Fatalf("status=%d, want 409", rec.Code)
		}
	})

	t.Run("unknown booking", func(t *testing.T) {
		tickets := &fakeTicketStore{
			getByIDFn: func(_ context.Context, _ uint64) (model.Booking, error) {
				return model.Booking{}, sql.ErrNoRows
			},
		}
		h := NewQueueHandler(testCfg(), &fakeQueueStateStore{}, tickets, branches)
		body := `{"token":"` + ticketFor(t, b) + `"}`
		c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/verify", body, 9, 3, "")
		if err := h.Verify(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status=%d, want 404", rec.Code)
		}
	})
}

func TestVerifyDateKeyPin(t *testing.T) {
	// Ticket issued for Aug 31, still within its token TTL on Sep 1.
	b := activeBooking()
	b.DateKey = "2026-08-31"
	_, branches := testCatalogs()

	newHandler := func(onCheckIn func()) *QueueHandler {
		tickets := &fakeTicketStore{
			getByIDFn: func(_ context.Context, _ uint64) (model.Booking, error) { return b, nil },
			checkInFn: func(_ context.Context, _ uint64, _ time.Time) error {
				if onCheckIn != nil {
					onCheckIn()
				}
				return nil
			},
		}
		return NewQueueHandler(testCfg(), &fakeQueueStateStore{}, tickets, branches)
	}

	t.Run("pin for another day rejected before any write", func(t *testing.T) {
		h := newHandler(func() { t.Fatal("check-in must not be reached") })
		body := `{"token":"` + ticketFor(t, b) + `","action":"check_in","date_key":"2026-09-01"}`
		c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/verify", body, 9, 3, "")
		if err := h.Verify(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusConflict {
			t.Fatalf("status=%d, want 409", rec.Code)
		}
		if decodeBody(t, rec)["error"] != "ticket is for another day" {
			t.Fatalf("unexpected error body: %s", rec.Body.String())
		}
	})

	t.Run("matching pin accepted", func(t *testing.T) {
		h := newHandler(nil)
		body := `{"token":"` + ticketFor(t, b) + `","action":"check_in","date_key":"2026-08-31"}`
		c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/verify", body, 9, 3, "")
		if err := h.Verify(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("status=%d, want 200 (body %s)", rec.Code, rec.Body.String())
		}
	})

	t.Run("malformed pin rejected", func(t *testing.T) {
		h := newHandler(func() { t.Fatal("check-in must not be reached") })
		body := `{"token":"` + ticketFor(t, b) + `","action":"check_in","date_key":"yesterday"}`
		c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/verify", body, 9, 3, "")
		if err := h.Verify(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status=%d, want 400", rec.Code)
		}
	})

	t.Run("omitted pin keeps working", func(t *testing.T) {
		h := newHandler(nil)
		body := `{"token":"` + ticketFor(t, b) + `","action":"check_in"}`
		c, rec := newStaffContext(t, http.MethodPost, "/v1/queue/verify", body, 9, 3, "")
		if err := h.Verify(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("status=%d, want 200 (body %s)", rec.Code, rec.Body.String())
		}
	})
}

func TestRosterScopedToBranch(t *testing.T) {
	entries := []repository.RosterEntry{
		{Booking: activeBooking(), Username: "sita"},
	}
	states := &fakeQueueStateStore{
		getFn: func(_ context.Context, _ uint64, _ string) (model.QueueState, error) {
			return model.QueueState{BranchID: 3, Started: true, CurrentServingIndex: 1}, nil
		},
	}
	tickets := &fakeTicketStore{
		rosterFn: func(_ context.Context, branchID uint64, _ string) ([]repository.RosterEntry, error) {
			if branchID != 3 {
				t.Fatalf("branchID=%d, want 3", branchID)
			}
			return entries, nil
		},
		countIssuedFn: func(_ context.Context, _ uint64, _ string) (int, error) { return 1, nil },
	}
	_, branches := testCatalogs()
	h := NewQueueHandler(testCfg(), states, tickets, branches)

	c, rec := newStaffContext(t, http.MethodGet, "/v1/queue/3/roster", "", 9, 3, "3")
	if err := h.Roster(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	got := decodeBody(t, rec)
	roster := got["roster"].([]any)
	if len(roster) != 1 {
		t.Fatalf("roster len=%d, want 1", len(roster))
	}
	entry := roster[0].(map[string]any)
	if entry["username"] != "sita" {
		t.Fatalf("username=%v, want sita", entry["username"])
	}

	// Same request from staff of another branch is denied.
	c, rec = newStaffContext(t, http.MethodGet, "/v1/queue/3/roster", "", 9, 4, "3")
	if err := h.Roster(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", rec.Code)
	}
}
