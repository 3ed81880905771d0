package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sujal-shrestha/queless-backend/internal/config"
	"github.com/sujal-shrestha/queless-backend/internal/middleware"
	"github.com/sujal-shrestha/queless-backend/internal/model"
	"github.com/sujal-shrestha/queless-backend/internal/queue"
	"github.com/sujal-shrestha/queless-backend/internal/repository"
	"github.com/sujal-shrestha/queless-backend/internal/utils"
)

// QueueStateStore is the serving-cursor surface the queue endpoints need.
// *repository.QueueStateRepo satisfies it; tests substitute a fake.
type QueueStateStore interface {
	Get(ctx context.Context, branchID uint64, dateKey string) (model.QueueState, error)
	Start(ctx context.Context, branchID uint64, dateKey string, now time.Time) (model.QueueState, error)
	Next(ctx context.Context, branchID uint64, dateKey string, totalIssued int) (model.QueueState, error)
}

// TicketStore is the staff-side booking surface: scanning, consumption and
// the day roster. *repository.BookingRepo satisfies it.
type TicketStore interface {
	GetByID(ctx context.Context, id uint64) (model.Booking, error)
	CheckIn(ctx context.Context, bookingID uint64, now time.Time) error
	Consume(ctx context.Context, bookingID, staffID uint64, now time.Time) error
	RosterForDay(ctx context.Context, branchID uint64, dateKey string) ([]repository.RosterEntry, error)
	CountIssued(ctx context.Context, branchID uint64, dateKey string) (int, error)
}

// QueueHandler serves the live queue endpoint plus the staff surface: day
// roster, start, next and ticket verification. PublishConsumed is optional;
// when set, a TicketConsumedEvent is published after a successful consume.
type QueueHandler struct {
	Cfg             config.Config
	States          QueueStateStore
	Tickets         TicketStore
	Branches        BranchCatalog
	PublishConsumed func(ctx context.Context, ev queue.TicketConsumedEvent) error
}

func NewQueueHandler(cfg config.Config, s QueueStateStore, t TicketStore, b BranchCatalog) *QueueHandler {
	return &QueueHandler{Cfg: cfg, States: s, Tickets: t, Branches: b}
}

// ----- DTOs -----

type liveResp struct {
	BranchID            uint64 `json:"branch_id"`
	DateKey             string `json:"date_key"`
	Started             bool   `json:"started"`
	CurrentServingIndex int    `json:"current_serving_index"`
	NowServing          string `json:"now_serving"`
	TotalIssued         int    `json:"total_issued"`
	Waiting             int    `json:"waiting"`
}

type rosterEntryResp struct {
	BookingID   uint64     `json:"booking_id"`
	Username    string     `json:"username"`
	Title       string     `json:"title"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	QueueIndex  int        `json:"queue_index"`
	QueueNumber string     `json:"queue_number"`
	Status      string     `json:"status"`
	CheckedIn   bool       `json:"checked_in"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
}

type verifyReq struct {
	Token   string `json:"token"`
	Action  string `json:"action"`   // check_in (default) | consume
	DateKey string `json:"date_key"` // optional pin to today's service day
}

// branchParam parses the :branchId path parameter.
func branchParam(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("branchId"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid branch id")
	}
	return id, nil
}

func (h *QueueHandler) liveFor(ctx context.Context, branchID uint64, dateKey string) (liveResp, error) {
	st, err := h.States.Get(ctx, branchID, dateKey)
	if err != nil && err != sql.ErrNoRows {
		return liveResp{}, err
	}
	// A missing row simply means the day was never started.
	total, err := h.Tickets.CountIssued(ctx, branchID, dateKey)
	if err != nil {
		return liveResp{}, err
	}
	waiting := total - st.CurrentServingIndex
	if waiting < 0 {
		waiting = 0
	}
	return liveResp{
		BranchID:            branchID,
		DateKey:             dateKey,
		Started:             st.Started,
		CurrentServingIndex: st.CurrentServingIndex,
		NowServing:          utils.ServingNumber(st.CurrentServingIndex),
		TotalIssued:         total,
		Waiting:             waiting,
	}, nil
}

// Live is the public polling endpoint: which number is being served at a
// branch right now. No authentication; waiting users refresh this.
func (h *QueueHandler) Live(c echo.Context) error {
	branchID, err := branchParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	dateKey := utils.ResolveDateKey(c.QueryParam("date"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Branches.GetByID(ctx, branchID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "branch not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	live, err := h.liveFor(ctx, branchID, dateKey)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, live)
}

// requireBranchScope enforces that the caller is staff of the target branch.
func requireBranchScope(c echo.Context, branchID uint64) bool {
	return middleware.CanAccessBranch(callerRole(c), callerBranch(c), branchID)
}

// Roster returns the full day roster of the staff caller's branch in queue
// order, with owner usernames.
func (h *QueueHandler) Roster(c echo.Context) error {
	branchID, err := branchParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !requireBranchScope(c, branchID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "branch scope denied"})
	}
	dateKey := utils.ResolveDateKey(c.QueryParam("date"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	entries, err := h.Tickets.RosterForDay(ctx, branchID, dateKey)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	live, err := h.liveFor(ctx, branchID, dateKey)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	out := make([]rosterEntryResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, rosterEntryResp{
			BookingID:   e.Booking.ID,
			Username:    e.Username,
			Title:       e.Booking.Title,
			ScheduledAt: e.Booking.ScheduledAt,
			QueueIndex:  e.Booking.QueueIndex,
			QueueNumber: e.Booking.QueueNumber,
			Status:      e.Booking.Status,
			CheckedIn:   e.Booking.CheckedIn,
			UsedAt:      e.Booking.UsedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"queue": live, "roster": out})
}

// Start opens the day for the staff caller's branch. Repeating it is a
// harmless no-op.
func (h *QueueHandler) Start(c echo.Context) error {
	branchID, err := branchParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !requireBranchScope(c, branchID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "branch scope denied"})
	}
	dateKey := utils.ResolveDateKey(c.QueryParam("date"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.States.Start(ctx, branchID, dateKey, time.Now()); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "start queue failed"})
	}
	live, err := h.liveFor(ctx, branchID, dateKey)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, live)
}

// Next advances the serving cursor by one. When every issued ticket has been
// served it reports finished without moving the cursor.
func (h *QueueHandler) Next(c echo.Context) error {
	branchID, err := branchParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !requireBranchScope(c, branchID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "branch scope denied"})
	}
	dateKey := utils.ResolveDateKey(c.QueryParam("date"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	total, err := h.Tickets.CountIssued(ctx, branchID, dateKey)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	st, err := h.States.Next(ctx, branchID, dateKey, total)
	switch err {
	case nil:
		// advanced
	case repository.ErrQueueNotStarted:
		return c.JSON(http.StatusConflict, echo.Map{"error": "queue not started"})
	case repository.ErrQueueExhausted:
		return c.JSON(http.StatusOK, echo.Map{
			"finished":              true,
			"branch_id":             branchID,
			"date_key":              dateKey,
			"current_serving_index": st.CurrentServingIndex,
			"now_serving":           utils.ServingNumber(st.CurrentServingIndex),
			"total_issued":          total,
		})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "advance queue failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"finished":              st.CurrentServingIndex >= total,
		"branch_id":             branchID,
		"date_key":              dateKey,
		"current_serving_index": st.CurrentServingIndex,
		"now_serving":           utils.ServingNumber(st.CurrentServingIndex),
		"total_issued":          total,
	})
}

// Verify validates a presented ticket token and applies the requested
// action. Checks run strictly before any write: signature and expiry, role
// marker, staff branch scope, stored booking existence, payload cross-check,
// optional service-day pin, consumption guard, then the status transition
// itself.
func (h *QueueHandler) Verify(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	action := req.Action
	if action == "" {
		action = "check_in"
	}
	if action != "check_in" && action != "consume" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "action must be check_in or consume"})
	}
	if req.DateKey != "" && !utils.ValidDateKey(req.DateKey) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date_key must be YYYY-MM-DD"})
	}

	tc, err := utils.ParseTicketToken(h.Cfg.JWTSecret, req.Token)
	if err != nil {
		if errors.Is(err, utils.ErrNotTicket) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token is not a ticket"})
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired ticket"})
	}

	if !middleware.CanAccessBranch(callerRole(c), callerBranch(c), tc.BranchID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "branch scope denied"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	b, err := h.Tickets.GetByID(ctx, tc.BookingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	// Stored allocation facts are authoritative; a payload that disagrees is
	// a stale or corrupted ticket.
	if b.BranchID != tc.BranchID || b.DateKey != tc.DateKey || b.QueueNumber != tc.QueueNumber {
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket mismatch"})
	}

	// An unexpired ticket for another service day is still a live token; the
	// pin lets the counter reject it outright.
	if req.DateKey != "" && req.DateKey != b.DateKey {
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket is for another day"})
	}

	if b.UsedAt != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket already used"})
	}
	if !model.ValidTransition(action, b.Status) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid ticket status"})
	}

	now := time.Now()
	switch action {
	case "check_in":
		err = h.Tickets.CheckIn(ctx, b.ID, now)
	case "consume":
		err = h.Tickets.Consume(ctx, b.ID, callerID(c), now)
	}
	if err != nil {
		switch err {
		case repository.ErrAlreadyUsed:
			return c.JSON(http.StatusConflict, echo.Map{"error": "ticket already used"})
		case repository.ErrInvalidStatus:
			return c.JSON(http.StatusConflict, echo.Map{"error": "invalid ticket status"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
	}

	updated, err := h.Tickets.GetByID(ctx, b.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	if action == "consume" && h.PublishConsumed != nil {
		ev := queue.TicketConsumedEvent{
			BookingID:   updated.ID,
			UserID:      updated.UserID,
			BranchID:    updated.BranchID,
			DateKey:     updated.DateKey,
			QueueNumber: updated.QueueNumber,
			StaffID:     callerID(c),
			ConsumedAt:  now.UTC().Format(time.RFC3339),
		}
		go func() { _ = h.PublishConsumed(context.Background(), ev) }()
	}

	return c.JSON(http.StatusOK, echo.Map{
		"result": action,
		"booking": echo.Map{
			"id":           updated.ID,
			"queue_number": updated.QueueNumber,
			"date_key":     updated.DateKey,
			"branch_id":    updated.BranchID,
			"status":       updated.Status,
			"checked_in":   updated.CheckedIn,
			"used_at":      updated.UsedAt,
		},
	})
}
