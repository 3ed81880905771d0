package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/sujal-shrestha/queless-backend/internal/config"
	"github.com/sujal-shrestha/queless-backend/internal/model"
	"github.com/sujal-shrestha/queless-backend/internal/queue"
	"github.com/sujal-shrestha/queless-backend/internal/repository"
	"github.com/sujal-shrestha/queless-backend/internal/utils"
)

// BookingStore is the persistence surface the booking endpoints need.
// *repository.BookingRepo satisfies it; tests substitute a fake.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking, dailyCap int, slot time.Duration) error
	GetByID(ctx context.Context, id uint64) (model.Booking, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	TodayForUser(ctx context.Context, userID uint64, dateKey string) ([]model.Booking, error)
	Cancel(ctx context.Context, bookingID, userID uint64) error
	SetReview(ctx context.Context, bookingID, userID uint64, rating uint8, review string, now time.Time) error
}

// VenueCatalog resolves venues; *repository.VenueRepo satisfies it.
type VenueCatalog interface {
	GetByID(ctx context.Context, id uint64) (model.Venue, error)
}

// BranchCatalog resolves branches; *repository.BranchRepo satisfies it.
type BranchCatalog interface {
	GetByID(ctx context.Context, id uint64) (model.Branch, error)
}

// BookingHandler serves the user-facing booking endpoints: create (ticket
// allocation), list, today, detail, cancel and review. PublishIssued is
// optional; when set, a TicketIssuedEvent is published on the broker after a
// successful creation without blocking the response.
type BookingHandler struct {
	Cfg           config.Config
	Bookings      BookingStore
	Venues        VenueCatalog
	Branches      BranchCatalog
	PublishIssued func(ctx context.Context, ev queue.TicketIssuedEvent) error
}

func NewBookingHandler(cfg config.Config, b BookingStore, v VenueCatalog, br BranchCatalog) *BookingHandler {
	return &BookingHandler{Cfg: cfg, Bookings: b, Venues: v, Branches: br}
}

// ----- DTOs -----

type createBookingReq struct {
	VenueID     uint64 `json:"venue_id"`
	BranchID    uint64 `json:"branch_id"`
	Title       string `json:"title"`
	ScheduledAt string `json:"scheduled_at"` // RFC 3339
}

type reviewReq struct {
	Rating uint8  `json:"rating"`
	Review string `json:"review"`
}

type bookingResp struct {
	ID               uint64     `json:"id"`
	VenueID          uint64     `json:"venue_id"`
	BranchID         uint64     `json:"branch_id"`
	Title            string     `json:"title"`
	OrganizationName string     `json:"organization_name"`
	ScheduledAt      time.Time  `json:"scheduled_at"`
	DateKey          string     `json:"date_key"`
	QueueIndex       int        `json:"queue_index"`
	QueueNumber      string     `json:"queue_number"`
	Status           string     `json:"status"`
	CheckedIn        bool       `json:"checked_in"`
	CheckedInAt      *time.Time `json:"checked_in_at,omitempty"`
	UsedAt           *time.Time `json:"used_at,omitempty"`
	Rating           *uint8     `json:"rating,omitempty"`
	Review           *string    `json:"review,omitempty"`
	Ticket           string     `json:"ticket,omitempty"`
}

// toBookingResp renders a booking. A ticket capability token is re-derived
// for upcoming/checked_in bookings only; completed and cancelled bookings
// never get one.
func (h *BookingHandler) toBookingResp(b model.Booking) bookingResp {
	resp := bookingResp{
		ID: b.ID, VenueID: b.VenueID, BranchID: b.BranchID,
		Title: b.Title, OrganizationName: b.OrganizationName,
		ScheduledAt: b.ScheduledAt, DateKey: b.DateKey,
		QueueIndex: b.QueueIndex, QueueNumber: b.QueueNumber,
		Status: b.Status, CheckedIn: b.CheckedIn, CheckedInAt: b.CheckedInAt,
		UsedAt: b.UsedAt, Rating: b.Rating, Review: b.Review,
	}
	if model.TicketActive(b.Status) {
		ticket, err := utils.NewTicketToken(h.Cfg.JWTSecret, utils.TicketClaims{
			BookingID:   b.ID,
			VenueID:     b.VenueID,
			BranchID:    b.BranchID,
			DateKey:     b.DateKey,
			QueueIndex:  b.QueueIndex,
			QueueNumber: b.QueueNumber,
		}, time.Duration(h.Cfg.TicketTTLHours)*time.Hour)
		if err == nil {
			resp.Ticket = ticket
		}
	}
	return resp
}

// Create books the next queue number at a branch.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.VenueID == 0 || req.BranchID == 0 || req.Title == "" || req.ScheduledAt == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "venue_id/branch_id/title/scheduled_at required"})
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scheduled_at must be RFC 3339"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	venue, err := h.Venues.GetByID(ctx, req.VenueID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	branch, err := h.Branches.GetByID(ctx, req.BranchID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "branch not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if branch.VenueID != venue.ID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "branch not found"})
	}
	if !branch.IsAvailable {
		return c.JSON(http.StatusConflict, echo.Map{"error": "branch not accepting bookings"})
	}

	b := model.Booking{
		UserID:           callerID(c),
		VenueID:          venue.ID,
		BranchID:         branch.ID,
		Title:            req.Title,
		OrganizationName: venue.Name,
		ScheduledAt:      scheduledAt.UTC(),
		DateKey:          utils.DateKey(scheduledAt),
	}
	slot := time.Duration(h.Cfg.SlotMinutes) * time.Minute
	if err := h.Bookings.Create(ctx, &b, h.Cfg.QueueDailyCap, slot); err != nil {
		switch err {
		case repository.ErrSlotOverlap:
			return c.JSON(http.StatusConflict, echo.Map{"error": "overlapping booking exists"})
		case repository.ErrDailyLimitReached:
			return c.JSON(http.StatusConflict, echo.Map{"error": "daily ticket limit reached"})
		case repository.ErrConflict:
			return c.JSON(http.StatusConflict, echo.Map{"error": "allocation conflict, please retry"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create booking failed"})
	}

	if h.PublishIssued != nil {
		ev := queue.TicketIssuedEvent{
			BookingID:   b.ID,
			UserID:      b.UserID,
			VenueID:     venue.ID,
			VenueName:   venue.Name,
			BranchID:    branch.ID,
			BranchName:  branch.Name,
			DateKey:     b.DateKey,
			QueueIndex:  b.QueueIndex,
			QueueNumber: b.QueueNumber,
			ScheduledAt: b.ScheduledAt.Format(time.RFC3339),
			IssuedAt:    time.Now().UTC().Format(time.RFC3339),
		}
		go func() { _ = h.PublishIssued(context.Background(), ev) }()
	}

	return c.JSON(http.StatusCreated, h.toBookingResp(b))
}

// List returns all of the caller's bookings, newest first.
func (h *BookingHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	bookings, err := h.Bookings.ListByUser(ctx, callerID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]bookingResp, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, h.toBookingResp(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// Today returns the caller's active bookings for one service day. An absent
// or malformed ?date= means today.
func (h *BookingHandler) Today(c echo.Context) error {
	dateKey := utils.ResolveDateKey(c.QueryParam("date"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	bookings, err := h.Bookings.TodayForUser(ctx, callerID(c), dateKey)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]bookingResp, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, h.toBookingResp(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"date_key": dateKey, "bookings": out})
}

// Get returns a single booking. Only the owner may read it.
func (h *BookingHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if b.UserID != callerID(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, h.toBookingResp(b))
}

// Cancel cancels the caller's booking, freeing its queue index.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Bookings.Cancel(ctx, id, callerID(c)); err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case repository.ErrForbidden:
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case repository.ErrInvalidStatus:
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking cannot be cancelled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": model.StatusCancelled})
}

// Review stores (or overwrites) the caller's rating and review on a
// completed booking.
func (h *BookingHandler) Review(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Review = strings.TrimSpace(req.Review)
	if req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be 1-5"})
	}
	if n := utf8.RuneCountInString(req.Review); n < 2 || n > 500 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "review must be 2-500 characters"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Bookings.SetReview(ctx, id, callerID(c), req.Rating, req.Review, time.Now()); err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case repository.ErrForbidden:
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case repository.ErrNotCompleted:
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking not completed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save review failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "rating": req.Rating, "review": req.Review})
}
