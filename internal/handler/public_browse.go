package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sujal-shrestha/queless-backend/internal/repository"
)

// CatalogHandler serves the public venue/branch browse endpoints. These are
// the only routes fronted by the Redis response cache.
type CatalogHandler struct {
	Venues   *repository.VenueRepo
	Branches *repository.BranchRepo
}

func NewCatalogHandler(v *repository.VenueRepo, b *repository.BranchRepo) *CatalogHandler {
	return &CatalogHandler{Venues: v, Branches: b}
}

type venueResp struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

type branchResp struct {
	ID          uint64 `json:"id"`
	VenueID     uint64 `json:"venue_id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	IsAvailable bool   `json:"is_available"`
}

// ListVenues returns active venues, optionally filtered by ?search=.
func (h *CatalogHandler) ListVenues(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	venues, err := h.Venues.List(ctx, c.QueryParam("search"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]venueResp, 0, len(venues))
	for _, v := range venues {
		out = append(out, venueResp{ID: v.ID, Name: v.Name, Logo: v.Logo})
	}
	return c.JSON(http.StatusOK, echo.Map{"venues": out})
}

// ListBranches returns all branches of one venue.
func (h *CatalogHandler) ListBranches(c echo.Context) error {
	venueID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || venueID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Venues.GetByID(ctx, venueID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	branches, err := h.Branches.ListByVenue(ctx, venueID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]branchResp, 0, len(branches))
	for _, b := range branches {
		out = append(out, branchResp{
			ID: b.ID, VenueID: b.VenueID, Name: b.Name, Address: b.Address, IsAvailable: b.IsAvailable,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"branches": out})
}
