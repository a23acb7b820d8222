package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/toolforge/toolforge/internal/models"
	"github.com/toolforge/toolforge/internal/services"
	pkghttp "github.com/toolforge/toolforge/pkg/http"
)

// RatingServiceInterface defines the interface for rating business logic
type RatingServiceInterface interface {
	Rate(ctx context.Context, toolID, userID string, value int) (*services.RatingResponse, error)
	GetOwn(ctx context.Context, toolID, userID string) (*services.RatingResponse, error)
	ListByTool(ctx context.Context, toolID string, skip, limit int) (*services.RatingListResponse, error)
	Remove(ctx context.Context, toolID, userID string) error
	Stats(ctx context.Context, toolID string) (*models.RatingStats, error)
}

// RatingHandler handles tool rating HTTP requests
type RatingHandler struct {
	service RatingServiceInterface
}

// NewRatingHandler creates a new RatingHandler
func NewRatingHandler(service RatingServiceInterface) *RatingHandler {
	return &RatingHandler{service: service}
}

// RateRequest represents the request body for rating a tool
type RateRequest struct {
	Rating int `json:"rating" validate:"required,gte=1,lte=5"`
}

// Rate records or replaces the caller's rating
func (h *RatingHandler) Rate(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromContext(r)
	if viewer == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	rating, err := h.service.Rate(r.Context(), chi.URLParam(r, "id"), viewer.ID, req.Rating)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Tool not found")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Rating must be between 1 and 5")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, rating)
}

// GetOwn returns the caller's rating for the tool
func (h *RatingHandler) GetOwn(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromContext(r)
	if viewer == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	rating, err := h.service.GetOwn(r.Context(), chi.URLParam(r, "id"), viewer.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "No rating yet")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, rating)
}

// ListByTool returns the tool's individual ratings, newest first
func (h *RatingHandler) ListByTool(w http.ResponseWriter, r *http.Request) {
	skip, limit := pkghttp.Pagination(r)

	resp, err := h.service.ListByTool(r.Context(), chi.URLParam(r, "id"), skip, limit)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Tool not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Remove deletes the caller's rating
func (h *RatingHandler) Remove(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromContext(r)
	if viewer == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	err := h.service.Remove(r.Context(), chi.URLParam(r, "id"), viewer.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "No rating to remove")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats returns the aggregate rating view for a tool
func (h *RatingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Tool not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, stats)
}
