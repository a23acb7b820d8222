package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/toolforge/toolforge/internal/auth"
	"github.com/toolforge/toolforge/internal/models"
	"github.com/toolforge/toolforge/internal/services"
	pkghttp "github.com/toolforge/toolforge/pkg/http"
)

// ToolServiceInterface defines the interface for catalog business logic
type ToolServiceInterface interface {
	List(ctx context.Context, filter models.ToolFilter, viewer *models.User, skip, limit int) (*services.ToolListResponse, error)
	ListMine(ctx context.Context, userID string, skip, limit int) (*services.ToolListResponse, error)
	Get(ctx context.Context, id string, viewer *models.User) (*services.ToolResponse, error)
	Create(ctx context.Context, userID string, input services.CreateToolInput) (*services.ToolResponse, error)
	Update(ctx context.Context, id string, actor *models.User, input services.UpdateToolInput) (*services.ToolResponse, error)
	Delete(ctx context.Context, id string, actor *models.User) error
	Stats(ctx context.Context) (*services.ToolStats, error)
}

// ToolHandler handles catalog HTTP requests
type ToolHandler struct {
	service ToolServiceInterface
}

// NewToolHandler creates a new ToolHandler
func NewToolHandler(service ToolServiceInterface) *ToolHandler {
	return &ToolHandler{service: service}
}

// CreateToolRequest represents the request body for submitting a tool
type CreateToolRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"required,min=10,max=2000"`
	Category    string `json:"category" validate:"required"`
	URL         string `json:"url" validate:"omitempty,url"`
}

// UpdateToolRequest represents the request body for editing a tool
type UpdateToolRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,min=10,max=2000"`
	Category    *string `json:"category"`
	URL         *string `json:"url" validate:"omitempty,url"`
}

// viewerFromContext builds the acting user from token claims. Role comes
// from the token; operations that must survive a mid-session demotion go
// through the role middleware instead.
func viewerFromContext(r *http.Request) *models.User {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		return nil
	}
	return &models.User{
		ID:       claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	}
}

// List returns the tool catalog
func (h *ToolHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pkghttp.Pagination(r)

	q := r.URL.Query()
	filter := models.ToolFilter{
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Search:   q.Get("search"),
	}

	if filter.Category != "" && !models.ValidCategory(filter.Category) {
		pkghttp.WriteBadRequest(w, "Unknown category")
		return
	}
	if filter.Status != "" && !models.ValidStatus(filter.Status) {
		pkghttp.WriteBadRequest(w, "Unknown status")
		return
	}

	resp, err := h.service.List(r.Context(), filter, viewerFromContext(r), skip, limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ListMine returns the caller's own submissions
func (h *ToolHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromContext(r)
	if viewer == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	skip, limit := pkghttp.Pagination(r)

	resp, err := h.service.ListMine(r.Context(), viewer.ID, skip, limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Get returns a single tool
func (h *ToolHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tool, err := h.service.Get(r.Context(), id, viewerFromContext(r))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Tool not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, tool)
}

// Create submits a new tool for moderation
func (h *ToolHandler) Create(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromContext(r)
	if viewer == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req CreateToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	tool, err := h.service.Create(r.Context(), viewer.ID, services.CreateToolInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		URL:         req.URL,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Unknown category")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "A tool with this name already exists")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, tool)
}

// Update edits a tool
func (h *ToolHandler) Update(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromContext(r)
	if viewer == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req UpdateToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	tool, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), viewer, services.UpdateToolInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		URL:         req.URL,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Tool not found")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "You may only edit your own tools")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Unknown category")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, tool)
}

// Delete removes a tool
func (h *ToolHandler) Delete(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromContext(r)
	if viewer == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), viewer)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Tool not found")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "You may only delete your own tools")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats returns catalog counts
func (h *ToolHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, stats)
}
