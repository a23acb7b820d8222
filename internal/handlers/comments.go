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

// CommentServiceInterface defines the interface for comment business logic
type CommentServiceInterface interface {
	ListByTool(ctx context.Context, toolID, viewerID string, skip, limit int) ([]*services.CommentResponse, error)
	Create(ctx context.Context, toolID, userID, content string) (*services.CommentResponse, error)
	Update(ctx context.Context, commentID, userID, content string) (*services.CommentResponse, error)
	Delete(ctx context.Context, commentID string, actor *models.User) error
	Vote(ctx context.Context, commentID, userID, voteType string) (*services.CommentResponse, error)
}

// CommentHandler handles tool comment HTTP requests
type CommentHandler struct {
	service CommentServiceInterface
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(service CommentServiceInterface) *CommentHandler {
	return &CommentHandler{service: service}
}

// CommentRequest represents the request body for posting or editing a comment
type CommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=2000"`
}

// VoteRequest represents the request body for voting on a comment
type VoteRequest struct {
	VoteType string `json:"vote_type" validate:"required,oneof=up down"`
}

// ListByTool returns a tool's comments
func (h *CommentHandler) ListByTool(w http.ResponseWriter, r *http.Request) {
	viewerID := ""
	if viewer := viewerFromContext(r); viewer != nil {
		viewerID = viewer.ID
	}

	skip, limit := pkghttp.Pagination(r)

	comments, err := h.service.ListByTool(r.Context(), chi.URLParam(r, "id"), viewerID, skip, limit)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Tool not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, comments)
}

// Create posts a comment on a tool
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromContext(r)
	if viewer == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	comment, err := h.service.Create(r.Context(), chi.URLParam(r, "id"), viewer.ID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Tool not found")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid comment")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, comment)
}

// Update edits the caller's own comment
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromContext(r)
	if viewer == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	comment, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), viewer.ID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Comment not found")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid comment")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, comment)
}

// Delete removes a comment
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromContext(r)
	if viewer == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), viewer)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Comment not found")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "You may only delete your own comments")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Vote records an up/down vote on a comment
func (h *CommentHandler) Vote(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromContext(r)
	if viewer == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	comment, err := h.service.Vote(r.Context(), chi.URLParam(r, "id"), viewer.ID, req.VoteType)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Comment not found")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Vote must be up or down")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, comment)
}
