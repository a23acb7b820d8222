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

// AdminServiceInterface defines the interface for administration logic
type AdminServiceInterface interface {
	ListUsers(ctx context.Context, role string, skip, limit int) (*services.UserListResponse, error)
	ChangeRole(ctx context.Context, actorID, targetID, role string) (*services.UserResponse, error)
	ListPendingTools(ctx context.Context, skip, limit int) (*services.ToolListResponse, error)
	ApproveTool(ctx context.Context, moderatorID, toolID string) (*services.ToolResponse, error)
	RejectTool(ctx context.Context, moderatorID, toolID, reason string) (*services.ToolResponse, error)
	Overview(ctx context.Context) (*services.OverviewStats, error)
}

// AuditServiceInterface defines the interface for audit log queries
type AuditServiceInterface interface {
	List(ctx context.Context, filter models.AuditFilter, skip, limit int) (*services.AuditLogListResponse, error)
}

// AdminHandler handles admin panel HTTP requests
type AdminHandler struct {
	service AdminServiceInterface
	audit   AuditServiceInterface
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(service AdminServiceInterface, audit AuditServiceInterface) *AdminHandler {
	return &AdminHandler{service: service, audit: audit}
}

// ChangeRoleRequest represents the request body for a role change
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user moderator admin"`
}

// RejectToolRequest represents the request body for rejecting a tool
type RejectToolRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// ListUsers returns users, optionally filtered by role
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	skip, limit := pkghttp.Pagination(r)
	role := r.URL.Query().Get("role")

	resp, err := h.service.ListUsers(r.Context(), role, skip, limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ChangeRole sets a user's role
func (h *AdminHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	actor := viewerFromContext(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req ChangeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.ChangeRole(r.Context(), actor.ID, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "You cannot change your own role")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Unknown role")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// ListPendingTools returns the moderation queue
func (h *AdminHandler) ListPendingTools(w http.ResponseWriter, r *http.Request) {
	skip, limit := pkghttp.Pagination(r)

	resp, err := h.service.ListPendingTools(r.Context(), skip, limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ApproveTool publishes a pending tool
func (h *AdminHandler) ApproveTool(w http.ResponseWriter, r *http.Request) {
	actor := viewerFromContext(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	tool, err := h.service.ApproveTool(r.Context(), actor.ID, chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Tool not found")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Tool is not pending moderation")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, tool)
}

// RejectTool declines a pending tool
func (h *AdminHandler) RejectTool(w http.ResponseWriter, r *http.Request) {
	actor := viewerFromContext(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req RejectToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	tool, err := h.service.RejectTool(r.Context(), actor.ID, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Tool not found")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Tool is not pending moderation")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "A rejection reason is required")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, tool)
}

// Overview returns the admin dashboard summary
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Overview(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, stats)
}

// AuditLogs returns filtered audit log entries
func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	skip, limit := pkghttp.Pagination(r)

	q := r.URL.Query()
	filter := models.AuditFilter{
		UserID:     q.Get("user_id"),
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
	}

	resp, err := h.audit.List(r.Context(), filter, skip, limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
