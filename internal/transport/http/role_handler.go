// Copyright 2026 The Congregreat Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jwbwvf/congregreat-server/internal/authz"
	"github.com/jwbwvf/congregreat-server/internal/observability/logger"
)

// CreateRoleRequest represents role creation data
type CreateRoleRequest struct {
	Name        string               `json:"name" validate:"required"`
	Permissions *authz.PermissionSet `json:"permissions" validate:"required"`
}

// UpdateRoleRequest carries the role properties to change
type UpdateRoleRequest struct {
	Name        *string              `json:"name,omitempty"`
	Permissions *authz.PermissionSet `json:"permissions,omitempty"`
}

// AssignRoleRequest grants a role to a user
type AssignRoleRequest struct {
	UserID string `json:"userId" validate:"required"`
	RoleID string `json:"roleId" validate:"required"`
}

// CreateRole handles role creation
// @Summary Create Role
// @Tags Role
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateRoleRequest true "Role"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /roles [post]
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRoleRequest
	if !h.decode(r, &req) {
		respondMessage(w, http.StatusBadRequest, "Name and permissions are required fields.")
		return
	}

	role, err := h.roleService.CreateRole(ctx, GetUserID(ctx), req.Name, *req.Permissions)
	if err != nil {
		h.roleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": fmt.Sprintf("Role %s was created.", role.Name),
		"role":    role,
	})
}

// ListRoles returns every role
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roleService.ListRoles(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, roles)
}

// GetRole returns one role, deleted roles included
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.roleService.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.roleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, role)
}

// UpdateRole renames a role or replaces its permissions
// @Summary Update Role
// @Tags Role
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Role ID"
// @Param request body UpdateRoleRequest true "Changes"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /roles/{id} [patch]
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateRoleRequest
	if !h.decode(r, &req) {
		respondMessage(w, http.StatusBadRequest, "No modifiable role property was provided.")
		return
	}

	_, err := h.roleService.UpdateRole(ctx, GetUserID(ctx), chi.URLParam(r, "id"), req.Name, req.Permissions)
	if err != nil {
		h.roleError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Role was updated.")
}

// DeleteRole soft deletes a role
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.roleService.DeleteRole(ctx, GetUserID(ctx), chi.URLParam(r, "id")); err != nil {
		h.roleError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Role was deleted.")
}

// AssignRole grants a role to a user
// @Summary Assign Role
// @Tags Role
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AssignRoleRequest true "Assignment"
// @Success 201 {object} authz.UserRole
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /user-roles [post]
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AssignRoleRequest
	if !h.decode(r, &req) {
		respondMessage(w, http.StatusBadRequest, "userId and roleId are required fields.")
		return
	}

	if _, err := h.identityService.GetUser(ctx, req.UserID); err != nil {
		respondMessage(w, http.StatusNotFound, "Unable to find user by id.")
		return
	}

	userRole, err := h.roleService.AssignRole(ctx, GetUserID(ctx), req.UserID, req.RoleID)
	if err != nil {
		h.roleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, userRole)
}

// ListUserRoles returns every role assignment
func (h *Handler) ListUserRoles(w http.ResponseWriter, r *http.Request) {
	userRoles, err := h.roleService.ListUserRoles(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, userRoles)
}

// GetUserRole returns one role assignment
func (h *Handler) GetUserRole(w http.ResponseWriter, r *http.Request) {
	userRole, err := h.roleService.GetUserRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.roleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, userRole)
}

// RevokeUserRole soft deletes a role assignment
func (h *Handler) RevokeUserRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.roleService.RevokeUserRole(ctx, GetUserID(ctx), chi.URLParam(r, "id")); err != nil {
		h.roleError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "User role was deleted.")
}

// roleError maps role and user role errors to responses.
func (h *Handler) roleError(w http.ResponseWriter, r *http.Request, err error) {
	var permErr *authz.PermissionError

	switch {
	case errors.As(err, &permErr):
		respondMessage(w, http.StatusBadRequest, permErr.Error())
	case errors.Is(err, authz.ErrMissingFields):
		respondMessage(w, http.StatusBadRequest, "Name and permissions are required fields.")
	case errors.Is(err, authz.ErrNothingToUpdate):
		respondMessage(w, http.StatusBadRequest, "No modifiable role property was provided.")
	case errors.Is(err, authz.ErrReservedRoleName):
		respondMessage(w, http.StatusBadRequest, "The system admin role cannot be created, renamed or deleted.")
	case errors.Is(err, authz.ErrRoleAlreadyExists):
		respondMessage(w, http.StatusConflict, "A role with that name already exists.")
	case errors.Is(err, authz.ErrRoleAlreadyAssigned):
		respondMessage(w, http.StatusConflict, "The user already has that role.")
	case errors.Is(err, authz.ErrRoleNotFound):
		respondMessage(w, http.StatusNotFound, "Unable to find role by id.")
	case errors.Is(err, authz.ErrUserRoleNotFound):
		respondMessage(w, http.StatusNotFound, "Unable to find user role by id.")
	default:
		h.internalError(w, r, err)
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.ErrorContext(r.Context(), "request failed",
		logger.Path(r.URL.Path),
		logger.Error(err),
	)
	respondError(w, http.StatusInternalServerError, "internal error")
}
