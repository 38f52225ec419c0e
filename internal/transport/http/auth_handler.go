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
	"net/http"

	"github.com/jwbwvf/congregreat-server/internal/audit"
	"github.com/jwbwvf/congregreat-server/internal/authz"
	"github.com/jwbwvf/congregreat-server/internal/identity"
	"github.com/jwbwvf/congregreat-server/internal/observability/logger"
)

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginUser is the user part of a login response
type LoginUser struct {
	ID string `json:"id"`
}

// LoginResponse carries the bearer token for later requests
type LoginResponse struct {
	User  LoginUser `json:"user"`
	Token string    `json:"token"`
}

// UserResponse describes the signed in user
type UserResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	MemberID       string `json:"memberId,omitempty"`
	CongregationID string `json:"congregationId,omitempty"`
	Status         string `json:"status"`
}

// CurrentUserResponse is the signed in user with their resolved permissions
type CurrentUserResponse struct {
	User      UserResponse     `json:"user"`
	Principal *authz.Principal `json:"principal"`
}

// Login handles user login
// @Summary Login
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]string
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if !h.decode(r, &req) {
		respondMessage(w, http.StatusBadRequest, "All fields are required.")
		return
	}

	user, err := h.identityService.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			h.metrics.Login(ctx, "invalid_credentials")
			respondMessage(w, http.StatusBadRequest, "Incorrect username or password.")
		case errors.Is(err, identity.ErrEmailNotVerified):
			h.metrics.Login(ctx, "unverified")
			respondMessage(w, http.StatusBadRequest, "User has not verified their email.")
		case errors.Is(err, identity.ErrAccountLocked):
			h.metrics.Login(ctx, "locked")
			respondMessage(w, http.StatusBadRequest, "Account is locked. Try again later.")
		default:
			h.metrics.Login(ctx, "error")
			h.log.ErrorContext(ctx, "login failed", logger.Component("auth"), logger.Error(err))
			respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	raw, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		h.metrics.Login(ctx, "error")
		h.log.ErrorContext(ctx, "failed to issue token",
			logger.Component("auth"),
			logger.UserID(user.ID),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.metrics.Login(ctx, "success")
	h.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeTokenIssued,
		CongregationID: user.CongregationID,
		ActorID:        user.ID,
		Resource:       "login",
		IPAddress:      getIPAddress(r),
		UserAgent:      r.UserAgent(),
	})

	respondJSON(w, http.StatusOK, LoginResponse{
		User:  LoginUser{ID: user.ID},
		Token: raw,
	})
}

// GetCurrentUser returns the signed in user and what they may do
// @Summary Current User
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} CurrentUserResponse
// @Failure 401 {object} map[string]string
// @Router /auth/me [get]
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.identityService.GetUser(ctx, GetUserID(ctx))
	if err != nil {
		respondMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	respondJSON(w, http.StatusOK, CurrentUserResponse{
		User:      toUserResponse(user),
		Principal: GetPrincipal(ctx),
	})
}
