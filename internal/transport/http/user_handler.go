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
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jwbwvf/congregreat-server/internal/identity"
)

// RegisterRequest represents a sign up
type RegisterRequest struct {
	FirstName       string `json:"firstName" validate:"required"`
	LastName        string `json:"lastName" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	ConfirmEmail    string `json:"confirmEmail" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// ConfirmRequest carries the token from a confirmation email
type ConfirmRequest struct {
	Token string `json:"token" validate:"required"`
}

// ResendRequest names the email to send a new confirmation to
type ResendRequest struct {
	Email string `json:"email" validate:"required"`
}

// UpdateUserRequest carries the user fields to change. An empty memberId
// unlinks the user from its member.
type UpdateUserRequest struct {
	Email    *string `json:"email,omitempty"`
	MemberID *string `json:"memberId,omitempty"`
}

func toUserResponse(u *identity.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Email:          u.Email,
		MemberID:       u.MemberID,
		CongregationID: u.CongregationID,
		Status:         string(u.Status),
	}
}

// Register signs up a new user and sends a confirmation email
// @Summary Register
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Sign up"
// @Success 201 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if !h.decode(r, &req) {
		respondMessage(w, http.StatusBadRequest, "All fields are required.")
		return
	}
	if !strings.EqualFold(strings.TrimSpace(req.Email), strings.TrimSpace(req.ConfirmEmail)) {
		respondMessage(w, http.StatusBadRequest, "Email fields do not match, try again.")
		return
	}
	if req.Password != req.ConfirmPassword {
		respondMessage(w, http.StatusBadRequest, "Password fields do not match, try again.")
		return
	}

	_, err := h.registration.Register(ctx, identity.Registration{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		h.userError(w, r, err)
		return
	}
	respondMessage(w, http.StatusCreated, "Please check your email to verify your account.")
}

// ConfirmEmail verifies the user named by a confirmation token
// @Summary Confirm Email
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body ConfirmRequest true "Token"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /auth/confirm [put]
func (h *Handler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ConfirmRequest
	if !h.decode(r, &req) {
		respondMessage(w, http.StatusBadRequest, "The token is invalid.")
		return
	}

	if _, err := h.registration.Confirm(ctx, req.Token); err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidConfirmation):
			respondMessage(w, http.StatusBadRequest, "The token is invalid.")
		case errors.Is(err, identity.ErrUserNotFound):
			respondMessage(w, http.StatusNotFound, "No user exists for this token.")
		default:
			h.userError(w, r, err)
		}
		return
	}
	respondMessage(w, http.StatusOK, "The user's email has been verified, please login.")
}

// ResendConfirmation mails a new confirmation token
// @Summary Resend Confirmation
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body ResendRequest true "Email"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /auth/resend [post]
func (h *Handler) ResendConfirmation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ResendRequest
	if !h.decode(r, &req) {
		respondMessage(w, http.StatusBadRequest, "Email is required.")
		return
	}

	if err := h.registration.Resend(ctx, req.Email); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			respondMessage(w, http.StatusNotFound, "Email was never registered. Did you forget your login information?")
			return
		}
		h.userError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Email has been resent. Please check your email to verify your account.")
}

// ListUsers returns every user that is not deleted
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetUser returns one user
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.userError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateUser changes the email or member link of a user
// @Summary Update User
// @Tags User
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body UpdateUserRequest true "Changes"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /users/{id} [patch]
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateUserRequest
	if !h.decode(r, &req) {
		respondMessage(w, http.StatusBadRequest, "No modifiable user property was provided.")
		return
	}

	_, err := h.userService.UpdateUser(ctx, GetUserID(ctx), chi.URLParam(r, "id"), identity.UserUpdate{
		Email:    req.Email,
		MemberID: req.MemberID,
	})
	if err != nil {
		h.userError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "User was updated.")
}

// DeleteUser soft deletes a user
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.userService.DeleteUser(ctx, GetUserID(ctx), chi.URLParam(r, "id")); err != nil {
		h.userError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "User was deleted.")
}

// userError maps identity errors to responses.
func (h *Handler) userError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidEmail):
		respondMessage(w, http.StatusBadRequest, "Email is invalid.")
	case errors.Is(err, identity.ErrWeakPassword):
		respondMessage(w, http.StatusBadRequest, "Password must be at least 8 characters.")
	case errors.Is(err, identity.ErrUserAlreadyExists):
		respondMessage(w, http.StatusConflict, "Email is already registered. Did you forget your login information?")
	case errors.Is(err, identity.ErrAlreadyVerified):
		respondMessage(w, http.StatusBadRequest, "The user's email has already been verified.")
	case errors.Is(err, identity.ErrNothingToUpdate):
		respondMessage(w, http.StatusBadRequest, "No modifiable user property was provided.")
	case errors.Is(err, identity.ErrMemberLinked):
		respondMessage(w, http.StatusConflict, "The member is already linked to another user.")
	case errors.Is(err, identity.ErrMemberNotFound):
		respondMessage(w, http.StatusNotFound, "Unable to find member by id.")
	case errors.Is(err, identity.ErrUserNotFound):
		respondMessage(w, http.StatusNotFound, "Unable to find user by id.")
	default:
		h.internalError(w, r, err)
	}
}
