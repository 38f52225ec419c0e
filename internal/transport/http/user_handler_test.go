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
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jwbwvf/congregreat-server/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates sign up request checks and responses.
// Scope: Unit Test
// Expected: Mismatched or missing fields are rejected before the service runs; duplicates are a conflict.
// Test Case ID: HTTP-16
func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	valid := RegisterRequest{
		FirstName: "Jane", LastName: "Doe",
		Email: "jane@example.com", ConfirmEmail: "Jane@Example.com",
		Password: "password123", ConfirmPassword: "password123",
	}
	reg := identity.Registration{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "password123"}

	rejects := []struct {
		name    string
		body    any
		message string
	}{
		{"missing fields", map[string]string{"email": "jane@example.com"}, "All fields are required."},
		{"emails differ", func() RegisterRequest { r := valid; r.ConfirmEmail = "john@example.com"; return r }(), "Email fields do not match, try again."},
		{"passwords differ", func() RegisterRequest { r := valid; r.ConfirmPassword = "password124"; return r }(), "Password fields do not match, try again."},
	}
	for _, tt := range rejects {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, message(t, w))
		})
	}

	t.Run("registered", func(t *testing.T) {
		env.registration.On("Register", mock.Anything, reg).
			Return(&identity.User{ID: "u-jane", Email: "jane@example.com", Status: identity.StatusUnverified}, nil).Once()

		w := env.do(t, http.MethodPost, "/api/v1/auth/register", "", valid)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "Please check your email to verify your account.", message(t, w))
	})

	t.Run("already registered", func(t *testing.T) {
		env.registration.On("Register", mock.Anything, reg).Return(nil, identity.ErrUserAlreadyExists).Once()

		w := env.do(t, http.MethodPost, "/api/v1/auth/register", "", valid)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "Email is already registered. Did you forget your login information?", message(t, w))
	})

	t.Run("weak password", func(t *testing.T) {
		env.registration.On("Register", mock.Anything, reg).Return(nil, identity.ErrWeakPassword).Once()

		w := env.do(t, http.MethodPost, "/api/v1/auth/register", "", valid)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	env.registration.AssertExpectations(t)
}

// TestPurpose: Validates email confirmation and resend responses.
// Scope: Unit Test
// Security: Token failures share one message
// Expected: The documented message and status for each confirmation outcome.
// Test Case ID: HTTP-17
func TestConfirmAndResend(t *testing.T) {
	env := newTestEnv(t)

	confirms := []struct {
		name    string
		token   string
		err     error
		status  int
		message string
	}{
		{"verified", "t-ok", nil, http.StatusOK, "The user's email has been verified, please login."},
		{"invalid", "t-bad", identity.ErrInvalidConfirmation, http.StatusBadRequest, "The token is invalid."},
		{"no user", "t-ghost", identity.ErrUserNotFound, http.StatusNotFound, "No user exists for this token."},
		{"already verified", "t-again", identity.ErrAlreadyVerified, http.StatusBadRequest, "The user's email has already been verified."},
	}
	for _, tt := range confirms {
		t.Run("confirm "+tt.name, func(t *testing.T) {
			var user *identity.User
			if tt.err == nil {
				user = &identity.User{ID: "u-jane", Status: identity.StatusVerified}
			}
			env.registration.On("Confirm", mock.Anything, tt.token).Return(user, tt.err).Once()

			w := env.do(t, http.MethodPut, "/api/v1/auth/confirm", "", ConfirmRequest{Token: tt.token})
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, message(t, w))
		})
	}

	t.Run("confirm without token", func(t *testing.T) {
		w := env.do(t, http.MethodPut, "/api/v1/auth/confirm", "", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "The token is invalid.", message(t, w))
	})

	resends := []struct {
		name    string
		email   string
		err     error
		status  int
		message string
	}{
		{"resent", "jane@example.com", nil, http.StatusOK, "Email has been resent. Please check your email to verify your account."},
		{"never registered", "zed@example.com", identity.ErrUserNotFound, http.StatusNotFound, "Email was never registered. Did you forget your login information?"},
		{"already verified", "alice@example.com", identity.ErrAlreadyVerified, http.StatusBadRequest, "The user's email has already been verified."},
	}
	for _, tt := range resends {
		t.Run("resend "+tt.name, func(t *testing.T) {
			env.registration.On("Resend", mock.Anything, tt.email).Return(tt.err).Once()

			w := env.do(t, http.MethodPost, "/api/v1/auth/resend", "", ResendRequest{Email: tt.email})
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, message(t, w))
		})
	}

	t.Run("resend without email", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/auth/resend", "", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Email is required.", message(t, w))
	})

	env.registration.AssertExpectations(t)
}

// TestPurpose: Validates the user administration routes.
// Scope: Unit Test
// Security: Users are global, so only system admins pass the guard
// Expected: Congregation users are denied; admin requests map service errors to the documented messages.
// Test Case ID: HTTP-18
func TestUserAdminRoutes(t *testing.T) {
	env := newTestEnv(t)

	t.Run("congregation user denied", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/users", "u-alice", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Not authorized to readAll this user.", message(t, w))
	})

	t.Run("list", func(t *testing.T) {
		env.users.On("ListUsers", mock.Anything).Return([]*identity.User{
			{ID: "u-alice", Email: "alice@example.com", CongregationID: "cong-1", Status: identity.StatusVerified},
		}, nil).Once()

		w := env.do(t, http.MethodGet, "/api/v1/users", "u-admin", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var list []UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.Equal(t, "cong-1", list[0].CongregationID)
	})

	t.Run("not found", func(t *testing.T) {
		env.users.On("GetUser", mock.Anything, "u-nobody").Return(nil, identity.ErrUserNotFound).Once()

		w := env.do(t, http.MethodGet, "/api/v1/users/u-nobody", "u-admin", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Unable to find user by id.", message(t, w))
	})

	t.Run("nothing to update", func(t *testing.T) {
		env.users.On("UpdateUser", mock.Anything, "u-admin", "u-bob", identity.UserUpdate{}).
			Return(nil, identity.ErrNothingToUpdate).Once()

		w := env.do(t, http.MethodPatch, "/api/v1/users/u-bob", "u-admin", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "No modifiable user property was provided.", message(t, w))
	})

	linkTo := func(id string) any {
		return mock.MatchedBy(func(u identity.UserUpdate) bool { return u.MemberID != nil && *u.MemberID == id })
	}

	t.Run("member already linked", func(t *testing.T) {
		env.users.On("UpdateUser", mock.Anything, "u-admin", "u-bob", linkTo("mem-1")).
			Return(nil, identity.ErrMemberLinked).Once()

		w := env.do(t, http.MethodPatch, "/api/v1/users/u-bob", "u-admin", map[string]string{"memberId": "mem-1"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("updated", func(t *testing.T) {
		env.users.On("UpdateUser", mock.Anything, "u-admin", "u-bob", linkTo("mem-2")).
			Return(&identity.User{ID: "u-bob", MemberID: "mem-2"}, nil).Once()

		w := env.do(t, http.MethodPatch, "/api/v1/users/u-bob", "u-admin", map[string]string{"memberId": "mem-2"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "User was updated.", message(t, w))
	})

	t.Run("deleted", func(t *testing.T) {
		env.users.On("DeleteUser", mock.Anything, "u-admin", "u-bob").Return(nil).Once()

		w := env.do(t, http.MethodDelete, "/api/v1/users/u-bob", "u-admin", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "User was deleted.", message(t, w))
	})

	env.users.AssertExpectations(t)
}
