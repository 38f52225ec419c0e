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

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jwbwvf/congregreat-server/internal/audit"
	"github.com/jwbwvf/congregreat-server/internal/authz"
)

const minPasswordLength = 8

// Service provides identity-related business logic
type Service struct {
	repo               UserRepository
	roles              RoleIDSource
	hasher             *PasswordHasher
	auditLogger        audit.Logger
	validate           *validator.Validate
	lockoutMaxAttempts int
	lockoutDuration    time.Duration
}

// NewService creates a new identity service
func NewService(
	repo UserRepository,
	roles RoleIDSource,
	hasher *PasswordHasher,
	auditLogger audit.Logger,
	lockoutMaxAttempts int,
	lockoutDuration time.Duration,
) *Service {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Service{
		repo:               repo,
		roles:              roles,
		hasher:             hasher,
		auditLogger:        auditLogger,
		validate:           validator.New(),
		lockoutMaxAttempts: lockoutMaxAttempts,
		lockoutDuration:    lockoutDuration,
	}
}

// ProvisionUser creates a user with a password. memberID may be empty for
// accounts that do not belong to a congregation.
func (s *Service) ProvisionUser(ctx context.Context, email, password, memberID string, status UserStatus) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}
	now := time.Now()
	user := &User{
		ID:        id.String(),
		Email:     email,
		MemberID:  memberID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.SetPassword(ctx, user.ID, password); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserCreated,
		ActorID:  user.ID,
		Resource: "user",
		Metadata: map[string]any{audit.AttrEmail: user.Email},
	})

	return user, nil
}

// SetPassword hashes and stores a new password for a user.
func (s *Service) SetPassword(ctx context.Context, userID, password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.SetPassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePasswordChanged,
		ActorID:  userID,
		Resource: "user",
	})
	return nil
}

// Authenticate authenticates a user with email and password. Only verified
// users may sign in; repeated failures lock the account. Storage failures are
// returned as they are, never as ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if err != nil || user.Deleted() {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			Resource: "login",
			Metadata: map[string]any{audit.AttrEmail: email, audit.AttrReason: "user_not_found"},
		})
		return nil, ErrInvalidCredentials
	}

	if user.LockedUntil != nil && user.LockedUntil.After(time.Now()) {
		s.auditLogger.Log(ctx, audit.Event{
			Type:           audit.TypeLoginFailed,
			CongregationID: user.CongregationID,
			ActorID:        user.ID,
			Resource:       "login",
			Metadata:       map[string]any{audit.AttrReason: "locked_out"},
		})
		return nil, ErrAccountLocked
	}

	credentials, err := s.repo.GetCredentials(ctx, user.ID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	valid, err := s.hasher.Verify(password, credentials.PasswordHash)
	if err != nil || !valid {
		if err := s.recordFailure(ctx, user); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.repo.UpdateLockout(ctx, user.ID, 0, nil); err != nil {
			return nil, fmt.Errorf("failed to reset lockout: %w", err)
		}
	}

	if !user.Verified() {
		s.auditLogger.Log(ctx, audit.Event{
			Type:           audit.TypeLoginFailed,
			CongregationID: user.CongregationID,
			ActorID:        user.ID,
			Resource:       "login",
			Metadata:       map[string]any{audit.AttrReason: "email_not_verified"},
		})
		return nil, ErrEmailNotVerified
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeLoginSuccess,
		CongregationID: user.CongregationID,
		ActorID:        user.ID,
		Resource:       "login",
	})

	return user, nil
}

func (s *Service) recordFailure(ctx context.Context, user *User) error {
	attempts, lockedUntil, err := s.repo.RecordFailedLogin(ctx, user.ID, s.lockoutMaxAttempts, s.lockoutDuration)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}

	if lockedUntil != nil && attempts >= s.lockoutMaxAttempts {
		s.auditLogger.Log(ctx, audit.Event{
			Type:           audit.TypeUserLocked,
			CongregationID: user.CongregationID,
			ActorID:        user.ID,
			Resource:       "login",
			Metadata:       map[string]any{audit.AttrAttempts: attempts},
		})
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeLoginFailed,
		CongregationID: user.CongregationID,
		ActorID:        user.ID,
		Resource:       "login",
		Metadata: map[string]any{
			audit.AttrReason:   "invalid_password",
			audit.AttrAttempts: attempts,
		},
	})
	return nil
}

// GetUser retrieves a user by ID. Deleted users are not found.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.Deleted() {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// ListUsers returns all users that are not deleted.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.repo.List(ctx)
}

// UserUpdate holds the fields a user update may change. An empty MemberID
// unlinks the user from its member and so from its congregation.
type UserUpdate struct {
	Email    *string
	MemberID *string
}

// UpdateUser changes the email or member link of a user.
func (s *Service) UpdateUser(ctx context.Context, actorID, id string, u UserUpdate) (*User, error) {
	if u.Email == nil && u.MemberID == nil {
		return nil, ErrNothingToUpdate
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Deleted() {
		return nil, ErrUserNotFound
	}
	user := *current

	if u.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*u.Email))
		if err := s.validate.Var(email, "required,email,max=254"); err != nil {
			return nil, ErrInvalidEmail
		}
		user.Email = email
	}
	if u.MemberID != nil {
		user.MemberID = strings.TrimSpace(*u.MemberID)
	}
	user.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, &user); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserUpdated,
		ActorID:  actorID,
		Resource: "user",
		Metadata: map[string]any{audit.AttrUserID: user.ID, audit.AttrMemberID: user.MemberID},
	})

	// Reload for the congregation of the new member.
	return s.repo.GetByID(ctx, user.ID)
}

// DeleteUser soft deletes a user. Deleted users cannot sign in and their
// tokens stop resolving.
func (s *Service) DeleteUser(ctx context.Context, actorID, id string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user.Deleted() {
		return ErrUserNotFound
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusDeleted); err != nil {
		return err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserDeleted,
		ActorID:  actorID,
		Resource: "user",
		Metadata: map[string]any{audit.AttrUserID: id},
	})
	return nil
}

// VerifyEmail marks a user as verified so they can sign in.
func (s *Service) VerifyEmail(ctx context.Context, userID string) error {
	if err := s.repo.UpdateStatus(ctx, userID, StatusVerified); err != nil {
		return err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserVerified,
		ActorID:  userID,
		Resource: "user",
	})
	return nil
}

// Subject returns the authenticated subject used for permission resolution:
// the user's congregation scope and active role ids.
func (s *Service) Subject(ctx context.Context, userID string) (authz.Subject, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return authz.Subject{}, ErrUserNotFound
		}
		return authz.Subject{}, fmt.Errorf("failed to load user: %w", err)
	}
	if user.Deleted() {
		return authz.Subject{}, ErrUserNotFound
	}

	roleIDs, err := s.roles.ListActiveRoleIDs(ctx, user.ID)
	if err != nil {
		return authz.Subject{}, fmt.Errorf("failed to load user roles: %w", err)
	}

	return authz.Subject{
		UserID:         user.ID,
		CongregationID: user.CongregationID,
		RoleIDs:        roleIDs,
	}, nil
}
