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
	"time"
)

// Domain errors
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailNotVerified    = errors.New("email not verified")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrWeakPassword        = errors.New("password does not meet security requirements")
	ErrAccountLocked       = errors.New("account is locked")
	ErrAlreadyVerified     = errors.New("email already verified")
	ErrNothingToUpdate     = errors.New("no modifiable user property")
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberLinked        = errors.New("member already linked to another user")
	ErrInvalidConfirmation = errors.New("invalid confirmation token")
)

// UserStatus is the lifecycle state of a user account.
type UserStatus string

const (
	StatusUnverified UserStatus = "unVerified"
	StatusVerified   UserStatus = "verified"
	StatusDeleted    UserStatus = "deleted"
)

// User is an account that can sign in. A user belongs to at most one
// congregation, through its member record.
type User struct {
	ID                  string
	Email               string
	MemberID            string
	CongregationID      string
	Status              UserStatus
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Verified reports whether the user confirmed their email.
func (u *User) Verified() bool {
	return u.Status == StatusVerified
}

// Deleted reports whether the user was soft deleted.
func (u *User) Deleted() bool {
	return u.Status == StatusDeleted
}

// Credentials represents user authentication credentials
type Credentials struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID, with the congregation of its member
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// List retrieves all users that are not deleted
	List(ctx context.Context) ([]*User, error)

	// Update stores the email and member link of a user
	Update(ctx context.Context, user *User) error

	// UpdateStatus changes the account status
	UpdateStatus(ctx context.Context, id string, status UserStatus) error

	// UpdateLockout updates user lockout status
	UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error

	// RecordFailedLogin increments the failed attempt counter in one step and
	// locks the account for lockout once it reaches maxAttempts. It returns
	// the new count and lock expiry.
	RecordFailedLogin(ctx context.Context, userID string, maxAttempts int, lockout time.Duration) (int, *time.Time, error)

	// GetCredentials retrieves user credentials
	GetCredentials(ctx context.Context, userID string) (*Credentials, error)

	// SetPassword creates or replaces the user's password hash
	SetPassword(ctx context.Context, userID, passwordHash string) error
}

// RoleIDSource lists the roles actively assigned to a user.
type RoleIDSource interface {
	ListActiveRoleIDs(ctx context.Context, userID string) ([]string, error)
}
