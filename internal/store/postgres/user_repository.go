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

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jwbwvf/congregreat-server/internal/identity"
)

// The congregation of a user is the congregation of its member record.
const userSelect = `
	SELECT u.id, u.email, u.member_id, m.congregation_id, u.status,
		u.failed_login_attempts, u.locked_until, u.created_at, u.updated_at
	FROM users u
	LEFT JOIN members m ON m.id = u.member_id
`

// UserRepository implements identity.UserRepository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (
			id, email, member_id, status, failed_login_attempts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, 0, $5, $6)
	`,
		user.ID, user.Email, nullableUUID(user.MemberID), user.Status, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if mapped := userConstraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

func userConstraintError(err error) error {
	switch violatedConstraint(err) {
	case "users_email_key":
		return identity.ErrUserAlreadyExists
	case "users_member_id_key":
		return identity.ErrMemberLinked
	case "users_member_id_fkey":
		return identity.ErrMemberNotFound
	}
	return nil
}

func nullableUUID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	if !isUUID(id) {
		return nil, identity.ErrUserNotFound
	}
	return r.getOne(ctx, userSelect+`WHERE u.id = $1`, id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	return r.getOne(ctx, userSelect+`WHERE u.email = $1`, email)
}

// List retrieves all users that are not deleted
func (r *UserRepository) List(ctx context.Context) ([]*identity.User, error) {
	rows, err := r.db.pool.Query(ctx, userSelect+`WHERE u.status <> $1 ORDER BY u.email`, identity.StatusDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*identity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Update stores the email and member link of a user
func (r *UserRepository) Update(ctx context.Context, user *identity.User) error {
	if !isUUID(user.ID) {
		return identity.ErrUserNotFound
	}
	if user.MemberID != "" && !isUUID(user.MemberID) {
		return identity.ErrMemberNotFound
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET email = $2, member_id = $3, updated_at = $4
		WHERE id = $1 AND status <> $5
	`, user.ID, user.Email, nullableUUID(user.MemberID), user.UpdatedAt, identity.StatusDeleted)
	if err != nil {
		if mapped := userConstraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg string) (*identity.User, error) {
	user, err := scanUser(r.db.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*identity.User, error) {
	var user identity.User
	var memberID, congregationID sql.NullString
	var lockedUntil sql.NullTime

	err := row.Scan(
		&user.ID, &user.Email, &memberID, &congregationID, &user.Status,
		&user.FailedLoginAttempts, &lockedUntil, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.MemberID = memberID.String
	user.CongregationID = congregationID.String
	if lockedUntil.Valid {
		user.LockedUntil = &lockedUntil.Time
	}
	return &user, nil
}

// UpdateStatus changes the account status
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status identity.UserStatus) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}

	return nil
}

// UpdateLockout updates user lockout status
func (r *UserRepository) UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = $2, locked_until = $3, updated_at = NOW()
		WHERE id = $1
	`, userID, failedAttempts, lockedUntil)
	if err != nil {
		return fmt.Errorf("failed to update lockout: %w", err)
	}
	return nil
}

// RecordFailedLogin increments the failed attempt counter and sets the lock
// in a single statement, so concurrent failures are all counted.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, userID string, maxAttempts int, lockout time.Duration) (int, *time.Time, error) {
	var attempts int
	var lockedUntil sql.NullTime
	err := r.db.pool.QueryRow(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
			locked_until = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN NOW() + make_interval(secs => $3)
				ELSE locked_until
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING failed_login_attempts, locked_until
	`, userID, maxAttempts, lockout.Seconds()).Scan(&attempts, &lockedUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, identity.ErrUserNotFound
		}
		return 0, nil, fmt.Errorf("failed to record failed login: %w", err)
	}
	if !lockedUntil.Valid {
		return attempts, nil, nil
	}
	return attempts, &lockedUntil.Time, nil
}

// GetCredentials retrieves user credentials
func (r *UserRepository) GetCredentials(ctx context.Context, userID string) (*identity.Credentials, error) {
	var creds identity.Credentials
	err := r.db.pool.QueryRow(ctx, `
		SELECT user_id, password_hash, updated_at
		FROM credentials
		WHERE user_id = $1
	`, userID).Scan(&creds.UserID, &creds.PasswordHash, &creds.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	return &creds, nil
}

// SetPassword creates or replaces the user's password hash
func (r *UserRepository) SetPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO credentials (user_id, password_hash, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	return nil
}
