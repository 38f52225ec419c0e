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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jwbwvf/congregreat-server/internal/authz"
)

// UserRoleRepository implements authz.UserRoleRepository
type UserRoleRepository struct {
	db *DB
}

// NewUserRoleRepository creates a new user role repository
func NewUserRoleRepository(db *DB) *UserRoleRepository {
	return &UserRoleRepository{db: db}
}

// Create assigns a role to a user
func (r *UserRoleRepository) Create(ctx context.Context, ur *authz.UserRole) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO user_roles (
			id, user_id, role_id, status, created_by, updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		ur.ID, ur.UserID, ur.RoleID, ur.Status,
		ur.CreatedBy, ur.UpdatedBy, ur.CreatedAt, ur.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return authz.ErrRoleAlreadyAssigned
		}
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// GetByID retrieves a user role by ID
func (r *UserRoleRepository) GetByID(ctx context.Context, id string) (*authz.UserRole, error) {
	if !isUUID(id) {
		return nil, authz.ErrUserRoleNotFound
	}

	var ur authz.UserRole
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, user_id, role_id, status, created_by, updated_by, created_at, updated_at
		FROM user_roles
		WHERE id = $1
	`, id).Scan(
		&ur.ID, &ur.UserID, &ur.RoleID, &ur.Status,
		&ur.CreatedBy, &ur.UpdatedBy, &ur.CreatedAt, &ur.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrUserRoleNotFound
		}
		return nil, fmt.Errorf("failed to get user role: %w", err)
	}
	return &ur, nil
}

// List lists active user roles
func (r *UserRoleRepository) List(ctx context.Context) ([]*authz.UserRole, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, user_id, role_id, status, created_by, updated_by, created_at, updated_at
		FROM user_roles
		WHERE status <> 'deleted'
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}
	defer rows.Close()

	var out []*authz.UserRole
	for rows.Next() {
		var ur authz.UserRole
		if err := rows.Scan(
			&ur.ID, &ur.UserID, &ur.RoleID, &ur.Status,
			&ur.CreatedBy, &ur.UpdatedBy, &ur.CreatedAt, &ur.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user role: %w", err)
		}
		out = append(out, &ur)
	}
	return out, rows.Err()
}

// ListActiveRoleIDs returns the ids of the roles actively assigned to a user,
// oldest assignment first
func (r *UserRoleRepository) ListActiveRoleIDs(ctx context.Context, userID string) ([]string, error) {
	if !isUUID(userID) {
		return nil, nil
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT role_id
		FROM user_roles
		WHERE user_id = $1 AND status <> 'deleted'
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan role ids: %w", err)
	}
	return ids, nil
}

// SoftDelete revokes a user role
func (r *UserRoleRepository) SoftDelete(ctx context.Context, id, actorID string) error {
	if !isUUID(id) {
		return authz.ErrUserRoleNotFound
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE user_roles
		SET status = 'deleted', updated_by = $2, updated_at = NOW()
		WHERE id = $1 AND status <> 'deleted'
	`, id, actorID)
	if err != nil {
		return fmt.Errorf("failed to revoke user role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return authz.ErrUserRoleNotFound
	}
	return nil
}
