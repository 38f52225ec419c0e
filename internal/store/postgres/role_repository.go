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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jwbwvf/congregreat-server/internal/authz"
)

const roleColumns = `id, name, permissions, status, created_by, updated_by, created_at, updated_at`

// RoleRepository implements authz.RoleRepository
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Create creates a new role
func (r *RoleRepository) Create(ctx context.Context, role *authz.Role) error {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO roles (
			id, name, permissions, status, created_by, updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		role.ID, role.Name, perms, role.Status,
		role.CreatedBy, role.UpdatedBy, role.CreatedAt, role.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return authz.ErrRoleAlreadyExists
		}
		return fmt.Errorf("failed to create role: %w", err)
	}

	return nil
}

// GetByID retrieves a role by ID, including deleted roles
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*authz.Role, error) {
	if !isUUID(id) {
		return nil, authz.ErrRoleNotFound
	}
	row := r.db.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetByName retrieves an active role by name
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*authz.Role, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+roleColumns+`
		FROM roles
		WHERE name = $1 AND status <> 'deleted'
	`, name)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// List lists active roles
func (r *RoleRepository) List(ctx context.Context) ([]*authz.Role, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+roleColumns+`
		FROM roles
		WHERE status <> 'deleted'
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	return collectRoles(rows)
}

// FindActiveByIDs returns the active roles among ids
func (r *RoleRepository) FindActiveByIDs(ctx context.Context, ids []string) ([]*authz.Role, error) {
	valid := uuidsOnly(ids)
	if len(valid) == 0 {
		return nil, nil
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT `+roleColumns+`
		FROM roles
		WHERE id = ANY($1) AND status <> 'deleted'
	`, valid)
	if err != nil {
		return nil, fmt.Errorf("failed to find roles: %w", err)
	}
	defer rows.Close()

	return collectRoles(rows)
}

// Update updates the name and permissions of an active role
func (r *RoleRepository) Update(ctx context.Context, role *authz.Role) error {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE roles
		SET name = $2, permissions = $3, updated_by = $4, updated_at = $5
		WHERE id = $1 AND status <> 'deleted'
	`, role.ID, role.Name, perms, role.UpdatedBy, role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return authz.ErrRoleAlreadyExists
		}
		return fmt.Errorf("failed to update role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return authz.ErrRoleNotFound
	}

	return nil
}

// SoftDelete marks a role deleted
func (r *RoleRepository) SoftDelete(ctx context.Context, id, actorID string) error {
	if !isUUID(id) {
		return authz.ErrRoleNotFound
	}
	result, err := r.db.pool.Exec(ctx, `
		UPDATE roles
		SET status = 'deleted', updated_by = $2, updated_at = NOW()
		WHERE id = $1 AND status <> 'deleted'
	`, id, actorID)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return authz.ErrRoleNotFound
	}

	return nil
}

func scanRole(row pgx.Row) (*authz.Role, error) {
	var role authz.Role
	var perms []byte
	if err := row.Scan(
		&role.ID, &role.Name, &perms, &role.Status,
		&role.CreatedBy, &role.UpdatedBy, &role.CreatedAt, &role.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(perms, &role.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions of role %s: %w", role.ID, err)
	}
	return &role, nil
}

func collectRoles(rows pgx.Rows) ([]*authz.Role, error) {
	var roles []*authz.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read roles: %w", err)
	}
	return roles, nil
}

// isUUID reports whether id can be compared against a UUID column. Ids
// arriving from URLs are not trusted to be well formed.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func uuidsOnly(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			out = append(out, id)
		}
	}
	return out
}
