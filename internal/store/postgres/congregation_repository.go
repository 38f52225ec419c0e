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
	"github.com/jwbwvf/congregreat-server/internal/congregation"
)

const congregationColumns = `id, name, phone, email, status, created_by, updated_by, created_at, updated_at`

// CongregationRepository implements congregation.Repository
type CongregationRepository struct {
	db *DB
}

// NewCongregationRepository creates a new congregation repository
func NewCongregationRepository(db *DB) *CongregationRepository {
	return &CongregationRepository{db: db}
}

// Create creates a new congregation
func (r *CongregationRepository) Create(ctx context.Context, c *congregation.Congregation) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO congregations (`+congregationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		c.ID, c.Name, c.Phone, c.Email, c.Status,
		c.CreatedBy, c.UpdatedBy, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return congregation.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create congregation: %w", err)
	}
	return nil
}

// GetByID retrieves an active congregation by ID
func (r *CongregationRepository) GetByID(ctx context.Context, id string) (*congregation.Congregation, error) {
	if !isUUID(id) {
		return nil, congregation.ErrNotFound
	}
	return r.getOne(ctx, `WHERE id = $1 AND status <> 'deleted'`, id)
}

// GetByName retrieves an active congregation by name
func (r *CongregationRepository) GetByName(ctx context.Context, name string) (*congregation.Congregation, error) {
	return r.getOne(ctx, `WHERE name = $1 AND status <> 'deleted'`, name)
}

func (r *CongregationRepository) getOne(ctx context.Context, where string, arg string) (*congregation.Congregation, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+congregationColumns+` FROM congregations `+where, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to get congregation: %w", err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[congregation.Congregation])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, congregation.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get congregation: %w", err)
	}
	return c, nil
}

// List lists active congregations
func (r *CongregationRepository) List(ctx context.Context) ([]*congregation.Congregation, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+congregationColumns+`
		FROM congregations
		WHERE status <> 'deleted'
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list congregations: %w", err)
	}

	list, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[congregation.Congregation])
	if err != nil {
		return nil, fmt.Errorf("failed to scan congregations: %w", err)
	}
	return list, nil
}

// Update updates an active congregation
func (r *CongregationRepository) Update(ctx context.Context, c *congregation.Congregation) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE congregations
		SET name = $2, phone = $3, email = $4, updated_by = $5, updated_at = $6
		WHERE id = $1 AND status <> 'deleted'
	`, c.ID, c.Name, c.Phone, c.Email, c.UpdatedBy, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return congregation.ErrAlreadyExists
		}
		return fmt.Errorf("failed to update congregation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return congregation.ErrNotFound
	}
	return nil
}

// SoftDelete marks a congregation deleted
func (r *CongregationRepository) SoftDelete(ctx context.Context, id, actorID string) error {
	if !isUUID(id) {
		return congregation.ErrNotFound
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE congregations
		SET status = 'deleted', updated_by = $2, updated_at = NOW()
		WHERE id = $1 AND status <> 'deleted'
	`, id, actorID)
	if err != nil {
		return fmt.Errorf("failed to delete congregation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return congregation.ErrNotFound
	}
	return nil
}
