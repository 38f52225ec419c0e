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

const eventColumns = `id, congregation_id, name, description, starts_at, status, created_by, updated_by, created_at, updated_at`

// EventRepository implements congregation.EventRepository. Every statement
// filters on congregation_id.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create creates a new event
func (r *EventRepository) Create(ctx context.Context, e *congregation.Event) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		e.ID, e.CongregationID, e.Name, e.Description, e.StartsAt, e.Status,
		e.CreatedBy, e.UpdatedBy, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// GetByID retrieves an active event of a congregation
func (r *EventRepository) GetByID(ctx context.Context, congregationID, id string) (*congregation.Event, error) {
	if !isUUID(congregationID) || !isUUID(id) {
		return nil, congregation.ErrEventNotFound
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = $1 AND congregation_id = $2 AND status <> 'deleted'
	`, id, congregationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	e, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[congregation.Event])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, congregation.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// ListByCongregation lists active events of a congregation, soonest first
func (r *EventRepository) ListByCongregation(ctx context.Context, congregationID string) ([]*congregation.Event, error) {
	if !isUUID(congregationID) {
		return nil, nil
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE congregation_id = $1 AND status <> 'deleted'
		ORDER BY starts_at ASC
	`, congregationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[congregation.Event])
	if err != nil {
		return nil, fmt.Errorf("failed to scan events: %w", err)
	}
	return events, nil
}

// Update updates an active event
func (r *EventRepository) Update(ctx context.Context, e *congregation.Event) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE events
		SET name = $3, description = $4, starts_at = $5, updated_by = $6, updated_at = $7
		WHERE id = $1 AND congregation_id = $2 AND status <> 'deleted'
	`, e.ID, e.CongregationID, e.Name, e.Description, e.StartsAt, e.UpdatedBy, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	if result.RowsAffected() == 0 {
		return congregation.ErrEventNotFound
	}
	return nil
}

// SoftDelete marks an event deleted
func (r *EventRepository) SoftDelete(ctx context.Context, congregationID, id, actorID string) error {
	if !isUUID(congregationID) || !isUUID(id) {
		return congregation.ErrEventNotFound
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE events
		SET status = 'deleted', updated_by = $3, updated_at = NOW()
		WHERE id = $1 AND congregation_id = $2 AND status <> 'deleted'
	`, id, congregationID, actorID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if result.RowsAffected() == 0 {
		return congregation.ErrEventNotFound
	}
	return nil
}
