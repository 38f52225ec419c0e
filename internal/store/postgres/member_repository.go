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
	"github.com/jwbwvf/congregreat-server/internal/member"
)

// Members without an email store NULL so the unique index ignores them.
const memberSelect = `
	SELECT id, congregation_id, first_name, last_name, COALESCE(email, ''), status,
		created_by, updated_by, created_at, updated_at
	FROM members
`

// MemberRepository implements member.Repository
type MemberRepository struct {
	db *DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// Create creates a new member
func (r *MemberRepository) Create(ctx context.Context, m *member.Member) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO members (
			id, congregation_id, first_name, last_name, email, status,
			created_by, updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
	`,
		m.ID, m.CongregationID, m.FirstName, m.LastName, m.Email, m.Status,
		m.CreatedBy, m.UpdatedBy, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return member.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// GetByID retrieves an active member of a congregation
func (r *MemberRepository) GetByID(ctx context.Context, congregationID, id string) (*member.Member, error) {
	if !isUUID(congregationID) || !isUUID(id) {
		return nil, member.ErrNotFound
	}
	return r.getOne(ctx, memberSelect+`WHERE id = $1 AND congregation_id = $2 AND status <> 'deleted'`, id, congregationID)
}

// GetByEmail retrieves the active member using an email
func (r *MemberRepository) GetByEmail(ctx context.Context, email string) (*member.Member, error) {
	return r.getOne(ctx, memberSelect+`WHERE email = $1 AND status <> 'deleted'`, email)
}

func (r *MemberRepository) getOne(ctx context.Context, query string, args ...any) (*member.Member, error) {
	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[member.Member])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, member.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// ListByCongregation lists active members of a congregation by name
func (r *MemberRepository) ListByCongregation(ctx context.Context, congregationID string) ([]*member.Member, error) {
	if !isUUID(congregationID) {
		return nil, nil
	}

	rows, err := r.db.pool.Query(ctx, memberSelect+`
		WHERE congregation_id = $1 AND status <> 'deleted'
		ORDER BY last_name ASC, first_name ASC
	`, congregationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	members, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[member.Member])
	if err != nil {
		return nil, fmt.Errorf("failed to scan members: %w", err)
	}
	return members, nil
}

// Update updates an active member
func (r *MemberRepository) Update(ctx context.Context, m *member.Member) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE members
		SET first_name = $3, last_name = $4, email = NULLIF($5, ''), updated_by = $6, updated_at = $7
		WHERE id = $1 AND congregation_id = $2 AND status <> 'deleted'
	`, m.ID, m.CongregationID, m.FirstName, m.LastName, m.Email, m.UpdatedBy, m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return member.ErrAlreadyExists
		}
		return fmt.Errorf("failed to update member: %w", err)
	}

	if result.RowsAffected() == 0 {
		return member.ErrNotFound
	}
	return nil
}

// SoftDelete marks a member deleted
func (r *MemberRepository) SoftDelete(ctx context.Context, congregationID, id, actorID string) error {
	if !isUUID(congregationID) || !isUUID(id) {
		return member.ErrNotFound
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE members
		SET status = 'deleted', updated_by = $3, updated_at = NOW()
		WHERE id = $1 AND congregation_id = $2 AND status <> 'deleted'
	`, id, congregationID, actorID)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}

	if result.RowsAffected() == 0 {
		return member.ErrNotFound
	}
	return nil
}
