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
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jwbwvf/congregreat-server/internal/member"
)

const attendanceColumns = `id, congregation_id, event_id, member_id, created_by, created_at`

// AttendanceRepository implements member.AttendanceRepository
type AttendanceRepository struct {
	db *DB
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(db *DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create records an attendance
func (r *AttendanceRepository) Create(ctx context.Context, a *member.Attendance) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO attendances (`+attendanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.CongregationID, a.EventID, a.MemberID, a.CreatedBy, a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return member.ErrAlreadyRecorded
		}
		return fmt.Errorf("failed to record attendance: %w", err)
	}
	return nil
}

// ListByEvent lists the attendance of an event in recording order
func (r *AttendanceRepository) ListByEvent(ctx context.Context, congregationID, eventID string) ([]*member.Attendance, error) {
	if !isUUID(congregationID) || !isUUID(eventID) {
		return nil, nil
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendances
		WHERE congregation_id = $1 AND event_id = $2
		ORDER BY created_at ASC
	`, congregationID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}

	list, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[member.Attendance])
	if err != nil {
		return nil, fmt.Errorf("failed to scan attendance: %w", err)
	}
	return list, nil
}

// Delete removes an attendance record of an event
func (r *AttendanceRepository) Delete(ctx context.Context, congregationID, eventID, id string) error {
	if !isUUID(congregationID) || !isUUID(eventID) || !isUUID(id) {
		return member.ErrAttendanceNotFound
	}

	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM attendances
		WHERE id = $1 AND congregation_id = $2 AND event_id = $3
	`, id, congregationID, eventID)
	if err != nil {
		return fmt.Errorf("failed to delete attendance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return member.ErrAttendanceNotFound
	}
	return nil
}
