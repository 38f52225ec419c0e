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

// Package member keeps the people of a congregation and the events they
// attended. Every record is addressed through its congregation.
package member

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrNotFound           = errors.New("member not found")
	ErrAttendanceNotFound = errors.New("attendance record not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNothingToUpdate    = errors.New("no modifiable member property")
	ErrAlreadyExists      = errors.New("member email already in use")
	ErrAlreadyRecorded    = errors.New("attendance already recorded")
)

// Status is the lifecycle state of a member.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// Member is a person who belongs to a congregation. A user account linked to
// a member inherits the member's congregation scope.
type Member struct {
	ID             string    `json:"id"`
	CongregationID string    `json:"congregationId"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email,omitempty"`
	Status         Status    `json:"status"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	UpdatedBy      string    `json:"updatedBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Attendance records that a member attended an event.
type Attendance struct {
	ID             string    `json:"id"`
	CongregationID string    `json:"congregationId"`
	EventID        string    `json:"eventId"`
	MemberID       string    `json:"memberId"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Repository defines member persistence. Lookups by id are confined to a
// congregation; GetByEmail spans all congregations since member emails are
// unique among active members.
type Repository interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, congregationID, id string) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)
	ListByCongregation(ctx context.Context, congregationID string) ([]*Member, error)
	Update(ctx context.Context, m *Member) error
	SoftDelete(ctx context.Context, congregationID, id, actorID string) error
}

// AttendanceRepository defines attendance persistence. Records are removed,
// not soft deleted.
type AttendanceRepository interface {
	Create(ctx context.Context, a *Attendance) error
	ListByEvent(ctx context.Context, congregationID, eventID string) ([]*Attendance, error)
	Delete(ctx context.Context, congregationID, eventID, id string) error
}
