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

package member

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jwbwvf/congregreat-server/internal/audit"
	"github.com/jwbwvf/congregreat-server/internal/congregation"
)

// Congregations confirms that the congregation and event a record hangs off
// exist. congregation.Service satisfies it.
type Congregations interface {
	Get(ctx context.Context, id string) (*congregation.Congregation, error)
	GetEvent(ctx context.Context, congregationID, id string) (*congregation.Event, error)
}

// Service manages members and attendance. Callers are expected to have passed
// the access guard for the congregation already.
type Service struct {
	repo          Repository
	attendance    AttendanceRepository
	congregations Congregations
	auditLogger   audit.Logger
	validate      *validator.Validate
}

// NewService creates a new member service
func NewService(repo Repository, attendance AttendanceRepository, congregations Congregations, auditLogger audit.Logger) *Service {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Service{
		repo:          repo,
		attendance:    attendance,
		congregations: congregations,
		auditLogger:   auditLogger,
		validate:      validator.New(),
	}
}

// NewMember holds the fields of a member to add.
type NewMember struct {
	FirstName string
	LastName  string
	Email     string
}

// Update holds the fields a member update may change.
type Update struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// Create adds a member to a congregation. Email is optional but unique among
// active members.
func (s *Service) Create(ctx context.Context, actorID, congregationID string, in NewMember) (*Member, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if first == "" || last == "" {
		return nil, ErrInvalidInput
	}
	email, err := s.normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	if _, err := s.congregations.Get(ctx, congregationID); err != nil {
		return nil, err
	}
	if err := s.checkEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate member id: %w", err)
	}
	now := time.Now()
	m := &Member{
		ID:             id.String(),
		CongregationID: congregationID,
		FirstName:      first,
		LastName:       last,
		Email:          email,
		Status:         StatusActive,
		CreatedBy:      actorID,
		UpdatedBy:      actorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create member: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeMemberCreated,
		CongregationID: congregationID,
		ActorID:        actorID,
		Resource:       "member",
		Metadata:       map[string]any{audit.AttrMemberID: m.ID},
	})
	return m, nil
}

// Get returns a member of a congregation.
func (s *Service) Get(ctx context.Context, congregationID, id string) (*Member, error) {
	return s.repo.GetByID(ctx, congregationID, id)
}

// List returns the active members of a congregation.
func (s *Service) List(ctx context.Context, congregationID string) ([]*Member, error) {
	return s.repo.ListByCongregation(ctx, congregationID)
}

// ByEmail finds the active member with the given email in any congregation.
func (s *Service) ByEmail(ctx context.Context, email string) (*Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrNotFound
	}
	return s.repo.GetByEmail(ctx, email)
}

// Update changes a member of a congregation.
func (s *Service) Update(ctx context.Context, actorID, congregationID, id string, u Update) (*Member, error) {
	if u.FirstName == nil && u.LastName == nil && u.Email == nil {
		return nil, ErrNothingToUpdate
	}

	m, err := s.repo.GetByID(ctx, congregationID, id)
	if err != nil {
		return nil, err
	}

	if u.FirstName != nil {
		if m.FirstName = strings.TrimSpace(*u.FirstName); m.FirstName == "" {
			return nil, ErrInvalidInput
		}
	}
	if u.LastName != nil {
		if m.LastName = strings.TrimSpace(*u.LastName); m.LastName == "" {
			return nil, ErrInvalidInput
		}
	}
	if u.Email != nil {
		email, err := s.normalizeEmail(*u.Email)
		if err != nil {
			return nil, err
		}
		if email != m.Email {
			if err := s.checkEmailFree(ctx, email, m.ID); err != nil {
				return nil, err
			}
		}
		m.Email = email
	}
	m.UpdatedBy = actorID
	m.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeMemberUpdated,
		CongregationID: congregationID,
		ActorID:        actorID,
		Resource:       "member",
		Metadata:       map[string]any{audit.AttrMemberID: m.ID},
	})
	return m, nil
}

// Delete soft deletes a member of a congregation.
func (s *Service) Delete(ctx context.Context, actorID, congregationID, id string) error {
	if err := s.repo.SoftDelete(ctx, congregationID, id, actorID); err != nil {
		return err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeMemberDeleted,
		CongregationID: congregationID,
		ActorID:        actorID,
		Resource:       "member",
		Metadata:       map[string]any{audit.AttrMemberID: id},
	})
	return nil
}

// RecordAttendance records that a member attended an event. Both must belong
// to the congregation.
func (s *Service) RecordAttendance(ctx context.Context, actorID, congregationID, eventID, memberID string) (*Attendance, error) {
	if eventID == "" || memberID == "" {
		return nil, ErrInvalidInput
	}
	if _, err := s.congregations.GetEvent(ctx, congregationID, eventID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, congregationID, memberID); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate attendance id: %w", err)
	}
	a := &Attendance{
		ID:             id.String(),
		CongregationID: congregationID,
		EventID:        eventID,
		MemberID:       memberID,
		CreatedBy:      actorID,
		CreatedAt:      time.Now(),
	}
	if err := s.attendance.Create(ctx, a); err != nil {
		if errors.Is(err, ErrAlreadyRecorded) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record attendance: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeAttendanceRecorded,
		CongregationID: congregationID,
		ActorID:        actorID,
		Resource:       "attendance",
		Metadata:       map[string]any{"event_id": eventID, audit.AttrMemberID: memberID},
	})
	return a, nil
}

// ListAttendance returns the attendance records of an event.
func (s *Service) ListAttendance(ctx context.Context, congregationID, eventID string) ([]*Attendance, error) {
	if _, err := s.congregations.GetEvent(ctx, congregationID, eventID); err != nil {
		return nil, err
	}
	return s.attendance.ListByEvent(ctx, congregationID, eventID)
}

// DeleteAttendance removes an attendance record of an event.
func (s *Service) DeleteAttendance(ctx context.Context, actorID, congregationID, eventID, id string) error {
	if err := s.attendance.Delete(ctx, congregationID, eventID, id); err != nil {
		return err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeAttendanceDeleted,
		CongregationID: congregationID,
		ActorID:        actorID,
		Resource:       "attendance",
		Metadata:       map[string]any{"event_id": eventID, "attendance_id": id},
	})
	return nil
}

func (s *Service) normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "omitempty,email,max=254"); err != nil {
		return "", ErrInvalidInput
	}
	return email, nil
}

// checkEmailFree reports ErrAlreadyExists when another active member uses
// email. The unique index catches races the check misses.
func (s *Service) checkEmailFree(ctx context.Context, email, selfID string) error {
	if email == "" {
		return nil
	}
	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check member email: %w", err)
	case existing.ID != selfID:
		return ErrAlreadyExists
	}
	return nil
}
