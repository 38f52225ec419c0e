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

package congregation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwbwvf/congregreat-server/internal/audit"
)

// Service manages congregations and their events. Callers are expected to
// have passed the access guard for the congregation already.
type Service struct {
	repo        Repository
	events      EventRepository
	auditLogger audit.Logger
}

// NewService creates a new congregation service
func NewService(repo Repository, events EventRepository, auditLogger audit.Logger) *Service {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Service{repo: repo, events: events, auditLogger: auditLogger}
}

// CongregationUpdate holds the fields a congregation update may change.
type CongregationUpdate struct {
	Name  *string
	Phone *string
	Email *string
}

// EventUpdate holds the fields an event update may change.
type EventUpdate struct {
	Name        *string
	Description *string
	StartsAt    *time.Time
}

// Create adds a congregation.
func (s *Service) Create(ctx context.Context, actorID, name, phone, email string) (*Congregation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	if _, err := s.repo.GetByName(ctx, name); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to check congregation name: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate congregation id: %w", err)
	}
	now := time.Now()
	c := &Congregation{
		ID:        id.String(),
		Name:      name,
		Phone:     phone,
		Email:     email,
		Status:    StatusNew,
		CreatedBy: actorID,
		UpdatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create congregation: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeCongregationCreated,
		CongregationID: c.ID,
		ActorID:        actorID,
		Resource:       "congregation",
		Metadata:       map[string]any{"name": c.Name},
	})
	return c, nil
}

// Get returns a congregation by id.
func (s *Service) Get(ctx context.Context, id string) (*Congregation, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all active congregations.
func (s *Service) List(ctx context.Context) ([]*Congregation, error) {
	return s.repo.List(ctx)
}

// Update changes a congregation.
func (s *Service) Update(ctx context.Context, actorID, id string, u CongregationUpdate) (*Congregation, error) {
	if u.Name == nil && u.Phone == nil && u.Email == nil {
		return nil, ErrInvalidInput
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		c.Name = name
	}
	if u.Phone != nil {
		c.Phone = *u.Phone
	}
	if u.Email != nil {
		c.Email = *u.Email
	}
	c.UpdatedBy = actorID
	c.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeCongregationUpdated,
		CongregationID: c.ID,
		ActorID:        actorID,
		Resource:       "congregation",
	})
	return c, nil
}

// Delete soft deletes a congregation.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if err := s.repo.SoftDelete(ctx, id, actorID); err != nil {
		return err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeCongregationDeleted,
		CongregationID: id,
		ActorID:        actorID,
		Resource:       "congregation",
	})
	return nil
}

// CreateEvent schedules an event in a congregation.
func (s *Service) CreateEvent(ctx context.Context, actorID, congregationID, name, description string, startsAt time.Time) (*Event, error) {
	name = strings.TrimSpace(name)
	if name == "" || startsAt.IsZero() {
		return nil, ErrInvalidInput
	}

	if _, err := s.repo.GetByID(ctx, congregationID); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate event id: %w", err)
	}
	now := time.Now()
	e := &Event{
		ID:             id.String(),
		CongregationID: congregationID,
		Name:           name,
		Description:    description,
		StartsAt:       startsAt.UTC(),
		Status:         StatusNew,
		CreatedBy:      actorID,
		UpdatedBy:      actorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.events.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeEventCreated,
		CongregationID: congregationID,
		ActorID:        actorID,
		Resource:       "event",
		Metadata:       map[string]any{"event_id": e.ID},
	})
	return e, nil
}

// GetEvent returns an event of a congregation.
func (s *Service) GetEvent(ctx context.Context, congregationID, id string) (*Event, error) {
	return s.events.GetByID(ctx, congregationID, id)
}

// ListEvents returns the active events of a congregation.
func (s *Service) ListEvents(ctx context.Context, congregationID string) ([]*Event, error) {
	return s.events.ListByCongregation(ctx, congregationID)
}

// UpdateEvent changes an event of a congregation.
func (s *Service) UpdateEvent(ctx context.Context, actorID, congregationID, id string, u EventUpdate) (*Event, error) {
	if u.Name == nil && u.Description == nil && u.StartsAt == nil {
		return nil, ErrInvalidInput
	}

	e, err := s.events.GetByID(ctx, congregationID, id)
	if err != nil {
		return nil, err
	}

	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		e.Name = name
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.StartsAt != nil {
		if u.StartsAt.IsZero() {
			return nil, ErrInvalidInput
		}
		e.StartsAt = u.StartsAt.UTC()
	}
	e.UpdatedBy = actorID
	e.UpdatedAt = time.Now()

	if err := s.events.Update(ctx, e); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeEventUpdated,
		CongregationID: congregationID,
		ActorID:        actorID,
		Resource:       "event",
		Metadata:       map[string]any{"event_id": e.ID},
	})
	return e, nil
}

// DeleteEvent soft deletes an event of a congregation.
func (s *Service) DeleteEvent(ctx context.Context, actorID, congregationID, id string) error {
	if err := s.events.SoftDelete(ctx, congregationID, id, actorID); err != nil {
		return err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeEventDeleted,
		CongregationID: congregationID,
		ActorID:        actorID,
		Resource:       "event",
		Metadata:       map[string]any{"event_id": id},
	})
	return nil
}
