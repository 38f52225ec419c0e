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
	"time"
)

// Domain errors
var (
	ErrNotFound      = errors.New("congregation not found")
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("congregation already exists")
)

// Status is the lifecycle state of a congregation or event.
type Status string

const (
	StatusNew     Status = "new"
	StatusDeleted Status = "deleted"
)

// Congregation is the scope every non-admin user is confined to.
type Congregation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Status    Status    `json:"status"`
	CreatedBy string    `json:"createdBy,omitempty"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Event is something a congregation schedules and tracks attendance for.
type Event struct {
	ID             string    `json:"id"`
	CongregationID string    `json:"congregationId"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	StartsAt       time.Time `json:"startsAt"`
	Status         Status    `json:"status"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	UpdatedBy      string    `json:"updatedBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Repository defines congregation persistence
type Repository interface {
	Create(ctx context.Context, c *Congregation) error
	GetByID(ctx context.Context, id string) (*Congregation, error)
	GetByName(ctx context.Context, name string) (*Congregation, error)
	List(ctx context.Context) ([]*Congregation, error)
	Update(ctx context.Context, c *Congregation) error
	SoftDelete(ctx context.Context, id, actorID string) error
}

// EventRepository defines event persistence. Every lookup is confined to a
// congregation.
type EventRepository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, congregationID, id string) (*Event, error)
	ListByCongregation(ctx context.Context, congregationID string) ([]*Event, error)
	Update(ctx context.Context, e *Event) error
	SoftDelete(ctx context.Context, congregationID, id, actorID string) error
}
