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

package authz

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrNoRoles             = errors.New("user has no roles")
	ErrRolesNotFound       = errors.New("no active roles found")
	ErrRoleNotFound        = errors.New("role not found")
	ErrRoleAlreadyExists   = errors.New("role already exists")
	ErrReservedRoleName    = errors.New("role name is reserved")
	ErrUserRoleNotFound    = errors.New("user role not found")
	ErrRoleAlreadyAssigned = errors.New("role already assigned to user")
	ErrInvalidPermission   = errors.New("invalid permissions")
	ErrMissingFields       = errors.New("missing required fields")
	ErrNothingToUpdate     = errors.New("no modifiable property provided")
)

// Action is an operation a grant can allow on an entity.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionReadAll Action = "readAll"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
)

// Actions is the closed set of recognized actions.
var Actions = []Action{ActionCreate, ActionRead, ActionReadAll, ActionUpdate, ActionDelete}

// Valid reports whether a is a recognized action.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// IsRead reports whether a only reads data.
func (a Action) IsRead() bool {
	return a == ActionRead || a == ActionReadAll
}

// Entity is a protected resource type.
type Entity string

const (
	EntityCongregation Entity = "congregation"
	EntityMember       Entity = "member"
	EntityRole         Entity = "role"
	EntityUser         Entity = "user"
	EntityUserRole     Entity = "userRole"
	EntityEvent        Entity = "event"
	EntityAttendance   Entity = "attendance"
)

// Wildcard is reserved for the superuser grant and is never a valid entity
// or action in an authored role.
const Wildcard = "*"

// Entities is the closed set of protected entities.
var Entities = []Entity{
	EntityCongregation,
	EntityMember,
	EntityRole,
	EntityUser,
	EntityUserRole,
	EntityEvent,
	EntityAttendance,
}

// Valid reports whether e is a recognized entity.
func (e Entity) Valid() bool {
	for _, known := range Entities {
		if e == known {
			return true
		}
	}
	return false
}

// Grant allows a set of actions on one entity.
type Grant struct {
	Entity  Entity   `json:"name"`
	Actions []Action `json:"actions"`
}

// Allows reports whether the grant contains action.
func (g Grant) Allows(action Action) bool {
	for _, a := range g.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// PermissionSet is an ordered list of grants.
type PermissionSet struct {
	Entities []Grant `json:"entities"`
}

// Allows scans the grants in order and reports whether any grant on entity
// contains action.
func (p PermissionSet) Allows(entity Entity, action Action) bool {
	for _, g := range p.Entities {
		if g.Entity == entity && g.Allows(action) {
			return true
		}
	}
	return false
}

// RoleStatus is the lifecycle state of a role or user role.
type RoleStatus string

const (
	StatusNew     RoleStatus = "new"
	StatusDeleted RoleStatus = "deleted"
)

// SystemAdminRoleName marks its holders as superusers regardless of the
// role's permissions.
const SystemAdminRoleName = "system admin"

// Role is a named permission set.
type Role struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Permissions PermissionSet `json:"permissions"`
	Status      RoleStatus    `json:"status"`
	CreatedBy   string        `json:"createdBy,omitempty"`
	UpdatedBy   string        `json:"updatedBy,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Active reports whether the role has not been soft deleted.
func (r *Role) Active() bool {
	return r.Status != StatusDeleted
}

// IsSystemAdmin reports whether the role is the superuser sentinel.
func (r *Role) IsSystemAdmin() bool {
	return r.Name == SystemAdminRoleName
}

// UserRole assigns a role to a user.
type UserRole struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	RoleID    string     `json:"roleId"`
	Status    RoleStatus `json:"status"`
	CreatedBy string     `json:"createdBy,omitempty"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Subject is an authenticated user as seen by the resolver.
type Subject struct {
	UserID         string
	CongregationID string
	RoleIDs        []string
}

// Principal is the resolved, request-scoped view of a user's permissions.
// It is never persisted.
type Principal struct {
	UserID         string        `json:"userId"`
	CongregationID string        `json:"congregationId"`
	Permissions    PermissionSet `json:"permissions"`
	IsSystemAdmin  bool          `json:"systemAdmin"`
}

// RoleStore loads roles for permission resolution.
type RoleStore interface {
	// FindActiveByIDs returns the non-deleted roles among ids. Order is not
	// guaranteed.
	FindActiveByIDs(ctx context.Context, ids []string) ([]*Role, error)
}

// RoleRepository defines role persistence
type RoleRepository interface {
	RoleStore
	Create(ctx context.Context, role *Role) error
	GetByID(ctx context.Context, id string) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Update(ctx context.Context, role *Role) error
	SoftDelete(ctx context.Context, id, actorID string) error
}

// UserRoleRepository defines user role persistence
type UserRoleRepository interface {
	Create(ctx context.Context, userRole *UserRole) error
	GetByID(ctx context.Context, id string) (*UserRole, error)
	List(ctx context.Context) ([]*UserRole, error)
	ListActiveRoleIDs(ctx context.Context, userID string) ([]string, error)
	SoftDelete(ctx context.Context, id, actorID string) error
}
