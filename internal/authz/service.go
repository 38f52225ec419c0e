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
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwbwvf/congregreat-server/internal/audit"
)

// RoleCache is notified when a role changes so stale permissions are not
// served.
type RoleCache interface {
	Invalidate(id string)
}

// Service provides role and user-role administration
type Service struct {
	roles       RoleRepository
	userRoles   UserRoleRepository
	cache       RoleCache
	auditLogger audit.Logger
}

// NewService creates a new authorization service. cache may be nil.
func NewService(roles RoleRepository, userRoles UserRoleRepository, cache RoleCache, auditLogger audit.Logger) *Service {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Service{
		roles:       roles,
		userRoles:   userRoles,
		cache:       cache,
		auditLogger: auditLogger,
	}
}

// CreateRole validates and stores a new role.
func (s *Service) CreateRole(ctx context.Context, actorID, name string, permissions PermissionSet) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingFields
	}
	if name == SystemAdminRoleName {
		return nil, ErrReservedRoleName
	}
	if err := ValidatePermissions(permissions); err != nil {
		return nil, err
	}

	if _, err := s.roles.GetByName(ctx, name); err == nil {
		return nil, ErrRoleAlreadyExists
	} else if !errors.Is(err, ErrRoleNotFound) {
		return nil, fmt.Errorf("failed to check role name: %w", err)
	}

	role, err := newRole(actorID, name, permissions)
	if err != nil {
		return nil, err
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleCreated,
		ActorID:  actorID,
		Resource: "role",
		Metadata: map[string]any{"role_id": role.ID, "role_name": role.Name},
	})

	return role, nil
}

// GetRole returns a role by id, including soft deleted roles.
func (s *Service) GetRole(ctx context.Context, id string) (*Role, error) {
	return s.roles.GetByID(ctx, id)
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.roles.List(ctx)
}

// UpdateRole changes the name and/or permissions of an active role. At least
// one of name and permissions must be given.
func (s *Service) UpdateRole(ctx context.Context, actorID, id string, name *string, permissions *PermissionSet) (*Role, error) {
	if name == nil && permissions == nil {
		return nil, ErrNothingToUpdate
	}

	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !role.Active() {
		return nil, ErrRoleNotFound
	}

	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, ErrMissingFields
		}
		// Renaming to or from the sentinel would grant or strip superuser.
		if n != role.Name && (n == SystemAdminRoleName || role.IsSystemAdmin()) {
			return nil, ErrReservedRoleName
		}
		if n != role.Name {
			if other, err := s.roles.GetByName(ctx, n); err == nil && other.ID != role.ID {
				return nil, ErrRoleAlreadyExists
			} else if err != nil && !errors.Is(err, ErrRoleNotFound) {
				return nil, fmt.Errorf("failed to check role name: %w", err)
			}
		}
		role.Name = n
	}
	if permissions != nil {
		if err := ValidatePermissions(*permissions); err != nil {
			return nil, err
		}
		role.Permissions = *permissions
	}

	role.UpdatedBy = actorID
	role.UpdatedAt = time.Now()
	if err := s.roles.Update(ctx, role); err != nil {
		return nil, err
	}
	s.invalidate(role.ID)

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleUpdated,
		ActorID:  actorID,
		Resource: "role",
		Metadata: map[string]any{"role_id": role.ID, "role_name": role.Name},
	})

	return role, nil
}

// DeleteRole soft deletes a role. The system admin role cannot be deleted.
func (s *Service) DeleteRole(ctx context.Context, actorID, id string) error {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystemAdmin() {
		return ErrReservedRoleName
	}

	if err := s.roles.SoftDelete(ctx, id, actorID); err != nil {
		return err
	}
	s.invalidate(id)

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleDeleted,
		ActorID:  actorID,
		Resource: "role",
		Metadata: map[string]any{"role_id": id, "role_name": role.Name},
	})

	return nil
}

// AssignRole grants an active role to a user.
func (s *Service) AssignRole(ctx context.Context, actorID, userID, roleID string) (*UserRole, error) {
	if userID == "" || roleID == "" {
		return nil, ErrMissingFields
	}

	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if !role.Active() {
		return nil, ErrRoleNotFound
	}

	assigned, err := s.userRoles.ListActiveRoleIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}
	if slices.Contains(assigned, roleID) {
		return nil, ErrRoleAlreadyAssigned
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user role id: %w", err)
	}
	now := time.Now()
	userRole := &UserRole{
		ID:        id.String(),
		UserID:    userID,
		RoleID:    roleID,
		Status:    StatusNew,
		CreatedBy: actorID,
		UpdatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRoles.Create(ctx, userRole); err != nil {
		return nil, fmt.Errorf("failed to assign role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleAssigned,
		ActorID:  actorID,
		Resource: "user_role",
		Metadata: map[string]any{"user_id": userID, "role_id": roleID, "role_name": role.Name},
	})

	return userRole, nil
}

// GetUserRole returns a user role by id.
func (s *Service) GetUserRole(ctx context.Context, id string) (*UserRole, error) {
	return s.userRoles.GetByID(ctx, id)
}

// ListUserRoles returns all user roles.
func (s *Service) ListUserRoles(ctx context.Context) ([]*UserRole, error) {
	return s.userRoles.List(ctx)
}

// UserRoleIDs returns the ids of the roles actively assigned to a user.
func (s *Service) UserRoleIDs(ctx context.Context, userID string) ([]string, error) {
	return s.userRoles.ListActiveRoleIDs(ctx, userID)
}

// RevokeUserRole soft deletes a user role.
func (s *Service) RevokeUserRole(ctx context.Context, actorID, id string) error {
	userRole, err := s.userRoles.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.userRoles.SoftDelete(ctx, id, actorID); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleRevoked,
		ActorID:  actorID,
		Resource: "user_role",
		Metadata: map[string]any{"user_id": userRole.UserID, "role_id": userRole.RoleID},
	})

	return nil
}

// EnsureSystemAdminRole returns the system admin role, creating it when it
// does not exist yet.
func (s *Service) EnsureSystemAdminRole(ctx context.Context) (*Role, error) {
	role, err := s.roles.GetByName(ctx, SystemAdminRoleName)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, ErrRoleNotFound) {
		return nil, fmt.Errorf("failed to look up system admin role: %w", err)
	}

	role, err = newRole(SystemActorID, SystemAdminRoleName, SystemAdminPermissions())
	if err != nil {
		return nil, err
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to create system admin role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleCreated,
		ActorID:  SystemActorID,
		Resource: "role",
		Metadata: map[string]any{"role_id": role.ID, "role_name": role.Name},
	})

	return role, nil
}

func (s *Service) invalidate(id string) {
	if s.cache != nil {
		s.cache.Invalidate(id)
	}
}

func newRole(actorID, name string, permissions PermissionSet) (*Role, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate role id: %w", err)
	}
	now := time.Now()
	return &Role{
		ID:          id.String(),
		Name:        name,
		Permissions: permissions,
		Status:      StatusNew,
		CreatedBy:   actorID,
		UpdatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
