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

package authz_test

import (
	"context"
	"sync"

	"github.com/jwbwvf/congregreat-server/internal/audit"
	"github.com/jwbwvf/congregreat-server/internal/authz"
)

// MockRoleRepository implements authz.RoleRepository in memory.
type MockRoleRepository struct {
	mu      sync.Mutex
	roles   map[string]*authz.Role
	lookups [][]string
	err     error
}

func NewMockRoleRepository(roles ...*authz.Role) *MockRoleRepository {
	m := &MockRoleRepository{roles: map[string]*authz.Role{}}
	for _, r := range roles {
		m.roles[r.ID] = r
	}
	return m
}

func (m *MockRoleRepository) FindActiveByIDs(ctx context.Context, ids []string) ([]*authz.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups = append(m.lookups, append([]string(nil), ids...))
	if m.err != nil {
		return nil, m.err
	}
	// Map iteration order is random; the resolver must not depend on it.
	var out []*authz.Role
	for _, r := range m.roles {
		for _, id := range ids {
			if r.ID == id && r.Active() {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (m *MockRoleRepository) Create(ctx context.Context, role *authz.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTaken(role) {
		return authz.ErrRoleAlreadyExists
	}
	m.roles[role.ID] = role
	return nil
}

// nameTaken mirrors the unique index on active role names.
func (m *MockRoleRepository) nameTaken(role *authz.Role) bool {
	for _, r := range m.roles {
		if r.ID != role.ID && r.Name == role.Name && r.Active() {
			return true
		}
	}
	return false
}

func (m *MockRoleRepository) GetByID(ctx context.Context, id string) (*authz.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return nil, authz.ErrRoleNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockRoleRepository) GetByName(ctx context.Context, name string) (*authz.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Name == name && r.Active() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, authz.ErrRoleNotFound
}

func (m *MockRoleRepository) List(ctx context.Context) ([]*authz.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*authz.Role
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *MockRoleRepository) Update(ctx context.Context, role *authz.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.roles[role.ID]
	if !ok || !existing.Active() {
		return authz.ErrRoleNotFound
	}
	if m.nameTaken(role) {
		return authz.ErrRoleAlreadyExists
	}
	cp := *role
	m.roles[role.ID] = &cp
	return nil
}

func (m *MockRoleRepository) SoftDelete(ctx context.Context, id, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok || !r.Active() {
		return authz.ErrRoleNotFound
	}
	r.Status = authz.StatusDeleted
	r.UpdatedBy = actorID
	return nil
}

func (m *MockRoleRepository) lookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lookups)
}

// MockUserRoleRepository implements authz.UserRoleRepository in memory.
type MockUserRoleRepository struct {
	mu        sync.Mutex
	userRoles map[string]*authz.UserRole
}

func NewMockUserRoleRepository() *MockUserRoleRepository {
	return &MockUserRoleRepository{userRoles: map[string]*authz.UserRole{}}
}

func (m *MockUserRoleRepository) Create(ctx context.Context, ur *authz.UserRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userRoles[ur.ID] = ur
	return nil
}

func (m *MockUserRoleRepository) GetByID(ctx context.Context, id string) (*authz.UserRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ur, ok := m.userRoles[id]
	if !ok {
		return nil, authz.ErrUserRoleNotFound
	}
	return ur, nil
}

func (m *MockUserRoleRepository) List(ctx context.Context) ([]*authz.UserRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*authz.UserRole
	for _, ur := range m.userRoles {
		out = append(out, ur)
	}
	return out, nil
}

func (m *MockUserRoleRepository) ListActiveRoleIDs(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, ur := range m.userRoles {
		if ur.UserID == userID && ur.Status != authz.StatusDeleted {
			ids = append(ids, ur.RoleID)
		}
	}
	return ids, nil
}

func (m *MockUserRoleRepository) SoftDelete(ctx context.Context, id, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ur, ok := m.userRoles[id]
	if !ok || ur.Status == authz.StatusDeleted {
		return authz.ErrUserRoleNotFound
	}
	ur.Status = authz.StatusDeleted
	ur.UpdatedBy = actorID
	return nil
}

// recordingAudit captures audit event types.
type recordingAudit struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingAudit) Log(ctx context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.Type)
}

func role(id, name string, grants ...authz.Grant) *authz.Role {
	return &authz.Role{
		ID:          id,
		Name:        name,
		Permissions: authz.PermissionSet{Entities: grants},
		Status:      authz.StatusNew,
	}
}

func grant(e authz.Entity, actions ...authz.Action) authz.Grant {
	return authz.Grant{Entity: e, Actions: actions}
}
