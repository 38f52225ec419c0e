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
	"fmt"

	"github.com/jwbwvf/congregreat-server/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Resolver builds a Principal from a user's role ids.
type Resolver struct {
	roles  RoleStore
	tracer trace.Tracer
}

// NewResolver creates a new permission resolver
func NewResolver(roles RoleStore) *Resolver {
	return &Resolver{
		roles:  roles,
		tracer: tracing.Tracer("authz"),
	}
}

// Resolve loads the active roles among roleIDs and folds their grants into
// one permission set. Grants keep role order then grant order and are not
// de-duplicated. Holding a role named SystemAdminRoleName makes the
// principal a superuser.
func (r *Resolver) Resolve(ctx context.Context, roleIDs []string) (*Principal, error) {
	ctx, span := r.tracer.Start(ctx, "authz.Resolve",
		trace.WithAttributes(attribute.Int("authz.role_ids", len(roleIDs))),
	)
	defer span.End()

	if len(roleIDs) == 0 {
		tracing.Fail(span, nil, ErrNoRoles.Error())
		return nil, ErrNoRoles
	}

	loaded, err := r.roles.FindActiveByIDs(ctx, roleIDs)
	if err != nil {
		tracing.Fail(span, err, "role lookup failed")
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}

	roles := inRequestOrder(roleIDs, loaded)
	if len(roles) == 0 {
		tracing.Fail(span, nil, ErrRolesNotFound.Error())
		return nil, ErrRolesNotFound
	}

	p := &Principal{Permissions: PermissionSet{Entities: []Grant{}}}
	for _, role := range roles {
		p.Permissions.Entities = append(p.Permissions.Entities, role.Permissions.Entities...)
		if role.IsSystemAdmin() {
			p.IsSystemAdmin = true
		}
	}

	span.SetAttributes(
		attribute.Int("authz.roles_loaded", len(roles)),
		attribute.Int("authz.grants", len(p.Permissions.Entities)),
		attribute.Bool("authz.system_admin", p.IsSystemAdmin),
	)
	return p, nil
}

// ResolveSubject resolves the subject's roles and attaches its user id and
// congregation scope.
func (r *Resolver) ResolveSubject(ctx context.Context, s Subject) (*Principal, error) {
	p, err := r.Resolve(ctx, s.RoleIDs)
	if err != nil {
		return nil, err
	}
	p.UserID = s.UserID
	p.CongregationID = s.CongregationID
	return p, nil
}

// inRequestOrder returns the active roles ordered as their ids appear in
// ids, each role at most once.
func inRequestOrder(ids []string, roles []*Role) []*Role {
	byID := make(map[string]*Role, len(roles))
	for _, role := range roles {
		if role != nil && role.Active() {
			byID[role.ID] = role
		}
	}

	ordered := make([]*Role, 0, len(byID))
	for _, id := range ids {
		if role, ok := byID[id]; ok {
			ordered = append(ordered, role)
			delete(byID, id)
		}
	}
	return ordered
}
