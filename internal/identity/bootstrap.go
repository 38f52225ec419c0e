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

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jwbwvf/congregreat-server/internal/audit"
	"github.com/jwbwvf/congregreat-server/internal/authz"
)

// RoleAdmin is the part of the authorization service bootstrap needs.
type RoleAdmin interface {
	EnsureSystemAdminRole(ctx context.Context) (*authz.Role, error)
	AssignRole(ctx context.Context, actorID, userID, roleID string) (*authz.UserRole, error)
	UserRoleIDs(ctx context.Context, userID string) ([]string, error)
}

// BootstrapConfig names the first system administrator.
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
}

// BootstrapService seeds the system admin role and its first holder.
type BootstrapService struct {
	identityService *Service
	roles           RoleAdmin
	auditLogger     audit.Logger
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(identityService *Service, roles RoleAdmin, auditLogger audit.Logger) *BootstrapService {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &BootstrapService{
		identityService: identityService,
		roles:           roles,
		auditLogger:     auditLogger,
	}
}

// Bootstrap ensures the system admin role exists and, when an admin email is
// configured, that the user holds it. A missing user is created verified
// when a password is configured. Running it again is a no-op.
func (s *BootstrapService) Bootstrap(ctx context.Context, cfg BootstrapConfig) error {
	role, err := s.roles.EnsureSystemAdminRole(ctx)
	if err != nil {
		return err
	}

	if cfg.AdminEmail == "" {
		return nil
	}

	user, err := s.identityService.GetByEmail(ctx, cfg.AdminEmail)
	switch {
	case errors.Is(err, ErrUserNotFound):
		if cfg.AdminPassword == "" {
			return fmt.Errorf("bootstrap user %s not found and no password configured", cfg.AdminEmail)
		}
		user, err = s.identityService.ProvisionUser(ctx, cfg.AdminEmail, cfg.AdminPassword, "", StatusVerified)
		if err != nil {
			return fmt.Errorf("failed to create bootstrap user: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up bootstrap user: %w", err)
	}

	held, err := s.roles.UserRoleIDs(ctx, user.ID)
	if err != nil {
		return err
	}
	if slices.Contains(held, role.ID) {
		return nil
	}

	if _, err := s.roles.AssignRole(ctx, audit.ActorSystemBootstrap, user.ID, role.ID); err != nil {
		return fmt.Errorf("failed to grant system admin role during bootstrap: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSystemAdminBootstrap,
		ActorID:  audit.ActorSystemBootstrap,
		Resource: "user_role",
		Metadata: map[string]any{
			audit.AttrEmail:  cfg.AdminEmail,
			audit.AttrUserID: user.ID,
			audit.AttrRoleID: role.ID,
		},
	})

	slog.InfoContext(ctx, "bootstrapped system admin", slog.String("user_id", user.ID))
	return nil
}
