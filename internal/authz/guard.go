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
	"log/slog"

	"github.com/jwbwvf/congregreat-server/internal/observability/logger"
)

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	// Reason is set on denials and matches the logged message.
	Reason string
}

// AccessFunc decides whether p may act on the resource identified by
// resourceID.
type AccessFunc func(ctx context.Context, p *Principal, resourceID string) Decision

// Guard evaluates access to one entity type. Rules are checked in order and
// the first that applies decides:
//
//  1. system admins are always allowed
//  2. a resource outside the principal's congregation is denied
//  3. read and readAll are allowed
//  4. an explicit grant for the action is allowed, anything else is denied
//
// An empty resource id never matches a congregation, so collection routes
// that pass one are reserved to system admins.
type Guard struct {
	entity Entity
	log    *slog.Logger
}

// NewGuard creates a guard for entity. Denials are logged to log, or to
// slog.Default when log is nil.
func NewGuard(entity Entity, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}
	return &Guard{entity: entity, log: log}
}

// Entity returns the entity this guard protects.
func (g *Guard) Entity() Entity {
	return g.entity
}

// CanAccess returns the access check for action on this guard's entity.
func (g *Guard) CanAccess(action Action) AccessFunc {
	return func(ctx context.Context, p *Principal, resourceID string) Decision {
		if p == nil {
			return g.deny(ctx, action, "", resourceID,
				fmt.Sprintf("Anonymous user tried to %s %s %s.", action, g.entity, resourceID))
		}

		if p.IsSystemAdmin {
			return Decision{Allowed: true}
		}

		if resourceID == "" {
			return g.deny(ctx, action, p.UserID, resourceID,
				fmt.Sprintf("User %s tried to %s all %s records.", p.UserID, action, g.entity))
		}

		if p.CongregationID != resourceID {
			return g.deny(ctx, action, p.UserID, resourceID,
				fmt.Sprintf("User %s is not a member of congregation %s and tried to %s the %s.",
					p.UserID, resourceID, action, g.entity))
		}

		if action.IsRead() {
			return Decision{Allowed: true}
		}

		if p.Permissions.Allows(g.entity, action) {
			return Decision{Allowed: true}
		}

		return g.deny(ctx, action, p.UserID, resourceID,
			fmt.Sprintf("User %s tried to %s %s %s.", p.UserID, action, g.entity, resourceID))
	}
}

func (g *Guard) deny(ctx context.Context, action Action, userID, resourceID, reason string) Decision {
	g.log.WarnContext(ctx, reason,
		logger.Component("authz"),
		logger.UserID(userID),
		logger.Entity(string(g.entity)),
		logger.Action(string(action)),
		logger.ResourceID(resourceID),
	)
	return Decision{Allowed: false, Reason: reason}
}
