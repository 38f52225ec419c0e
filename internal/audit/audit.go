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

package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types
const (
	TypeLoginSuccess         = "login_success"
	TypeLoginFailed          = "login_failed"
	TypeTokenIssued          = "token_issued"
	TypeAccessDenied         = "access_denied"
	TypeRoleCreated          = "role_created"
	TypeRoleUpdated          = "role_updated"
	TypeRoleDeleted          = "role_deleted"
	TypeRoleAssigned         = "role_assigned"
	TypeRoleRevoked          = "role_revoked"
	TypeCongregationCreated  = "congregation_created"
	TypeCongregationUpdated  = "congregation_updated"
	TypeCongregationDeleted  = "congregation_deleted"
	TypeEventCreated         = "event_created"
	TypeEventUpdated         = "event_updated"
	TypeEventDeleted         = "event_deleted"
	TypeMemberCreated        = "member_created"
	TypeMemberUpdated        = "member_updated"
	TypeMemberDeleted        = "member_deleted"
	TypeAttendanceRecorded   = "attendance_recorded"
	TypeAttendanceDeleted    = "attendance_deleted"
	TypePasswordChanged      = "password_changed"
	TypeUserCreated          = "user_created"
	TypeUserUpdated          = "user_updated"
	TypeUserDeleted          = "user_deleted"
	TypeUserVerified         = "user_verified"
	TypeUserLocked           = "user_locked"
	TypeConfirmationSent     = "confirmation_sent"
	TypeSystemAdminBootstrap = "system_admin_bootstrap"
)

// Metadata keys
const (
	AttrReason   = "reason"
	AttrAttempts = "attempts"
	AttrEmail    = "email"
	AttrRoleID   = "role_id"
	AttrUserID   = "user_id"
	AttrMemberID = "member_id"
)

// ActorSystemBootstrap is the actor id recorded for bootstrap changes.
const ActorSystemBootstrap = "system"

// Event represents an auditable action
type Event struct {
	Type           string
	CongregationID string
	ActorID        string
	Resource       string
	Metadata       map[string]any
	Timestamp      time.Time
	IPAddress      string
	UserAgent      string
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLoggerWith creates an audit logger writing to l.
func NewSlogLoggerWith(l *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: l}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("congregation_id", event.CongregationID),
		slog.String("actor_id", event.ActorID),
		slog.String("resource", event.Resource),
		slog.Time("timestamp", event.Timestamp),
	}

	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range event.Metadata {
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	log := l.logger
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret reports whether a metadata key likely holds a credential.
func isSecret(key string) bool {
	k := strings.ToLower(key)
	for _, s := range []string{"password", "secret", "token", "key", "hash", "credential", "authorization"} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// NopLogger discards audit events.
type NopLogger struct{}

// Log implements Logger.
func (NopLogger) Log(context.Context, Event) {}
