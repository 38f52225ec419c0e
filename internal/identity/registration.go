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
	"strings"
	"time"

	"github.com/jwbwvf/congregreat-server/internal/audit"
	"github.com/jwbwvf/congregreat-server/internal/member"
	"github.com/jwbwvf/congregreat-server/internal/observability/logger"
	"github.com/jwbwvf/congregreat-server/internal/token"
)

// ConfirmationTokens issues and checks email confirmation tokens.
type ConfirmationTokens interface {
	IssueConfirmation(userID, email string, lifetime time.Duration) (string, error)
	VerifyConfirmation(raw string) (*token.Claims, error)
}

// MemberDirectory finds the member record that owns an email address.
type MemberDirectory interface {
	ByEmail(ctx context.Context, email string) (*member.Member, error)
}

// Confirmation is a confirmation email waiting to be sent.
type Confirmation struct {
	To        string
	FirstName string
	LastName  string
	Token     string
}

// Mailer delivers confirmation emails.
type Mailer interface {
	SendConfirmation(ctx context.Context, c Confirmation) error
}

// Registration is a self-service sign up request.
type Registration struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// RegistrationService handles sign up and email confirmation. New users
// start unverified and cannot sign in until they confirm their email.
type RegistrationService struct {
	users       *Service
	members     MemberDirectory
	tokens      ConfirmationTokens
	mailer      Mailer
	lifetime    time.Duration
	auditLogger audit.Logger
	log         *slog.Logger
}

// NewRegistrationService creates a registration service. members may be nil,
// in which case confirmed users are never linked to a member.
func NewRegistrationService(
	users *Service,
	members MemberDirectory,
	tokens ConfirmationTokens,
	mailer Mailer,
	lifetime time.Duration,
	auditLogger audit.Logger,
	log *slog.Logger,
) *RegistrationService {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &RegistrationService{
		users:       users,
		members:     members,
		tokens:      tokens,
		mailer:      mailer,
		lifetime:    lifetime,
		auditLogger: auditLogger,
		log:         log.With(logger.Component("registration")),
	}
}

// Register creates an unverified user and mails a confirmation token. A
// failed delivery is logged; the user can ask for the email again.
func (s *RegistrationService) Register(ctx context.Context, reg Registration) (*User, error) {
	user, err := s.users.ProvisionUser(ctx, reg.Email, reg.Password, "", StatusUnverified)
	if err != nil {
		return nil, err
	}

	if err := s.sendConfirmation(ctx, user, reg.FirstName, reg.LastName); err != nil {
		s.log.ErrorContext(ctx, "failed to send confirmation email",
			logger.UserID(user.ID),
			logger.Error(err),
		)
	}
	return user, nil
}

// Confirm verifies the user named by a confirmation token. Once verified,
// the user is linked to the active member that has the same email, if any.
func (s *RegistrationService) Confirm(ctx context.Context, raw string) (*User, error) {
	claims, err := s.tokens.VerifyConfirmation(raw)
	if err != nil {
		return nil, ErrInvalidConfirmation
	}

	user, err := s.users.GetUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user.Verified() {
		return nil, ErrAlreadyVerified
	}
	// The email changed after the token was sent.
	if !strings.EqualFold(claims.Email, user.Email) {
		return nil, ErrInvalidConfirmation
	}

	if err := s.users.VerifyEmail(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}

	if user.MemberID == "" {
		s.linkMember(ctx, user)
	}

	return s.users.GetUser(ctx, user.ID)
}

func (s *RegistrationService) linkMember(ctx context.Context, user *User) {
	if s.members == nil {
		return
	}

	m, err := s.members.ByEmail(ctx, user.Email)
	if errors.Is(err, member.ErrNotFound) {
		return
	}
	if err != nil {
		s.log.WarnContext(ctx, "failed to look up member for user",
			logger.UserID(user.ID),
			logger.Error(err),
		)
		return
	}

	memberID := m.ID
	if _, err := s.users.UpdateUser(ctx, user.ID, user.ID, UserUpdate{MemberID: &memberID}); err != nil {
		if errors.Is(err, ErrMemberLinked) {
			return
		}
		s.log.WarnContext(ctx, "failed to link user to member",
			logger.UserID(user.ID),
			logger.Error(err),
		)
	}
}

// Resend mails a new confirmation token to an unverified user.
func (s *RegistrationService) Resend(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.Deleted() {
		return ErrUserNotFound
	}
	if user.Verified() {
		return ErrAlreadyVerified
	}
	return s.sendConfirmation(ctx, user, "", "")
}

func (s *RegistrationService) sendConfirmation(ctx context.Context, user *User, firstName, lastName string) error {
	raw, err := s.tokens.IssueConfirmation(user.ID, user.Email, s.lifetime)
	if err != nil {
		return err
	}

	err = s.mailer.SendConfirmation(ctx, Confirmation{
		To:        user.Email,
		FirstName: firstName,
		LastName:  lastName,
		Token:     raw,
	})
	if err != nil {
		return fmt.Errorf("failed to send confirmation: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeConfirmationSent,
		ActorID:  user.ID,
		Resource: "user",
		Metadata: map[string]any{audit.AttrEmail: user.Email},
	})
	return nil
}
