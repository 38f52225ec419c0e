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
	"log/slog"
	"strings"

	"github.com/jwbwvf/congregreat-server/internal/observability/logger"
)

// LogMailer writes confirmation emails to the log instead of sending them.
type LogMailer struct {
	log        *slog.Logger
	from       string
	confirmURL string
}

// NewLogMailer creates a mailer whose links point at confirmURL.
func NewLogMailer(log *slog.Logger, from, confirmURL string) *LogMailer {
	if log == nil {
		log = slog.Default()
	}
	return &LogMailer{log: log.With(logger.Component("mailer")), from: from, confirmURL: confirmURL}
}

// Link is the confirmation link for a token.
func (m *LogMailer) Link(token string) string {
	return strings.TrimRight(m.confirmURL, "/") + "/" + token
}

// SendConfirmation logs the confirmation link.
func (m *LogMailer) SendConfirmation(ctx context.Context, c Confirmation) error {
	m.log.InfoContext(ctx, "confirmation email",
		slog.String("from", m.from),
		slog.String("to", c.To),
		slog.String("subject", "Congregreat Email Confirmation"),
		slog.String("link", m.Link(c.Token)),
	)
	return nil
}
