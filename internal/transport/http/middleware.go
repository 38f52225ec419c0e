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

package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jwbwvf/congregreat-server/internal/audit"
	"github.com/jwbwvf/congregreat-server/internal/authz"
	"github.com/jwbwvf/congregreat-server/internal/observability/logger"
	"github.com/unrolled/secure"
)

// Access control pipeline for protected routes:
//  1. AuthMiddleware verifies the bearer token and sets the user id
//  2. PermissionsMiddleware resolves the user's roles into a principal
//  3. Guard checks the principal against one entity and action
//
// A request never reaches a handler without all three.

var errUnauthenticated = errors.New("no authenticated user")

// LoggingMiddleware logs HTTP requests
func (h *Handler) LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				attrs := []any{
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(getIPAddress(r)),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				}
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if pattern := rctx.RoutePattern(); pattern != "" {
						attrs = append(attrs, logger.Route(pattern))
					}
				}
				h.log.InfoContext(r.Context(), "http_request", attrs...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// SecureHeaders sets the standard browser hardening headers.
func SecureHeaders() func(http.Handler) http.Handler {
	sm := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})
	return sm.Handler
}

// AuthMiddleware verifies the bearer token and adds the user id to context
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			respondMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims, err := h.tokens.Verify(raw)
		if err != nil {
			h.log.InfoContext(r.Context(), "rejected bearer token",
				logger.Component("auth"),
				logger.Error(err),
			)
			respondMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PermissionsMiddleware resolves the authenticated user's roles into a
// principal. Users without usable roles are turned away here.
func (h *Handler) PermissionsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := GetUserID(ctx)
		start := time.Now()

		principal, err := h.resolvePrincipal(ctx, userID)
		h.metrics.Resolved(ctx, float64(time.Since(start).Microseconds())/1000, err == nil)
		if err != nil {
			h.log.WarnContext(ctx, "failed to resolve permissions",
				logger.Component("authz"),
				logger.UserID(userID),
				logger.Error(err),
			)
			respondMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(ctx, principal)))
	})
}

func (h *Handler) resolvePrincipal(ctx context.Context, userID string) (*authz.Principal, error) {
	if userID == "" {
		return nil, errUnauthenticated
	}
	subject, err := h.identityService.Subject(ctx, userID)
	if err != nil {
		return nil, err
	}
	return h.resolver.ResolveSubject(ctx, subject)
}

// Guard admits the request when the principal may perform action on the
// guard's entity. resourceParam names the URL parameter holding the
// congregation id; empty means the route is not congregation scoped.
func (h *Handler) Guard(g *authz.Guard, action authz.Action, resourceParam string) func(http.Handler) http.Handler {
	check := g.CanAccess(action)
	entity := string(g.Entity())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			resourceID := ""
			if resourceParam != "" {
				resourceID = chi.URLParam(r, resourceParam)
			}

			principal := GetPrincipal(ctx)
			decision := check(ctx, principal, resourceID)
			h.metrics.Decision(ctx, entity, string(action), decision.Allowed)

			if !decision.Allowed {
				event := audit.Event{
					Type:      audit.TypeAccessDenied,
					Resource:  entity,
					IPAddress: getIPAddress(r),
					UserAgent: r.UserAgent(),
					Metadata: map[string]any{
						audit.AttrReason: decision.Reason,
						"action":         string(action),
						"resource_id":    resourceID,
					},
				}
				if principal != nil {
					event.ActorID = principal.UserID
					event.CongregationID = principal.CongregationID
				}
				h.auditLogger.Log(ctx, event)

				respondMessage(w, http.StatusUnauthorized,
					fmt.Sprintf("Not authorized to %s this %s.", action, entity))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
