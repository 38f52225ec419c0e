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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jwbwvf/congregreat-server/internal/audit"
	"github.com/jwbwvf/congregreat-server/internal/authz"
	"github.com/jwbwvf/congregreat-server/internal/congregation"
	"github.com/jwbwvf/congregreat-server/internal/identity"
	"github.com/jwbwvf/congregreat-server/internal/member"
	"github.com/jwbwvf/congregreat-server/internal/observability/metrics"
	"github.com/jwbwvf/congregreat-server/internal/token"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// IdentityService authenticates users and describes them to the resolver.
type IdentityService interface {
	Authenticate(ctx context.Context, email, password string) (*identity.User, error)
	GetUser(ctx context.Context, userID string) (*identity.User, error)
	Subject(ctx context.Context, userID string) (authz.Subject, error)
}

// UserService administers user accounts.
type UserService interface {
	ListUsers(ctx context.Context) ([]*identity.User, error)
	GetUser(ctx context.Context, userID string) (*identity.User, error)
	UpdateUser(ctx context.Context, actorID, id string, u identity.UserUpdate) (*identity.User, error)
	DeleteUser(ctx context.Context, actorID, id string) error
}

// RegistrationService signs users up and confirms their email.
type RegistrationService interface {
	Register(ctx context.Context, reg identity.Registration) (*identity.User, error)
	Confirm(ctx context.Context, raw string) (*identity.User, error)
	Resend(ctx context.Context, email string) error
}

// TokenService issues and verifies bearer tokens.
type TokenService interface {
	Issue(userID, email string) (string, error)
	Verify(raw string) (*token.Claims, error)
}

// PermissionResolver turns a subject into a principal.
type PermissionResolver interface {
	ResolveSubject(ctx context.Context, s authz.Subject) (*authz.Principal, error)
}

// RoleService administers roles and their assignment to users.
type RoleService interface {
	CreateRole(ctx context.Context, actorID, name string, permissions authz.PermissionSet) (*authz.Role, error)
	GetRole(ctx context.Context, id string) (*authz.Role, error)
	ListRoles(ctx context.Context) ([]*authz.Role, error)
	UpdateRole(ctx context.Context, actorID, id string, name *string, permissions *authz.PermissionSet) (*authz.Role, error)
	DeleteRole(ctx context.Context, actorID, id string) error
	AssignRole(ctx context.Context, actorID, userID, roleID string) (*authz.UserRole, error)
	GetUserRole(ctx context.Context, id string) (*authz.UserRole, error)
	ListUserRoles(ctx context.Context) ([]*authz.UserRole, error)
	RevokeUserRole(ctx context.Context, actorID, id string) error
}

// CongregationService manages congregations and their events.
type CongregationService interface {
	Create(ctx context.Context, actorID, name, phone, email string) (*congregation.Congregation, error)
	Get(ctx context.Context, id string) (*congregation.Congregation, error)
	List(ctx context.Context) ([]*congregation.Congregation, error)
	Update(ctx context.Context, actorID, id string, u congregation.CongregationUpdate) (*congregation.Congregation, error)
	Delete(ctx context.Context, actorID, id string) error
	CreateEvent(ctx context.Context, actorID, congregationID, name, description string, startsAt time.Time) (*congregation.Event, error)
	GetEvent(ctx context.Context, congregationID, id string) (*congregation.Event, error)
	ListEvents(ctx context.Context, congregationID string) ([]*congregation.Event, error)
	UpdateEvent(ctx context.Context, actorID, congregationID, id string, u congregation.EventUpdate) (*congregation.Event, error)
	DeleteEvent(ctx context.Context, actorID, congregationID, id string) error
}

// MemberService manages members and their event attendance.
type MemberService interface {
	Create(ctx context.Context, actorID, congregationID string, in member.NewMember) (*member.Member, error)
	Get(ctx context.Context, congregationID, id string) (*member.Member, error)
	List(ctx context.Context, congregationID string) ([]*member.Member, error)
	Update(ctx context.Context, actorID, congregationID, id string, u member.Update) (*member.Member, error)
	Delete(ctx context.Context, actorID, congregationID, id string) error
	RecordAttendance(ctx context.Context, actorID, congregationID, eventID, memberID string) (*member.Attendance, error)
	ListAttendance(ctx context.Context, congregationID, eventID string) ([]*member.Attendance, error)
	DeleteAttendance(ctx context.Context, actorID, congregationID, eventID, id string) error
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService     IdentityService
	userService         UserService
	registration        RegistrationService
	tokens              TokenService
	resolver            PermissionResolver
	roleService         RoleService
	congregationService CongregationService
	memberService       MemberService
	auditLogger         audit.Logger
	metrics             *metrics.Authz
	log                 *slog.Logger
	validate            *validator.Validate

	congregationGuard *authz.Guard
	memberGuard       *authz.Guard
	eventGuard        *authz.Guard
	attendanceGuard   *authz.Guard
	roleGuard         *authz.Guard
	userGuard         *authz.Guard
	userRoleGuard     *authz.Guard
}

// NewHandler creates a new HTTP handler. authzMetrics may be nil.
func NewHandler(
	identityService IdentityService,
	userService UserService,
	registration RegistrationService,
	tokens TokenService,
	resolver PermissionResolver,
	roleService RoleService,
	congregationService CongregationService,
	memberService MemberService,
	auditLogger audit.Logger,
	authzMetrics *metrics.Authz,
	log *slog.Logger,
) *Handler {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		identityService:     identityService,
		userService:         userService,
		registration:        registration,
		tokens:              tokens,
		resolver:            resolver,
		roleService:         roleService,
		congregationService: congregationService,
		memberService:       memberService,
		auditLogger:         auditLogger,
		metrics:             authzMetrics,
		log:                 log,
		validate:            validator.New(validator.WithRequiredStructEnabled()),
		congregationGuard:   authz.NewGuard(authz.EntityCongregation, log),
		memberGuard:         authz.NewGuard(authz.EntityMember, log),
		eventGuard:          authz.NewGuard(authz.EntityEvent, log),
		attendanceGuard:     authz.NewGuard(authz.EntityAttendance, log),
		roleGuard:           authz.NewGuard(authz.EntityRole, log),
		userGuard:           authz.NewGuard(authz.EntityUser, log),
		userRoleGuard:       authz.NewGuard(authz.EntityUserRole, log),
	}
}

// RouterConfig holds router settings. When TrustProxy is set the client
// address is taken from X-Forwarded-For or X-Real-IP; otherwise only the
// connection address is used, for rate limiting and audit alike.
type RouterConfig struct {
	RequestTimeout time.Duration
	TrustProxy     bool
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter, cfg RouterConfig) *chi.Mux {
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(SecureHeaders())
	r.Use(h.LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Login)
		r.Post("/auth/register", h.Register)
		r.Put("/auth/confirm", h.ConfirmEmail)
		r.Post("/auth/resend", h.ResendConfirmation)

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Use(h.PermissionsMiddleware)

			r.Get("/auth/me", h.GetCurrentUser)

			// A collection has no congregation to match, so only system
			// admins pass the scope check on it.
			r.Route("/congregations", func(r chi.Router) {
				r.With(h.Guard(h.congregationGuard, authz.ActionCreate, "")).Post("/", h.CreateCongregation)
				r.With(h.Guard(h.congregationGuard, authz.ActionReadAll, "")).Get("/", h.ListCongregations)

				r.Route("/{id}", func(r chi.Router) {
					r.With(h.Guard(h.congregationGuard, authz.ActionRead, "id")).Get("/", h.GetCongregation)
					r.With(h.Guard(h.congregationGuard, authz.ActionUpdate, "id")).Patch("/", h.UpdateCongregation)
					r.With(h.Guard(h.congregationGuard, authz.ActionDelete, "id")).Delete("/", h.DeleteCongregation)

					r.Route("/members", func(r chi.Router) {
						r.With(h.Guard(h.memberGuard, authz.ActionReadAll, "id")).Get("/", h.ListMembers)
						r.With(h.Guard(h.memberGuard, authz.ActionCreate, "id")).Post("/", h.CreateMember)
						r.With(h.Guard(h.memberGuard, authz.ActionRead, "id")).Get("/{memberID}", h.GetMember)
						r.With(h.Guard(h.memberGuard, authz.ActionUpdate, "id")).Patch("/{memberID}", h.UpdateMember)
						r.With(h.Guard(h.memberGuard, authz.ActionDelete, "id")).Delete("/{memberID}", h.DeleteMember)
					})

					r.Route("/events", func(r chi.Router) {
						r.With(h.Guard(h.eventGuard, authz.ActionReadAll, "id")).Get("/", h.ListEvents)
						r.With(h.Guard(h.eventGuard, authz.ActionCreate, "id")).Post("/", h.CreateEvent)

						r.Route("/{eventID}", func(r chi.Router) {
							r.With(h.Guard(h.eventGuard, authz.ActionRead, "id")).Get("/", h.GetEvent)
							r.With(h.Guard(h.eventGuard, authz.ActionUpdate, "id")).Patch("/", h.UpdateEvent)
							r.With(h.Guard(h.eventGuard, authz.ActionDelete, "id")).Delete("/", h.DeleteEvent)

							r.Route("/attendance", func(r chi.Router) {
								r.With(h.Guard(h.attendanceGuard, authz.ActionReadAll, "id")).Get("/", h.ListAttendance)
								r.With(h.Guard(h.attendanceGuard, authz.ActionCreate, "id")).Post("/", h.RecordAttendance)
								r.With(h.Guard(h.attendanceGuard, authz.ActionDelete, "id")).Delete("/{attendanceID}", h.DeleteAttendance)
							})
						})
					})
				})
			})

			// Roles are global.
			r.Route("/roles", func(r chi.Router) {
				r.With(h.Guard(h.roleGuard, authz.ActionCreate, "")).Post("/", h.CreateRole)
				r.With(h.Guard(h.roleGuard, authz.ActionReadAll, "")).Get("/", h.ListRoles)
				r.With(h.Guard(h.roleGuard, authz.ActionRead, "")).Get("/{id}", h.GetRole)
				r.With(h.Guard(h.roleGuard, authz.ActionUpdate, "")).Patch("/{id}", h.UpdateRole)
				r.With(h.Guard(h.roleGuard, authz.ActionDelete, "")).Delete("/{id}", h.DeleteRole)
			})

			r.Route("/users", func(r chi.Router) {
				r.With(h.Guard(h.userGuard, authz.ActionReadAll, "")).Get("/", h.ListUsers)
				r.With(h.Guard(h.userGuard, authz.ActionRead, "")).Get("/{id}", h.GetUser)
				r.With(h.Guard(h.userGuard, authz.ActionUpdate, "")).Patch("/{id}", h.UpdateUser)
				r.With(h.Guard(h.userGuard, authz.ActionDelete, "")).Delete("/{id}", h.DeleteUser)
			})

			r.Route("/user-roles", func(r chi.Router) {
				r.With(h.Guard(h.userRoleGuard, authz.ActionCreate, "")).Post("/", h.AssignRole)
				r.With(h.Guard(h.userRoleGuard, authz.ActionReadAll, "")).Get("/", h.ListUserRoles)
				r.With(h.Guard(h.userRoleGuard, authz.ActionRead, "")).Get("/{id}", h.GetUserRole)
				r.With(h.Guard(h.userRoleGuard, authz.ActionDelete, "")).Delete("/{id}", h.RevokeUserRole)
			})
		})
	})

	return r
}

// HealthCheck returns the service health status
// @Summary Health Check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"service": "congregreat",
	})
}

// decode reads a JSON body into dst and runs struct validation. It reports
// whether dst is usable; on false the caller answers with its own message.
func (h *Handler) decode(r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+":"+fe.Tag())
			}
			h.log.DebugContext(r.Context(), "request validation failed",
				slog.String("fields", strings.Join(fields, ",")))
		}
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondMessage answers with the {"message": ...} body API clients read.
func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"message": message,
	})
}

// getIPAddress is the connection address, already rewritten by RealIP when
// the router trusts a proxy.
func getIPAddress(r *http.Request) string {
	return r.RemoteAddr
}
