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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jwbwvf/congregreat-server/internal/audit"
	"github.com/jwbwvf/congregreat-server/internal/authz"
	"github.com/jwbwvf/congregreat-server/internal/congregation"
	"github.com/jwbwvf/congregreat-server/internal/identity"
	"github.com/jwbwvf/congregreat-server/internal/member"
	"github.com/jwbwvf/congregreat-server/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock role store behind the real resolver
type mockRoleStore struct {
	mock.Mock
}

func (m *mockRoleStore) FindActiveByIDs(ctx context.Context, ids []string) ([]*authz.Role, error) {
	args := m.Called(ctx, ids)
	roles, _ := args.Get(0).([]*authz.Role)
	return roles, args.Error(1)
}

// fakeIdentity serves users from memory
type fakeIdentity struct {
	users    map[string]*identity.User
	roleIDs  map[string][]string
	password string
}

func (f *fakeIdentity) Authenticate(ctx context.Context, email, password string) (*identity.User, error) {
	for _, u := range f.users {
		if u.Email != email {
			continue
		}
		if password != f.password {
			return nil, identity.ErrInvalidCredentials
		}
		if !u.Verified() {
			return nil, identity.ErrEmailNotVerified
		}
		return u, nil
	}
	return nil, identity.ErrInvalidCredentials
}

func (f *fakeIdentity) GetUser(ctx context.Context, userID string) (*identity.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeIdentity) Subject(ctx context.Context, userID string) (authz.Subject, error) {
	u, ok := f.users[userID]
	if !ok {
		return authz.Subject{}, identity.ErrUserNotFound
	}
	return authz.Subject{UserID: u.ID, CongregationID: u.CongregationID, RoleIDs: f.roleIDs[u.ID]}, nil
}

type mockRoleService struct {
	mock.Mock
}

func (m *mockRoleService) CreateRole(ctx context.Context, actorID, name string, permissions authz.PermissionSet) (*authz.Role, error) {
	args := m.Called(ctx, actorID, name, permissions)
	role, _ := args.Get(0).(*authz.Role)
	return role, args.Error(1)
}

func (m *mockRoleService) GetRole(ctx context.Context, id string) (*authz.Role, error) {
	args := m.Called(ctx, id)
	role, _ := args.Get(0).(*authz.Role)
	return role, args.Error(1)
}

func (m *mockRoleService) ListRoles(ctx context.Context) ([]*authz.Role, error) {
	args := m.Called(ctx)
	roles, _ := args.Get(0).([]*authz.Role)
	return roles, args.Error(1)
}

func (m *mockRoleService) UpdateRole(ctx context.Context, actorID, id string, name *string, permissions *authz.PermissionSet) (*authz.Role, error) {
	args := m.Called(ctx, actorID, id, name, permissions)
	role, _ := args.Get(0).(*authz.Role)
	return role, args.Error(1)
}

func (m *mockRoleService) DeleteRole(ctx context.Context, actorID, id string) error {
	return m.Called(ctx, actorID, id).Error(0)
}

func (m *mockRoleService) AssignRole(ctx context.Context, actorID, userID, roleID string) (*authz.UserRole, error) {
	args := m.Called(ctx, actorID, userID, roleID)
	ur, _ := args.Get(0).(*authz.UserRole)
	return ur, args.Error(1)
}

func (m *mockRoleService) GetUserRole(ctx context.Context, id string) (*authz.UserRole, error) {
	args := m.Called(ctx, id)
	ur, _ := args.Get(0).(*authz.UserRole)
	return ur, args.Error(1)
}

func (m *mockRoleService) ListUserRoles(ctx context.Context) ([]*authz.UserRole, error) {
	args := m.Called(ctx)
	urs, _ := args.Get(0).([]*authz.UserRole)
	return urs, args.Error(1)
}

func (m *mockRoleService) RevokeUserRole(ctx context.Context, actorID, id string) error {
	return m.Called(ctx, actorID, id).Error(0)
}

type mockCongregationService struct {
	mock.Mock
}

func (m *mockCongregationService) Create(ctx context.Context, actorID, name, phone, email string) (*congregation.Congregation, error) {
	args := m.Called(ctx, actorID, name, phone, email)
	c, _ := args.Get(0).(*congregation.Congregation)
	return c, args.Error(1)
}

func (m *mockCongregationService) Get(ctx context.Context, id string) (*congregation.Congregation, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*congregation.Congregation)
	return c, args.Error(1)
}

func (m *mockCongregationService) List(ctx context.Context) ([]*congregation.Congregation, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]*congregation.Congregation)
	return list, args.Error(1)
}

func (m *mockCongregationService) Update(ctx context.Context, actorID, id string, u congregation.CongregationUpdate) (*congregation.Congregation, error) {
	args := m.Called(ctx, actorID, id, u)
	c, _ := args.Get(0).(*congregation.Congregation)
	return c, args.Error(1)
}

func (m *mockCongregationService) Delete(ctx context.Context, actorID, id string) error {
	return m.Called(ctx, actorID, id).Error(0)
}

func (m *mockCongregationService) CreateEvent(ctx context.Context, actorID, congregationID, name, description string, startsAt time.Time) (*congregation.Event, error) {
	args := m.Called(ctx, actorID, congregationID, name, description, startsAt)
	e, _ := args.Get(0).(*congregation.Event)
	return e, args.Error(1)
}

func (m *mockCongregationService) GetEvent(ctx context.Context, congregationID, id string) (*congregation.Event, error) {
	args := m.Called(ctx, congregationID, id)
	e, _ := args.Get(0).(*congregation.Event)
	return e, args.Error(1)
}

func (m *mockCongregationService) ListEvents(ctx context.Context, congregationID string) ([]*congregation.Event, error) {
	args := m.Called(ctx, congregationID)
	events, _ := args.Get(0).([]*congregation.Event)
	return events, args.Error(1)
}

func (m *mockCongregationService) UpdateEvent(ctx context.Context, actorID, congregationID, id string, u congregation.EventUpdate) (*congregation.Event, error) {
	args := m.Called(ctx, actorID, congregationID, id, u)
	e, _ := args.Get(0).(*congregation.Event)
	return e, args.Error(1)
}

func (m *mockCongregationService) DeleteEvent(ctx context.Context, actorID, congregationID, id string) error {
	return m.Called(ctx, actorID, congregationID, id).Error(0)
}

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) ListUsers(ctx context.Context) ([]*identity.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]*identity.User)
	return users, args.Error(1)
}

func (m *mockUserService) GetUser(ctx context.Context, userID string) (*identity.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*identity.User)
	return u, args.Error(1)
}

func (m *mockUserService) UpdateUser(ctx context.Context, actorID, id string, u identity.UserUpdate) (*identity.User, error) {
	args := m.Called(ctx, actorID, id, u)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

func (m *mockUserService) DeleteUser(ctx context.Context, actorID, id string) error {
	return m.Called(ctx, actorID, id).Error(0)
}

type mockRegistration struct {
	mock.Mock
}

func (m *mockRegistration) Register(ctx context.Context, reg identity.Registration) (*identity.User, error) {
	args := m.Called(ctx, reg)
	u, _ := args.Get(0).(*identity.User)
	return u, args.Error(1)
}

func (m *mockRegistration) Confirm(ctx context.Context, raw string) (*identity.User, error) {
	args := m.Called(ctx, raw)
	u, _ := args.Get(0).(*identity.User)
	return u, args.Error(1)
}

func (m *mockRegistration) Resend(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

type mockMemberService struct {
	mock.Mock
}

func (m *mockMemberService) Create(ctx context.Context, actorID, congregationID string, in member.NewMember) (*member.Member, error) {
	args := m.Called(ctx, actorID, congregationID, in)
	mem, _ := args.Get(0).(*member.Member)
	return mem, args.Error(1)
}

func (m *mockMemberService) Get(ctx context.Context, congregationID, id string) (*member.Member, error) {
	args := m.Called(ctx, congregationID, id)
	mem, _ := args.Get(0).(*member.Member)
	return mem, args.Error(1)
}

func (m *mockMemberService) List(ctx context.Context, congregationID string) ([]*member.Member, error) {
	args := m.Called(ctx, congregationID)
	list, _ := args.Get(0).([]*member.Member)
	return list, args.Error(1)
}

func (m *mockMemberService) Update(ctx context.Context, actorID, congregationID, id string, u member.Update) (*member.Member, error) {
	args := m.Called(ctx, actorID, congregationID, id, u)
	mem, _ := args.Get(0).(*member.Member)
	return mem, args.Error(1)
}

func (m *mockMemberService) Delete(ctx context.Context, actorID, congregationID, id string) error {
	return m.Called(ctx, actorID, congregationID, id).Error(0)
}

func (m *mockMemberService) RecordAttendance(ctx context.Context, actorID, congregationID, eventID, memberID string) (*member.Attendance, error) {
	args := m.Called(ctx, actorID, congregationID, eventID, memberID)
	a, _ := args.Get(0).(*member.Attendance)
	return a, args.Error(1)
}

func (m *mockMemberService) ListAttendance(ctx context.Context, congregationID, eventID string) ([]*member.Attendance, error) {
	args := m.Called(ctx, congregationID, eventID)
	list, _ := args.Get(0).([]*member.Attendance)
	return list, args.Error(1)
}

func (m *mockMemberService) DeleteAttendance(ctx context.Context, actorID, congregationID, eventID, id string) error {
	return m.Called(ctx, actorID, congregationID, eventID, id).Error(0)
}

// recordingAudit keeps audit events for assertions.
type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(ctx context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) ofType(t string) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

const testPassword = "correct horse battery"

var (
	adminRole = &authz.Role{
		ID:          "role-admin",
		Name:        authz.SystemAdminRoleName,
		Permissions: authz.SystemAdminPermissions(),
		Status:      authz.StatusNew,
	}
	eventCoordinator = &authz.Role{
		ID:   "role-events",
		Name: "event coordinator",
		Permissions: authz.PermissionSet{Entities: []authz.Grant{
			{Entity: authz.EntityEvent, Actions: []authz.Action{authz.ActionCreate}},
		}},
		Status: authz.StatusNew,
	}
)

type testEnv struct {
	router        http.Handler
	tokens        *token.Issuer
	store         *mockRoleStore
	roles         *mockRoleService
	congregations *mockCongregationService
	users         *mockUserService
	registration  *mockRegistration
	members       *mockMemberService
	audit         *recordingAudit
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, NewRateLimiter(1000, 1000), RouterConfig{RequestTimeout: time.Minute})
}

func newTestEnvWith(t *testing.T, rl *RateLimiter, cfg RouterConfig) *testEnv {
	t.Helper()

	key, err := token.GenerateKey()
	require.NoError(t, err)
	issuer, err := token.NewIssuer(key, "congregreat-test", time.Hour)
	require.NoError(t, err)

	ids := &fakeIdentity{
		password: testPassword,
		users: map[string]*identity.User{
			"u-admin": {ID: "u-admin", Email: "admin@example.com", Status: identity.StatusVerified},
			"u-alice": {ID: "u-alice", Email: "alice@example.com", CongregationID: "cong-1", Status: identity.StatusVerified},
			"u-bob":   {ID: "u-bob", Email: "bob@example.com", CongregationID: "cong-1", Status: identity.StatusVerified},
			"u-carol": {ID: "u-carol", Email: "carol@example.com", CongregationID: "cong-1", Status: identity.StatusVerified},
			"u-dave":  {ID: "u-dave", Email: "dave@example.com", Status: identity.StatusUnverified},
		},
		roleIDs: map[string][]string{
			"u-admin": {adminRole.ID},
			"u-alice": {eventCoordinator.ID},
			"u-carol": {"role-gone"},
		},
	}

	store := new(mockRoleStore)
	store.On("FindActiveByIDs", mock.Anything, mock.Anything).
		Return([]*authz.Role{adminRole, eventCoordinator}, nil)

	env := &testEnv{
		tokens:        issuer,
		store:         store,
		roles:         new(mockRoleService),
		congregations: new(mockCongregationService),
		users:         new(mockUserService),
		registration:  new(mockRegistration),
		members:       new(mockMemberService),
		audit:         &recordingAudit{},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(ids, env.users, env.registration, issuer, authz.NewResolver(store),
		env.roles, env.congregations, env.members, env.audit, nil, log)
	env.router = NewRouter(h, rl, cfg)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, e.request(t, method, path, userID, body))
	return w
}

func (e *testEnv) request(t *testing.T, method, path, userID string, body any) *http.Request {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		raw, err := e.tokens.Issue(userID, userID+"@example.com")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+raw)
	}
	return req
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	msg, _ := resp["message"].(string)
	return msg
}

// TestPurpose: Validates that a granted action inside the user's congregation reaches the handler.
// Scope: Unit Test
// Security: RBAC enforcement
// Expected: 201 Created and the service is called with the congregation from the path.
// Test Case ID: HTTP-01
func TestGuard_AllowsGrantedAction(t *testing.T) {
	env := newTestEnv(t)
	startsAt := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)

	sameInstant := mock.MatchedBy(func(at time.Time) bool { return at.Equal(startsAt) })
	env.congregations.On("CreateEvent", mock.Anything, "u-alice", "cong-1", "Sunday service", "", sameInstant).
		Return(&congregation.Event{ID: "evt-1", CongregationID: "cong-1", Name: "Sunday service", StartsAt: startsAt}, nil)

	w := env.do(t, http.MethodPost, "/api/v1/congregations/cong-1/events", "u-alice", map[string]any{
		"name":     "Sunday service",
		"startsAt": startsAt,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	env.congregations.AssertExpectations(t)
}

// TestPurpose: Validates deny responses for actions outside the user's grants or congregation.
// Scope: Unit Test
// Security: RBAC enforcement, congregation isolation
// Expected: 401 with the entity and action named in the message; handlers are not reached.
// Test Case ID: HTTP-02
func TestGuard_Denies(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		message string
	}{
		{
			name:    "action not granted",
			method:  http.MethodPatch,
			path:    "/api/v1/congregations/cong-1/events/evt-1",
			body:    map[string]string{"name": "Renamed"},
			message: "Not authorized to update this event.",
		},
		{
			name:    "other congregation",
			method:  http.MethodPost,
			path:    "/api/v1/congregations/cong-2/events",
			body:    map[string]any{"name": "Picnic", "startsAt": time.Now()},
			message: "Not authorized to create this event.",
		},
		{
			name:    "read in other congregation",
			method:  http.MethodGet,
			path:    "/api/v1/congregations/cong-2/events",
			message: "Not authorized to readAll this event.",
		},
		{
			name:    "collection is system admin only",
			method:  http.MethodGet,
			path:    "/api/v1/congregations",
			message: "Not authorized to readAll this congregation.",
		},
		{
			name:    "roles are system admin only",
			method:  http.MethodPost,
			path:    "/api/v1/roles",
			body:    map[string]any{"name": "usher"},
			message: "Not authorized to create this role.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, "u-alice", tt.body)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.message, message(t, w))
		})
	}

	env.congregations.AssertNotCalled(t, "UpdateEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	env.congregations.AssertNotCalled(t, "List", mock.Anything)
	env.roles.AssertNotCalled(t, "CreateRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestPurpose: Validates that reads inside the user's congregation need no explicit grant.
// Scope: Unit Test
// Expected: 200 OK for reading events of the user's own congregation.
// Test Case ID: HTTP-03
func TestGuard_ReadsWithinCongregation(t *testing.T) {
	env := newTestEnv(t)
	env.congregations.On("GetEvent", mock.Anything, "cong-1", "evt-1").
		Return(&congregation.Event{ID: "evt-1", CongregationID: "cong-1"}, nil)

	w := env.do(t, http.MethodGet, "/api/v1/congregations/cong-1/events/evt-1", "u-alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestPurpose: Validates the system admin bypass.
// Scope: Unit Test
// Expected: 200 OK on a collection route no congregation user may read.
// Test Case ID: HTTP-04
func TestGuard_SystemAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.congregations.On("List", mock.Anything).
		Return([]*congregation.Congregation{{ID: "cong-1", Name: "First"}}, nil)

	w := env.do(t, http.MethodGet, "/api/v1/congregations", "u-admin", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list []congregation.Congregation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

// TestPurpose: Validates that authentication and resolution failures answer a generic 401.
// Scope: Unit Test
// Security: no detail about the failure leaks to the client
// Expected: 401 {"message":"Unauthorized"}.
// Test Case ID: HTTP-05
func TestAuth_Unauthorized(t *testing.T) {
	env := newTestEnv(t)

	t.Run("no token", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Unauthorized", message(t, w))
	})

	t.Run("malformed token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("user without roles", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/auth/me", "u-bob", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Unauthorized", message(t, w))
	})

	t.Run("roles no longer active", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/auth/me", "u-carol", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/auth/me", "u-nobody", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

// TestPurpose: Validates the current user endpoint exposes the resolved principal.
// Scope: Unit Test
// Expected: the system admin flag and congregation scope are returned.
// Test Case ID: HTTP-06
func TestGetCurrentUser(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/auth/me", "u-admin", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp CurrentUserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "u-admin", resp.User.ID)
	require.NotNil(t, resp.Principal)
	assert.True(t, resp.Principal.IsSystemAdmin)

	w = env.do(t, http.MethodGet, "/api/v1/auth/me", "u-alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var member CurrentUserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &member))
	require.NotNil(t, member.Principal)
	assert.False(t, member.Principal.IsSystemAdmin)
	assert.Equal(t, "cong-1", member.Principal.CongregationID)
	assert.Equal(t, eventCoordinator.Permissions, member.Principal.Permissions)
}

// TestPurpose: Validates login responses.
// Scope: Unit Test
// Security: credential failures share one message
// Expected: a verifiable token on success and the documented messages otherwise.
// Test Case ID: HTTP-07
func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	t.Run("success", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "alice@example.com", Password: testPassword})
		require.Equal(t, http.StatusOK, w.Code)

		var resp LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "u-alice", resp.User.ID)

		claims, err := env.tokens.Verify(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "u-alice", claims.Subject)
	})

	tests := []struct {
		name    string
		body    any
		message string
	}{
		{"wrong password", LoginRequest{Email: "alice@example.com", Password: "nope"}, "Incorrect username or password."},
		{"unknown email", LoginRequest{Email: "zed@example.com", Password: testPassword}, "Incorrect username or password."},
		{"unverified", LoginRequest{Email: "dave@example.com", Password: testPassword}, "User has not verified their email."},
		{"missing password", map[string]string{"email": "alice@example.com"}, "All fields are required."},
		{"invalid email", LoginRequest{Email: "alice", Password: testPassword}, "All fields are required."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/auth/login", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, message(t, w))
		})
	}
}

// TestPurpose: Validates role creation request handling.
// Scope: Unit Test
// Expected: 400 on missing fields, 409 on duplicates, 201 with the created message on success.
// Test Case ID: HTTP-08
func TestCreateRole(t *testing.T) {
	env := newTestEnv(t)
	perms := authz.PermissionSet{Entities: []authz.Grant{
		{Entity: authz.EntityMember, Actions: []authz.Action{authz.ActionUpdate}},
	}}

	t.Run("missing permissions", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/roles", "u-admin", map[string]string{"name": "usher"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Name and permissions are required fields.", message(t, w))
	})

	t.Run("duplicate", func(t *testing.T) {
		env.roles.On("CreateRole", mock.Anything, "u-admin", "elder", perms).
			Return(nil, authz.ErrRoleAlreadyExists).Once()

		w := env.do(t, http.MethodPost, "/api/v1/roles", "u-admin", CreateRoleRequest{Name: "elder", Permissions: &perms})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("created", func(t *testing.T) {
		env.roles.On("CreateRole", mock.Anything, "u-admin", "usher", perms).
			Return(&authz.Role{ID: "role-usher", Name: "usher", Permissions: perms, Status: authz.StatusNew}, nil).Once()

		w := env.do(t, http.MethodPost, "/api/v1/roles", "u-admin", CreateRoleRequest{Name: "usher", Permissions: &perms})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "Role usher was created.", message(t, w))
	})

	t.Run("nothing to update", func(t *testing.T) {
		env.roles.On("UpdateRole", mock.Anything, "u-admin", "role-usher", (*string)(nil), (*authz.PermissionSet)(nil)).
			Return(nil, authz.ErrNothingToUpdate).Once()

		w := env.do(t, http.MethodPatch, "/api/v1/roles/role-usher", "u-admin", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "No modifiable role property was provided.", message(t, w))
	})

	env.roles.AssertExpectations(t)
}

// TestPurpose: Validates role assignment checks the user first.
// Scope: Unit Test
// Expected: 404 for unknown users, 409 when already assigned.
// Test Case ID: HTTP-09
func TestAssignRole(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/user-roles", "u-admin", AssignRoleRequest{UserID: "u-nobody", RoleID: "role-events"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Unable to find user by id.", message(t, w))

	env.roles.On("AssignRole", mock.Anything, "u-admin", "u-alice", "role-events").
		Return(nil, authz.ErrRoleAlreadyAssigned).Once()
	w = env.do(t, http.MethodPost, "/api/v1/user-roles", "u-admin", AssignRoleRequest{UserID: "u-alice", RoleID: "role-events"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/user-roles", "u-admin", map[string]string{"userId": "u-alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "userId and roleId are required fields.", message(t, w))
}

// TestPurpose: Validates congregation not found mapping.
// Scope: Unit Test
// Expected: 404 with the not found message.
// Test Case ID: HTTP-10
func TestGetCongregation_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.congregations.On("Get", mock.Anything, "cong-1").Return(nil, congregation.ErrNotFound)

	w := env.do(t, http.MethodGet, "/api/v1/congregations/cong-1", "u-alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Unable to find congregation by id.", message(t, w))
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Frame-Options"))
}

// TestPurpose: Validates per-client rate limiting keyed on the connection address.
// Scope: Unit Test
// Security: Rotating X-Forwarded-For from one address must not reset the limit
// Expected: 429 once a client exhausts its burst whatever headers it sends; other clients are unaffected.
// Test Case ID: HTTP-11
func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote, xff string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:5000", "").Code)

	w := send("10.0.0.1:5001", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests.", message(t, w))

	for _, spoofed := range []string{"203.0.113.7", "198.51.100.9, 10.0.0.1", "192.0.2.44"} {
		assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5002", spoofed).Code, spoofed)
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.2:5000", "").Code)
}

// TestPurpose: Validates that forwarded client addresses are honoured only behind a trusted proxy.
// Scope: Unit Test
// Security: Spoofed forwarding headers must not pick the rate limit bucket or the audited address
// Expected: Without TrustProxy every header is ignored; with it each forwarded client gets its own bucket.
// Test Case ID: HTTP-12
func TestRouter_TrustProxy(t *testing.T) {
	send := func(env *testEnv, xff string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		req.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		return w
	}

	t.Run("direct", func(t *testing.T) {
		env := newTestEnvWith(t, NewRateLimiter(0.001, 1), RouterConfig{})
		assert.Equal(t, http.StatusOK, send(env, "203.0.113.7").Code)
		assert.Equal(t, http.StatusTooManyRequests, send(env, "198.51.100.9").Code)
	})

	t.Run("behind proxy", func(t *testing.T) {
		env := newTestEnvWith(t, NewRateLimiter(0.001, 1), RouterConfig{TrustProxy: true})
		assert.Equal(t, http.StatusOK, send(env, "203.0.113.7").Code)
		assert.Equal(t, http.StatusOK, send(env, "198.51.100.9").Code)
		assert.Equal(t, http.StatusTooManyRequests, send(env, "203.0.113.7").Code)
	})

	t.Run("audited address", func(t *testing.T) {
		env := newTestEnv(t)
		req := env.request(t, http.MethodGet, "/api/v1/congregations", "u-alice", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		req.Header.Set("X-Real-IP", "203.0.113.7")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code)

		denied := env.audit.ofType(audit.TypeAccessDenied)
		require.Len(t, denied, 1)
		assert.Equal(t, "10.0.0.1:5000", denied[0].IPAddress)
	})
}

// TestPurpose: Validates that renaming a role onto a taken name is a conflict.
// Scope: Unit Test
// Expected: 409 with the duplicate name message.
// Test Case ID: HTTP-13
func TestUpdateRole_NameConflict(t *testing.T) {
	env := newTestEnv(t)
	named := mock.MatchedBy(func(n *string) bool { return n != nil && *n == "elder" })
	env.roles.On("UpdateRole", mock.Anything, "u-admin", "role-usher", named, (*authz.PermissionSet)(nil)).
		Return(nil, authz.ErrRoleAlreadyExists).Once()

	w := env.do(t, http.MethodPatch, "/api/v1/roles/role-usher", "u-admin", map[string]string{"name": "elder"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "A role with that name already exists.", message(t, w))
	env.roles.AssertExpectations(t)
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.GetLimiter("10.0.0.1")
	rl.GetLimiter("10.0.0.2")

	rl.visitors["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	rl.evict(time.Now())

	assert.Len(t, rl.visitors, 1)
	assert.Contains(t, rl.visitors, "10.0.0.2")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
