package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/sakif/profile-api/internal/apperror"
	"github.com/sakif/profile-api/internal/auth"
	"github.com/sakif/profile-api/internal/logging"
	"github.com/sakif/profile-api/internal/model"
	"github.com/sakif/profile-api/internal/service"
	"github.com/sakif/profile-api/internal/validation"
)

// =========================================================================
// FAKE SERVICE
// =========================================================================

// fakeUsers records calls so tests can prove a gate stopped the request
// before the controller reached the service.
type fakeUsers struct {
	user  *model.User
	token string
	err   error
	calls []string
}

func (f *fakeUsers) Register(_ context.Context, in model.RegisterInput) (*service.AuthResult, error) {
	f.calls = append(f.calls, "Register")
	if f.err != nil {
		return nil, f.err
	}
	return &service.AuthResult{Token: f.token, User: f.user}, nil
}

func (f *fakeUsers) Login(_ context.Context, in model.LoginInput) (*service.AuthResult, error) {
	f.calls = append(f.calls, "Login")
	if f.err != nil {
		return nil, f.err
	}
	return &service.AuthResult{Token: f.token, User: f.user}, nil
}

func (f *fakeUsers) Profile(_ context.Context, userID string) (*model.User, error) {
	f.calls = append(f.calls, "Profile:"+userID)
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, userID string, in model.RegisterInput) (*model.User, error) {
	f.calls = append(f.calls, "UpdateProfile:"+userID)
	if f.err != nil {
		return nil, f.err
	}
	u := *f.user
	u.Email = in.Email
	u.FirstName = in.FirstName
	u.LastName = in.LastName
	u.Version++
	return &u, nil
}

// =========================================================================
// HELPERS
// =========================================================================

type testEnv struct {
	router http.Handler
	users  *fakeUsers
	tokens *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	users := &fakeUsers{
		token: "issued-token",
		user: &model.User{
			ID:           bson.NewObjectID(),
			Version:      3,
			Email:        "ada@example.com",
			PasswordHash: "$2a$04$secret",
			FirstName:    "Ada",
			LastName:     "Lovelace",
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}

	logger := logging.Discard()
	errs := NewErrorHandler(logger)
	h := NewUsersHandler(users, tokens, false, logger)

	root := chi.NewRouter()
	root.Use(errs.Recoverer)
	root.Mount("/", UsersRoutes(h, errs, tokens, validation.New()))
	errs.Install(root)

	return &testEnv{router: root, users: users, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	tok, err := e.tokens.Generate(e.users.user.ID.Hex())
	require.NoError(t, err)
	return tok
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m), rr.Body.String())
	return m
}

// assertNoInternalFields checks a serialized user for leaked storage fields.
func assertNoInternalFields(t *testing.T, user map[string]any) {
	t.Helper()
	for _, k := range []string{"_id", "__v", "passwordHash", "PasswordHash", "ID", "Version"} {
		assert.NotContains(t, user, k)
	}
	assert.NotEmpty(t, user["id"])
	assert.Equal(t, "Ada Lovelace", user["fullName"])
}

const validBody = `{"email":"ada@example.com","password":"long-enough","firstName":"Ada","lastName":"Lovelace"}`

// =========================================================================
// TESTS
// =========================================================================

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/register", validBody, "")

	assert.Equal(t, http.StatusCreated, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "issued-token", body["token"])
	assertNoInternalFields(t, body["user"].(map[string]any))
}

func TestRegister_MalformedBody(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/register", `{"email":`, "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, env.users.calls)
}

func TestLogin_SetsCookie(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/login", `{"email":"ada@example.com","password":"x"}`, "")

	assert.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.TokenCookieName, cookies[0].Name)
	assert.Equal(t, "issued-token", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.users.err = apperror.Unauthorized("invalid email or password")

	rr := env.do(t, http.MethodPost, "/login", `{"email":"ada@example.com","password":"x"}`, "")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid email or password", decode(t, rr)["message"])
	assert.Empty(t, rr.Result().Cookies())
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/logout", "", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/profile", "", env.token(t))

	assert.Equal(t, http.StatusOK, rr.Code)
	user := decode(t, rr)
	assertNoInternalFields(t, user)
	assert.Equal(t, env.users.user.ID.Hex(), user["id"])
	assert.Equal(t, []string{"Profile:" + env.users.user.ID.Hex()}, env.users.calls)
}

func TestProfile_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/profile", "", "")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, env.users.calls, "controller must not run")
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)

	body := `{"email":"countess@example.com","password":"long-enough","firstName":"Ada","lastName":"Lovelace"}`
	rr := env.do(t, http.MethodPut, "/profile", body, env.token(t))

	assert.Equal(t, http.StatusOK, rr.Code)
	user := decode(t, rr)
	assertNoInternalFields(t, user)
	assert.Equal(t, "countess@example.com", user["email"])
}

func TestUpdateProfile_ValidationGate(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPut, "/profile", `{"email":"nope"}`, env.token(t))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "email", decode(t, rr)["field"])
	assert.Empty(t, env.users.calls, "controller must not run")
}

func TestUpdateProfile_MultiBytePasswordIsBadRequest(t *testing.T) {
	env := newTestEnv(t)

	body := `{"email":"ada@example.com","password":"` + strings.Repeat("é", 40) +
		`","firstName":"Ada","lastName":"Lovelace"}`
	rr := env.do(t, http.MethodPut, "/profile", body, env.token(t))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "password", decode(t, rr)["field"])
	assert.Empty(t, env.users.calls)
}

func TestUpdateProfile_AuthGate(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPut, "/profile", validBody, "")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, env.users.calls, "controller must not run")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"not found", apperror.NotFound("user", "x"), http.StatusNotFound, "not_found"},
		{"conflict", apperror.Conflict("user", "a@b.co"), http.StatusConflict, "conflict"},
		{"forbidden", apperror.Forbidden("no"), http.StatusForbidden, "forbidden"},
		{"unavailable", apperror.Unavailable("database unavailable", errors.New("down")), http.StatusServiceUnavailable, "service_unavailable"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.users.err = tt.err

			rr := env.do(t, http.MethodGet, "/profile", "", env.token(t))

			assert.Equal(t, tt.wantStatus, rr.Code)
			body := decode(t, rr)
			assert.Equal(t, tt.wantType, body["error"])
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotEmpty(t, body["reference"])
				assert.NotContains(t, rr.Body.String(), "disk on fire")
			} else {
				assert.NotContains(t, body, "reference")
			}
		})
	}
}

func TestCatchAll(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decode(t, rr)["error"])

	rr = env.do(t, http.MethodDelete, "/profile", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "method_not_allowed", decode(t, rr)["error"])
}

func TestRecoverer(t *testing.T) {
	errs := NewErrorHandler(logging.Discard())
	r := chi.NewRouter()
	r.Use(errs.Recoverer)
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotEmpty(t, decode(t, rr)["reference"])
}

type fakeStatus bool

func (f fakeStatus) Connected() bool { return bool(f) }

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	Health(fakeStatus(true))(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok","database":"connected"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	Health(fakeStatus(false))(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"degraded","database":"disconnected"}`, rr.Body.String())
}
