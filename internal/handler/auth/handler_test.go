package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/praxisdev/identity-api/internal/breach"
	"github.com/praxisdev/identity-api/internal/model"
	"github.com/praxisdev/identity-api/internal/service/audit"
	authService "github.com/praxisdev/identity-api/internal/service/auth"
	pkgauth "github.com/praxisdev/identity-api/pkg/auth"
	"github.com/praxisdev/identity-api/pkg/security"
)

type fakeUserRepo struct {
	byEmail map[string]*model.User
	byID    map[uuid.UUID]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{byEmail: map[string]*model.User{}, byID: map[uuid.UUID]*model.User{}}
	for _, u := range users {
		r.byEmail[u.Email] = u
		r.byID[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.byEmail[user.Email] = user
	r.byID[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	return u, nil
}

func (r *fakeUserRepo) Update(_ context.Context, _ *model.User) error { return nil }

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	if u, ok := r.byID[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (r *fakeUserRepo) UpdateLoginState(_ context.Context, _ *model.User) error { return nil }

func (r *fakeUserRepo) UpdateEmailVerified(_ context.Context, _ uuid.UUID, _ bool) error {
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, _ uuid.UUID) error { return nil }

func (r *fakeUserRepo) List(_ context.Context, _ *model.UserFilter) ([]*model.User, error) {
	return nil, nil
}

type fakeTokenRepo struct{}

func (fakeTokenRepo) StoreVerificationToken(_ context.Context, _ uuid.UUID, _ string, _ time.Time) error {
	return nil
}

func (fakeTokenRepo) ValidateVerificationToken(_ context.Context, _ string) (uuid.UUID, error) {
	return uuid.Nil, fmt.Errorf("token not found")
}

func (fakeTokenRepo) InvalidateVerificationToken(_ context.Context, _ string) error { return nil }

func (fakeTokenRepo) StoreResetToken(_ context.Context, _ uuid.UUID, _ string, _ time.Time) error {
	return nil
}

func (fakeTokenRepo) ValidateResetToken(_ context.Context, _ string) (uuid.UUID, error) {
	return uuid.Nil, fmt.Errorf("token not found")
}

func (fakeTokenRepo) InvalidateResetToken(_ context.Context, _ string) error { return nil }

type fakeEmailService struct{}

func (fakeEmailService) SendVerification(_ context.Context, _, _ string) error  { return nil }
func (fakeEmailService) SendPasswordReset(_ context.Context, _, _ string) error { return nil }
func (fakeEmailService) SendWelcome(_ context.Context, _, _ string) error       { return nil }

type fakeRecorder struct{}

func (fakeRecorder) Record(_ context.Context, _ uuid.UUID, _ string, _ *audit.RecordOptions) {}

type stubLookup struct {
	count int
	err   error
}

func (s stubLookup) Check(_ context.Context, _ string) (int, error) {
	return s.count, s.err
}

func newTestRouter(t *testing.T, lookup breach.Lookup, users ...*model.User) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	checker := breach.NewChecker(lookup, breach.Config{Enabled: true}, zerolog.Nop(), nil)
	svc := authService.NewService(newFakeUserRepo(users...), fakeTokenRepo{},
		pkgauth.NewJWTService("test-secret", "identity-api"), fakeEmailService{},
		security.NewBcryptHasher(bcrypt.MinCost), checker, fakeRecorder{}, zerolog.Nop())

	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func activeUser(t *testing.T, email, password string) *model.User {
	t.Helper()
	hash, err := security.NewBcryptHasher(bcrypt.MinCost).Hash(password)
	require.NoError(t, err)
	now := time.Now()
	return &model.User{
		Base:         model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		Status:       model.UserStatusActive,
	}
}

func TestRegisterSuccess(t *testing.T) {
	r := newTestRouter(t, stubLookup{count: 0})

	w := postJSON(t, r, "/api/v1/auth/register", gin.H{
		"email":    "new@example.com",
		"name":     "New User",
		"password": "a-long-unique-passphrase",
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Status string `json:"status"`
		Data   struct {
			Email string `json:"email"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "new@example.com", body.Data.Email)
}

func TestRegisterBreachedPasswordReturns422(t *testing.T) {
	r := newTestRouter(t, stubLookup{count: 1000000})

	w := postJSON(t, r, "/api/v1/auth/register", gin.H{
		"email":    "new@example.com",
		"name":     "New User",
		"password": "password123456",
	})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Status string `json:"status"`
		Errors []struct {
			Field string         `json:"field"`
			Kind  string         `json:"kind"`
			Meta  map[string]any `json:"meta"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "password", body.Errors[0].Field)
	assert.Equal(t, "pwned_password", body.Errors[0].Kind)
	assert.EqualValues(t, 1000000, body.Errors[0].Meta["count"])
}

func TestRegisterMalformedPayload(t *testing.T) {
	r := newTestRouter(t, stubLookup{})

	w := postJSON(t, r, "/api/v1/auth/register", gin.H{"email": "not-an-email"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterBindingErrorsNameFields(t *testing.T) {
	r := newTestRouter(t, stubLookup{})

	w := postJSON(t, r, "/api/v1/auth/register", gin.H{"email": "not-an-email"})

	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Errors []struct {
			Field string `json:"field"`
			Kind  string `json:"kind"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Errors, 3)
	assert.Equal(t, "email", body.Errors[0].Field)
	assert.Equal(t, "email", body.Errors[0].Kind)
	assert.Equal(t, "name", body.Errors[1].Field)
	assert.Equal(t, "required", body.Errors[1].Kind)
	assert.Equal(t, "password", body.Errors[2].Field)
	assert.Equal(t, "required", body.Errors[2].Kind)
}

func TestLoginSuccess(t *testing.T) {
	user := activeUser(t, "dev@example.com", "hunter2hunter2")
	r := newTestRouter(t, stubLookup{}, user)

	w := postJSON(t, r, "/api/v1/auth/login", gin.H{
		"email":    "dev@example.com",
		"password": "hunter2hunter2",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data.AccessToken)
	assert.NotEmpty(t, body.Data.RefreshToken)
}

func TestLoginWrongPasswordReturns401(t *testing.T) {
	user := activeUser(t, "dev@example.com", "hunter2hunter2")
	r := newTestRouter(t, stubLookup{}, user)

	w := postJSON(t, r, "/api/v1/auth/login", gin.H{
		"email":    "dev@example.com",
		"password": "wrong-password",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid credentials")
}

func TestLoginLockedAccountReturns403(t *testing.T) {
	user := activeUser(t, "dev@example.com", "hunter2hunter2")
	until := time.Now().Add(10 * time.Minute)
	user.LockedUntil = &until
	r := newTestRouter(t, stubLookup{}, user)

	w := postJSON(t, r, "/api/v1/auth/login", gin.H{
		"email":    "dev@example.com",
		"password": "hunter2hunter2",
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "account temporarily locked")
}

func TestForgotPasswordAlwaysReturns200(t *testing.T) {
	r := newTestRouter(t, stubLookup{})

	w := postJSON(t, r, "/api/v1/auth/forgot-password", gin.H{"email": "ghost@example.com"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "if the email exists")
}
