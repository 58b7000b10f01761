package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxisdev/identity-api/internal/middleware"
	"github.com/praxisdev/identity-api/internal/model"
)

type stubUserService struct {
	user      *model.User
	err       error
	changedID uuid.UUID
}

func (s *stubUserService) CreateUser(_ context.Context, _ *model.CreateUserRequest) (*model.User, error) {
	return s.user, s.err
}

func (s *stubUserService) GetUser(_ context.Context, _ uuid.UUID) (*model.User, error) {
	return s.user, s.err
}

func (s *stubUserService) UpdateUser(_ context.Context, _ uuid.UUID, _ *model.UpdateUserRequest) (*model.User, error) {
	return s.user, s.err
}

func (s *stubUserService) DeleteUser(_ context.Context, _ uuid.UUID) error { return s.err }

func (s *stubUserService) ListUsers(_ context.Context, _ *model.UserFilter) ([]*model.User, error) {
	if s.user == nil {
		return nil, s.err
	}
	return []*model.User{s.user}, s.err
}

func (s *stubUserService) ChangePassword(_ context.Context, id uuid.UUID, _ *model.ChangePasswordRequest) error {
	s.changedID = id
	return s.err
}

func newTestRouter(t *testing.T, svc *stubUserService, authenticatedAs string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	if authenticatedAs != "" {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserID, authenticatedAs)
			c.Next()
		})
	}
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChangePasswordRejectsOtherUsersID(t *testing.T) {
	svc := &stubUserService{}
	r := newTestRouter(t, svc, uuid.NewString())

	target := uuid.New()
	w := doJSON(t, r, http.MethodPut, "/api/v1/users/"+target.String()+"/password", gin.H{
		"current_password": "old-passphrase",
		"new_password":     "a-new-long-passphrase",
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, uuid.Nil, svc.changedID, "service must not be reached")
}

func TestChangePasswordAllowsOwner(t *testing.T) {
	svc := &stubUserService{}
	id := uuid.New()
	r := newTestRouter(t, svc, id.String())

	w := doJSON(t, r, http.MethodPut, "/api/v1/users/"+id.String()+"/password", gin.H{
		"current_password": "old-passphrase",
		"new_password":     "a-new-long-passphrase",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, svc.changedID)
}

func TestGetUserRejectsMalformedID(t *testing.T) {
	r := newTestRouter(t, &stubUserService{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateUserNamesMissingFields(t *testing.T) {
	r := newTestRouter(t, &stubUserService{}, "")

	w := doJSON(t, r, http.MethodPost, "/api/v1/users", gin.H{"email": "not-an-email"})

	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Errors []struct {
			Field string `json:"field"`
			Kind  string `json:"kind"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	fields := make([]string, 0, len(body.Errors))
	for _, fe := range body.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"email", "name", "password"}, fields)
}
