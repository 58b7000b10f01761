package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxisdev/identity-api/internal/model"
	"github.com/praxisdev/identity-api/pkg/auth"
)

func newAuthTestRouter(t *testing.T) (*gin.Engine, auth.JWTService, *model.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtSvc := auth.NewJWTService("test-secret", "identity-api")
	user := &model.User{
		Base:  model.Base{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()},
		Email: "carol@example.com",
	}

	r := gin.New()
	r.Use(NewAuthMiddleware(jwtSvc).Authenticate())
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(ContextUserID),
			"email":   c.GetString(ContextUserEmail),
		})
	})
	return r, jwtSvc, user
}

func TestAuthenticateSetsIdentity(t *testing.T) {
	r, jwtSvc, user := newAuthTestRouter(t)

	token, err := jwtSvc.GenerateAccessToken(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), user.ID.String())
	assert.Contains(t, w.Body.String(), user.Email)
}

func TestAuthenticateRejectsMissingHeader(t *testing.T) {
	r, _, _ := newAuthTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing authorization header")
}

func TestAuthenticateRejectsMalformedHeader(t *testing.T) {
	r, jwtSvc, user := newAuthTestRouter(t)

	token, err := jwtSvc.GenerateAccessToken(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", token) // no Bearer prefix
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization format")
}

func TestAuthenticateRejectsRefreshToken(t *testing.T) {
	r, jwtSvc, user := newAuthTestRouter(t)

	token, err := jwtSvc.GenerateRefreshToken(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid token")
}
