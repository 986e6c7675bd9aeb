package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardedRouter(t *testing.T, v *Validator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(v.Middleware())
	router.POST("/guarded", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestNewValidator_RequiresCredentialSource(t *testing.T) {
	_, err := NewValidator(nil, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no admin tokens or cron secret configured")

	v, err := NewValidator([]string{"tok"}, "", "")
	require.NoError(t, err)
	assert.NotNil(t, v)

	v, err = NewValidator(nil, "", "shh")
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestNewValidator_TokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens")
	require.NoError(t, os.WriteFile(path, []byte("alpha\n\n  beta  \n"), 0o600))

	v, err := NewValidator(nil, path, "")
	require.NoError(t, err)
	assert.True(t, v.apiTokens["alpha"])
	assert.True(t, v.apiTokens["beta"])
	assert.Len(t, v.apiTokens, 2)
}

func TestNewValidator_TokenFileMissing(t *testing.T) {
	_, err := NewValidator(nil, "/nonexistent/tokens", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read API tokens")
}

func TestMiddleware_CredentialMatrix(t *testing.T) {
	v, err := NewValidator([]string{"admin-token"}, "", "cron-secret")
	require.NoError(t, err)
	router := newGuardedRouter(t, v)

	tests := []struct {
		name       string
		setup      func(req *http.Request)
		wantStatus int
	}{
		{
			name: "bearer token",
			setup: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer admin-token")
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "x-api-token header",
			setup: func(req *http.Request) {
				req.Header.Set("X-API-Token", "admin-token")
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "cron secret header",
			setup: func(req *http.Request) {
				req.Header.Set("X-Cron-Secret", "cron-secret")
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "cron secret query param",
			setup: func(req *http.Request) {
				q := req.URL.Query()
				q.Set("token", "cron-secret")
				req.URL.RawQuery = q.Encode()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "no credential",
			setup:      func(req *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong bearer token",
			setup: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer nope")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong cron secret",
			setup: func(req *http.Request) {
				req.Header.Set("X-Cron-Secret", "nope")
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/guarded", nil)
			tt.setup(req)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), "authentication required")
			}
		})
	}
}

func TestMiddleware_NoCronSecretConfigured(t *testing.T) {
	v, err := NewValidator([]string{"admin-token"}, "", "")
	require.NoError(t, err)
	router := newGuardedRouter(t, v)

	// An empty configured secret never matches an empty submitted secret
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/guarded", nil)
	req.Header.Set("X-Cron-Secret", "")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
