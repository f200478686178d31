package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/byterank/byterank/internal/api"
	"github.com/byterank/byterank/internal/app"
	iauth "github.com/byterank/byterank/internal/auth"
	"github.com/byterank/byterank/internal/auth/authtest"
	"github.com/byterank/byterank/internal/cache"
	sharedtestutil "github.com/byterank/byterank/internal/database/testutil"
	"github.com/byterank/byterank/internal/middleware"
	"github.com/byterank/byterank/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService

	jwt app.JWTSettings
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSecret := "test-suite-super-secret-key-32-bytes!!"
	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: jwtSecret,
				Issuer: "test-suite",
			},
		},
		RateLimit: app.RateLimitConfig{
			Enabled:  true,
			Requests: 1000,
			Window:   time.Minute,
		},
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	store := cache.NewMemoryStore(time.Minute)
	router, err := api.NewRouter(db, jwtSvc, cfg, middleware.NewRateStore(store), nil)
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		jwt:    cfg.Auth.JWT,
	}
}

// Identity is a signed-in caller: the profile ID the token carries and the token itself.
type Identity struct {
	ProfileID string
	Username  string
	Token     string
}

// SignIn mints a token for a fresh identity. The profile row is provisioned on
// the first request, so SignIn also fetches /api/profile once.
func (e *Env) SignIn(username string) Identity {
	e.T.Helper()

	id := Identity{ProfileID: uuid.NewString(), Username: username}
	token := authtest.MustSign(e.T, authtest.Token{
		Secret:    e.jwt.Secret,
		Issuer:    e.jwt.Issuer,
		ProfileID: id.ProfileID,
		Username:  username,
	})
	id.Token = token

	w := e.Request(http.MethodGet, "/api/profile", nil, token)
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())
	return id
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Do performs a request and decodes the envelope, asserting the status code.
func (e *Env) Do(method, path string, body any, token string, status int) APIResponse {
	e.T.Helper()

	w := e.Request(method, path, body, token)
	require.Equal(e.T, status, w.Code, w.Body.String())
	return DecodeResponse(e.T, w)
}
