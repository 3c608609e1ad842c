package api_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditbench/auditbench/internal/api"
	"github.com/auditbench/auditbench/internal/api/dto"
	"github.com/auditbench/auditbench/internal/auth"
	"github.com/auditbench/auditbench/internal/testutil"
)

// newTestRouter wires a full router against an in-memory database. Each
// test function gets its own instance so the per-route rate limiters
// start from zero.
func newTestRouter(t *testing.T) (*api.Router, *testutil.TestSetup) {
	t.Helper()

	setup := testutil.NewTestContext(t)
	t.Cleanup(setup.Cleanup)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authService := auth.NewService(setup.DB, setup.Tokens, nil, logger)

	router := api.NewRouter(api.RouterConfig{
		DB:           setup.DB,
		Logger:       logger,
		TokenService: setup.Tokens,
		AuthService:  authService,
		OAuthProviders: map[string]*auth.OAuthProvider{
			auth.ProviderGoogle: auth.NewGoogleProvider("test-client", "test-secret", "http://localhost/api/auth/google/callback"),
			auth.ProviderGitHub: auth.NewGitHubProvider("", "", ""),
		},
		Development: true,
	})
	return router, setup
}

func serve(router *api.Router, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(router, testutil.UnauthenticatedRequest(t, "GET", "/health", nil))
	testutil.AssertStatus(t, rec, http.StatusOK)

	rec = serve(router, testutil.UnauthenticatedRequest(t, "GET", "/ready", nil))
	testutil.AssertStatus(t, rec, http.StatusOK)
}

func TestRegisterEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("registers and returns a token pair", func(t *testing.T) {
		rec := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/auth/register", map[string]string{
			"name":     "Ada",
			"email":    "ada@example.com",
			"password": "Sup3rSecret!",
		}))
		testutil.AssertStatus(t, rec, http.StatusCreated)

		var resp dto.AuthResponse
		testutil.ParseJSONResponse(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.Equal(t, "ada@example.com", resp.User.Email)
		assert.Equal(t, "user", resp.User.Role)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rec := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/auth/register", map[string]string{
			"name":     "Imposter",
			"email":    "Ada@Example.com",
			"password": "An0therSecret!",
		}))
		testutil.AssertStatus(t, rec, http.StatusConflict)
	})

	t.Run("weak password fails validation", func(t *testing.T) {
		rec := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/auth/register", map[string]string{
			"name":     "Weak",
			"email":    "weak@example.com",
			"password": "short",
		}))
		testutil.AssertStatus(t, rec, http.StatusBadRequest)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rec, &resp)
		assert.Equal(t, "Validation failed", resp.Error)
		assert.Contains(t, resp.Details, "password")
	})
}

func TestLoginEndpoint(t *testing.T) {
	router, setup := newTestRouter(t)

	t.Run("succeeds with fixture credentials", func(t *testing.T) {
		rec := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/auth/login", map[string]string{
			"email":    setup.User.Email,
			"password": testutil.TestPassword,
		}))
		testutil.AssertStatus(t, rec, http.StatusOK)

		var resp dto.AuthResponse
		testutil.ParseJSONResponse(t, rec, &resp)
		assert.Equal(t, setup.User.ID.String(), resp.User.ID)
	})

	t.Run("wrong password and unknown email read the same", func(t *testing.T) {
		badPass := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/auth/login", map[string]string{
			"email":    setup.User.Email,
			"password": "wrong-password",
		}))
		noUser := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/auth/login", map[string]string{
			"email":    "nobody@example.com",
			"password": "wrong-password",
		}))

		testutil.AssertStatus(t, badPass, http.StatusUnauthorized)
		testutil.AssertStatus(t, noUser, http.StatusUnauthorized)
		assert.Equal(t, badPass.Body.String(), noUser.Body.String())
	})

	t.Run("missing fields fail validation", func(t *testing.T) {
		rec := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/auth/login", map[string]string{}))
		testutil.AssertStatus(t, rec, http.StatusBadRequest)
	})
}

func TestRefreshEndpoint(t *testing.T) {
	router, setup := newTestRouter(t)

	refresh, err := setup.Tokens.IssueRefresh(setup.User.ID)
	require.NoError(t, err)

	t.Run("trades a refresh token for a new pair", func(t *testing.T) {
		rec := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/auth/refresh", map[string]string{
			"refresh_token": refresh,
		}))
		testutil.AssertStatus(t, rec, http.StatusOK)

		var resp dto.AuthResponse
		testutil.ParseJSONResponse(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.NotEqual(t, refresh, resp.RefreshToken)
	})

	t.Run("rejects an access token", func(t *testing.T) {
		rec := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/auth/refresh", map[string]string{
			"refresh_token": setup.Token,
		}))
		testutil.AssertStatus(t, rec, http.StatusUnauthorized)
	})
}

func TestMeEndpoint(t *testing.T) {
	router, setup := newTestRouter(t)

	t.Run("returns the authenticated user", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/auth/me", nil, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusOK)

		var resp dto.UserDTO
		testutil.ParseJSONResponse(t, rec, &resp)
		assert.Equal(t, setup.User.ID.String(), resp.ID)
		assert.Equal(t, setup.User.Email, resp.Email)
	})

	t.Run("requires authentication", func(t *testing.T) {
		rec := serve(router, testutil.UnauthenticatedRequest(t, "GET", "/api/auth/me", nil))
		testutil.AssertStatus(t, rec, http.StatusUnauthorized)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	router, setup := newTestRouter(t)

	t.Run("requires a valid access token", func(t *testing.T) {
		rec := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/auth/logout", nil))
		testutil.AssertStatus(t, rec, http.StatusUnauthorized)

		rec = serve(router, testutil.AuthenticatedRequest(t, "POST", "/api/auth/logout", nil, "garbage"))
		testutil.AssertStatus(t, rec, http.StatusUnauthorized)
	})

	t.Run("confirms and stays stateless", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "POST", "/api/auth/logout", nil, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusOK)

		// No server-side invalidation: the access token keeps working
		// until it expires on its own.
		rec = serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/auth/me", nil, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusOK)
	})
}

func TestForgotPasswordEndpoint(t *testing.T) {
	router, setup := newTestRouter(t)

	known := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/auth/forgot-password", map[string]string{
		"email": setup.User.Email,
	}))
	unknown := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/auth/forgot-password", map[string]string{
		"email": "nobody@example.com",
	}))

	// Same status and body whether or not the account exists.
	testutil.AssertStatus(t, known, http.StatusOK)
	testutil.AssertStatus(t, unknown, http.StatusOK)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}

func TestOAuthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("redirects to the provider with a state cookie", func(t *testing.T) {
		rec := serve(router, testutil.UnauthenticatedRequest(t, "GET", "/api/auth/google", nil))
		testutil.AssertStatus(t, rec, http.StatusFound)

		location := rec.Header().Get("Location")
		assert.Contains(t, location, "accounts.google.com")
		assert.Contains(t, location, "state=")

		var state string
		for _, cookie := range rec.Result().Cookies() {
			if cookie.Name == "oauth_state" {
				state = cookie.Value
			}
		}
		require.NotEmpty(t, state)
		assert.Contains(t, location, "state="+state)
	})

	t.Run("callback rejects a state mismatch", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "GET", "/api/auth/google/callback?state=evil&code=abc", nil)
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "good"})

		rec := serve(router, req)
		testutil.AssertStatus(t, rec, http.StatusUnauthorized)
	})

	t.Run("unconfigured provider is not found", func(t *testing.T) {
		rec := serve(router, testutil.UnauthenticatedRequest(t, "GET", "/api/auth/github", nil))
		testutil.AssertStatus(t, rec, http.StatusNotFound)
	})

	t.Run("unknown provider is not found", func(t *testing.T) {
		rec := serve(router, testutil.UnauthenticatedRequest(t, "GET", "/api/auth/myspace", nil))
		testutil.AssertStatus(t, rec, http.StatusNotFound)
	})
}

func TestProfileEndpoints(t *testing.T) {
	router, setup := newTestRouter(t)

	t.Run("reads the profile", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/users/profile", nil, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusOK)
	})

	t.Run("updates name and email", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "PUT", "/api/users/profile", map[string]string{
			"name":  "Renamed",
			"email": "Renamed@Example.com",
		}, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusOK)

		var resp dto.UserDTO
		testutil.ParseJSONResponse(t, rec, &resp)
		assert.Equal(t, "Renamed", resp.Name)
		assert.Equal(t, "renamed@example.com", resp.Email)
		assert.False(t, resp.EmailVerified)
	})

	t.Run("rejects a taken email", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "PUT", "/api/users/profile", map[string]string{
			"email": setup.Admin.Email,
		}, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusConflict)
	})
}

func TestUserProjectsAlias(t *testing.T) {
	router, setup := newTestRouter(t)

	testutil.CreateTestProject(t, setup.DB, setup.User, setup.Tool)

	t.Run("lists through the user resource", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/users/projects", nil, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusOK)

		var resp struct {
			Total int64 `json:"total"`
		}
		testutil.ParseJSONResponse(t, rec, &resp)
		assert.EqualValues(t, 1, resp.Total)
	})

	t.Run("creates through the user resource", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "POST", "/api/users/projects", map[string]interface{}{
			"name":    "Alias create",
			"tool_id": setup.Tool.ID.String(),
		}, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusCreated)
	})
}

func TestLoginRateLimit(t *testing.T) {
	router, _ := newTestRouter(t)

	body := map[string]string{"email": "nobody@example.com", "password": "wrong-password"}

	// The login route allows 5 attempts per window per IP.
	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		last = serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/auth/login", body))
	}

	testutil.AssertStatus(t, last, http.StatusTooManyRequests)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.True(t, strings.Contains(last.Body.String(), "Too many requests"))
}
