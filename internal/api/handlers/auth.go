package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/auditbench/auditbench/internal/api/dto"
	"github.com/auditbench/auditbench/internal/api/middleware"
	"github.com/auditbench/auditbench/internal/auth"
)

type AuthHandler struct {
	authService *auth.Service
	providers   map[string]*auth.OAuthProvider
	respond     Responder
}

func NewAuthHandler(authService *auth.Service, providers map[string]*auth.OAuthProvider, respond Responder) *AuthHandler {
	return &AuthHandler{authService: authService, providers: providers, respond: respond}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.BadBody(w)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.respond.ValidationFailed(w, errs)
		return
	}

	result, err := h.authService.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AuthResponse{
		Token:        result.Token,
		RefreshToken: result.RefreshToken,
		User:         dto.NewUserDTO(result.User),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.BadBody(w)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.respond.ValidationFailed(w, errs)
		return
	}

	result, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Token:        result.Token,
		RefreshToken: result.RefreshToken,
		User:         dto.NewUserDTO(result.User),
	})
}

// Refresh trades a refresh token for a new pair. The old refresh token
// stays valid until its own expiry.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.BadBody(w)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.respond.ValidationFailed(w, errs)
		return
	}

	result, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Token:        result.Token,
		RefreshToken: result.RefreshToken,
		User:         dto.NewUserDTO(result.User),
	})
}

// Logout is stateless on the server: tokens are not revoked, clients
// drop them. The endpoint exists so clients have a single call to end a
// session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.BadBody(w)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.respond.ValidationFailed(w, errs)
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	// Same response whether or not the account exists.
	writeJSON(w, http.StatusOK, dto.SuccessResponse{
		Message: "If an account exists for that email, a reset link has been sent",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.BadBody(w)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.respond.ValidationFailed(w, errs)
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Password has been reset"})
}

const oauthStateCookie = "oauth_state"

// OAuthRedirect sends the browser to the provider's consent page with a
// random state bound to a short-lived cookie.
func (h *AuthHandler) OAuthRedirect(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Unknown or disabled provider"})
		return
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	state := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})

	http.Redirect(w, r, provider.AuthURL(state), http.StatusFound)
}

func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Unknown or disabled provider"})
		return
	}

	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "OAuth state mismatch"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/api/auth",
		MaxAge: -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Missing authorization code"})
		return
	}

	result, err := h.authService.LoginWithOAuth(r.Context(), provider, code)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Token:        result.Token,
		RefreshToken: result.RefreshToken,
		User:         dto.NewUserDTO(result.User),
	})
}

func (h *AuthHandler) provider(r *http.Request) (*auth.OAuthProvider, bool) {
	name := chi.URLParam(r, "provider")
	provider, ok := h.providers[name]
	if !ok || !provider.Enabled() {
		return nil, false
	}
	return provider, true
}
