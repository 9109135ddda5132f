package auth

import (
	"errors"
	"net/http"
	"strings"

	"bookshelf/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type LoginReq struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

type RefreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type logoutReq struct {
	RefreshToken string `json:"refresh_token"`
}

// writeTokens answers with the token pair, or maps err to 401/500.
func writeTokens(w http.ResponseWriter, r *http.Request, tokens Tokens, err error, denied string) {
	switch {
	case err == nil:
		httpx.JSONSuccess(w, r, tokens, nil)
	case errors.Is(err, ErrUnauthorized):
		httpx.Unauthorized(w, r, denied)
	default:
		httpx.InternalError(w, r)
	}
}

// Login handles POST /v1/users/login
func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginReq
	if !httpx.DecodeJSON(w, r, &req, false) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !httpx.Validate(w, r, req) {
		return
	}

	tokens, err := h.service.Login(r.Context(), req.Email, req.Password, req.RememberMe, r.UserAgent(), httpx.ClientIP(r))
	writeTokens(w, r, tokens, err, "Invalid email or password")
}

// RefreshToken handles POST /v1/auth/refresh. The presented token is
// consumed and a fresh pair is returned.
func (h *HTTPHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshReq
	if !httpx.DecodeJSON(w, r, &req, false) || !httpx.Validate(w, r, req) {
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken)
	writeTokens(w, r, tokens, err, "Invalid or expired refresh token")
}

// Logout handles POST /v1/auth/logout. The body is optional.
func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := httpx.BearerToken(r)
	userID := httpx.UserIDFrom(r)
	if !ok || userID == "" {
		httpx.Unauthorized(w, r, "")
		return
	}

	var req logoutReq
	if !httpx.DecodeJSON(w, r, &req, true) {
		return
	}

	err := h.service.Logout(r.Context(), token, req.RefreshToken, userID)
	switch {
	case err == nil:
		httpx.JSONSuccessNoContent(w)
	case errors.Is(err, ErrUnauthorized):
		httpx.Unauthorized(w, r, "")
	default:
		httpx.InternalError(w, r)
	}
}
