package user

import (
	"errors"
	"net/http"
	"strings"

	"bookshelf/internal/httpx"
	"bookshelf/internal/platform/crypto"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=2,max=50"`
	Password string `json:"password" validate:"required,password_strength"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func toResponse(u User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role}
}

// RegisterUser handles POST /v1/users/register
func (h *HTTPHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if !httpx.DecodeJSON(w, r, &req, false) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if !httpx.Validate(w, r, req) {
		return
	}

	hashed, err := crypto.HashPassword(req.Password)
	if err != nil {
		httpx.InternalError(w, r)
		return
	}

	created, err := h.service.Register(r.Context(), req.Email, req.Username, hashed)
	switch {
	case err == nil:
		httpx.JSONSuccessCreated(w, r, toResponse(created))
	case errors.Is(err, ErrAlreadyExists):
		httpx.JSONError(w, r, http.StatusConflict, "ALREADY_EXISTS", "Email already exists", nil)
	default:
		httpx.InternalError(w, r)
	}
}

// GetCurrentUser handles GET /v1/me
func (h *HTTPHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.Unauthorized(w, r, "")
		return
	}

	u, err := h.service.GetByID(r.Context(), userID)
	switch {
	case err == nil:
		httpx.JSONSuccess(w, r, toResponse(u), nil)
	case errors.Is(err, ErrNotFound):
		// A deleted account keeps a valid token until it expires.
		httpx.Unauthorized(w, r, "")
	default:
		httpx.InternalError(w, r)
	}
}
