package handler

import (
	"net/http"

	"github.com/darkodi/shortlink/internal/apperr"
	"github.com/darkodi/shortlink/internal/auth"
	"github.com/darkodi/shortlink/internal/logger"
	"github.com/darkodi/shortlink/internal/model"
	"github.com/darkodi/shortlink/internal/service"
	"github.com/darkodi/shortlink/internal/validator"
)

// AuthHandler serves registration, login and the caller's profile.
type AuthHandler struct {
	auth  *auth.Service
	users *service.UserService
	log   *logger.Logger
}

func NewAuthHandler(authSvc *auth.Service, users *service.UserService, log *logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthHandler{auth: authSvc, users: users, log: log}
}

// HandleRegister creates an account
// POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if appErr := validator.Struct(req); appErr != nil {
		appErr.WriteJSON(w)
		return
	}

	resp, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// HandleLogin exchanges credentials for an access token
// POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if appErr := validator.Struct(req); appErr != nil {
		appErr.WriteJSON(w)
		return
	}

	resp, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleUpdateTier changes the caller's tier
// PUT /auth/tier
func (h *AuthHandler) HandleUpdateTier(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		apperr.Unauthorized("Missing bearer token").WriteJSON(w)
		return
	}

	var req model.UpdateTierRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if appErr := validator.Struct(req); appErr != nil {
		appErr.WriteJSON(w)
		return
	}

	user, err := h.auth.UpdateTier(r.Context(), id, req.Tier)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleMe returns the caller's profile
// GET /users/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		apperr.Unauthorized("Missing bearer token").WriteJSON(w)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), id.Email)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateMe changes the caller's display name
// PATCH /users/me
func (h *AuthHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		apperr.Unauthorized("Missing bearer token").WriteJSON(w)
		return
	}

	var req model.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if appErr := validator.Struct(req); appErr != nil {
		appErr.WriteJSON(w)
		return
	}

	user, err := h.users.UpdateUser(r.Context(), id.Email, model.UserUpdate{DisplayUsername: &req.DisplayUsername})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
