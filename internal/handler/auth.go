package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/examportal/internal/apperr"
	"github.com/pavelanni/examportal/internal/auth"
	appI18n "github.com/pavelanni/examportal/internal/i18n"
	"github.com/pavelanni/examportal/internal/model"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// handleRegister creates an examinee account. Self-registration never grants
// another role.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.writeError(w, r, apperr.Store(err, "hash password"))
		return
	}
	id, err := h.store.CreateUser(r.Context(), model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         model.UserRoleExaminee,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"user_id": id,
		"message": appI18n.T(r.Context(), "Registered"),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx := r.Context()

	user, err := h.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		slog.Warn("failed login attempt", "email", req.Email)
		h.writeError(w, r, apperr.ErrBadCredentials)
		return
	}

	if auth.IsLegacyHash(user.PasswordHash) {
		hash, err := auth.HashPassword(req.Password)
		if err == nil {
			err = h.store.SetPasswordHash(ctx, user.ID, hash)
		}
		if err != nil {
			slog.Error("failed to upgrade legacy password", "user_id", user.ID, "error", err)
		} else {
			slog.Info("upgraded legacy password hash", "user_id", user.ID)
		}
	}

	token, err := h.tokens.Issue(user.ID, user.Role)
	if err != nil {
		h.writeError(w, r, apperr.Store(err, "issue token"))
		return
	}
	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: *user})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	user, err := h.store.GetUserByID(r.Context(), p.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if user == nil {
		h.writeError(w, r, apperr.ErrInvalidToken)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
