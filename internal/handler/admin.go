package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/examportal/internal/apperr"
	"github.com/pavelanni/examportal/internal/auth"
	appI18n "github.com/pavelanni/examportal/internal/i18n"
	"github.com/pavelanni/examportal/internal/model"
	"github.com/pavelanni/examportal/internal/store"
)

type createUserRequest struct {
	Name     string         `json:"name" validate:"required,max=100"`
	Email    string         `json:"email" validate:"required,email,max=254"`
	Password string         `json:"password" validate:"required,min=6,max=72"`
	Role     model.UserRole `json:"role" validate:"required,oneof=admin examiner examinee"`
}

type updateUserRequest struct {
	Name     string         `json:"name" validate:"required,max=100"`
	Email    string         `json:"email" validate:"required,email,max=254"`
	Password string         `json:"password" validate:"omitempty,min=6,max=72"`
	Role     model.UserRole `json:"role" validate:"required,oneof=admin examiner examinee"`
}

type reviewRequest struct {
	Action string `json:"action" validate:"required"`
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(users))
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
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
		Role:         req.Role,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("admin created user", "admin_id", principal(r).UserID, "user_id", id, "role", req.Role)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"user_id": id,
		"message": appI18n.T(r.Context(), "UserCreated"),
	})
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req updateUserRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	upd := store.UserUpdate{
		Name:  strings.TrimSpace(req.Name),
		Email: req.Email,
		Role:  req.Role,
	}
	if req.Password != "" {
		if upd.PasswordHash, err = auth.HashPassword(req.Password); err != nil {
			h.writeError(w, r, apperr.Store(err, "hash password"))
			return
		}
	}
	if err := h.store.UpdateUser(r.Context(), id, upd); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, appI18n.T(r.Context(), "UserUpdated"))
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if id == principal(r).UserID {
		h.writeError(w, r, apperr.ErrSelfDelete)
		return
	}
	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, appI18n.T(r.Context(), "UserDeleted"))
}

func (h *Handler) handleAdminExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListAllExams(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(exams))
}

func (h *Handler) handleAdminDeleteExam(w http.ResponseWriter, r *http.Request) {
	examID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.DeleteExam(r.Context(), principal(r), examID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, appI18n.T(r.Context(), "ExamDeleted"))
}

// handleGetAttempt returns one attempt with its scored answers.
func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	attempt, err := h.store.GetAttempt(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	answers, err := h.store.GetAttemptAnswers(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"attempt": attempt,
		"answers": nonNil(answers),
	})
}

// handleDeleteAttempt removes an attempt without a deletion request.
func (h *Handler) handleDeleteAttempt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.DeleteAttempt(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("admin deleted attempt", "admin_id", principal(r).UserID, "attempt_id", id)
	writeMessage(w, appI18n.T(r.Context(), "AttemptDeleted"))
}

func (h *Handler) handleListDeletionRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.store.ListDeletionRequests(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(reqs))
}

func (h *Handler) handleGetDeletionRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := h.store.GetDeletionRequest(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) handleReviewDeletion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req reviewRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	action := model.ParseReviewAction(req.Action)
	if action == "" {
		h.writeError(w, r, apperr.Invalid("action must be approve or reject"))
		return
	}
	if err := h.store.ReviewDeletion(r.Context(), id, principal(r).UserID, action); err != nil {
		h.writeError(w, r, err)
		return
	}
	msg := "RequestRejected"
	if action == model.ActionApprove {
		msg = "RequestApproved"
	}
	writeMessage(w, appI18n.T(r.Context(), msg))
}
