package handler

import (
	"net/http"

	appI18n "github.com/pavelanni/examportal/internal/i18n"
	"github.com/pavelanni/examportal/internal/model"
)

type answerRequest struct {
	QuestionID     int64  `json:"question_id" validate:"required,gt=0"`
	SelectedOption string `json:"selected_option" validate:"required,oneof=A B C D a b c d"`
}

type submitRequest struct {
	Answers []answerRequest `json:"answers" validate:"required,min=1,dive"`
}

type deleteRequest struct {
	AttemptID int64  `json:"attemptId" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"required,max=1000"`
}

func (h *Handler) handleAvailableExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListAvailableExams(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(exams))
}

func (h *Handler) handleMyAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.store.ListAttemptsByExaminee(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(attempts))
}

// handleExamQuestions returns an exam's questions without correct options.
func (h *Handler) handleExamQuestions(w http.ResponseWriter, r *http.Request) {
	examID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	questions, err := h.store.ExamineeQuestions(r.Context(), principal(r).UserID, examID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(questions))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	examID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req submitRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	answers := make([]model.SubmittedAnswer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, model.SubmittedAnswer{
			QuestionID:     a.QuestionID,
			SelectedOption: model.Option(a.SelectedOption),
		})
	}
	res, err := h.store.SubmitAttempt(r.Context(), examID, principal(r).UserID, answers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"attempt_id": res.AttemptID,
		"score":      res.Score,
		"message":    appI18n.Td(r.Context(), "AttemptSubmitted", map[string]any{"Score": res.Score}),
	})
}

// handleRequestDelete files a deletion request for the caller's own attempt.
// The requester is always the authenticated user.
func (h *Handler) handleRequestDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.store.RequestDeletion(r.Context(), req.AttemptID, principal(r).UserID, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"request_id": id,
		"message":    appI18n.T(r.Context(), "DeletionRequested"),
	})
}
