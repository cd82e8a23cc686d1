package handler

import (
	"net/http"
	"strings"

	"github.com/pavelanni/examportal/internal/apperr"
	appI18n "github.com/pavelanni/examportal/internal/i18n"
	"github.com/pavelanni/examportal/internal/model"
	"github.com/pavelanni/examportal/internal/store"
)

type examRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	IsPublic    *bool  `json:"is_public"`
}

func (req examRequest) public() bool {
	return req.IsPublic == nil || *req.IsPublic
}

type questionRequest struct {
	Text          string `json:"question_text" validate:"required"`
	OptionA       string `json:"option_a" validate:"required"`
	OptionB       string `json:"option_b" validate:"required"`
	OptionC       string `json:"option_c" validate:"required"`
	OptionD       string `json:"option_d" validate:"required"`
	CorrectOption string `json:"correct_option" validate:"required,oneof=A B C D a b c d"`
}

type visibilityRequest struct {
	ExamineeIDs []int64 `json:"examinee_ids" validate:"required,min=1,dive,gt=0"`
}

func (h *Handler) handleExaminerExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListExamsByCreator(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(exams))
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.store.CreateExam(r.Context(), model.Exam{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		CreatedBy:   principal(r).UserID,
		IsPublic:    req.public(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"exam_id": id,
		"message": appI18n.T(r.Context(), "ExamCreated"),
	})
}

func (h *Handler) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	examID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req examRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	err = h.store.UpdateExam(r.Context(), principal(r), examID, store.ExamUpdate{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		IsPublic:    req.public(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, appI18n.T(r.Context(), "ExamUpdated"))
}

func (h *Handler) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
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

// handleExaminerQuestions returns questions with their correct options to the
// exam's owner or an admin.
func (h *Handler) handleExaminerQuestions(w http.ResponseWriter, r *http.Request) {
	examID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	exam, err := h.store.GetExam(r.Context(), examID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p := principal(r)
	if exam.CreatedBy != p.UserID && p.Role != model.UserRoleAdmin {
		h.writeError(w, r, apperr.ErrNotOwner)
		return
	}
	questions, err := h.store.ListQuestions(r.Context(), examID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(questions))
}

// handleReplaceQuestions swaps the whole question set. The body is a JSON
// array of questions.
func (h *Handler) handleReplaceQuestions(w http.ResponseWriter, r *http.Request) {
	examID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var reqs []questionRequest
	if err := decodeBody(w, r, &reqs); err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(reqs) == 0 {
		h.writeError(w, r, apperr.Invalid("at least one question is required"))
		return
	}
	questions := make([]model.Question, 0, len(reqs))
	for i := range reqs {
		if err := h.check(&reqs[i]); err != nil {
			h.writeError(w, r, apperr.Invalid("question %d: %v", i+1, err))
			return
		}
		q := reqs[i]
		questions = append(questions, model.Question{
			Text:          strings.TrimSpace(q.Text),
			OptionA:       strings.TrimSpace(q.OptionA),
			OptionB:       strings.TrimSpace(q.OptionB),
			OptionC:       strings.TrimSpace(q.OptionC),
			OptionD:       strings.TrimSpace(q.OptionD),
			CorrectOption: model.NormalizeOption(q.CorrectOption),
		})
	}
	n, err := h.store.ReplaceQuestions(r.Context(), principal(r), examID, questions)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"total_questions": n,
		"message":         appI18n.Tp(r.Context(), "QuestionsSaved", n),
	})
}

func (h *Handler) handleGrantVisibility(w http.ResponseWriter, r *http.Request) {
	examID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req visibilityRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.GrantVisibility(r.Context(), principal(r), examID, req.ExamineeIDs); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, appI18n.T(r.Context(), "VisibilityGranted"))
}

func (h *Handler) handleExaminerResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.store.ExamResults(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(results))
}

// nonNil keeps empty lists encoding as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
