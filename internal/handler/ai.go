package handler

import (
	"net/http"

	"github.com/pavelanni/examportal/internal/apperr"
	appI18n "github.com/pavelanni/examportal/internal/i18n"
	"github.com/pavelanni/examportal/internal/llm"
	"github.com/pavelanni/examportal/internal/llm/prompts"
)

type generateRequest struct {
	Topic      string `json:"topic" validate:"required,max=200"`
	Count      int    `json:"count" validate:"required,min=1,max=50"`
	Difficulty string `json:"difficulty" validate:"omitempty,max=20"`
}

// handleGenerate returns AI-drafted questions for the examiner to review. The
// drafts are not stored.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.gen == nil {
		h.writeError(w, r, apperr.Upstream(nil, "question generator is not configured"))
		return
	}
	questions, raw, err := h.gen.GenerateQuestions(r.Context(), req.Topic, req.Count, prompts.ParseDifficulty(req.Difficulty))
	if err != nil {
		h.writeErrorRaw(w, r, err, raw)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"questions": questions,
		"message":   appI18n.Tp(r.Context(), "QuestionsGenerated", len(questions)),
	})
}

var _ QuestionGenerator = (*llm.Client)(nil)
