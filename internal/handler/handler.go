package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/examportal/internal/auth"
	"github.com/pavelanni/examportal/internal/llm/prompts"
	"github.com/pavelanni/examportal/internal/model"
	"github.com/pavelanni/examportal/internal/store"
)

// QuestionGenerator produces question drafts from a topic.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, topic string, count int, difficulty prompts.Difficulty) ([]model.Question, string, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	tokens   *auth.Service
	gen      QuestionGenerator
	validate *validator.Validate
}

// New creates a new Handler. gen may be nil, in which case question
// generation reports an upstream failure.
func New(s *store.Store, tokens *auth.Service, gen QuestionGenerator) *Handler {
	return &Handler{
		store:    s,
		tokens:   tokens,
		gen:      gen,
		validate: newValidator(),
	}
}

// Routes registers all HTTP routes under /api.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(auth.NewAccountVerifier(h.tokens, h.store), h.writeError))

			r.Get("/auth/me", h.handleMe)

			r.Route("/examiner", func(r chi.Router) {
				r.Use(auth.RequireRole(h.writeError, model.UserRoleExaminer, model.UserRoleAdmin))
				r.Get("/exams", h.handleExaminerExams)
				r.Post("/exam", h.handleCreateExam)
				r.Put("/exam/{id}", h.handleUpdateExam)
				r.Delete("/exam/{id}", h.handleDeleteExam)
				r.Get("/exam/{id}/questions", h.handleExaminerQuestions)
				r.Post("/exam/{id}/questions", h.handleReplaceQuestions)
				r.Post("/exam/{id}/visibility", h.handleGrantVisibility)
				r.Get("/results", h.handleExaminerResults)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(h.writeError, model.UserRoleExaminee))
				r.Get("/examinee/exams", h.handleAvailableExams)
				r.Get("/examinee/attempts", h.handleMyAttempts)
				r.Post("/examinee/request-delete", h.handleRequestDelete)
				r.Get("/exam/{id}/questions", h.handleExamQuestions)
				r.Post("/exam/{id}/submit", h.handleSubmit)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireRole(h.writeError, model.UserRoleAdmin))
				r.Get("/users", h.handleListUsers)
				r.Post("/create-user", h.handleCreateUser)
				r.Put("/update-user/{id}", h.handleUpdateUser)
				r.Delete("/delete-user/{id}", h.handleDeleteUser)
				r.Get("/exams", h.handleAdminExams)
				r.Delete("/delete-exam/{id}", h.handleAdminDeleteExam)
				r.Get("/attempt/{id}", h.handleGetAttempt)
				r.Delete("/attempt/{id}", h.handleDeleteAttempt)
				r.Get("/attempt-deletion-requests", h.handleListDeletionRequests)
				r.Get("/attempt-deletion-requests/{id}", h.handleGetDeletionRequest)
				r.Post("/attempt-deletion/{id}", h.handleReviewDeletion)
			})

			r.Route("/ai", func(r chi.Router) {
				r.Use(auth.RequireRole(h.writeError, model.UserRoleExaminer, model.UserRoleAdmin))
				r.Post("/generate", h.handleGenerate)
			})
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// principal returns the authenticated caller. Routes using it are mounted
// behind auth.Authenticate.
func principal(r *http.Request) model.Principal {
	p, _ := model.PrincipalFromContext(r.Context())
	return p
}
