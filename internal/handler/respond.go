package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/examportal/internal/apperr"
	appI18n "github.com/pavelanni/examportal/internal/i18n"
)

const maxBodyBytes = 1 << 20

var statusByKind = map[apperr.Kind]int{
	apperr.InvalidInput:    http.StatusBadRequest,
	apperr.Unauthorized:    http.StatusUnauthorized,
	apperr.Forbidden:       http.StatusForbidden,
	apperr.NotFound:        http.StatusNotFound,
	apperr.Conflict:        http.StatusConflict,
	apperr.UpstreamFailure: http.StatusBadGateway,
	apperr.StoreFailure:    http.StatusInternalServerError,
}

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Raw     string `json:"raw,omitempty"`
}

// messageBody is the JSON shape of responses that only confirm an action.
type messageBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, messageBody{Success: true, Message: msg})
}

// writeError maps err to a status and a localized body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeErrorRaw(w, r, err, "")
}

// writeErrorRaw is writeError carrying the unparsed upstream text.
func (h *Handler) writeErrorRaw(w http.ResponseWriter, r *http.Request, err error, raw string) {
	kind := apperr.KindOf(err)
	code := apperr.CodeOf(err)
	status := statusByKind[kind]

	body := errorBody{Error: code, Message: appI18n.T(r.Context(), code)}
	switch kind {
	case apperr.StoreFailure:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
	case apperr.UpstreamFailure:
		slog.Warn("upstream failure", "path", r.URL.Path, "error", err)
		body.Raw = raw
	case apperr.InvalidInput:
		var ae *apperr.Error
		if errors.As(err, &ae) {
			body.Detail = ae.Message
		}
	default:
		slog.Debug("request rejected", "path", r.URL.Path, "code", code, "status", status)
	}
	writeJSON(w, status, body)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON object body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeBody(w, r, dst); err != nil {
		return err
	}
	return h.check(dst)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("request body is required")
		}
		return apperr.Invalid("malformed JSON: %v", err)
	}
	return nil
}

// check runs struct validation and converts failures to InvalidInput.
func (h *Handler) check(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fieldPath(fe), fe.Tag()))
		}
		return apperr.Invalid("invalid fields: %s", strings.Join(fields, ", "))
	}
	return apperr.Invalid("%v", err)
}

// fieldPath drops the top-level struct name from a validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("invalid %s", name)
	}
	return id, nil
}
