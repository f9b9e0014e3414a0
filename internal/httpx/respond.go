package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type errorBody struct {
	Type    string         `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

type errorResponse struct {
	Success   bool      `json:"success"`
	Error     errorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps an error kind to its HTTP status.
func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBusinessRule, apperr.KindConflict:
		return http.StatusUnprocessableEntity
	case apperr.KindAuthorization:
		return http.StatusUnauthorized
	case apperr.KindInfrastructure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	resp := errorResponse{RequestID: middleware.GetReqID(r.Context())}

	e, ok := apperr.As(err)
	if !ok {
		log.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
		resp.Error = errorBody{Type: apperr.KindUnknown.String(), Code: "INTERNAL_ERROR", Message: "internal server error"}
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	body := errorBody{Type: e.Kind.String(), Code: e.Code, Message: e.Message, Context: e.Context}
	switch e.Kind {
	case apperr.KindConflict:
		body.Type = apperr.KindBusinessRule.String()
	case apperr.KindInfrastructure:
		log.Error("infrastructure error", zap.String("path", r.URL.Path), zap.String("code", e.Code), zap.Error(err))
		body.Message = "service temporarily unavailable"
		body.Context = nil
	}
	resp.Error = body
	writeJSON(w, statusOf(e.Kind), resp)
}

func decodeJSON(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return apperr.Validation("body", "request body is not valid JSON")
	}
	return nil
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("body", "request body is not valid JSON")
	}
	return nil
}

// pageParams reads skip and limit; missing values are zero.
func pageParams(r *http.Request) (skip, limit int, err error) {
	q := r.URL.Query()
	if v := q.Get("skip"); v != "" {
		if skip, err = strconv.Atoi(v); err != nil || skip < 0 {
			return 0, 0, apperr.Validation("skip", "skip must be a non-negative integer")
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, apperr.Validation("limit", "limit must be a positive integer")
		}
	}
	return skip, limit, nil
}

type message struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
