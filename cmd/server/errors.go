package main

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/icco/minesduel"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error" example:"match not found"`
}

// MessageResponse acknowledges a request that has nothing else to return.
type MessageResponse struct {
	OK bool `json:"ok" example:"true"`
}

var okResponse = MessageResponse{OK: true}

func statusFor(err error) int {
	switch {
	case errors.Is(err, minesduel.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, minesduel.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, minesduel.ErrConflict), errors.Is(err, minesduel.ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// renderError writes err with the status its kind maps to. Unknown errors
// are logged and hidden from the client.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		log.Errorw("request failed", "method", r.Method, "path", r.URL.Path, zap.Error(err))
		msg = "internal error"
	}
	renderJSON(w, code, ErrorResponse{Error: msg})
}

func renderMessage(w http.ResponseWriter, code int, msg string) {
	renderJSON(w, code, ErrorResponse{Error: msg})
}

func renderJSON(w http.ResponseWriter, code int, v interface{}) {
	if err := Renderer.JSON(w, code, v); err != nil {
		log.Errorw("failed to render JSON", zap.Error(err))
	}
}
