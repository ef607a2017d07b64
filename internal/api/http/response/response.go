// Package response writes JSON bodies and API errors.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dtroode/mindhealer-server/internal/apierror"
	"github.com/dtroode/mindhealer-server/internal/logger"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// Error converts err to its API form. Internal errors are logged and their
// message is replaced.
func Error(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	apiErr := apierror.As(err)
	status := apiErr.Status()

	if status >= http.StatusInternalServerError {
		log.Error("HTTP: request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err.Error())
	}

	JSON(w, status, ErrorBody{Error: apiErr.Message, Reason: apiErr.Reason})
}
