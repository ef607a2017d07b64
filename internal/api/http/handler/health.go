package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dtroode/mindhealer-server/internal/api/http/response"
	"github.com/dtroode/mindhealer-server/internal/logger"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Health struct {
	store  Pinger
	logger *logger.Logger
}

func NewHealth(store Pinger, logger *logger.Logger) *Health {
	return &Health{store: store, logger: logger}
}

type statusResponse struct {
	Status string `json:"status"`
}

func (h *Health) Live(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *Health) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("HTTP: readiness check failed", "error", err.Error())
		response.JSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable"})
		return
	}

	response.JSON(w, http.StatusOK, statusResponse{Status: "ready"})
}
