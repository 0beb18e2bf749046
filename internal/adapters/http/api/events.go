// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/xpboard/internal/adapters/mq/worker"
	service "github.com/okian/xpboard/internal/app"
	"github.com/okian/xpboard/internal/domain/model"
)

// EventDependencies defines the interface for event ingestion.
type EventDependencies interface {
	Submit(ctx context.Context, e model.GatewayEvent) (service.Disposition, error)
}

// EventsHandler replays gateway events posted over HTTP through the same
// filter, dedupe and dispatch path as the live gateway.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// HandlePostEvent handles POST /admin/events requests
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var e model.GatewayEvent
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if e.ID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op+": missing id", ErrBadRequest))
		return
	}

	d, err := h.deps.Submit(r.Context(), e)
	switch {
	case errors.Is(err, worker.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
		return
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, worker.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	case err != nil:
		writeDomainError(w, err)
		return
	}

	switch d {
	case service.Accepted:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: string(d)})
	default:
		writeJSON(w, http.StatusOK, ackResponse{Status: string(d), Duplicate: d == service.Duplicate})
	}
}
