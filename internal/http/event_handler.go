package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/cohort-bot/internal/flow"
)

// maxEventBody bounds an inbound event payload.
const maxEventBody = 64 << 10

type dispatcher interface {
	Dispatch(ctx context.Context, ev flow.Event) ([]flow.Action, error)
	Reset(ctx context.Context, userID string) error
}

// EventHandler feeds inbound chat messages to the dialogue engine.
type EventHandler struct {
	engine    dispatcher
	responder responder
	logger    *slog.Logger
}

func NewEventHandler(engine dispatcher, logger *slog.Logger) *EventHandler {
	return &EventHandler{engine: engine, responder: newResponder(logger), logger: logger}
}

type eventRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type eventResponse struct {
	Actions []flow.Action `json:"actions"`
}

// Dispatch handles POST /events. A failed dispatch that still produced a
// reply for the user answers 200 with that reply; the failure is logged.
func (h *EventHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.engine == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody)).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingUserID)
		return
	}

	actions, err := h.engine.Dispatch(r.Context(), flow.Event{UserID: req.UserID, Text: req.Text})
	if err != nil {
		if errors.Is(err, flow.ErrEmptyUser) {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingUserID)
			return
		}
		if len(actions) == 0 {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		handlerLogger(r.Context(), h.logger, "EventHandler", "Dispatch", "user_id", req.UserID).
			WarnContext(r.Context(), "dispatch failed, replying with failure notice", "error", err)
	}
	if actions == nil {
		actions = []flow.Action{}
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Actions: actions})
}

// ResetSession handles DELETE /sessions/{user_id}.
func (h *EventHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.engine == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID, ok := UserIDFromContext(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingUserID)
		return
	}

	if err := h.engine.Reset(r.Context(), userID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	handlerLogger(r.Context(), h.logger, "EventHandler", "ResetSession", "user_id", userID).
		InfoContext(r.Context(), "session reset")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}
