package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/cohort-bot/internal/application"
)

type pairingRunner interface {
	RunRound(ctx context.Context, activity application.Activity) (application.RoundResult, error)
}

type reminderSender interface {
	SendDueReminders(ctx context.Context, asOf time.Time) (application.ReminderReport, error)
}

// JobHandler lets an operator trigger scheduled jobs on demand.
type JobHandler struct {
	pairing   pairingRunner
	reminders reminderSender
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

func NewJobHandler(pairing pairingRunner, reminders reminderSender, now func() time.Time, logger *slog.Logger) *JobHandler {
	if now == nil {
		now = time.Now
	}
	return &JobHandler{
		pairing:   pairing,
		reminders: reminders,
		now:       now,
		responder: newResponder(logger),
		logger:    logger,
	}
}

type roundResponse struct {
	Activity    string      `json:"activity"`
	PoolSize    int         `json:"pool_size"`
	PairsFormed int         `json:"pairs_formed"`
	Pairs       [][2]string `json:"pairs"`
	Leftover    *string     `json:"leftover,omitempty"`
	Requeued    []string    `json:"requeued"`
	Error       string      `json:"error,omitempty"`
}

func newRoundResponse(result application.RoundResult) roundResponse {
	resp := roundResponse{
		Activity:    string(result.Activity),
		PoolSize:    len(result.Shuffled),
		PairsFormed: result.PairsFormed,
		Pairs:       result.Pairs,
		Leftover:    result.Leftover,
		Requeued:    result.Requeued,
	}
	if resp.Pairs == nil {
		resp.Pairs = [][2]string{}
	}
	if resp.Requeued == nil {
		resp.Requeued = []string{}
	}
	return resp
}

// RunPairing handles POST /jobs/pairing/{activity}. A round that formed pairs
// but failed to requeue someone answers 500 with the partial summary.
func (h *JobHandler) RunPairing(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.pairing == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	raw, _ := ActivityFromContext(r.Context())
	activity, err := application.ParseActivity(raw)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	result, err := h.pairing.RunRound(r.Context(), activity)
	if err != nil {
		if result.Activity == "" {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		resp := newRoundResponse(result)
		resp.Error = err.Error()
		handlerLogger(r.Context(), h.logger, "JobHandler", "RunPairing", "activity", string(activity)).
			ErrorContext(r.Context(), "pairing round finished with errors", "error", err)
		h.responder.writeJSON(r.Context(), w, http.StatusInternalServerError, resp)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, newRoundResponse(result))
}

type reminderResponse struct {
	Date      string `json:"date"`
	Lectures  int    `json:"lectures"`
	Delivered int    `json:"delivered"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

// SendReminders handles POST /jobs/reminders.
func (h *JobHandler) SendReminders(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.reminders == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	report, err := h.reminders.SendDueReminders(r.Context(), h.now())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, reminderResponse{
		Date:      report.Date.Format(application.LectureDateLayout),
		Lectures:  report.Lectures,
		Delivered: report.Delivered,
		Skipped:   report.Skipped,
		Failed:    report.Failed,
	})
}
