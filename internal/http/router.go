package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Events *EventHandler
	Jobs   *JobHandler
	Health *HealthHandler
	// Auth wraps every route except /healthz.
	Auth       func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	protected := func(h http.HandlerFunc) http.Handler {
		if cfg.Auth == nil {
			return h
		}
		return cfg.Auth(h)
	}

	if cfg.Events != nil {
		mux.Handle("/events", protected(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Events.Dispatch(w, r)
		}))
		mux.Handle("/sessions/", protected(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimPrefix(r.URL.Path, "/sessions/")
			if userID == "" || strings.Contains(userID, "/") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Events.ResetSession(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		}))
	}

	if cfg.Jobs != nil {
		mux.Handle("/jobs/pairing/", protected(func(w http.ResponseWriter, r *http.Request) {
			activity := strings.TrimPrefix(r.URL.Path, "/jobs/pairing/")
			if activity == "" || strings.Contains(activity, "/") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Jobs.RunPairing(w, r.WithContext(ContextWithActivity(r.Context(), activity)))
		}))
		mux.Handle("/jobs/reminders", protected(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Jobs.SendReminders(w, r)
		}))
	}

	if cfg.Health != nil {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				methodNotAllowed(w, http.MethodGet, http.MethodHead)
				return
			}
			cfg.Health.Check(w, r)
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
