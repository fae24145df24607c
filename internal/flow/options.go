package flow

import "log/slog"

type options struct {
	logger *slog.Logger
}

// Option customizes an Engine built by New.
type Option func(*options)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
