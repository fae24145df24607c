// Package notify delivers outbound messages to participants.
//
// RelayNotifier posts each message to an HTTP relay that owns the chat
// transport. LogNotifier only records the delivery and is used when no relay
// is configured.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/example/cohort-bot/internal/logging"
)

// ErrRelayRejected is returned when the relay answers with a non-2xx status.
var ErrRelayRejected = errors.New("notify: relay rejected message")

// maxErrorBody caps how much of a rejected response is kept in the error.
const maxErrorBody = 512

type message struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// RelayNotifier POSTs {"user_id","text"} JSON to a relay endpoint.
type RelayNotifier struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewRelayNotifier validates endpoint and returns a notifier using client, or
// http.DefaultClient when client is nil. Timeouts come from the caller's
// context.
func NewRelayNotifier(endpoint string, client *http.Client, logger *slog.Logger) (*RelayNotifier, error) {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("notify: parse relay url: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("notify: relay url must be absolute http(s), got %q", endpoint)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayNotifier{endpoint: parsed.String(), client: client, logger: logger}, nil
}

// Send implements application.Notifier.
func (n *RelayNotifier) Send(ctx context.Context, userID, text string) error {
	body, err := json.Marshal(message{UserID: userID, Text: text})
	if err != nil {
		return fmt.Errorf("notify: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: deliver to %s: %w", userID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: HTTP %d: %s", ErrRelayRejected, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	n.loggerFor(ctx).DebugContext(ctx, "message relayed", "user_id", userID, "status", resp.StatusCode)
	return nil
}

func (n *RelayNotifier) loggerFor(ctx context.Context) *slog.Logger {
	return logging.OrDefault(ctx, n.logger)
}

// LogNotifier writes every message to the logger instead of delivering it.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a LogNotifier writing to logger, or slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send implements application.Notifier. It fails only when ctx is done.
func (n *LogNotifier) Send(ctx context.Context, userID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logging.OrDefault(ctx, n.logger).InfoContext(ctx, "outbound message", "user_id", userID, "text", text)
	return nil
}
