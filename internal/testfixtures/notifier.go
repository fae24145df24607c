package testfixtures

import (
	"context"
	"sync"
)

// Message is one delivery captured by RecordingNotifier.
type Message struct {
	UserID string
	Text   string
}

// RecordingNotifier captures deliveries and fails those addressed to
// recipients registered with FailFor.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Message
	fail map[string]error
}

// NewRecordingNotifier returns a notifier that accepts every delivery.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{fail: make(map[string]error)}
}

// FailFor makes deliveries to userID return err. A nil err clears it.
func (n *RecordingNotifier) FailFor(userID string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err == nil {
		delete(n.fail, userID)
		return
	}
	n.fail[userID] = err
}

// Send implements application.Notifier.
func (n *RecordingNotifier) Send(ctx context.Context, userID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail[userID]; err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n.sent = append(n.sent, Message{UserID: userID, Text: text})
	return nil
}

// Sent returns a copy of the captured deliveries.
func (n *RecordingNotifier) Sent() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.sent...)
}

// SentTo returns the texts delivered to userID.
func (n *RecordingNotifier) SentTo(userID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.sent {
		if m.UserID == userID {
			out = append(out, m.Text)
		}
	}
	return out
}

// Reset forgets captured deliveries.
func (n *RecordingNotifier) Reset() {
	n.mu.Lock()
	n.sent = nil
	n.mu.Unlock()
}
