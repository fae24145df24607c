package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultNotifyTimeout bounds each pairing notification when no timeout is configured.
const DefaultNotifyTimeout = 10 * time.Second

// ShuffleFunc reorders usernames in place.
type ShuffleFunc func(usernames []string)

// PairingConfig tunes a PairingEngine.
type PairingConfig struct {
	NotifyTimeout time.Duration
	// Shuffle overrides the uniform shuffle, mainly for tests.
	Shuffle ShuffleFunc
	Now     func() time.Time
	Logger  *slog.Logger
}

// PairingEngine forms random pairs out of an activity pool, notifies both
// members and carries unmatched or undelivered members to the next round.
type PairingEngine struct {
	pool          PoolRepository
	notifier      Notifier
	notifyTimeout time.Duration
	shuffle       ShuffleFunc
	now           func() time.Time
	logger        *slog.Logger

	mu    sync.Mutex
	locks map[Activity]*sync.Mutex
}

// NewPairingEngine wires dependencies for the pairing engine.
func NewPairingEngine(pool PoolRepository, notifier Notifier, cfg PairingConfig) *PairingEngine {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultNotifyTimeout
	}
	if cfg.Shuffle == nil {
		cfg.Shuffle = UniformShuffle
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PairingEngine{
		pool:          pool,
		notifier:      notifier,
		notifyTimeout: cfg.NotifyTimeout,
		shuffle:       cfg.Shuffle,
		now:           cfg.Now,
		logger:        defaultLogger(cfg.Logger),
		locks:         make(map[Activity]*sync.Mutex),
	}
}

// UniformShuffle shuffles usernames with the package-level math/rand/v2 source.
func UniformShuffle(usernames []string) {
	rand.Shuffle(len(usernames), func(i, j int) {
		usernames[i], usernames[j] = usernames[j], usernames[i]
	})
}

// SeededShuffle returns a deterministic shuffle driven by a PCG source.
func SeededShuffle(seed1, seed2 uint64) ShuffleFunc {
	rng := rand.New(rand.NewPCG(seed1, seed2))
	var mu sync.Mutex
	return func(usernames []string) {
		mu.Lock()
		defer mu.Unlock()
		rng.Shuffle(len(usernames), func(i, j int) {
			usernames[i], usernames[j] = usernames[j], usernames[i]
		})
	}
}

func (e *PairingEngine) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, e.logger, "PairingEngine", operation, attrs...)
}

func (e *PairingEngine) activityLock(activity Activity) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[activity]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[activity] = lock
	}
	return lock
}

// RunRound matches the current pool for activity. Rounds for the same
// activity never overlap. A pool smaller than two is left untouched.
//
// The pool is cleared before any notification is sent; members of a pair
// whose notification fails are written back together with the odd leftover.
// A requeue failure does not stop the round and is reported in the returned
// error alongside the partial result.
func (e *PairingEngine) RunRound(ctx context.Context, activity Activity) (result RoundResult, err error) {
	if e == nil {
		err = fmt.Errorf("PairingEngine is nil")
		return
	}
	if e.pool == nil || e.notifier == nil {
		err = fmt.Errorf("pairing engine not configured")
		return
	}
	if activity, err = ParseActivity(string(activity)); err != nil {
		return
	}

	lock := e.activityLock(activity)
	lock.Lock()
	defer lock.Unlock()

	result.Activity = activity
	logger := e.loggerWith(ctx, "RunRound", "activity", string(activity))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "pairing round failed", "error", err, "error_kind", ErrorKind(err),
				"pairs_formed", result.PairsFormed, "requeued", len(result.Requeued))
			return
		}
		logger.InfoContext(ctx, "pairing round completed",
			"pool_size", len(result.Shuffled),
			"pairs_formed", result.PairsFormed,
			"requeued", len(result.Requeued))
	}()

	entries, err := e.pool.ListPool(ctx, activity)
	if err != nil {
		return
	}
	if len(entries) < 2 {
		return
	}

	byUsername := make(map[string]PoolEntry, len(entries))
	order := make([]string, 0, len(entries))
	for _, entry := range entries {
		if _, dup := byUsername[entry.Username]; dup {
			continue
		}
		byUsername[entry.Username] = entry
		order = append(order, entry.Username)
	}
	if len(order) < 2 {
		return
	}

	e.shuffle(order)
	result.Shuffled = order

	if err = e.pool.ClearPool(ctx, activity); err != nil {
		result.Shuffled = nil
		return
	}

	var requeueErrs []error
	requeue := func(username string) {
		entry := byUsername[username]
		entry.Activity = activity
		entry.QueuedAt = e.now()
		// Requeue even when ctx was cancelled mid-round.
		if rqErr := e.pool.UpsertPoolEntry(context.WithoutCancel(ctx), entry); rqErr != nil {
			requeueErrs = append(requeueErrs, fmt.Errorf("requeue %s: %w", username, rqErr))
			return
		}
		result.Requeued = append(result.Requeued, username)
	}

	for i := 0; i+1 < len(order); i += 2 {
		first, second := order[i], order[i+1]
		if notifyErr := e.notifyPair(ctx, activity, first, second); notifyErr != nil {
			logger.WarnContext(ctx, "pair notification failed, requeueing",
				"first", first, "second", second, "error", notifyErr, "error_kind", ErrorKind(notifyErr))
			requeue(first)
			requeue(second)
			continue
		}
		result.Pairs = append(result.Pairs, [2]string{first, second})
		result.PairsFormed++
		logger.DebugContext(ctx, "pair formed", "first", first, "second", second)
	}

	if len(order)%2 == 1 {
		leftover := order[len(order)-1]
		result.Leftover = &leftover
		requeue(leftover)
	}

	err = errors.Join(requeueErrs...)
	return
}

// notifyPair tells each member about the other, first member first. The
// second notification is not attempted once the first fails.
func (e *PairingEngine) notifyPair(ctx context.Context, activity Activity, first, second string) error {
	if err := e.notify(ctx, first, MatchMessage(activity, second)); err != nil {
		return fmt.Errorf("notify %s: %w", first, err)
	}
	if err := e.notify(ctx, second, MatchMessage(activity, first)); err != nil {
		return fmt.Errorf("notify %s: %w", second, err)
	}
	return nil
}

func (e *PairingEngine) notify(ctx context.Context, userID, text string) error {
	notifyCtx, cancel := context.WithTimeout(ctx, e.notifyTimeout)
	defer cancel()
	return e.notifier.Send(notifyCtx, userID, text)
}

// MatchMessage renders the notification sent to one member of a pair.
func MatchMessage(activity Activity, partner string) string {
	switch activity {
	case ActivityInterview:
		return fmt.Sprintf("Your %s match: @%s. Get in touch and schedule the interview!", activity.Label(), partner)
	default:
		return fmt.Sprintf("Your %s match: @%s. Get in touch and arrange a meeting!", activity.Label(), partner)
	}
}
