// Package statesync implements the state synchronization engine: it owns
// the live Session model, applies typed change events, answers sync and
// diff-sync requests, resolves conflicts between snapshots, and persists
// the model to disk.
package statesync

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/maxbridge/config"
	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/metric"
	"github.com/c360/maxbridge/pkg/ring"
	"github.com/c360/maxbridge/pkg/timestamp"
	"github.com/c360/maxbridge/state"
)

// NotifyFunc receives a change notification after a state mutation has
// been applied and recorded.
type NotifyFunc func(change state.StateChange)

// Engine owns one Session at a time. All model access is serialized by a
// single coarse lock; the event history carries its own lock inside the
// ring buffer, so recording an event never extends the model critical
// section.
type Engine struct {
	cfg config.SyncConfig

	mu      sync.Mutex
	session *state.Session

	history *ring.Buffer[state.StateEvent]
	notify  NotifyFunc

	lifecycleMu sync.Mutex
	initialized bool
	stopCh      chan struct{}
	wg          sync.WaitGroup

	logger  *slog.Logger
	metrics *metric.Metrics
}

// EngineOption configures an Engine before initialization.
type EngineOption func(*Engine)

// WithNotify sets the change-notification callback.
func WithNotify(fn NotifyFunc) EngineOption {
	return func(e *Engine) { e.notify = fn }
}

// NewEngine creates an engine from validated configuration.
func NewEngine(cfg config.SyncConfig, logger *slog.Logger, metrics *metric.Metrics, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = 1000
	}

	e := &Engine{
		cfg:     cfg,
		history: ring.New[state.StateEvent](limit),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize creates a fresh session with a generated id and default
// global settings, clears the event history, and starts the auto-persist
// timer when configured. Idempotent.
func (e *Engine) Initialize() error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.initialized {
		return nil
	}

	e.mu.Lock()
	e.session = state.NewSessionWithGeneratedID("default")
	e.mu.Unlock()
	e.history.Clear()

	e.stopCh = make(chan struct{})
	if e.cfg.AutoPersist && e.cfg.IntervalMs > 0 {
		e.wg.Add(1)
		go e.persistLoop()
	}

	e.initialized = true
	e.logger.Info("state engine initialized",
		"history_limit", e.history.Cap(),
		"auto_persist", e.cfg.AutoPersist,
		"conflict_policy", e.cfg.ConflictPolicy)
	return nil
}

// Stop halts the auto-persist timer. The session stays loaded so late
// readers see a consistent model.
func (e *Engine) Stop() {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if !e.initialized {
		return
	}
	e.initialized = false
	close(e.stopCh)
	e.wg.Wait()

	e.logger.Info("state engine stopped", "events_recorded", e.history.Appends())
}

// SessionID returns the id of the current session.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return ""
	}
	return e.session.ID()
}

// History returns the recorded events, oldest first.
func (e *Engine) History() []state.StateEvent {
	return e.history.Snapshot()
}

// Snapshot is a full-state notification payload.
type Snapshot struct {
	State     json.RawMessage `json:"state"`
	Timestamp int64           `json:"timestamp"`
}

// Snapshot serializes the whole session for a full-state notification.
func (e *Engine) Snapshot() (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return Snapshot{}, errors.WrapFatal(errors.ErrNotStarted, "Engine", "Snapshot",
			"no active session")
	}
	data, err := json.Marshal(e.session)
	if err != nil {
		return Snapshot{}, errors.WrapIO(err, "Engine", "Snapshot", "serialize session")
	}
	return Snapshot{State: data, Timestamp: timestamp.Now()}, nil
}

// recordEvent appends the event to history and fires the notification.
// Called after the model mutation succeeded, outside the model lock.
func (e *Engine) recordEvent(event state.StateEvent) {
	if e.history.Append(event) && e.metrics != nil {
		e.metrics.HistoryEvicted.Inc()
	}
	if e.metrics != nil {
		e.metrics.StateEvents.WithLabelValues(event.Category.String()).Inc()
	}
	if e.notify != nil {
		e.notify(state.NewStateChange(event))
	}
}

// persistLoop saves the session at the configured interval until Stop.
func (e *Engine) persistLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.PersistInterval())
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			if _, err := e.SaveState("auto", e.cfg.StoragePath); err != nil {
				if e.metrics != nil {
					e.metrics.PersistErrors.Inc()
				}
				e.logger.Warn("auto-persist failed", "path", e.cfg.StoragePath, "error", err)
			}
		}
	}
}
