// Package taskreg implements the Task Session Registry (spec.md §4.5):
// a thread-safe map from task id to a cooperative cancellation signal.
package taskreg

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Signal is a cooperative cancellation flag. Firing it does not abort
// in-flight I/O; executors poll Canceled() and short-circuit promptly
// after their upstream call returns.
type Signal struct {
	fired atomic.Bool
}

// NewSignal returns an unfired signal.
func NewSignal() *Signal { return &Signal{} }

// Fire sets the cancellation flag. Idempotent.
func (s *Signal) Fire() { s.fired.Store(true) }

// Canceled reports whether Fire has been called.
func (s *Signal) Canceled() bool { return s.fired.Load() }

// Registry maps task id to its cancellation signal.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	signals map[string]*Signal
}

func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger, signals: make(map[string]*Signal)}
}

// Register associates a signal with a task id. A duplicate
// registration for an already-tracked task id is logged and replaces
// the prior signal — the new invocation's signal is what subsequent
// Cancel calls should observe.
func (r *Registry) Register(taskID string, signal *Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.signals[taskID]; exists {
		r.logger.Warn("task session registry: duplicate registration", "task_id", taskID)
	}
	r.signals[taskID] = signal
}

// Deregister removes a task id's signal. No-op if absent.
func (r *Registry) Deregister(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.signals, taskID)
}

// Cancel fires the signal registered for taskID, reporting whether one
// was found.
func (r *Registry) Cancel(taskID string) bool {
	r.mu.RLock()
	signal, ok := r.signals[taskID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	signal.Fire()
	return true
}
