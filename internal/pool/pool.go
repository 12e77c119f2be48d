// Package pool implements the Connection Pool (spec.md §4.4): a
// per-agent liveness state machine for STREAM backends. It never
// carries per-invocation traffic — that happens on fresh connections
// dialed directly by the Stream Adapter — its job is fast failure
// detection and a future reuse point.
package pool

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// State is a Connection Pool entry's position in the spec.md §4.4
// state machine.
type State string

const (
	StateConnecting   State = "CONNECTING"
	StateIdle         State = "IDLE"
	StateActive       State = "ACTIVE"
	StateReconnecting State = "RECONNECTING"
	StateDead         State = "DEAD"
)

const (
	idleTimeout    = 5 * time.Minute
	maxAttempts    = 6
	baseBackoff    = 1 * time.Second
	maxBackoff     = 30 * time.Second
	jitterFraction = 0.20
)

// Dialer opens and tears down the pool's liveness connection for one
// agent. A real implementation wraps a persistent WebSocket dial; it
// is supplied by the caller so the pool stays transport-agnostic.
type Dialer interface {
	Dial(agentID string) error
	Close(agentID string) error
}

// Pool tracks one entry per STREAM agent.
type Pool struct {
	dialer Dialer
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu             sync.Mutex
	state          State
	sessionCount   int
	attempt        int
	idleTimer      *time.Timer
	reconnectTimer *time.Timer
}

func New(dialer Dialer, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{dialer: dialer, logger: logger, entries: make(map[string]*entry)}
}

// GetOrCreate admits a new entry on first call for an agent and
// attempts to connect it; a DEAD entry is an immediate error.
func (p *Pool) GetOrCreate(agentID string) error {
	e, created := p.entryFor(agentID)
	if !created {
		e.mu.Lock()
		dead := e.state == StateDead
		e.mu.Unlock()
		if dead {
			return fmt.Errorf("connection pool: agent %q is dead", agentID)
		}
		return nil
	}
	return p.connect(agentID, e)
}

func (p *Pool) entryFor(agentID string) (*entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[agentID]; ok {
		return e, false
	}
	e := &entry{state: StateConnecting}
	p.entries[agentID] = e
	return e, true
}

// connect performs the initial dial out of CONNECTING. Per spec.md
// §4.4's state diagram, a failure here never enters the RECONNECTING
// loop: an auth failure goes straight to DEAD, anything else just
// removes the entry so the next GetOrCreate starts fresh.
func (p *Pool) connect(agentID string, e *entry) error {
	if err := p.dialer.Dial(agentID); err != nil {
		if isAuthError(err) {
			p.kill(agentID, e)
		} else {
			p.mu.Lock()
			delete(p.entries, agentID)
			p.mu.Unlock()
		}
		return err
	}
	e.mu.Lock()
	e.state = StateIdle
	p.armIdleTimer(agentID, e)
	e.mu.Unlock()
	return nil
}

// SessionStarted must be called before an active invocation begins.
func (p *Pool) SessionStarted(agentID string) {
	e := p.lookup(agentID)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionCount++
	p.cancelIdleTimerLocked(e)
	if e.state == StateIdle {
		e.state = StateActive
	}
}

// SessionEnded must be called after an invocation completes.
func (p *Pool) SessionEnded(agentID string) {
	e := p.lookup(agentID)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessionCount > 0 {
		e.sessionCount--
	}
	if e.sessionCount == 0 && e.state == StateActive {
		e.state = StateIdle
		p.armIdleTimerLocked(agentID, e)
	}
}

// ReportDisconnect is called by the transport when the liveness
// connection drops unexpectedly from IDLE/ACTIVE/RECONNECTING.
func (p *Pool) ReportDisconnect(agentID string, cause error) {
	e := p.lookup(agentID)
	if e == nil {
		return
	}

	if isAuthError(cause) {
		p.kill(agentID, e)
		return
	}

	e.mu.Lock()
	if e.state != StateIdle && e.state != StateActive && e.state != StateReconnecting {
		e.mu.Unlock()
		return
	}
	e.state = StateReconnecting
	e.attempt++
	attempt := e.attempt
	e.mu.Unlock()

	if attempt > maxAttempts {
		p.kill(agentID, e)
		return
	}
	p.scheduleReconnect(agentID, e, attempt)
}

func (p *Pool) scheduleReconnect(agentID string, e *entry, attempt int) {
	delay := backoffFor(attempt)
	e.mu.Lock()
	if e.reconnectTimer != nil {
		e.reconnectTimer.Stop()
	}
	e.reconnectTimer = time.AfterFunc(delay, func() { p.attemptReconnect(agentID, e) })
	e.mu.Unlock()
}

func (p *Pool) attemptReconnect(agentID string, e *entry) {
	if err := p.dialer.Dial(agentID); err != nil {
		p.handleFailure(agentID, e, err)
		return
	}
	e.mu.Lock()
	e.attempt = 0
	if e.sessionCount > 0 {
		e.state = StateActive
	} else {
		e.state = StateIdle
		p.armIdleTimerLocked(agentID, e)
	}
	e.mu.Unlock()
}

func (p *Pool) handleFailure(agentID string, e *entry, cause error) {
	if isAuthError(cause) {
		p.kill(agentID, e)
		return
	}

	e.mu.Lock()
	e.state = StateReconnecting
	e.attempt++
	attempt := e.attempt
	e.mu.Unlock()

	if attempt > maxAttempts {
		p.kill(agentID, e)
		return
	}
	p.scheduleReconnect(agentID, e, attempt)
}

// kill transitions an entry to DEAD, clears its timers, emits a
// pool-dead notification, and removes it from the pool.
func (p *Pool) kill(agentID string, e *entry) {
	e.mu.Lock()
	e.state = StateDead
	p.cancelIdleTimerLocked(e)
	if e.reconnectTimer != nil {
		e.reconnectTimer.Stop()
		e.reconnectTimer = nil
	}
	e.mu.Unlock()

	_ = p.dialer.Close(agentID)
	p.logger.Warn("connection pool: entry dead", "agent_id", agentID)

	p.mu.Lock()
	delete(p.entries, agentID)
	p.mu.Unlock()
}

func (p *Pool) armIdleTimer(agentID string, e *entry) {
	p.armIdleTimerLocked(agentID, e)
}

func (p *Pool) armIdleTimerLocked(agentID string, e *entry) {
	p.cancelIdleTimerLocked(e)
	e.idleTimer = time.AfterFunc(idleTimeout, func() { p.evictIdle(agentID) })
}

func (p *Pool) cancelIdleTimerLocked(e *entry) {
	if e.idleTimer != nil {
		e.idleTimer.Stop()
		e.idleTimer = nil
	}
}

func (p *Pool) evictIdle(agentID string) {
	e := p.lookup(agentID)
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	_ = p.dialer.Close(agentID)
	p.mu.Lock()
	delete(p.entries, agentID)
	p.mu.Unlock()
}

func (p *Pool) lookup(agentID string) *entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries[agentID]
}

// StateOf reports the current state of an agent's entry, or "" if no
// entry exists.
func (p *Pool) StateOf(agentID string) State {
	e := p.lookup(agentID)
	if e == nil {
		return ""
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func backoffFor(attempt int) time.Duration {
	base := baseBackoff * time.Duration(1<<uint(attempt-1))
	if base > maxBackoff {
		base = maxBackoff
	}
	jitter := (rand.Float64()*2 - 1) * jitterFraction
	return time.Duration(float64(base) * (1 + jitter))
}

var authMarkers = []string{"401", "403", "unauthorized", "forbidden"}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range authMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
