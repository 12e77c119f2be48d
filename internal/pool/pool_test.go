package pool

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDialer struct {
	mu       sync.Mutex
	failNext map[string]error
	dials    int
	closes   int
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{failNext: make(map[string]error)}
}

func (f *fakeDialer) Dial(agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if err := f.failNext[agentID]; err != nil {
		delete(f.failNext, agentID)
		return err
	}
	return nil
}

func (f *fakeDialer) Close(agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func TestGetOrCreateTransitionsToIdleOnSuccess(t *testing.T) {
	d := newFakeDialer()
	p := New(d, nil)

	require.NoError(t, p.GetOrCreate("agent-1"))
	assert.Equal(t, StateIdle, p.StateOf("agent-1"))
}

func TestSessionStartedMovesIdleToActiveAndCancelsIdleTimer(t *testing.T) {
	d := newFakeDialer()
	p := New(d, nil)
	require.NoError(t, p.GetOrCreate("agent-1"))

	p.SessionStarted("agent-1")
	assert.Equal(t, StateActive, p.StateOf("agent-1"))
	assert.Nil(t, p.lookup("agent-1").idleTimer)

	p.SessionEnded("agent-1")
	assert.Equal(t, StateIdle, p.StateOf("agent-1"))
}

func TestSessionEndedNeverGoesNegative(t *testing.T) {
	d := newFakeDialer()
	p := New(d, nil)
	require.NoError(t, p.GetOrCreate("agent-1"))

	p.SessionEnded("agent-1")
	p.SessionEnded("agent-1")
	assert.Equal(t, StateIdle, p.StateOf("agent-1"))
}

func TestGetOrCreateAfterKillReadmitsFreshEntry(t *testing.T) {
	d := newFakeDialer()
	p := New(d, nil)
	require.NoError(t, p.GetOrCreate("agent-1"))

	e := p.lookup("agent-1")
	p.kill("agent-1", e)

	err := p.GetOrCreate("agent-1")
	require.NoError(t, err) // entry was removed, so this re-admits and re-dials a fresh entry
	assert.NotEqual(t, StateDead, p.StateOf("agent-1"))
}

func TestAuthErrorGoesDirectlyToDeadWithoutRetry(t *testing.T) {
	d := newFakeDialer()
	p := New(d, nil)
	require.NoError(t, p.GetOrCreate("agent-1"))

	p.ReportDisconnect("agent-1", errors.New("401 Unauthorized"))

	require.Eventually(t, func() bool {
		return p.lookup("agent-1") == nil
	}, time.Second, 5*time.Millisecond)
}

func TestNonAuthDisconnectSchedulesReconnect(t *testing.T) {
	d := newFakeDialer()
	p := New(d, nil)
	require.NoError(t, p.GetOrCreate("agent-1"))

	p.ReportDisconnect("agent-1", errors.New("connection reset"))
	assert.Equal(t, StateReconnecting, p.StateOf("agent-1"))
}

func TestBackoffForIsBoundedAndJittered(t *testing.T) {
	d := backoffFor(1)
	assert.InDelta(t, time.Second, d, float64(250*time.Millisecond))

	d6 := backoffFor(6)
	assert.LessOrEqual(t, d6, maxBackoff+maxBackoff/5)
}

func TestIsAuthErrorCaseInsensitiveMarkers(t *testing.T) {
	assert.True(t, isAuthError(errors.New("403 Forbidden")))
	assert.True(t, isAuthError(errors.New("request UNAUTHORIZED")))
	assert.False(t, isAuthError(errors.New("timeout waiting for response")))
	assert.False(t, isAuthError(nil))
}
