// Package store provides the gateway's a2asrv.TaskStore implementations
// (spec.md §4.8): in-memory, SQL, and Redis.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
)

// MemoryStore is the default a2asrv.TaskStore: a mutex-guarded map.
// Tasks do not survive a process restart.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[a2a.TaskID]*a2a.Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[a2a.TaskID]*a2a.Task)}
}

func (s *MemoryStore) Save(_ context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("memory store: task is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	return nil
}

func (s *MemoryStore) Get(_ context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, a2a.ErrTaskNotFound
	}
	return task, nil
}

var _ a2asrv.TaskStore = (*MemoryStore)(nil)
