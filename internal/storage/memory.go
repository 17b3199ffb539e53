package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"opsdemo/internal/models"
)

// MemoryStorage implements the Storage interface over a fixed, validated
// task list held in memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	tasks  []models.Task
	byID   map[int]int // task ID -> index into tasks
	closed bool
}

// NewMemoryStorage creates a storage serving tasks. Every task must be valid
// and IDs must be unique.
func NewMemoryStorage(tasks []models.Task) (*MemoryStorage, error) {
	sorted := slices.Clone(tasks)
	slices.SortStableFunc(sorted, func(a, b models.Task) int { return a.ID - b.ID })

	byID := make(map[int]int, len(sorted))
	for i := range sorted {
		if err := sorted[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid task: %w", err)
		}
		if _, dup := byID[sorted[i].ID]; dup {
			return nil, fmt.Errorf("duplicate task id %d", sorted[i].ID)
		}
		byID[sorted[i].ID] = i
	}

	return &MemoryStorage{tasks: sorted, byID: byID}, nil
}

// NewDefaultStorage serves the built-in DevOps tasks.
func NewDefaultStorage() *MemoryStorage {
	s, err := NewMemoryStorage(models.DefaultTasks())
	if err != nil {
		panic(fmt.Sprintf("built-in tasks are invalid: %v", err))
	}
	return s
}

// Tasks returns a copy of every task ordered by ID
func (m *MemoryStorage) Tasks(ctx context.Context) ([]models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	return slices.Clone(m.tasks), nil
}

// GetTask retrieves a task by its ID
func (m *MemoryStorage) GetTask(ctx context.Context, id int) (*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	idx, exists := m.byID[id]
	if !exists {
		return nil, fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
	}

	// Return a copy
	task := m.tasks[idx]
	return &task, nil
}

// Ping fails once the storage has been closed.
func (m *MemoryStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// Close marks the storage closed. It is safe to call more than once.
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
