package storage

import (
	"context"

	"opsdemo/internal/models"
)

// Storage serves the task catalog. The catalog is read-only; implementations
// never write tasks back.
type Storage interface {
	// Tasks returns every task ordered by ID
	Tasks(ctx context.Context) ([]models.Task, error)

	// GetTask retrieves a task by ID, or ErrTaskNotFound
	GetTask(ctx context.Context, id int) (*models.Task, error)

	// Ping reports whether the storage can serve requests
	Ping(ctx context.Context) error

	// Close releases any resources held by the storage
	Close() error
}
