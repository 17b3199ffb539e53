package storage

import (
	"fmt"

	"opsdemo/internal/models"
)

// New creates the task storage described by config: the built-in tasks when
// no catalog file is set, otherwise the tasks loaded from that file.
func New(config models.StorageConfig) (Storage, error) {
	if config.TasksFile == "" {
		return NewDefaultStorage(), nil
	}

	tasks, err := LoadCatalog(config.TasksFile)
	if err != nil {
		return nil, err
	}

	s, err := NewMemoryStorage(tasks)
	if err != nil {
		return nil, fmt.Errorf("task catalog %s: %w", config.TasksFile, err)
	}
	return s, nil
}
