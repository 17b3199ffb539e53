package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Task lifecycle states
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

var validTaskStatuses = []string{TaskStatusPending, TaskStatusInProgress, TaskStatusDone}

// Task is one entry of the DevOps task catalog.
type Task struct {
	ID          int    `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Status      string `yaml:"status" json:"status"`
}

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s string) bool {
	return slices.Contains(validTaskStatuses, s)
}

// ParseTaskStatus normalizes user input ("In-Progress", " DONE ") into a
// task status.
func ParseTaskStatus(s string) (string, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if !ValidTaskStatus(normalized) {
		return "", fmt.Errorf("invalid task status %q, expected one of %s", s, strings.Join(validTaskStatuses, ", "))
	}
	return normalized, nil
}

func (t *Task) Validate() error {
	if t.ID <= 0 {
		return errors.New("task id must be positive")
	}
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("task title cannot be empty")
	}
	if !ValidTaskStatus(t.Status) {
		return fmt.Errorf("task %d has invalid status %q", t.ID, t.Status)
	}
	return nil
}

// DefaultTasks is the built-in catalog served when no tasks file is configured.
func DefaultTasks() []Task {
	return []Task{
		{
			ID:          1,
			Title:       "Run CI pipeline",
			Description: "Execute tests, linters and security scans on every push.",
			Status:      TaskStatusDone,
		},
		{
			ID:          2,
			Title:       "Build Docker image",
			Description: "Build and scan the Docker image for the service.",
			Status:      TaskStatusInProgress,
		},
		{
			ID:          3,
			Title:       "Deploy to Kubernetes",
			Description: "Deploy the latest version to the Kubernetes cluster.",
			Status:      TaskStatusPending,
		},
	}
}
