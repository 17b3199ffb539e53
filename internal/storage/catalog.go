package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"opsdemo/internal/models"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout of a task catalog:
//
//	tasks:
//	  - id: 1
//	    title: Run CI pipeline
//	    status: done
//
// JSON documents with the same shape are accepted too.
type catalogFile struct {
	Tasks []models.Task `yaml:"tasks"`
}

// LoadCatalog reads tasks from a YAML or JSON catalog file.
func LoadCatalog(path string) ([]models.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a catalog document. Unknown fields are rejected so
// typos in a hand-edited catalog surface at startup.
func ParseCatalog(data []byte) ([]models.Task, error) {
	var catalog catalogFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&catalog); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse task catalog: %w", err)
	}
	if len(catalog.Tasks) == 0 {
		return nil, fmt.Errorf("task catalog contains no tasks")
	}
	return catalog.Tasks, nil
}
