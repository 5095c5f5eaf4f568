package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/model"
)

// JSONFile implements Storage as a single JSON document on disk.
// Writes go to a temporary file that is renamed over the target, so readers
// never observe a partial record.
type JSONFile struct {
	path string
}

// NewJSONFile returns a JSON file store rooted at path. The parent directory
// is created if needed; the file itself is created on first Save.
func NewJSONFile(path string) (*JSONFile, error) {
	if path == "" {
		return nil, errors.New("json storage: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &JSONFile{path: path}, nil
}

// Path returns the record file location.
func (s *JSONFile) Path() string { return s.path }

func (s *JSONFile) Load(_ context.Context) (*model.CostRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cost record: %w", err)
	}

	var r model.CostRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode cost record: %w", err)
	}
	if err := checkRecord(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *JSONFile) Save(_ context.Context, record *model.CostRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cost record: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("replace cost record: %w", err)
	}
	return nil
}

func (s *JSONFile) Close() error { return nil }
