package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/model"
)

// ErrNotFound is returned by Load when no record has been persisted yet.
var ErrNotFound = errors.New("cost record not found")

// Supported storage drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Storage persists the single monthly cost record.
type Storage interface {
	// Load returns the persisted record, or ErrNotFound.
	Load(ctx context.Context) (*model.CostRecord, error)

	// Save replaces the persisted record as a whole.
	Save(ctx context.Context, record *model.CostRecord) error

	// Close releases resources.
	Close() error
}

// New opens the storage backend named by driver.
func New(driver, path string) (Storage, error) {
	switch driver {
	case "", DriverJSON:
		return NewJSONFile(path)
	case DriverSQLite:
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// checkRecord rejects records that cannot have been written by a ledger.
func checkRecord(r *model.CostRecord) error {
	switch {
	case r.Month == "":
		return errors.New("decode cost record: missing month")
	case r.TotalSpent < 0:
		return fmt.Errorf("decode cost record: negative total_spent %.2f", r.TotalSpent)
	case r.GenerationCount < 0:
		return fmt.Errorf("decode cost record: negative generation_count %d", r.GenerationCount)
	}
	return nil
}
