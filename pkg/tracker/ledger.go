package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/metrics"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/model"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/storage"
	"github.com/shopspring/decimal"
)

// Ledger keeps the persisted spend total for the current calendar month.
// A record from an earlier month reads as zero spend and is replaced on the
// next write.
type Ledger struct {
	mu      sync.Mutex // serializes load-modify-store in Record
	storage storage.Storage
	now     Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewLedger creates a ledger over store. A nil clock means time.Now; m may be nil.
func NewLedger(store storage.Storage, now Clock, m *metrics.Metrics, logger *slog.Logger) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		storage: store,
		now:     now,
		metrics: m,
		logger:  logger,
	}
}

// CurrentMonth returns the month key the ledger is accruing into.
func (l *Ledger) CurrentMonth() string {
	return model.MonthKey(l.now())
}

// Snapshot returns the current month's record. Missing or stale records read
// as empty. On a read failure it returns an empty record together with the
// error, which has already been logged.
func (l *Ledger) Snapshot(ctx context.Context) (model.CostRecord, error) {
	month := l.CurrentMonth()

	rec, err := l.storage.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return model.EmptyRecord(month), nil
	case err != nil:
		l.logger.Warn("cost record unreadable, assuming no spend", "month", month, "error", err)
		l.metrics.RecordLedgerError("read")
		return model.EmptyRecord(month), err
	case rec.Month != month:
		return model.EmptyRecord(month), nil
	}
	return *rec, nil
}

// CurrentSpend returns the amount spent this month, or 0 if it cannot be read.
func (l *Ledger) CurrentSpend(ctx context.Context) float64 {
	rec, _ := l.Snapshot(ctx)
	return rec.TotalSpent
}

// Record adds cost to this month's total and increments the generation count.
// The whole record is rewritten. A save failure is logged and returned for
// information only; callers must not fail a completed generation on it.
func (l *Ledger) Record(ctx context.Context, cost float64) (model.CostRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	month := l.CurrentMonth()

	rec := model.EmptyRecord(month)
	loaded, err := l.storage.Load(ctx)
	switch {
	case err == nil:
		rec = *loaded
	case !errors.Is(err, storage.ErrNotFound):
		l.logger.Warn("cost record unreadable, starting a fresh record", "month", month, "error", err)
		l.metrics.RecordLedgerError("read")
	}

	if rec.Month != month {
		if rec.Month != "" {
			l.logger.Info("budget rolled over", "previous_month", rec.Month, "previous_spent", rec.TotalSpent, "month", month)
		}
		rec = model.EmptyRecord(month)
	}

	rec.TotalSpent = decimal.NewFromFloat(rec.TotalSpent).
		Add(decimal.NewFromFloat(cost)).
		Round(2).
		InexactFloat64()
	rec.GenerationCount++

	if err := l.storage.Save(ctx, &rec); err != nil {
		l.logger.Warn("persist cost record", "month", month, "total_spent", rec.TotalSpent, "error", err)
		l.metrics.RecordLedgerError("write")
		return rec, fmt.Errorf("save cost record: %w", err)
	}
	return rec, nil
}
