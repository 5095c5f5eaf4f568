package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/alerts"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/model"
	"github.com/shopspring/decimal"
)

// alertTimeout bounds the delivery of one alert to one notifier.
const alertTimeout = 5 * time.Second

// GuardConfig holds the monthly budget policy.
type GuardConfig struct {
	MonthlyLimit float64
	// FailClosed treats an unreadable ledger as an exhausted budget instead
	// of as zero spend.
	FailClosed        bool
	AlertThresholdPct float64
}

// Guard decides whether a generation of a given cost is allowed and records
// spend once a generation succeeds. Within a month the budget only moves from
// open to exhausted; it reopens when the ledger rolls over.
type Guard struct {
	ledger    *Ledger
	config    GuardConfig
	notifiers []alerts.Notifier
	logger    *slog.Logger

	pending sync.WaitGroup // in-flight alert deliveries
}

// NewGuard creates a budget guard over ledger.
func NewGuard(ledger *Ledger, cfg GuardConfig, notifiers []alerts.Notifier, logger *slog.Logger) *Guard {
	if cfg.AlertThresholdPct <= 0 {
		cfg.AlertThresholdPct = 80
	}
	return &Guard{
		ledger:    ledger,
		config:    cfg,
		notifiers: notifiers,
		logger:    logger,
	}
}

// Limit returns the monthly limit in USD.
func (g *Guard) Limit() float64 {
	return g.config.MonthlyLimit
}

func (g *Guard) snapshot(ctx context.Context) model.CostRecord {
	rec, err := g.ledger.Snapshot(ctx)
	if err != nil && g.config.FailClosed {
		rec.TotalSpent = g.config.MonthlyLimit
	}
	return rec
}

func (g *Guard) spent(ctx context.Context) decimal.Decimal {
	return decimal.NewFromFloat(g.snapshot(ctx).TotalSpent)
}

// Status returns the current month's budget status.
func (g *Guard) Status(ctx context.Context) model.BudgetStatus {
	return model.NewBudgetStatus(g.snapshot(ctx), g.config.MonthlyLimit)
}

// WouldExceed reports whether spending cost now would take the month past
// the limit. Reaching the limit exactly is allowed.
func (g *Guard) WouldExceed(ctx context.Context, cost float64) bool {
	projected := g.spent(ctx).Add(decimal.NewFromFloat(cost))
	return projected.GreaterThan(decimal.NewFromFloat(g.config.MonthlyLimit))
}

// IsAlreadyLimited reports whether the month's spend has reached the limit.
func (g *Guard) IsAlreadyLimited(ctx context.Context) bool {
	return g.spent(ctx).GreaterThanOrEqual(decimal.NewFromFloat(g.config.MonthlyLimit))
}

// Record charges cost to the ledger and returns the resulting status.
// Persistence failures are logged by the ledger and otherwise ignored, but
// no alert is raised for spend that was not persisted. Alerts are delivered
// in the background; Wait blocks until they are done.
func (g *Guard) Record(ctx context.Context, cost float64) model.BudgetStatus {
	rec, err := g.ledger.Record(ctx, cost)
	if err == nil {
		previous := decimal.NewFromFloat(rec.TotalSpent).Sub(decimal.NewFromFloat(cost))
		g.checkThresholds(previous.InexactFloat64(), rec)
	}

	return model.NewBudgetStatus(rec, g.config.MonthlyLimit)
}

// Wait blocks until all pending alert deliveries have finished.
func (g *Guard) Wait() {
	g.pending.Wait()
}

// levelFor maps a spend to the alert level it falls in.
func (g *Guard) levelFor(spent float64) alerts.AlertLevel {
	limit := g.config.MonthlyLimit
	if limit <= 0 {
		return ""
	}

	pct := decimal.NewFromFloat(spent).
		Div(decimal.NewFromFloat(limit)).
		Mul(decimal.NewFromInt(100))
	switch {
	case pct.GreaterThanOrEqual(decimal.NewFromInt(100)):
		return alerts.AlertExceeded
	case pct.GreaterThanOrEqual(decimal.NewFromInt(95)):
		return alerts.AlertCritical
	case pct.GreaterThanOrEqual(decimal.NewFromFloat(g.config.AlertThresholdPct)):
		return alerts.AlertWarning
	default:
		return ""
	}
}

// checkThresholds dispatches an alert when a charge moves spend into a higher
// alert level.
func (g *Guard) checkThresholds(previous float64, rec model.CostRecord) {
	level := g.levelFor(rec.TotalSpent)
	if level.Severity() <= g.levelFor(previous).Severity() {
		return
	}

	limit := g.config.MonthlyLimit
	alert := alerts.Alert{
		Level:           level,
		Month:           rec.Month,
		LimitUSD:        limit,
		CurrentSpend:    rec.TotalSpent,
		ThresholdPct:    g.config.AlertThresholdPct,
		GenerationCount: rec.GenerationCount,
	}
	alert.Message = fmt.Sprintf("Monthly image budget at %.1f%% ($%.2f / $%.2f)",
		alert.UsagePct(), rec.TotalSpent, limit)

	g.logger.Warn("budget threshold crossed",
		"month", rec.Month,
		"level", level,
		"pct", alert.UsagePct(),
		"spend", rec.TotalSpent,
		"limit", limit,
	)

	if len(g.notifiers) == 0 {
		return
	}
	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		g.dispatch(alert)
	}()
}

func (g *Guard) dispatch(alert alerts.Alert) {
	for _, notifier := range g.notifiers {
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		err := notifier.Send(ctx, alert)
		cancel()
		if err != nil {
			g.logger.Error("send alert failed",
				"notifier", notifier.Name(),
				"month", alert.Month,
				"level", alert.Level,
				"error", err,
			)
		}
	}
}
