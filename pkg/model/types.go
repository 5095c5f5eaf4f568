package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthLayout is the layout of a CostRecord month key (YYYY-MM).
const MonthLayout = "2006-01"

// MonthKey returns the UTC month key for t.
func MonthKey(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// CostRecord is the single persisted spend aggregate for one calendar month.
type CostRecord struct {
	Month           string  `json:"month" db:"month"`
	TotalSpent      float64 `json:"total_spent" db:"total_spent"`
	GenerationCount int64   `json:"generation_count" db:"generation_count"`
}

// EmptyRecord returns a zeroed record for the given month.
func EmptyRecord(month string) CostRecord {
	return CostRecord{Month: month}
}

// BudgetStatus is a projection of a CostRecord against the monthly limit.
type BudgetStatus struct {
	Month           string  `json:"month"`
	Limit           float64 `json:"limit"`
	Spent           float64 `json:"spent"`
	Remaining       float64 `json:"remaining"`
	Percentage      float64 `json:"percentage"`
	IsLimited       bool    `json:"is_limited"`
	GenerationCount int64   `json:"generation_count"`
}

// NewBudgetStatus derives the budget status of rec against limit.
// Money values and the percentage are rounded to cents.
func NewBudgetStatus(rec CostRecord, limit float64) BudgetStatus {
	spent := decimal.NewFromFloat(rec.TotalSpent)
	lim := decimal.NewFromFloat(limit)

	remaining := lim.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	pct := decimal.Zero
	if lim.IsPositive() {
		pct = spent.Div(lim).Mul(decimal.NewFromInt(100))
	}

	return BudgetStatus{
		Month:           rec.Month,
		Limit:           lim.Round(2).InexactFloat64(),
		Spent:           spent.Round(2).InexactFloat64(),
		Remaining:       remaining.Round(2).InexactFloat64(),
		Percentage:      pct.Round(2).InexactFloat64(),
		IsLimited:       spent.GreaterThanOrEqual(lim),
		GenerationCount: rec.GenerationCount,
	}
}

// ImageParams are the validated generation parameters echoed back to clients.
type ImageParams struct {
	Size    Size    `json:"size"`
	Quality Quality `json:"quality"`
	Style   Style   `json:"style"`
	N       int     `json:"n"`
}

// GenerateRequest is an inbound image generation request. Empty optional
// fields take their defaults.
type GenerateRequest struct {
	Prompt  string `json:"prompt"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
	N       int    `json:"n,omitempty"`
}

// GeneratedImage is the payload returned for a successful generation.
type GeneratedImage struct {
	URL            string      `json:"url"`
	RevisedPrompt  string      `json:"revised_prompt"`
	OriginalPrompt string      `json:"original_prompt"`
	Parameters     ImageParams `json:"parameters"`
	Cost           float64     `json:"cost"`
	Timestamp      int64       `json:"timestamp"`
}

// GenerateResult pairs a generated image with the budget after charging it.
type GenerateResult struct {
	Image      GeneratedImage `json:"data"`
	CostStatus BudgetStatus   `json:"cost_status"`
}

// CostEstimate is the price of one image at a quality tier.
type CostEstimate struct {
	Quality  Quality `json:"quality"`
	Cost     float64 `json:"cost"`
	Currency string  `json:"currency"`
}
