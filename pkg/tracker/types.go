package tracker

import (
	"fmt"
	"time"

	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/model"
)

// Re-export types from model package for convenience.
type (
	CostRecord   = model.CostRecord
	BudgetStatus = model.BudgetStatus
)

// Clock returns the current time. Tests substitute a fixed clock to simulate
// month rollover.
type Clock func() time.Time

// BudgetExceededError rejects a generation because of the monthly limit.
// Status is the budget at the time of rejection.
type BudgetExceededError struct {
	Status model.BudgetStatus

	// Preflight is set when the budget was still open but the requested
	// image would push spend past the limit.
	Preflight bool
	Cost      float64
	Projected float64
}

func (e *BudgetExceededError) Error() string {
	if e.Preflight {
		return fmt.Sprintf("Monthly budget would be exceeded: $%.2f spent + $%.2f = $%.2f, limit is $%.2f",
			e.Status.Spent, e.Cost, e.Projected, e.Status.Limit)
	}
	return fmt.Sprintf("Monthly budget limit reached: $%.2f of $%.2f spent in %s. Generation resumes next month.",
		e.Status.Spent, e.Status.Limit, e.Status.Month)
}
