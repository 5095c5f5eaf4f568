package alerts

import "context"

// AlertLevel indicates the severity of a budget alert.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"  // Spend passed the configured threshold
	AlertCritical AlertLevel = "critical" // 95% of the monthly limit
	AlertExceeded AlertLevel = "exceeded" // Monthly limit reached
)

// Severity orders levels so callers can detect upward crossings.
func (l AlertLevel) Severity() int {
	switch l {
	case AlertWarning:
		return 1
	case AlertCritical:
		return 2
	case AlertExceeded:
		return 3
	default:
		return 0
	}
}

// Alert is a monthly image budget notification.
type Alert struct {
	Level           AlertLevel `json:"level"`
	Month           string     `json:"month"`
	LimitUSD        float64    `json:"limit_usd"`
	CurrentSpend    float64    `json:"current_spend"`
	ThresholdPct    float64    `json:"threshold_pct"`
	GenerationCount int64      `json:"generation_count"`
	Message         string     `json:"message"`
}

// UsagePct returns spend as a percentage of the limit.
func (a Alert) UsagePct() float64 {
	if a.LimitUSD <= 0 {
		return 0
	}
	return (a.CurrentSpend / a.LimitUSD) * 100
}

// Notifier sends alerts to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers an alert. Implementations must be safe for concurrent use.
	Send(ctx context.Context, alert Alert) error
}
