package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/metrics"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/model"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/pricing"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/providers"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/tokenizer"
	"github.com/shopspring/decimal"
)

// Generator is the entry point for budget-guarded image generation.
type Generator struct {
	guard    *Guard
	pricing  *pricing.Table
	provider providers.ImageProvider
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewGenerator creates a generator. provider may be nil for read-only use
// (status and estimates); m may be nil.
func NewGenerator(guard *Guard, table *pricing.Table, provider providers.ImageProvider, m *metrics.Metrics, logger *slog.Logger) *Generator {
	return &Generator{
		guard:    guard,
		pricing:  table,
		provider: provider,
		metrics:  m,
		logger:   logger,
	}
}

// Deployment returns the provider's model deployment name.
func (g *Generator) Deployment() string {
	if g.provider == nil {
		return ""
	}
	return g.provider.Deployment()
}

// Wait blocks until budget alerts raised by earlier generations are delivered.
func (g *Generator) Wait() {
	g.guard.Wait()
}

// Status returns the current month's budget status. It has no side effects.
func (g *Generator) Status(ctx context.Context) model.BudgetStatus {
	status := g.guard.Status(ctx)
	g.metrics.UpdateBudget(status.Spent, status.Percentage)
	return status
}

// Estimate returns the price of one image at the given quality. It does not
// touch the ledger.
func (g *Generator) Estimate(quality string) (*model.CostEstimate, error) {
	q, err := model.ParseQuality(quality)
	if err != nil {
		return nil, err
	}
	price, err := g.pricing.Price(q)
	if err != nil {
		return nil, fmt.Errorf("price lookup: %w", err)
	}
	return &model.CostEstimate{Quality: q, Cost: price, Currency: g.pricing.Currency()}, nil
}

// Generate validates req, checks the budget, calls the provider and charges
// the ledger on success. Budget and validation failures never reach the
// provider; a failed provider call is never charged.
func (g *Generator) Generate(ctx context.Context, req model.GenerateRequest) (*model.GenerateResult, error) {
	if g.guard.IsAlreadyLimited(ctx) {
		g.metrics.RecordRejection(metrics.ReasonBudgetExhausted)
		return nil, &BudgetExceededError{Status: g.Status(ctx)}
	}

	params, err := req.Validate()
	if err != nil {
		g.metrics.RecordRejection(metrics.ReasonValidation)
		return nil, err
	}

	price, err := g.pricing.Price(params.Quality)
	if err != nil {
		return nil, fmt.Errorf("price lookup: %w", err)
	}

	if g.guard.WouldExceed(ctx, price) {
		g.metrics.RecordRejection(metrics.ReasonBudgetPreflight)
		status := g.Status(ctx)
		projected := decimal.NewFromFloat(status.Spent).Add(decimal.NewFromFloat(price)).Round(2)
		g.logger.Warn("generation rejected by budget",
			"quality", params.Quality,
			"cost", price,
			"spent", status.Spent,
			"limit", status.Limit,
		)
		return nil, &BudgetExceededError{
			Status:    status,
			Preflight: true,
			Cost:      price,
			Projected: projected.InexactFloat64(),
		}
	}

	if g.provider == nil {
		return nil, errors.New("no image provider configured")
	}

	start := time.Now()
	img, err := g.provider.GenerateImage(ctx, providers.ImageRequest{
		Prompt:  req.Prompt,
		Size:    params.Size,
		Quality: params.Quality,
		Style:   params.Style,
	})
	if err != nil {
		code := "unknown"
		var perr *providers.ProviderError
		if errors.As(err, &perr) {
			code = perr.Code
		}
		g.metrics.RecordProviderCall(time.Since(start), code)
		g.logger.Error("image generation failed",
			"provider", g.provider.Name(),
			"code", code,
			"error", err,
		)
		return nil, err
	}
	g.metrics.RecordProviderCall(time.Since(start), "")

	// The image exists and was billed; record it even if the caller has gone.
	status := g.guard.Record(context.WithoutCancel(ctx), price)
	promptTokens := tokenizer.CountTokens(req.Prompt)
	g.metrics.RecordGeneration(string(params.Quality), string(params.Size))
	g.metrics.RecordPromptTokens(promptTokens)
	g.metrics.UpdateBudget(status.Spent, status.Percentage)

	g.logger.Info("image generated",
		"provider", g.provider.Name(),
		"size", params.Size,
		"quality", params.Quality,
		"style", params.Style,
		"prompt_tokens_approx", promptTokens,
		"cost_usd", price,
		"month_spent", status.Spent,
		"month_limit", status.Limit,
	)

	return &model.GenerateResult{
		Image: model.GeneratedImage{
			URL:            img.URL,
			RevisedPrompt:  img.RevisedPrompt,
			OriginalPrompt: req.Prompt,
			Parameters:     params,
			Cost:           price,
			Timestamp:      img.Created,
		},
		CostStatus: status,
	}, nil
}
