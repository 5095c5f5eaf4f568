package pricing

import (
	"fmt"
	"os"

	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/model"
	"gopkg.in/yaml.v3"
)

// DefaultCurrency is the currency all prices are quoted in.
const DefaultCurrency = "USD"

// TierPricing is the per-image price of one quality tier.
type TierPricing struct {
	Quality       model.Quality `yaml:"quality"`
	PricePerImage float64       `yaml:"price_per_image"`
}

// File is the on-disk YAML pricing layout.
type File struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	Updated  string        `yaml:"updated"`
	Currency string        `yaml:"currency"`
	Tiers    []TierPricing `yaml:"tiers"`
}

// Table maps quality tiers to fixed per-image prices. It is read-only after
// construction.
type Table struct {
	currency string
	prices   map[model.Quality]float64
}

// Default returns the DALL-E 3 list prices.
func Default() *Table {
	return &Table{
		currency: DefaultCurrency,
		prices: map[model.Quality]float64{
			model.QualityStandard: 0.04,
			model.QualityHD:       0.08,
		},
	}
}

// LoadFile reads a YAML pricing file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file %s: %w", path, err)
	}

	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("pricing file %s: %w", path, err)
	}
	return t, nil
}

// Parse builds a Table from raw YAML. Every known quality tier must be priced.
func Parse(data []byte) (*Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse pricing data: %w", err)
	}

	t := &Table{
		currency: f.Currency,
		prices:   make(map[model.Quality]float64, len(f.Tiers)),
	}
	if t.currency == "" {
		t.currency = DefaultCurrency
	}

	for _, tier := range f.Tiers {
		if _, err := model.ParseQuality(string(tier.Quality)); err != nil || tier.Quality == "" {
			return nil, fmt.Errorf("unknown quality tier %q", tier.Quality)
		}
		if tier.PricePerImage < 0 {
			return nil, fmt.Errorf("negative price for tier %q", tier.Quality)
		}
		t.prices[tier.Quality] = tier.PricePerImage
	}

	for _, q := range model.Qualities {
		if _, ok := t.prices[q]; !ok {
			return nil, fmt.Errorf("missing price for tier %q", q)
		}
	}
	return t, nil
}

// Price returns the per-image price of a quality tier.
func (t *Table) Price(q model.Quality) (float64, error) {
	p, ok := t.prices[q]
	if !ok {
		return 0, fmt.Errorf("no price for quality %q", q)
	}
	return p, nil
}

// Currency returns the ISO currency code of the table.
func (t *Table) Currency() string {
	return t.currency
}

// Tiers returns the priced tiers in display order.
func (t *Table) Tiers() []TierPricing {
	tiers := make([]TierPricing, 0, len(model.Qualities))
	for _, q := range model.Qualities {
		if p, ok := t.prices[q]; ok {
			tiers = append(tiers, TierPricing{Quality: q, PricePerImage: p})
		}
	}
	return tiers
}
