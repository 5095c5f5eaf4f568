package model

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// MaxPromptLength is the DALL-E 3 prompt limit in characters.
const MaxPromptLength = 4000

// Size is an output image resolution.
type Size string

const (
	SizeSquare    Size = "1024x1024"
	SizeLandscape Size = "1792x1024"
	SizePortrait  Size = "1024x1792"
)

// Quality is a pricing/quality tier.
type Quality string

const (
	QualityStandard Quality = "standard"
	QualityHD       Quality = "hd"
)

// Style is the rendering style requested from the model.
type Style string

const (
	StyleVivid   Style = "vivid"
	StyleNatural Style = "natural"
)

// Allowed values, in display order. The first entry is the default.
var (
	Sizes     = []Size{SizeSquare, SizeLandscape, SizePortrait}
	Qualities = []Quality{QualityStandard, QualityHD}
	Styles    = []Style{StyleVivid, StyleNatural}
)

// ValidationError reports a missing or invalid request field.
type ValidationError struct {
	Field   string
	Allowed []string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Invalid %s. Must be one of: %s", e.Field, strings.Join(e.Allowed, ", "))
}

func enumError[T ~string](field string, allowed []T) *ValidationError {
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return &ValidationError{Field: field, Allowed: names}
}

func parseEnum[T ~string](field, raw string, allowed []T) (T, error) {
	if raw == "" {
		return allowed[0], nil
	}
	v := T(raw)
	if !slices.Contains(allowed, v) {
		return "", enumError(field, allowed)
	}
	return v, nil
}

// ParseSize validates a size, defaulting to 1024x1024.
func ParseSize(raw string) (Size, error) { return parseEnum("size", raw, Sizes) }

// ParseQuality validates a quality tier, defaulting to standard.
func ParseQuality(raw string) (Quality, error) { return parseEnum("quality", raw, Qualities) }

// ParseStyle validates a style, defaulting to vivid.
func ParseStyle(raw string) (Style, error) { return parseEnum("style", raw, Styles) }

// ValidatePrompt checks that a prompt is present and within the model limit.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return &ValidationError{Field: "prompt", Message: "Prompt is required"}
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		return &ValidationError{
			Field:   "prompt",
			Message: fmt.Sprintf("Prompt is too long. Maximum is %d characters", MaxPromptLength),
		}
	}
	return nil
}

// Validate checks every field of the request and returns the normalized
// parameters. N is always 1.
func (r GenerateRequest) Validate() (ImageParams, error) {
	if err := ValidatePrompt(r.Prompt); err != nil {
		return ImageParams{}, err
	}
	size, err := ParseSize(r.Size)
	if err != nil {
		return ImageParams{}, err
	}
	quality, err := ParseQuality(r.Quality)
	if err != nil {
		return ImageParams{}, err
	}
	style, err := ParseStyle(r.Style)
	if err != nil {
		return ImageParams{}, err
	}
	return ImageParams{Size: size, Quality: quality, Style: style, N: 1}, nil
}
