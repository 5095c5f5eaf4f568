package providers

import (
	"context"
	"fmt"

	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/model"
)

// ImageRequest carries validated generation parameters to a provider.
type ImageRequest struct {
	Prompt  string
	Size    model.Size
	Quality model.Quality
	Style   model.Style
}

// Image is a single generated image as returned by a provider.
type Image struct {
	URL           string
	RevisedPrompt string
	Created       int64 // unix seconds
}

// ImageProvider is the capability to turn a prompt into an image.
type ImageProvider interface {
	// Name returns the provider identifier (e.g., "azure-openai").
	Name() string

	// Deployment returns the configured model deployment name.
	Deployment() string

	// GenerateImage performs one billable generation. Failures are returned
	// as *ProviderError.
	GenerateImage(ctx context.Context, req ImageRequest) (*Image, error)
}

// ProviderError is a failed generation call. Message is the provider's own
// error text when one was returned.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("image provider failed with status %d", e.StatusCode)
	}
	return e.Message
}
