package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	azureDefaultDeployment = "dall-e-3"
	azureDefaultTimeout    = 120 * time.Second
	maxResponseBody        = 1 << 20
)

// AzureConfig holds Azure OpenAI connection settings.
type AzureConfig struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Deployment string
	Timeout    time.Duration
}

// AzureOpenAI calls an Azure OpenAI DALL-E deployment.
type AzureOpenAI struct {
	endpoint   string
	apiKey     string
	apiVersion string
	deployment string
	client     *http.Client
}

// NewAzureOpenAI creates an Azure OpenAI image provider.
func NewAzureOpenAI(cfg AzureConfig) (*AzureOpenAI, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("azure openai: endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("azure openai: api key is required")
	}
	if cfg.APIVersion == "" {
		return nil, errors.New("azure openai: api version is required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("azure openai: invalid endpoint: %w", err)
	}

	deployment := cfg.Deployment
	if deployment == "" {
		deployment = azureDefaultDeployment
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = azureDefaultTimeout
	}

	return &AzureOpenAI{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		deployment: deployment,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (p *AzureOpenAI) Name() string { return "azure-openai" }

func (p *AzureOpenAI) Deployment() string { return p.deployment }

func (p *AzureOpenAI) generationsURL() string {
	return fmt.Sprintf("%s/openai/deployments/%s/images/generations?api-version=%s",
		p.endpoint, url.PathEscape(p.deployment), url.QueryEscape(p.apiVersion))
}

type azureImageRequest struct {
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	Style   string `json:"style"`
	N       int    `json:"n"`
}

// GenerateImage requests exactly one image. It is never retried.
func (p *AzureOpenAI) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	body, err := json.Marshal(azureImageRequest{
		Prompt:  req.Prompt,
		Size:    string(req.Size),
		Quality: string(req.Quality),
		Style:   string(req.Style),
		N:       1,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal image request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.generationsURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Code: "transport", Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Code: "transport", Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAzureError(resp.StatusCode, data)
	}

	imageURL := gjson.GetBytes(data, "data.0.url").String()
	if imageURL == "" {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Code:       "empty_response",
			Message:    "image provider returned no image",
		}
	}

	return &Image{
		URL:           imageURL,
		RevisedPrompt: gjson.GetBytes(data, "data.0.revised_prompt").String(),
		Created:       gjson.GetBytes(data, "created").Int(),
	}, nil
}

// parseAzureError extracts {"error": {"code", "message"}} from a failed call.
func parseAzureError(status int, data []byte) *ProviderError {
	perr := &ProviderError{
		StatusCode: status,
		Code:       gjson.GetBytes(data, "error.code").String(),
		Message:    gjson.GetBytes(data, "error.message").String(),
	}
	if perr.Code == "" {
		perr.Code = fmt.Sprintf("http_%d", status)
	}
	if perr.Message == "" {
		perr.Message = fmt.Sprintf("image provider returned status %d", status)
	}
	return perr
}
