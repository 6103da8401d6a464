package ai

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/waftester/greenapi/pkg/defaults"
)

// GeminiBaseURL is the public Gemini API endpoint.
const GeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiClient calls the Gemini generateContent API and asks for a JSON
// answer.
type GeminiClient struct {
	*restClient
	apiKey  string
	model   string
	baseURL string
}

// NewGeminiClient creates a Gemini client. An API key is required.
func NewGeminiClient(cfg Config, opts ...Option) (*GeminiClient, error) {
	rc, err := newRestClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	c := &GeminiClient{
		restClient: rc,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
	if c.model == "" {
		c.model = defaults.GeminiModel
	}
	if c.baseURL == "" {
		c.baseURL = GeminiBaseURL
	}
	return c, nil
}

// Name implements Generator.
func (c *GeminiClient) Name() string { return "Gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string  `json:"responseMimeType"`
		Temperature      float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// Generate implements Generator.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	var in geminiRequest
	in.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}
	in.GenerationConfig.ResponseMimeType = "application/json"
	in.GenerationConfig.Temperature = 0.2

	endpoint := c.baseURL + "/v1beta/models/" + url.PathEscape(c.model) + ":generateContent"
	header := http.Header{}
	header.Set("x-goog-api-key", c.apiKey)

	var out geminiResponse
	if err := c.postJSON(ctx, endpoint, header, &in, &out); err != nil {
		return "", err
	}
	for _, cand := range out.Candidates {
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
		if b.Len() > 0 {
			return b.String(), nil
		}
	}
	return "", ErrEmptyResponse
}
