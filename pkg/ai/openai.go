package ai

import (
	"context"
	"net/http"
	"strings"
)

// OpenAIBaseURL is the public OpenAI API endpoint. Any server exposing the
// chat completions API, such as Ollama, can be used through Config.BaseURL.
const OpenAIBaseURL = "https://api.openai.com"

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient calls an OpenAI-compatible chat completions API in JSON mode.
type OpenAIClient struct {
	*restClient
	apiKey  string
	model   string
	baseURL string
}

// NewOpenAIClient creates an OpenAI-compatible client. An API key is required.
func NewOpenAIClient(cfg Config, opts ...Option) (*OpenAIClient, error) {
	rc, err := newRestClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	c := &OpenAIClient{
		restClient: rc,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
	if c.model == "" {
		c.model = defaultOpenAIModel
	}
	if c.baseURL == "" {
		c.baseURL = OpenAIBaseURL
	}
	return c, nil
}

// Name implements Generator.
func (c *OpenAIClient) Name() string { return "OpenAI" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate implements Generator.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	in := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	}
	in.ResponseFormat.Type = "json_object"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	var out chatResponse
	if err := c.postJSON(ctx, c.baseURL+"/v1/chat/completions", header, &in, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}
