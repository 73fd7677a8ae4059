// Package extract turns document text into knowledge graph bundles using a
// language model behind an OpenAI-compatible chat API.
//
// The extractor is deliberately forgiving about model output: responses run
// through JSON repair, schema violations trigger a corrective re-prompt,
// and persistent garbage degrades to an empty bundle rather than an error.
// Only transport failures surface to the caller.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/soundprediction/sentinel/pkg/config"
	"github.com/soundprediction/sentinel/pkg/types"
)

// maxSchemaRetries bounds the corrective re-prompts after malformed output.
const maxSchemaRetries = 2

// Extractor produces a fact bundle from plain text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*types.Bundle, error)
}

// LLMExtractor implements Extractor against an OpenAI-compatible service.
type LLMExtractor struct {
	client *openai.Client
	cfg    config.ModelConfig
	logger *slog.Logger
}

// NewLLMExtractor creates an extractor for the configured model.
// Supports OpenAI-compatible services through custom BaseURL configuration.
func NewLLMExtractor(cfg config.ModelConfig, logger *slog.Logger) (*LLMExtractor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var client *openai.Client
	if cfg.BaseURL != "" {
		if err := validateBaseURL(cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}

		apiKey := cfg.APIKey
		// Use dummy API key if none provided (some services don't require authentication)
		if apiKey == "" {
			apiKey = "dummy-key"
		}

		clientConfig := openai.DefaultConfig(apiKey)
		clientConfig.BaseURL = cfg.BaseURL

		// Many services expect "/v1" to be appended to the base URL
		if !hasAPIPath(cfg.BaseURL) {
			clientConfig.BaseURL = cfg.BaseURL + "/v1"
		}

		client = openai.NewClientWithConfig(clientConfig)
	} else {
		client = openai.NewClient(cfg.APIKey)
	}

	if cfg.Name == "" {
		cfg.Name = "gpt-4o-mini"
	}

	return &LLMExtractor{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Extract implements Extractor. Text beyond the configured character budget
// is truncated before the call.
func (e *LLMExtractor) Extract(ctx context.Context, text string) (*types.Bundle, error) {
	if e.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: extractionSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: e.userPrompt(text)},
	}

	var lastParseErr error
	for attempt := 0; attempt <= maxSchemaRetries; attempt++ {
		content, err := e.chat(ctx, messages)
		if err != nil {
			return nil, NewExtractError("model call failed", err)
		}

		bundle, parseErr := parseBundle(content)
		if parseErr == nil {
			return bundle, nil
		}
		lastParseErr = parseErr

		e.logger.Warn("extraction output failed validation, re-prompting",
			"attempt", attempt+1, "error", parseErr)

		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: correctiveReminder},
		)
	}

	e.logger.Warn("extraction gave up after repeated schema failures, returning empty bundle",
		"error", lastParseErr)
	return &types.Bundle{Nodes: []*types.Node{}, Edges: []*types.Edge{}}, nil
}

func (e *LLMExtractor) chat(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       e.cfg.Name,
		Messages:    messages,
		Temperature: e.cfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if e.cfg.MaxTokens > 0 {
		req.MaxTokens = e.cfg.MaxTokens
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from model")
	}

	return resp.Choices[0].Message.Content, nil
}

func (e *LLMExtractor) userPrompt(text string) string {
	text = truncate(text, e.cfg.MaxChars)
	prompt := "Extract the knowledge graph from this text:\n\n" + text
	// Add instruction for JSON output for OpenAI-compatible services
	if e.cfg.BaseURL != "" {
		prompt += "\n\nPlease respond with valid JSON only."
	}
	return prompt
}

// truncate cuts text to at most max characters on a rune boundary. A max of
// zero or less means no limit.
func truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

// validateBaseURL validates the base URL format.
func validateBaseURL(baseURL string) error {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid baseURL format: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("baseURL must use http:// or https:// scheme")
	}
	return nil
}

// hasAPIPath checks if the base URL already includes an API path component.
func hasAPIPath(baseURL string) bool {
	commonPaths := []string{"/v1", "/api", "/v1/", "/api/"}
	for _, path := range commonPaths {
		if len(baseURL) >= len(path) && baseURL[len(baseURL)-len(path):] == path {
			return true
		}
	}
	return false
}
