// ABOUTME: OpenAI client that suggests personality buckets for unmapped tags
// ABOUTME: Uses gpt-4o-mini by default (configurable) with retry and backoff
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/harper/contact-compass/internal/util"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gpt-4o-mini"
	// DefaultBatchSize is how many tags go into one completion request
	DefaultBatchSize = 50
	// Unplaced marks a tag the model could not map to a known bucket
	Unplaced = "To Be Classified"
)

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	BatchSize  int
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:     apiKey,
		ChatModel:  DefaultChatModel,
		MaxRetries: 3,
		RetryDelay: time.Second * 2,
		Timeout:    30 * time.Second,
		BatchSize:  DefaultBatchSize,
	}
}

// Suggestion is one proposed reference table row
type Suggestion struct {
	Tag    string  `json:"tag"`
	Bucket string  `json:"bucket"`
	Weight float64 `json:"weight"`
}

// OpenAIClient wraps the OpenAI API client with retry logic
type OpenAIClient struct {
	client     *openai.Client
	chatModel  string
	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
	batchSize  int
}

// NewOpenAIClient creates a new OpenAI client with the given API key using default configuration
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithConfig(DefaultConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom configuration
func NewOpenAIClientWithConfig(config *ClientConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	oc := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		oc.BaseURL = config.BaseURL
	}

	c := &OpenAIClient{
		client:     openai.NewClientWithConfig(oc),
		chatModel:  config.ChatModel,
		maxRetries: config.MaxRetries,
		retryDelay: config.RetryDelay,
		timeout:    config.Timeout,
		batchSize:  config.BatchSize,
	}
	if c.chatModel == "" {
		c.chatModel = DefaultChatModel
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultBatchSize
	}
	return c, nil
}

const suggestPrompt = `You map contact tags from a marketing CRM to personality buckets.
You are given the list of allowed buckets and a list of tags.
For every tag choose exactly one allowed bucket, or "To Be Classified" when none fits.
Give each tag a weight from 1 (weak signal) to 3 (strong signal).

Return ONLY a JSON object: {"suggestions": [{"tag": "...", "bucket": "...", "weight": 1}]}`

// SuggestBuckets asks the model to place each tag in one of buckets. Tags the
// model skips or maps outside buckets come back as Unplaced.
func (c *OpenAIClient) SuggestBuckets(ctx context.Context, tags, buckets []string) ([]Suggestion, error) {
	if len(buckets) == 0 {
		return nil, errors.New("no personality buckets to choose from")
	}
	allowed := make(map[string]string, len(buckets))
	for _, b := range buckets {
		allowed[strings.ToLower(b)] = b
	}

	var out []Suggestion
	for start := 0; start < len(tags); start += c.batchSize {
		end := min(start+c.batchSize, len(tags))
		batch := tags[start:end]

		raw, err := c.complete(ctx, batch, buckets)
		if err != nil {
			return nil, err
		}
		out = append(out, reconcile(batch, raw, allowed)...)
	}
	return out, nil
}

func (c *OpenAIClient) complete(ctx context.Context, tags, buckets []string) ([]Suggestion, error) {
	userPrompt := fmt.Sprintf("Allowed buckets:\n- %s\n\nTags:\n- %s",
		strings.Join(buckets, "\n- "), strings.Join(tags, "\n- "))

	var suggestions []Suggestion
	err := util.Retry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: suggestPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userPrompt,
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
			Temperature:    0.1,
		})
		if err != nil {
			var apiErr *openai.APIError
			if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 401 {
				return util.Permanent(err)
			}
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("no completion choices returned")
		}

		var parsed struct {
			Suggestions []Suggestion `json:"suggestions"`
		}
		if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
		suggestions = parsed.Suggestions
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to suggest buckets: %w", err)
	}
	return suggestions, nil
}

// reconcile returns one suggestion per requested tag, in tag order
func reconcile(tags []string, raw []Suggestion, allowed map[string]string) []Suggestion {
	byTag := make(map[string]Suggestion, len(raw))
	for _, s := range raw {
		byTag[strings.ToLower(strings.TrimSpace(s.Tag))] = s
	}

	out := make([]Suggestion, 0, len(tags))
	for _, tag := range tags {
		s := Suggestion{Tag: tag, Bucket: Unplaced, Weight: 1}
		if got, ok := byTag[strings.ToLower(strings.TrimSpace(tag))]; ok {
			if bucket, known := allowed[strings.ToLower(strings.TrimSpace(got.Bucket))]; known {
				s.Bucket = bucket
			}
			if got.Weight > 0 {
				s.Weight = got.Weight
			}
		}
		out = append(out, s)
	}
	return out
}
