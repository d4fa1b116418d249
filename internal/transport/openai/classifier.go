package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/knowmaps/internal/domain/intent"
	"github.com/kailas-cloud/knowmaps/internal/metrics"
)

const classifierPrompt = `You classify short place-search captions.
Reply with one JSON object and nothing else:
{"kind": "search|place|autocomplete_taste|location|define",
 "categories": [string], "tastes": [string],
 "min_price": 1-4 or null, "max_price": 1-4 or null,
 "open_at": "DOWTHHMM" or "", "open_now": bool,
 "place_name": string, "location_description": string,
 "confidence": 0..1}
Use "place" when the caption names one specific venue, "location" when it
names a neighborhood or city to search in, "autocomplete_taste" for a bare
style or taste fragment, "define" for a question about what something is,
and "search" otherwise.`

// Classifier is an IntentClassifier backed by a JSON-mode chat completion.
type Classifier struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewClassifier creates a chat-completion intent classifier.
func NewClassifier(cfg *Config) *Classifier {
	return &Classifier{
		client: newClient(cfg),
		model:  cfg.Model,
		logger: cfg.Logger.With(zap.String("component", "openai_classifier")),
	}
}

type classification struct {
	Kind                string   `json:"kind"`
	Categories          []string `json:"categories"`
	Tastes              []string `json:"tastes"`
	MinPrice            *int     `json:"min_price"`
	MaxPrice            *int     `json:"max_price"`
	OpenAt              string   `json:"open_at"`
	OpenNow             bool     `json:"open_now"`
	PlaceName           string   `json:"place_name"`
	LocationDescription string   `json:"location_description"`
	Confidence          float64  `json:"confidence"`
}

// Classify implements search.IntentClassifier.
func (c *Classifier) Classify(ctx context.Context, caption string) (intent.Classification, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierPrompt},
			{Role: openai.ChatMessageRoleUser, Content: caption},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0,
	})
	metrics.ProviderRequestDuration.WithLabelValues("openai", "classify").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("openai", "classify", "error").Inc()
		return intent.Classification{}, fmt.Errorf("classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		metrics.ProviderRequestsTotal.WithLabelValues("openai", "classify", "empty").Inc()
		return intent.Classification{}, errors.New("classify: empty completion")
	}

	out, err := parseClassification(resp.Choices[0].Message.Content)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("openai", "classify", "invalid").Inc()
		return intent.Classification{}, err
	}
	metrics.ProviderRequestsTotal.WithLabelValues("openai", "classify", "success").Inc()
	c.logger.Debug("Caption classified",
		zap.String("kind", string(out.Kind)),
		zap.Float64("confidence", out.Hints.Confidence),
	)
	return out, nil
}

func parseClassification(content string) (intent.Classification, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimSuffix(strings.TrimPrefix(content, "```"), "```")

	var raw classification
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return intent.Classification{}, fmt.Errorf("decode classification: %w", err)
	}
	kind, err := intent.ParseKind(raw.Kind)
	if err != nil {
		return intent.Classification{}, err
	}

	hints := &intent.Hints{
		Categories:          raw.Categories,
		Tastes:              raw.Tastes,
		OpenAt:              raw.OpenAt,
		OpenNow:             raw.OpenNow,
		PlaceName:           strings.TrimSpace(raw.PlaceName),
		LocationDescription: strings.TrimSpace(raw.LocationDescription),
		Confidence:          min(max(raw.Confidence, 0), 1),
	}
	if raw.MinPrice != nil || raw.MaxPrice != nil {
		lo, hi := 1, 4
		if raw.MinPrice != nil {
			lo = *raw.MinPrice
		}
		if raw.MaxPrice != nil {
			hi = *raw.MaxPrice
		}
		pr := intent.NewPriceRange(lo, hi)
		hints.Price = &pr
	}
	return intent.Classification{Kind: kind, Hints: hints}, nil
}
