package understanding

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	cfg "github.com/wpliao1997/estimation-validator/config"
	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/internal/schema"
	"github.com/wpliao1997/estimation-validator/internal/validation"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

// Client is the language-understanding service boundary: best-effort field
// mapping of raw extraction output into the target schema shape, and
// natural-language payment condition parsing.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      logger.Logger
}

func NewClient(log logger.Logger) *Client {
	env := cfg.GetOpenAIConfig()

	clientCfg := openai.DefaultConfig(env.APIKey)
	if env.BaseURL != "" {
		clientCfg.BaseURL = env.BaseURL
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       env.Model,
		temperature: 0.1,
		timeout:     60 * time.Second,
		logger:      log,
	}
}

const mapFieldsSystemPrompt = `You map OCR output from government construction
payment estimation documents into a JSON object matching the given schema.
Use null for fields you cannot find. Keep numbers as numbers and dates as
strings. Respond with the JSON object only.`

// MapFields asks the model to map the raw extraction into the target schema
// shape. The result is an untyped mapping; normalization and schema
// validation happen downstream.
func (c *Client) MapFields(ctx context.Context, raw *models.RawExtraction, target *schema.Schema) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	schemaJSON, err := json.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal target schema: %w", err)
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extraction: %w", err)
	}

	content, err := c.complete(ctx, mapFieldsSystemPrompt, fmt.Sprintf(
		"Schema:\n%s\n\nExtraction output:\n%s", schemaJSON, payload))
	if err != nil {
		return nil, err
	}

	var mapped map[string]any
	if err := json.Unmarshal([]byte(content), &mapped); err != nil {
		return nil, fmt.Errorf("field mapping response is not valid JSON: %w", err)
	}

	c.logger.Info("field mapping completed",
		logger.Int("fields", len(mapped)),
	)
	return mapped, nil
}

const parseConditionSystemPrompt = `You parse payment trigger conditions from
construction contracts. Respond with a JSON object:
{"trigger_type": "progress"|"time"|"milestone"|"acceptance"|"unknown",
 "threshold": number or null, "payment_phase": integer or null,
 "conditions": [strings]}`

// ParseConditionText implements validation.ConditionParser: the LLM parsing
// strategy. It must yield the same shape as the pattern fallback.
func (c *Client) ParseConditionText(ctx context.Context, text string) (validation.ParsedPaymentCondition, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	content, err := c.complete(ctx, parseConditionSystemPrompt, text)
	if err != nil {
		return validation.ParsedPaymentCondition{}, err
	}

	var parsed struct {
		TriggerType  string   `json:"trigger_type"`
		Threshold    *float64 `json:"threshold"`
		PaymentPhase *int     `json:"payment_phase"`
		Conditions   []string `json:"conditions"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return validation.ParsedPaymentCondition{}, fmt.Errorf("condition response is not valid JSON: %w", err)
	}

	trigger := validation.TriggerType(parsed.TriggerType)
	switch trigger {
	case validation.TriggerProgress, validation.TriggerTime,
		validation.TriggerMilestone, validation.TriggerAcceptance:
	default:
		trigger = validation.TriggerUnknown
	}

	return validation.ParsedPaymentCondition{
		OriginalText: text,
		TriggerType:  trigger,
		Threshold:    parsed.Threshold,
		PaymentPhase: parsed.PaymentPhase,
		Conditions:   parsed.Conditions,
	}, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
