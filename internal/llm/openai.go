package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("llm/openai")

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIConfig configures the OpenAI completer.
type OpenAIConfig struct {
	APIKey           string
	BaseURL          string // optional, for proxies and compatible gateways
	Model            string
	Temperature      float64
	MaxTokens        int
	PresencePenalty  float32
	FrequencyPenalty float32
}

// OpenAI implements Completer with the Chat Completions API.
type OpenAI struct {
	client chatClient
	cfg    OpenAIConfig
}

// NewOpenAI builds a client from cfg. Presence and frequency penalties
// default to 0.6 and 0.5 to keep the agent from repeating itself.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return newOpenAI(openai.NewClientWithConfig(oc), cfg)
}

func newOpenAI(client chatClient, cfg OpenAIConfig) *OpenAI {
	if client == nil {
		panic("llm: chat client cannot be nil")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4-turbo-preview"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.PresencePenalty == 0 {
		cfg.PresencePenalty = 0.6
	}
	if cfg.FrequencyPenalty == 0 {
		cfg.FrequencyPenalty = 0.5
	}
	return &OpenAI{client: client, cfg: cfg}
}

// Complete sends messages in order and returns the first choice.
func (o *OpenAI) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	ctx, span := tracer.Start(ctx, "Complete")
	defer span.End()

	temperature := o.cfg.Temperature
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}
	maxTokens := o.cfg.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}

	req := openai.ChatCompletionRequest{
		Model:            o.cfg.Model,
		Messages:         make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature:      float32(temperature),
		MaxTokens:        maxTokens,
		PresencePenalty:  o.cfg.PresencePenalty,
		FrequencyPenalty: o.cfg.FrequencyPenalty,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	span.SetAttributes(
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.messages", len(req.Messages)),
	)

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return nil, fmt.Errorf("llm: create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, "no choices")
		return nil, ErrEmptyCompletion
	}

	span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))
	return &Completion{
		Content:      resp.Choices[0].Message.Content,
		TokensUsed:   resp.Usage.TotalTokens,
		FinishReason: string(resp.Choices[0].FinishReason),
		Model:        resp.Model,
	}, nil
}
