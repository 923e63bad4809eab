package modelgateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	inferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "feedforge",
		Subsystem: "gateway",
		Name:      "infer_duration_seconds",
		Help:      "Duration of model inference requests",
	}, []string{"model"})

	inferFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedforge",
		Subsystem: "gateway",
		Name:      "infer_failures_total",
		Help:      "Number of failed model inference requests",
	}, []string{"model", "kind"})
)

// OpenAIConfig defines configuration options for the OpenAI-compatible gateway.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIGateway implements Gateway against an OpenAI-compatible chat completion API.
type OpenAIGateway struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGateway builds a gateway using the provided configuration.
func NewOpenAIGateway(cfg OpenAIConfig) (*OpenAIGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIGateway{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/evalforge/feedback-api/pkg/modelgateway"),
		logger: logger,
	}, nil
}

// Infer sends the prompt to the configured endpoint and returns the generated text.
// Every failure is classified so the caller can persist a decided outcome.
func (g *OpenAIGateway) Infer(parent context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(parent, g.cfg.Timeout)
	defer cancel()

	ctx, span := g.tracer.Start(ctx, "gateway.infer", trace.WithAttributes(
		attribute.String("model", req.ModelID),
		attribute.String("endpoint", req.EndpointName),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       req.ModelID,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages:    buildMessages(req),
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, request)
	elapsed := time.Since(start)
	inferDuration.WithLabelValues(req.ModelID).Observe(elapsed.Seconds())

	if err != nil {
		kind := classifyOpenAIError(err)
		inferFailures.WithLabelValues(req.ModelID, string(kind)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		return Result{}, &Error{Kind: kind, Detail: err.Error()}
	}

	if len(resp.Choices) == 0 {
		err := &Error{Kind: FailureRejected, Detail: "no choices returned"}
		inferFailures.WithLabelValues(req.ModelID, string(FailureRejected)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Detail)
		return Result{}, err
	}

	return Result{
		Content:          strings.TrimSpace(resp.Choices[0].Message.Content),
		TokensUsed:       resp.Usage.TotalTokens,
		ProcessingTimeMs: int(elapsed.Milliseconds()),
	}, nil
}

// ValidateModel checks the model catalogue for the requested model identifier.
// The models API does not expose versions, so only the identifier is matched.
func (g *OpenAIGateway) ValidateModel(ctx context.Context, modelID, _ string) (bool, error) {
	list, err := g.client.ListModels(ctx)
	if err != nil {
		return false, fmt.Errorf("list models: %w", err)
	}

	for _, model := range list.Models {
		if model.ID == modelID {
			return true, nil
		}
	}

	return false, nil
}

func buildMessages(req Request) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system, ok := req.Context["system"].(string); ok && strings.TrimSpace(system) != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	return messages
}

func classifyOpenAIError(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 {
			return FailureRejected
		}
	}

	return FailureUnavailable
}
