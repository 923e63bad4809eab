package modelgateway

import (
	"context"
	"errors"
	"fmt"
)

// Request carries one prompt to a named model endpoint.
type Request struct {
	ModelID      string
	ModelVersion string
	EndpointName string
	Prompt       string
	Context      map[string]interface{}
}

// Result is the generated output plus token and timing metadata.
type Result struct {
	Content          string
	TokensUsed       int
	ProcessingTimeMs int
	Confidence       *float64
}

// FailureKind classifies gateway failures so callers can persist a decided outcome.
type FailureKind string

const (
	// FailureTimeout indicates the inference call exceeded its deadline.
	FailureTimeout FailureKind = "timeout"
	// FailureUnavailable indicates the upstream service could not be reached.
	FailureUnavailable FailureKind = "unavailable"
	// FailureRejected indicates the upstream rejected the request.
	FailureRejected FailureKind = "rejected"
)

// Error is a structured gateway failure.
type Error struct {
	Kind   FailureKind
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("model gateway %s: %s", e.Kind, e.Detail)
}

// Classify extracts the failure kind from an error chain, defaulting to unavailable.
func Classify(err error) FailureKind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	return FailureUnavailable
}

// Gateway sends prompts to a model endpoint and returns generated text or a
// structured failure. Implementations must honour the context deadline.
type Gateway interface {
	Infer(ctx context.Context, req Request) (Result, error)
}

// Registry resolves model identifiers against the deployed model catalogue.
type Registry interface {
	ValidateModel(ctx context.Context, modelID, modelVersion string) (bool, error)
}
