package llm

import (
	"context"
	"fmt"
)

// TextGenerator turns a prompt into generated text. When strictJSON is set the
// backend is asked for a JSON object if it can constrain its output; backends
// that cannot still return free text, so callers parse defensively.
//
// Implementations do not retry. A failed call is reported once as a
// *GatewayError and the caller decides what happens next.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, strictJSON bool) (string, error)
	Backend() string
}

// GatewayError reports a network failure, a non-success status or an error
// returned by the generation backend.
type GatewayError struct {
	Backend string
	Cause   error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Backend, e.Cause)
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

func gatewayError(backend string, format string, args ...any) *GatewayError {
	return &GatewayError{Backend: backend, Cause: fmt.Errorf(format, args...)}
}
