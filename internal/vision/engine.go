// Package vision invokes the external image-understanding model. The model is
// an opaque black box consumed through a fixed contract: an image plus a
// schema-constrained query goes out, untrusted structured output or a typed
// failure comes back.
package vision

import (
	"context"
	"errors"
	"fmt"

	"go-ct-staging/internal/prompt"
	"go-ct-staging/internal/staging"
)

// Payload is the image handed to the model for one invocation.
type Payload struct {
	Data      []byte
	MediaType string
}

// Engine is the narrow interface every model provider implements. Keeping it
// this small lets validation and resolution be tested against deterministic
// stubbed responses, never the live model.
type Engine interface {
	Name() string
	Invoke(ctx context.Context, img Payload, q prompt.ModelQuery) (staging.RawOutput, error)
}

// FailureKind classifies model-invocation failures.
type FailureKind string

const (
	FailureTransport     FailureKind = "transport"
	FailureTimeout       FailureKind = "timeout"
	FailureAuth          FailureKind = "auth"
	FailureQuota         FailureKind = "quota"
	FailureContentPolicy FailureKind = "content_policy"
	FailureMalformed     FailureKind = "malformed_response"
)

// Retryable reports whether another attempt may succeed. Only transient
// transport conditions qualify; auth, quota, content-policy and malformed
// requests propagate immediately.
func (k FailureKind) Retryable() bool {
	return k == FailureTransport || k == FailureTimeout
}

// Failure is a typed model-invocation error.
type Failure struct {
	Kind    FailureKind
	Message string
	Cause   error
}

func NewFailure(kind FailureKind, message string, cause error) *Failure {
	return &Failure{Kind: kind, Message: message, Cause: cause}
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// KindOf extracts the failure kind from an error, classifying plain context
// errors as timeouts and everything else as transport.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureTimeout
	}
	return FailureTransport
}
