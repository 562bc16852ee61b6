// Package llm abstracts the text generation backend.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the generation backend could not be reached or
// refused the request. Implementations wrap it; match with errors.Is.
var ErrUnavailable = errors.New("generation backend unavailable")

// Generator produces free-form text for a prompt. An empty string with a
// nil error is a valid completion; callers must tolerate it. A context
// error is returned as-is so callers can distinguish timeouts from
// backend failures.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
