// internal/fallback/fallback.go
package fallback

import (
	"context"
	"errors"
	"fmt"
)

// ErrSkip tells the chain that a strategy does not apply to the input
var ErrSkip = errors.New("strategy not applicable")

// ErrExhausted is returned when no strategy succeeded
var ErrExhausted = errors.New("all strategies failed")

// Strategy is one named attempt in an ordered chain
type Strategy[In, Out any] struct {
	Name string
	Try  func(ctx context.Context, in In) (Out, error)
}

// Attempt records the outcome of a single strategy
type Attempt struct {
	Name    string
	Skipped bool
	Err     error
}

// Result is the outcome of running a chain
type Result[Out any] struct {
	Value    Out
	Winner   string
	Attempts []Attempt
}

// Chain tries strategies in order until one succeeds
type Chain[In, Out any] struct {
	strategies []Strategy[In, Out]
}

// NewChain creates a chain from the given strategies
func NewChain[In, Out any](strategies ...Strategy[In, Out]) *Chain[In, Out] {
	return &Chain[In, Out]{strategies: strategies}
}

// Names returns the strategy names in execution order
func (c *Chain[In, Out]) Names() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name
	}
	return names
}

// Run executes the chain. The first strategy returning a nil error wins.
// When all fail, the returned error wraps ErrExhausted and the last real failure.
func (c *Chain[In, Out]) Run(ctx context.Context, in In) (Result[Out], error) {
	var result Result[Out]
	var lastErr error

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		out, err := s.Try(ctx, in)
		if err == nil {
			result.Value = out
			result.Winner = s.Name
			result.Attempts = append(result.Attempts, Attempt{Name: s.Name})
			return result, nil
		}

		skipped := errors.Is(err, ErrSkip)
		result.Attempts = append(result.Attempts, Attempt{Name: s.Name, Skipped: skipped, Err: err})
		if !skipped {
			lastErr = fmt.Errorf("%s: %w", s.Name, err)
		}
	}

	if lastErr == nil {
		return result, ErrExhausted
	}
	return result, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}
