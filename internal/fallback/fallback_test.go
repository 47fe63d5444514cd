// internal/fallback/fallback_test.go
package fallback

import (
	"context"
	"errors"
	"testing"
)

func TestChainStopsAtFirstSuccess(t *testing.T) {
	var order []string
	step := func(name string, err error) Strategy[int, string] {
		return Strategy[int, string]{
			Name: name,
			Try: func(_ context.Context, in int) (string, error) {
				order = append(order, name)
				if err != nil {
					return "", err
				}
				return name, nil
			},
		}
	}

	chain := NewChain(
		step("first", ErrSkip),
		step("second", errors.New("broken")),
		step("third", nil),
		step("fourth", nil),
	)

	res, err := chain.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Winner != "third" || res.Value != "third" {
		t.Errorf("expected third to win, got %q", res.Winner)
	}
	if len(order) != 3 {
		t.Errorf("expected 3 strategies tried, got %v", order)
	}
	if !res.Attempts[0].Skipped || res.Attempts[1].Skipped {
		t.Errorf("unexpected skip flags: %+v", res.Attempts)
	}
}

func TestChainExhausted(t *testing.T) {
	broken := errors.New("broken")
	chain := NewChain(
		Strategy[int, int]{Name: "a", Try: func(context.Context, int) (int, error) { return 0, broken }},
		Strategy[int, int]{Name: "b", Try: func(context.Context, int) (int, error) { return 0, ErrSkip }},
	)

	_, err := chain.Run(context.Background(), 0)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if !errors.Is(err, broken) {
		t.Errorf("expected last real failure to be wrapped, got %v", err)
	}
	if names := chain.Names(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("names = %v", names)
	}
}

func TestChainHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	chain := NewChain(Strategy[int, int]{Name: "a", Try: func(context.Context, int) (int, error) {
		called = true
		return 1, nil
	}})
	if _, err := chain.Run(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("strategy should not run after cancellation")
	}
}
