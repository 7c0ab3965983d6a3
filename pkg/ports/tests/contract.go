package tests

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports"
)

// RecognizerContractTest is a reusable test suite that verifies if a trained
// recognizer complies with ports.Recognizer.
//
// known maps inputs to the intent they must be recognized as; unknown is an
// input no intent matches.
func RecognizerContractTest(t *testing.T, r ports.Recognizer, known map[string]*domain.EventDefinition, unknown string) {
	t.Helper()
	ctx := context.Background()

	t.Run("Recognize_Known", func(t *testing.T) {
		for input, want := range known {
			ev, err := r.Recognize(ctx, input, nil)
			if err != nil {
				t.Fatalf("unexpected error recognizing %q: %v", input, err)
			}
			if ev.Definition != want {
				t.Errorf("input %q recognized as %s, want %s", input, ev.Name(), want.QualifiedName())
			}
			if ev.Input != input {
				t.Errorf("event input = %q, want %q", ev.Input, input)
			}
		}
	})

	t.Run("Recognize_Unknown", func(t *testing.T) {
		ev, err := r.Recognize(ctx, unknown, nil)
		if err != nil {
			t.Fatalf("unmatched input must not fail, got %v", err)
		}
		if !ev.IsFallback() {
			t.Errorf("expected fallback intent for %q, got %s", unknown, ev.Name())
		}
	})

	t.Run("Recognize_Concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, len(known)*8)
		for i := 0; i < 8; i++ {
			for input := range known {
				wg.Add(1)
				go func(input string) {
					defer wg.Done()
					if _, err := r.Recognize(ctx, input, nil); err != nil {
						errs <- err
					}
				}(input)
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("concurrent recognize failed: %v", err)
		}
	})

	if r.Name() == "" {
		t.Error("recognizer must expose a name")
	}
}
