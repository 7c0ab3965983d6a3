package monitor

import (
	"context"
	"errors"

	"github.com/aretw0/colloquy/pkg/ports"
)

// Multi fans every record out to several monitors.
type Multi []ports.Monitor

// Observe forwards rec to every monitor in order.
func (m Multi) Observe(ctx context.Context, rec ports.RecognitionRecord) {
	for _, mon := range m {
		mon.Observe(ctx, rec)
	}
}

// Close closes every monitor and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, mon := range m {
		if err := mon.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
