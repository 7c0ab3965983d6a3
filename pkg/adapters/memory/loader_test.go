package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/colloquy/pkg/adapters/memory"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_LoadAndWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &domain.Model{Name: "v1"}
	p := memory.NewProvider(first)

	got, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, first, got)

	changes, err := p.Watch(ctx)
	require.NoError(t, err)

	second := &domain.Model{Name: "v2"}
	p.Set(second)

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("expected a change notification")
	}

	got, err = p.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestProvider_NilModel(t *testing.T) {
	_, err := memory.NewProvider(nil).Load(context.Background())
	var nullErr *domain.NullReferenceError
	assert.ErrorAs(t, err, &nullErr)
}
