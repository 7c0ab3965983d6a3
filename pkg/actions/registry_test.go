package actions_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/aretw0/colloquy/pkg/actions"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Execute(t *testing.T) {
	reg := actions.NewRegistry()
	reg.RegisterFunc("double", func(ctx context.Context, params map[string]any) (any, error) {
		return params["n"].(int) * 2, nil
	})

	out, err := reg.Execute(context.Background(), "double", map[string]any{"n": 21})
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	_, err = reg.Execute(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, domain.ErrActionNotFound)
	assert.ErrorContains(t, err, "missing")
}

func TestRegistry_Missing(t *testing.T) {
	reg := actions.NewRegistry(actions.Echo())

	initState := domain.NewState(domain.InitState)
	next := domain.NewState("Next")
	initState.Body = []domain.ActionSpec{{Action: "echo"}}
	initState.Fallback = []domain.ActionSpec{{Action: "apologize"}}
	initState.Transitions = []*domain.Transition{{
		Wildcard: true,
		Target:   next,
		Actions:  []domain.ActionSpec{{Action: "charge"}, {Action: "apologize"}},
	}}

	missing := reg.Missing(&domain.Model{States: []*domain.State{initState, next}})
	assert.Equal(t, []string{"apologize", "charge"}, missing)
	assert.Equal(t, []string{"echo"}, reg.Names())
}

func TestSay_RendersAndWrites(t *testing.T) {
	var out bytes.Buffer
	say := actions.Say(&out)

	got, err := say.Execute(context.Background(), map[string]any{
		"text": "Hello {{.name}}!",
		"name": "Ada",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada!", got)
	assert.Equal(t, "Hello Ada!\n", out.String())
}

func TestSay_InvalidTemplate(t *testing.T) {
	_, err := actions.Say(nil).Execute(context.Background(), map[string]any{"text": "{{.broken"})
	assert.ErrorContains(t, err, "invalid template")
}

func TestEcho(t *testing.T) {
	got, err := actions.Echo().Execute(context.Background(), map[string]any{"value": []int{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
}
