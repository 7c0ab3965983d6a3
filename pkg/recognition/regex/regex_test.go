package regex_test

import (
	"context"
	"testing"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports/tests"
	"github.com/aretw0/colloquy/pkg/recognition/regex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognizer_Contract(t *testing.T) {
	greet := domain.NewIntent("Greet", "hello", "hi there")
	bye := domain.NewIntent("Bye", "bye")

	r := regex.New()
	require.NoError(t, r.Train(context.Background(), []*domain.EventDefinition{greet, bye}))

	tests.RecognizerContractTest(t, r, map[string]*domain.EventDefinition{
		"hello":    greet,
		"hi there": greet,
		"bye":      bye,
	}, "what is the weather")
}

func TestRecognizer_CaseSensitiveAndAnchored(t *testing.T) {
	bye := domain.NewIntent("Bye", "bye")
	r := regex.New()
	require.NoError(t, r.Train(context.Background(), []*domain.EventDefinition{bye}))

	for _, input := range []string{"BYE", "bye now", "ok bye"} {
		ev, err := r.Recognize(context.Background(), input, nil)
		require.NoError(t, err)
		assert.True(t, ev.IsFallback(), "input %q", input)
		assert.Zero(t, ev.Confidence)
	}
}

func TestRecognizer_Placeholders(t *testing.T) {
	intro := domain.NewIntent("Introduce", "my name is {name}", "I am {name} from {city}")
	r := regex.New()
	require.NoError(t, r.Train(context.Background(), []*domain.EventDefinition{intro}))

	ev, err := r.Recognize(context.Background(), "I am Ada from London", nil)
	require.NoError(t, err)
	assert.Same(t, intro, ev.Definition)
	assert.Equal(t, "Ada", ev.Params["name"])
	assert.Equal(t, "London", ev.Params["city"])

	ev, err = r.Recognize(context.Background(), "my name is Grace (Hopper)", nil)
	require.NoError(t, err)
	assert.Equal(t, "Grace (Hopper)", ev.Params["name"])
}

func TestRecognizer_AddPattern(t *testing.T) {
	order := domain.NewIntent("Order")
	r := regex.New()
	require.NoError(t, r.Train(context.Background(), []*domain.EventDefinition{order}))
	require.NoError(t, r.AddPattern(order, `(?P<qty>\d+) pizzas?`))

	ev, err := r.Recognize(context.Background(), "3 pizzas", nil)
	require.NoError(t, err)
	assert.Same(t, order, ev.Definition)
	assert.Equal(t, "3", ev.Params["qty"])

	var argErr *domain.InvalidArgumentError
	assert.ErrorAs(t, r.AddPattern(order, `(`), &argErr)
}

func TestCompile_DuplicatePlaceholder(t *testing.T) {
	_, err := regex.Compile("{x} and {x}")
	var argErr *domain.InvalidArgumentError
	assert.ErrorAs(t, err, &argErr)
}

func TestRecognizer_Shutdown(t *testing.T) {
	r := regex.New()
	require.NoError(t, r.Shutdown(context.Background()))
	_, err := r.Recognize(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyShutdown)
}
