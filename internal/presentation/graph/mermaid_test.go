package graph_test

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/colloquy/internal/presentation/graph"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/dsl"
)

func sampleModel(t *testing.T) *domain.Model {
	t.Helper()
	lib := dsl.NewLibrary("Small-Talk")
	hello := lib.Intent("Hello", "hello")

	b := dsl.New("sample").Use(lib)
	order := b.Intent("Order", "pizza")

	b.State("Init").
		On(hello).Go("Greeting").
		Otherwise().Go("Menu")
	b.State("Greeting").
		Say("Hi").
		On(order).When(domain.ContextExists{Key: "user"}).Go("Menu")
	b.State("Menu").
		Say("What size?").Do("echo", nil).
		Fallback("say", dsl.Args{"text": "Small or large?"}).
		When(domain.ParamEquals{Name: "size", Value: "\"xl\""}).Stay()
	b.State(domain.FallbackState).Say("Sorry")

	model, err := b.Build()
	require.NoError(t, err)
	return model
}

func TestGenerateMermaid_Golden(t *testing.T) {
	g := goldie.New(t)

	model := sampleModel(t)
	g.Assert(t, "sample", []byte(graph.GenerateMermaid(model, nil)))

	overlay := &graph.Overlay{
		VisitedStates: []string{"Init", "Greeting", "Init"},
		CurrentState:  "Menu",
	}
	g.Assert(t, "sample_overlay", []byte(graph.GenerateMermaid(model, overlay)))
}

func TestGenerateMermaid_NilModel(t *testing.T) {
	assert.Equal(t, "graph TD\n", graph.GenerateMermaid(nil, nil))
}
