package yamlmodel_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/colloquy/pkg/actions"
	"github.com/aretw0/colloquy/pkg/adapters/yamlmodel"
	"github.com/aretw0/colloquy/pkg/domain"
)

func TestLoad_Pizza(t *testing.T) {
	reg := actions.NewRegistry(actions.Builtins(nil)...)
	l := yamlmodel.NewLoader(os.DirFS("testdata"), yamlmodel.WithRegistry(reg))

	model, err := l.Load("pizza.yaml")
	require.NoError(t, err)
	assert.Equal(t, "pizza", model.Name)

	require.Len(t, model.Imports, 1)
	imp := model.Imports[0]
	assert.Equal(t, "Greetings", imp.Alias)
	assert.Equal(t, "lib/greetings.yaml", imp.Path)
	assert.Len(t, imp.Digest, 64)
	require.Len(t, imp.Events, 2)
	assert.Equal(t, "Greetings.Hello", imp.Events[0].QualifiedName())

	var names []string
	for _, e := range model.Events {
		names = append(names, e.String())
	}
	assert.Equal(t, []string{"Order", "Confirm", "Timeout"}, names)
	assert.Equal(t, domain.KindEvent, model.Events[2].Kind)

	initState := model.State("Init")
	require.Len(t, initState.Transitions, 2)
	hello := initState.Transitions[0]
	assert.Same(t, imp.Events[0], hello.On)
	assert.Same(t, model.State("Ordering"), hello.Target)
	assert.Equal(t, "say", hello.Actions[0].Action)

	order := initState.Transitions[1]
	assert.Equal(t, domain.FromEvent("size"), order.Actions[0].Params["value"])
	assert.Equal(t, "size", order.Actions[0].ReturnVar)
	assert.Len(t, initState.Fallback, 1)

	confirming := model.State("Confirming")
	assert.Equal(t, domain.FromContext("size"), confirming.Body[0].Params["size"])
	guard, ok := confirming.Transitions[0].Guard.(domain.And)
	require.True(t, ok)
	assert.Equal(t, domain.ContextExists{Key: "size"}, guard.Left)
	assert.Equal(t, domain.Not{Operand: domain.ContextEquals{Key: "size", Value: "huge"}}, guard.Right)
	wild := confirming.Wildcard()
	require.NotNil(t, wild)
	assert.Same(t, confirming, wild.Target, "a transition without target stays")
	assert.Same(t, imp.Events[1], model.State("Ordering").Transitions[0].On)

	shout, ok := reg.Lookup("shout")
	require.True(t, ok)
	out, err := shout.Execute(context.Background(), map[string]any{"text": "yes"})
	require.NoError(t, err)
	assert.Equal(t, "YES", out)
	assert.Empty(t, reg.Missing(model))
}

func TestLoad_Errors(t *testing.T) {
	lib := &fstest.MapFile{Data: []byte("library: Lib\nintents:\n  - name: Hello\n    utterances: [hello]\n")}
	other := &fstest.MapFile{Data: []byte("library: Other\nintents:\n  - name: Hello\n    utterances: [hey]\n")}

	tests := []struct {
		name  string
		model string
		want  string
	}{
		{
			name:  "unknown intent",
			model: "states:\n  - name: Init\n    on:\n      - intent: Nope\n",
			want:  `unknown event "Nope"`,
		},
		{
			name: "ambiguous import",
			model: `imports: [{path: lib.yaml}, {path: other.yaml}]
states:
  - name: Init
    on:
      - intent: Hello
        to: Init
`,
			want: `ambiguous event "Hello"`,
		},
		{
			name:  "unknown target",
			model: "states:\n  - name: Init\n    on:\n      - otherwise: true\n        to: Nowhere\n",
			want:  `unknown target state "Nowhere"`,
		},
		{
			name:  "guard with two conditions",
			model: "states:\n  - name: Init\n    on:\n      - when: {exists: a, context: b}\n        to: Next\n  - name: Next\n",
			want:  "exactly one condition",
		},
		{
			name:  "say and do",
			model: "states:\n  - name: Init\n    body:\n      - {say: hi, do: echo}\n",
			want:  "both do and say",
		},
		{
			name:  "event used as intent",
			model: "events: [Tick]\nstates:\n  - name: Init\n    on:\n      - intent: Tick\n        to: Next\n  - name: Next\n",
			want:  "is an event, not an intent",
		},
		{
			name:  "missing init",
			model: "states:\n  - name: Start\n",
			want:  "missing Init state",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{
				"model.yaml": {Data: []byte(tt.model)},
				"lib.yaml":   lib,
				"other.yaml": other,
			}
			_, err := yamlmodel.NewLoader(fsys).Load("model.yaml")
			var modelErr *domain.ModelError
			require.ErrorAs(t, err, &modelErr)
			assert.Contains(t, modelErr.Error(), tt.want)
		})
	}
}

func TestLoad_QualifiedNameDisambiguates(t *testing.T) {
	fsys := fstest.MapFS{
		"lib.yaml":   {Data: []byte("library: Lib\nintents:\n  - name: Hello\n")},
		"other.yaml": {Data: []byte("library: Other\nintents:\n  - name: Hello\n")},
		"model.yaml": {Data: []byte(`imports: [{path: lib.yaml}, {path: other.yaml, as: O}]
states:
  - name: Init
    on:
      - intent: O.Hello
        to: Next
  - name: Next
`)},
	}
	model, err := yamlmodel.NewLoader(fsys).Load("model.yaml")
	require.NoError(t, err)
	assert.Equal(t, "model", model.Name)
	assert.Equal(t, "O.Hello", model.State("Init").Transitions[0].On.QualifiedName())
}

func TestLoad_RejectsLibraries(t *testing.T) {
	fsys := fstest.MapFS{
		"lib.yaml":   {Data: []byte("library: Lib\n")},
		"bad.yaml":   {Data: []byte("library: Bad\nstates:\n  - name: Init\n")},
		"model.yaml": {Data: []byte("imports: [{path: bad.yaml}]\nstates:\n  - name: Init\n")},
		"dup.yaml":   {Data: []byte("imports: [{path: lib.yaml}, {path: lib.yaml}]\nstates:\n  - name: Init\n")},
	}
	l := yamlmodel.NewLoader(fsys)
	var argErr *domain.InvalidArgumentError

	_, err := l.Load("lib.yaml")
	assert.ErrorAs(t, err, &argErr)

	_, err = l.Load("model.yaml")
	assert.ErrorAs(t, err, &argErr)

	_, err = l.Load("dup.yaml")
	assert.ErrorAs(t, err, &argErr)
}

func TestLoad_DigestFollowsLibraryContent(t *testing.T) {
	fsys := fstest.MapFS{
		"lib.yaml":   {Data: []byte("library: Lib\nintents:\n  - name: Hello\n")},
		"model.yaml": {Data: []byte("imports: [{path: lib.yaml}]\nstates:\n  - name: Init\n")},
	}
	l := yamlmodel.NewLoader(fsys)
	first, err := l.Load("model.yaml")
	require.NoError(t, err)

	fsys["lib.yaml"] = &fstest.MapFile{Data: []byte("library: Lib\nintents:\n  - name: Hello\n  - name: Bye\n")}
	second, err := l.Load("model.yaml")
	require.NoError(t, err)

	assert.NotEqual(t, first.Imports[0].Digest, second.Imports[0].Digest)
}

func TestLoad_BadScript(t *testing.T) {
	fsys := fstest.MapFS{
		"model.yaml": {Data: []byte("scripts:\n  broken: \"return (\"\nstates:\n  - name: Init\n")},
	}
	_, err := yamlmodel.NewLoader(fsys, yamlmodel.WithRegistry(actions.NewRegistry())).Load("model.yaml")
	assert.Error(t, err)
}

func TestLoad_Commands(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bot.yaml")
	src := `commands:
  where:
    command: sh
    args: ["-c", "pwd"]
states:
  - name: Init
    body:
      - do: where
        save_as: cwd
`
	require.NoError(t, os.WriteFile(file, []byte(src), 0o644))

	reg := actions.NewRegistry()
	p, err := yamlmodel.NewProvider(file, yamlmodel.WithRegistry(reg))
	require.NoError(t, err)
	_, err = p.Load(context.Background())
	require.NoError(t, err)

	got, err := reg.Execute(context.Background(), "where", nil)
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Contains(t, []string{dir, resolved}, got, "commands run in the model directory")

	fsys := fstest.MapFS{
		"model.yaml": {Data: []byte("commands:\n  empty: {}\nstates:\n  - name: Init\n")},
	}
	_, err = yamlmodel.NewLoader(fsys, yamlmodel.WithRegistry(actions.NewRegistry())).Load("model.yaml")
	var argErr *domain.InvalidArgumentError
	assert.ErrorAs(t, err, &argErr)
}

func TestProvider_Watch(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bot.yaml")
	require.NoError(t, os.WriteFile(file, []byte("states:\n  - name: Init\n"), 0o644))

	p, err := yamlmodel.NewProvider(file)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, model.States, 1)

	changes, err := p.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(file, []byte("states:\n  - name: Init\n  - name: Other\n"), 0o644))
	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change notification")
	}

	model, err = p.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, model.States, 2)

	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, open := <-changes:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("watch channel not closed after cancel")
		}
	}
}
