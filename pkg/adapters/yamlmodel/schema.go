package yamlmodel

import "github.com/aretw0/colloquy/pkg/actions/process"

// document is the on-disk form of both models and libraries. A file with a
// "library" key is a library: it may only declare intents and events.
type document struct {
	Name    string            `yaml:"name"`
	Library string            `yaml:"library"`
	Imports []importSpec      `yaml:"imports"`
	Intents []intentSpec      `yaml:"intents"`
	Events  []string          `yaml:"events"`
	Scripts map[string]string `yaml:"scripts"`

	Commands map[string]process.Command `yaml:"commands"`
	States   []stateSpec                `yaml:"states"`
}

type importSpec struct {
	Path string `yaml:"path"`
	As   string `yaml:"as"`
}

type intentSpec struct {
	Name       string   `yaml:"name"`
	Utterances []string `yaml:"utterances"`
}

type stateSpec struct {
	Name     string           `yaml:"name"`
	Body     []actionSpec     `yaml:"body"`
	Fallback []actionSpec     `yaml:"fallback"`
	On       []transitionSpec `yaml:"on"`
}

// transitionSpec triggers on an intent, an event, a guard alone, or
// (otherwise: true) nothing else matching. An empty To stays in the state.
type transitionSpec struct {
	Intent    string       `yaml:"intent"`
	Event     string       `yaml:"event"`
	Otherwise bool         `yaml:"otherwise"`
	When      *guardSpec   `yaml:"when"`
	Do        []actionSpec `yaml:"do"`
	To        string       `yaml:"to"`
}

// actionSpec is either {do: name, with: {...}} or the {say: text} shorthand.
//
// String argument values prefixed with "$ctx." or "$param." are bound to a
// context variable or an event parameter.
type actionSpec struct {
	Do     string         `yaml:"do"`
	Say    string         `yaml:"say"`
	With   map[string]any `yaml:"with"`
	SaveAs string         `yaml:"save_as"`
}

// guardSpec holds exactly one condition:
//
//	all: [...] | any: [...] | not: {...}
//	exists: key
//	context: key, equals: value
//	param: name, equals: value
//	event: Name
//	const: true
type guardSpec struct {
	All     []guardSpec `yaml:"all"`
	Any     []guardSpec `yaml:"any"`
	Not     *guardSpec  `yaml:"not"`
	Exists  string      `yaml:"exists"`
	Context string      `yaml:"context"`
	Param   string      `yaml:"param"`
	Equals  any         `yaml:"equals"`
	Event   string      `yaml:"event"`
	Const   *bool       `yaml:"const"`
}
