/*
Package colloquy is a dialogue execution engine for chatbots.

A model describes a conversation as a state machine: states run actions when
entered, and transitions are taken when a recognized event (a user intent or a
generic event) matches them. The engine recognizes raw user input, walks the
state machine of each user's session and runs the actions of the transitions
it takes.

# Concept

The engine is split into five parts: the model index, the recognition
pipeline (pre-processors, a recognizer backend, post-processors and a
monitor), the provider factory choosing that pipeline from configuration, the
session store and the dispatch runtime. Sessions are processed one event at a
time, in submission order; different sessions run in parallel.

When no transition matches, the state's fallback actions run (or the body of
the Default_Fallback state) and the session stays where it was. A state's
wildcard transition is taken in preference to the fallback.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/colloquy"
		"github.com/aretw0/colloquy/pkg/dsl"
	)

	func main() {
		b := dsl.New("greeter")
		greet := b.Intent("Greet", "hello", "hi")

		b.State("Init").On(greet).Go("Greeting")
		b.State("Greeting").Say("Hello, how are you?")

		model, err := b.Build()
		if err != nil {
			log.Fatal(err)
		}

		eng, err := colloquy.New(model)
		if err != nil {
			log.Fatal(err)
		}
		defer eng.Shutdown(context.Background())

		ctx := context.Background()
		sess, err := eng.GetOrCreateSession(ctx, "alice")
		if err != nil {
			log.Fatal(err)
		}
		if _, err := eng.HandleRawInput(ctx, "hello", sess); err != nil {
			log.Fatal(err)
		}
	}

Models can also be written in YAML (see pkg/adapters/yamlmodel) and served
with the colloquy CLI.
*/
package colloquy
