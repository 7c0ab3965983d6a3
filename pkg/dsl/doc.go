/*
Package dsl provides a fluent Go API for building colloquy models.

It is the programmatic counterpart of the YAML model format: intents, events
and states are declared in code, and Build resolves state references and
validates the result.

	b := dsl.New("greeter")
	greet := b.Intent("Greet", "hello", "hi")

	b.State("Init").
		On(greet).Do("say", dsl.Args{"text": "Hello!"}).SaveAs("reply").
		Go("Greeting")

	b.State("Greeting").
		Say("How can I help?").
		Fallback("say", dsl.Args{"text": "Sorry, I did not get that."})

	model, err := b.Build()
*/
package dsl
