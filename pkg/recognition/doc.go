// Package recognition turns raw user input into recognized events.
//
// A Pipeline wraps a single backend (ports.Recognizer) with ordered chains of
// pre-processors (input text) and post-processors (recognized event), and an
// optional ports.Monitor that observes every call:
//
//	raw -> pre[0] -> ... -> pre[n] -> backend -> post[0] -> ... -> post[m] -> event
//
// Concrete backends live in the regex and llm subpackages, processors in
// processor, monitors in monitor. The factory subpackage assembles a
// Pipeline from configuration.
package recognition
