package processor

import (
	"bufio"
	"bytes"
	_ "embed"
	"strings"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports"
)

type postFunc struct {
	name string
	fn   func(string) string
}

func (p postFunc) Name() string { return p.name }

// PostProcess applies fn to every string parameter of a copy of ev.
func (p postFunc) PostProcess(ev *domain.RecognizedEvent, _ ports.SessionView) *domain.RecognizedEvent {
	if ev == nil || len(ev.Params) == 0 {
		return ev
	}
	out := ev.Clone()
	for k, v := range out.Params {
		if s, ok := v.(string); ok {
			out.Params[k] = p.fn(s)
		}
	}
	return out
}

//go:embed stopwords.txt
var stopWordsTxt []byte

var englishStopWords = func() map[string]struct{} {
	words := make(map[string]struct{})
	sc := bufio.NewScanner(bytes.NewReader(stopWordsTxt))
	for sc.Scan() {
		if w := strings.TrimSpace(sc.Text()); w != "" {
			words[w] = struct{}{}
		}
	}
	return words
}()

// IsEnglishStopWord reports whether word (any case) is a stop word.
func IsEnglishStopWord(word string) bool {
	_, ok := englishStopWords[strings.ToLower(word)]
	return ok
}

// RemoveEnglishStopWords strips stop words from string parameter values:
// "the pizza" becomes "pizza". A value made only of stop words is kept as is.
func RemoveEnglishStopWords() ports.PostProcessor {
	return postFunc{name: "RemoveEnglishStopWords", fn: func(s string) string {
		fields := strings.Fields(s)
		var kept []string
		for _, f := range fields {
			if !IsEnglishStopWord(f) {
				kept = append(kept, f)
			}
		}
		if len(kept) == 0 {
			return s
		}
		return strings.Join(kept, " ")
	}}
}

// TrimParameterValues removes surrounding white space and punctuation from
// string parameter values.
func TrimParameterValues() ports.PostProcessor {
	return postFunc{name: "TrimParameterValues", fn: func(s string) string {
		return strings.Trim(s, " \t\r\n.,;:!?\"'")
	}}
}
