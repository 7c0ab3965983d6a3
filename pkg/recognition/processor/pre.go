package processor

import (
	_ "embed"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/colloquy/pkg/ports"
)

type preFunc struct {
	name string
	fn   func(string) string
}

func (p preFunc) Name() string { return p.name }

func (p preFunc) PreProcess(input string, _ ports.SessionView) string {
	return p.fn(input)
}

// Lowercase folds the input to lower case using Unicode rules.
func Lowercase() ports.PreProcessor {
	return preFunc{name: "Lowercase", fn: func(s string) string {
		// cases.Caser is stateful and must not be shared across goroutines.
		return cases.Lower(language.Und).String(s)
	}}
}

// Trim removes leading and trailing white space.
func Trim() ports.PreProcessor {
	return preFunc{name: "Trim", fn: strings.TrimSpace}
}

// NormalizeUnicode converts the input to NFC so that composed and decomposed
// accents compare equal.
func NormalizeUnicode() ports.PreProcessor {
	return preFunc{name: "NormalizeUnicode", fn: norm.NFC.String}
}

// CollapseWhitespace replaces runs of white space with a single space.
func CollapseWhitespace() ports.PreProcessor {
	return preFunc{name: "CollapseWhitespace", fn: func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	}}
}

//go:embed slang.yaml
var slangYAML []byte

var (
	slangOnce sync.Once
	slangDict map[string]string
	slangErr  error
)

// SlangDictionary returns the built-in slang expansions, keyed by lower-case
// term.
func SlangDictionary() (map[string]string, error) {
	slangOnce.Do(func() {
		raw := make(map[string]string)
		if slangErr = yaml.Unmarshal(slangYAML, &raw); slangErr != nil {
			return
		}
		slangDict = make(map[string]string, len(raw))
		for k, v := range raw {
			slangDict[strings.ToLower(k)] = v
		}
	})
	return slangDict, slangErr
}

var slangToken = regexp.MustCompile(`[\p{L}\p{N}/']+`)

// InternetSlang expands slang terms ("idk", "u", "omg") into plain words.
// Punctuation and unknown words are left in place.
func InternetSlang() ports.PreProcessor {
	dict, err := SlangDictionary()
	if err != nil {
		// The dictionary is embedded; a parse failure is a build defect.
		panic("processor: invalid slang dictionary: " + err.Error())
	}
	return NewSlang(dict)
}

// NewSlang builds a slang expander over a custom dictionary. Keys must be
// lower case.
func NewSlang(dict map[string]string) ports.PreProcessor {
	return preFunc{name: "InternetSlang", fn: func(s string) string {
		return slangToken.ReplaceAllStringFunc(s, func(word string) string {
			if exp, ok := dict[strings.ToLower(word)]; ok {
				return exp
			}
			return word
		})
	}}
}
