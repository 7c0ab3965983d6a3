package processor_test

import (
	"testing"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/recognition/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreProcessors(t *testing.T) {
	cases := []struct {
		name string
		id   string
		in   string
		want string
	}{
		{"lowercase ascii", "lowercase", "BYE", "bye"},
		{"lowercase unicode", "Lowercase", "ÉCOLE", "école"},
		{"trim", "Trim", "  hi \n", "hi"},
		{"collapse", "CollapseWhitespace", "a   b\t\tc", "a b c"},
		{"nfc", "NormalizeUnicode", "e\u0301cole", "\u00e9cole"},
		{"slang single", "InternetSlang", "omg", "oh my God"},
		{"slang punctuation", "InternetSlang", "wtf, wtf?", "what the f**k, what the f**k?"},
		{"slang mixed", "InternetSlang", "idk if u r happy", "I don't know if you are happy"},
		{"slang case", "internetslang", "BRB", "be right back"},
	}

	reg := processor.NewRegistry()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pre, err := reg.Pre("test", []string{tc.id})
			require.NoError(t, err)
			require.Len(t, pre, 1)
			assert.Equal(t, tc.want, pre[0].PreProcess(tc.in, nil))
		})
	}
}

func TestPostProcessors(t *testing.T) {
	ev := domain.NewRecognizedEvent(domain.NewIntent("Order"), "I want the pizza")
	ev.Params["item"] = "the pizza"
	ev.Params["qty"] = 2
	ev.Params["size"] = " large! "
	ev.Params["only"] = "the"

	reg := processor.NewRegistry()
	post, err := reg.Post("test", []string{"RemoveEnglishStopWords", "TrimParameterValues"})
	require.NoError(t, err)

	out := ev
	for _, p := range post {
		out = p.PostProcess(out, nil)
	}

	assert.Equal(t, "pizza", out.Params["item"])
	assert.Equal(t, 2, out.Params["qty"])
	assert.Equal(t, "large", out.Params["size"])
	assert.Equal(t, "the", out.Params["only"])

	// The input event is not modified.
	assert.Equal(t, "the pizza", ev.Params["item"])
	assert.Equal(t, ev.ID, out.ID)
}

func TestRegistry_Unknown(t *testing.T) {
	reg := processor.NewRegistry()

	_, err := reg.Pre("RECOGNITION_PREPROCESSORS", []string{"Trim", "Nope"})
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "RECOGNITION_PREPROCESSORS", cfgErr.Key)

	_, err = reg.Post("RECOGNITION_POSTPROCESSORS", []string{"Lowercase"})
	assert.ErrorAs(t, err, &cfgErr)
}

func TestIsEnglishStopWord(t *testing.T) {
	assert.True(t, processor.IsEnglishStopWord("The"))
	assert.False(t, processor.IsEnglishStopWord("pizza"))
}
