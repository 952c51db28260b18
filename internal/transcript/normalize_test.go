package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		opts Options
		want string
	}{
		{name: "whitespace only", in: " \n\t ", opts: Options{CapitalizeSentences: true}, want: ""},
		{name: "collapses whitespace", in: "  what is\n the   weather ", want: "what is the weather"},
		{name: "sentence starts", in: "hello there. how are you? fine! ok", opts: Options{CapitalizeSentences: true}, want: "Hello there. How are you? Fine! Ok"},
		{name: "pronoun and contractions", in: "i think i'm ready and i'll go", opts: Options{CapitalizeSentences: true}, want: "I think I'm ready and I'll go"},
		{name: "abbreviation keeps case", in: "ask dr. smith about it", opts: Options{CapitalizeSentences: true}, want: "Ask dr. smith about it"},
		{name: "decimal is not a boundary", in: "it costs 3.50 today", opts: Options{CapitalizeSentences: true}, want: "It costs 3.50 today"},
		{name: "leading digit", in: "3 apples. two pears", opts: Options{CapitalizeSentences: true}, want: "3 apples. Two pears"},
		{name: "disabled leaves case", in: "i said hi. ok", want: "i said hi. ok"},
		{name: "words containing i untouched", in: "it is in", opts: Options{CapitalizeSentences: true}, want: "It is in"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Normalize(tc.in, tc.opts))
		})
	}
}
