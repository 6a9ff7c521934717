package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeKeepsPositionsAndOffsets(t *testing.T) {
	tok := New(Options{})
	text := "To be, or not to be"
	tokens := tok.Tokenize(text)
	require.Len(t, tokens, 6)
	for i, want := range []string{"to", "be", "or", "not", "to", "be"} {
		assert.Equal(t, want, tokens[i].Term)
		assert.Equal(t, i, tokens[i].Position)
	}
	assert.Equal(t, "be", text[tokens[1].Offset:tokens[1].Offset+tokens[1].Length])
	assert.Equal(t, 7, tokens[2].Offset)
}

func TestTokenizeStopWordsAndStemming(t *testing.T) {
	tok := New(Options{Stem: true, RemoveStopWords: true, MinLength: 2})
	tokens := tok.Tokenize("The runners were running to a race")
	var terms []string
	for _, tk := range tokens {
		terms = append(terms, tk.Term)
	}
	assert.Equal(t, []string{"runner", "run", "race"}, terms)
	assert.Equal(t, 2, tokens[2].Position)
}

func TestSplit(t *testing.T) {
	tok := New(Options{Stem: true})
	assert.Equal(t, []string{"my", "verse", "eternize"}, tok.Split("My verse... eternize!"))
	assert.Equal(t, []string{"runners", "ran"}, New(Options{Stem: true, RemoveStopWords: true}).Split("The runners ran"))
	assert.Empty(t, tok.Split("  ,,, "))
}

func TestNormalize(t *testing.T) {
	tok := New(Options{Stem: true})
	assert.Equal(t, "etern", tok.Normalize("Eternize"))
	assert.Equal(t, "", tok.Normalize("two words"))
	assert.Equal(t, "", tok.Normalize("--"))
}

func TestUnicodeOffsets(t *testing.T) {
	tok := New(Options{})
	text := "café au lait"
	tokens := tok.Tokenize(text)
	require.Len(t, tokens, 3)
	assert.Equal(t, "café", tokens[0].Term)
	assert.Equal(t, len("café "), tokens[1].Offset)
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, IsStopWord("The"))
	assert.False(t, IsStopWord("sonnet"))
}
