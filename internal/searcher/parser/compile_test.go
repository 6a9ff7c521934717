package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/gcl"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer/tokenizer"
)

// textResolver indexes text as a single token stream starting at position 0.
func textResolver(tok *tokenizer.Tokenizer, text string) ResolverFunc {
	positions := make(map[string][]gcl.Position)
	for _, t := range tok.Tokenize(text) {
		positions[t.Term] = append(positions[t.Term], gcl.Position(t.Position))
	}
	return func(term string) (*gcl.Cursor, error) {
		starts, ok := positions[tok.Normalize(term)]
		if !ok {
			return gcl.NewEmpty(), nil
		}
		return gcl.NewArray(starts, nil, nil), nil
	}
}

func run(t *testing.T, query string, tok *tokenizer.Tokenizer, r Resolver) []gcl.Match {
	t.Helper()
	expr, err := Prepare(query, tok)
	require.NoError(t, err)
	c, err := Compile(expr, r)
	require.NoError(t, err)
	return gcl.Collect(c, 0)
}

func TestCompileToBe(t *testing.T) {
	tok := tokenizer.New(tokenizer.Options{})
	r := textResolver(tok, "to be, or not to be")

	pairs := []gcl.Match{{Start: 0, End: 1}, {Start: 4, End: 5}}
	assert.Equal(t, pairs, run(t, `(... "to" "be")`, tok, r))
	assert.Equal(t, pairs, run(t, `"to be"`, tok, r))
	assert.Equal(t, []gcl.Match{{Start: 0, End: 3}}, run(t, "(... to not)", tok, r))
	assert.Empty(t, run(t, `"to not"`, tok, r))
}

func TestCompileSonnetWindows(t *testing.T) {
	tok := tokenizer.New(tokenizer.Options{Stem: true})
	r := textResolver(tok, "My verse, your virtues rare shall eternize,\nAnd")

	assert.Equal(t, []gcl.Match{
		{Start: 0, End: 4},
		{Start: 1, End: 5},
		{Start: 2, End: 6},
	}, run(t, "(<< (# 5) (... my eternize))", tok, r))
	assert.Equal(t, []gcl.Match{
		{Start: 0, End: 4},
		{Start: 1, End: 5},
		{Start: 2, End: 6},
		{Start: 3, End: 7},
	}, run(t, "(<< (# 5) (... my and))", tok, r))
	assert.Empty(t, run(t, "(<< (# 5) (... verse your))", tok, r))
}

func TestCompileWithinBoundsLinkOverWindows(t *testing.T) {
	tok := tokenizer.New(tokenizer.Options{})
	expr, err := Prepare("(@ (# 1))", tok)
	require.NoError(t, err)
	c, err := CompileWithin(expr, textResolver(tok, "to be"), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []gcl.Match{{Start: 0, End: 0}}, gcl.Collect(c, 0))
}

func TestCompileSingleOperand(t *testing.T) {
	tok := tokenizer.New(tokenizer.Options{})
	r := textResolver(tok, "to be, or not to be")

	be := []gcl.Match{{Start: 1, End: 1}, {Start: 5, End: 5}}
	assert.Equal(t, be, run(t, "(+ be)", tok, r))
	assert.Equal(t, be, run(t, "(^ be)", tok, r))
}

func TestCompileNaryMatchesNestedBinary(t *testing.T) {
	tok := tokenizer.New(tokenizer.Options{})
	r := textResolver(tok, "a b c a c b a b c")

	assert.Equal(t,
		run(t, "(^ (^ a b) c)", tok, r),
		run(t, "(^ a b c)", tok, r))
	assert.Equal(t,
		run(t, "(+ (+ a b) c)", tok, r),
		run(t, "(one_of a b c)", tok, r))
}

func TestCompileUnknownTermsAreEmpty(t *testing.T) {
	tok := tokenizer.New(tokenizer.Options{})
	r := textResolver(tok, "to be")

	assert.Empty(t, run(t, "nothing", tok, r))
	assert.Empty(t, run(t, "(^ to nothing)", tok, r))
	assert.Equal(t, []gcl.Match{{Start: 0, End: 0}}, run(t, "(+ to nothing)", tok, r))
}

func TestCompileResolverErrorAborts(t *testing.T) {
	errDisk := errors.New("disk failure")
	calls := 0
	r := ResolverFunc(func(term string) (*gcl.Cursor, error) {
		calls++
		if term == "bad" {
			return nil, errDisk
		}
		return gcl.NewEmpty(), nil
	})
	expr, err := Parse("(^ bad good)")
	require.NoError(t, err)

	c, err := Compile(expr, r)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, errDisk)
	assert.Contains(t, err.Error(), `"bad"`)
	assert.Equal(t, 1, calls)
}

func TestCompileLink(t *testing.T) {
	r := ResolverFunc(func(term string) (*gcl.Cursor, error) {
		if term == "@ref" {
			return gcl.NewArray(
				[]gcl.Position{0, 4, 8},
				[]gcl.Position{1, 5, 9},
				[]float64{3, 2, 3},
			), nil
		}
		return gcl.NewEmpty(), nil
	})
	expr, err := Parse("(@ @ref)")
	require.NoError(t, err)
	c, err := Compile(expr, r)
	require.NoError(t, err)
	assert.Equal(t, []gcl.Match{{Start: 2, End: 2}, {Start: 3, End: 3}}, gcl.Collect(c, 0))
}

func TestCompileRejectsMalformedTrees(t *testing.T) {
	r := ResolverFunc(func(string) (*gcl.Cursor, error) { return gcl.NewEmpty(), nil })

	_, err := Compile(NewOp(FollowedBy, NewTerm("a")), r)
	assert.Error(t, err)
	_, err = Compile(NewOp(Link), r)
	assert.Error(t, err)
	_, err = Compile(NewOp(Op(42), NewTerm("a"), NewTerm("b")), r)
	assert.Error(t, err)
}
