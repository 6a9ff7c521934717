// Package tokenizer turns text into positional tokens. It lower-cases input,
// splits on non-alphanumeric boundaries, optionally drops stop-words, and
// optionally stems with the Porter2 algorithm. Byte offsets into the source
// text are kept so matches can be translated back to text.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/surgebase/porter2"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

type Options struct {
	Stem            bool
	RemoveStopWords bool
	MinLength       int
}

// Token is a normalised term, its position among the kept tokens, and the
// byte range of the word it came from.
type Token struct {
	Term     string
	Position int
	Offset   int
	Length   int
}

type Tokenizer struct {
	opts Options
}

func New(opts Options) *Tokenizer {
	if opts.MinLength < 1 {
		opts.MinLength = 1
	}
	return &Tokenizer{opts: opts}
}

// Tokenize breaks text into tokens. Dropped words do not consume positions.
func (t *Tokenizer) Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/6)
	pos := 0
	start := -1
	emit := func(end int) {
		word := strings.ToLower(text[start:end])
		if term, ok := t.normalizeWord(word); ok {
			tokens = append(tokens, Token{
				Term:     term,
				Position: pos,
				Offset:   start,
				Length:   end - start,
			})
			pos++
		}
		start = -1
	}
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			emit(i)
		}
	}
	if start >= 0 {
		emit(len(text))
	}
	return tokens
}

// Split returns the lower-cased words of phrase that survive filtering, in
// order. Words are not stemmed, so each one still normalises to its indexed
// form through Normalize.
func (t *Tokenizer) Split(phrase string) []string {
	tokens := t.Tokenize(phrase)
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = strings.ToLower(phrase[tok.Offset : tok.Offset+tok.Length])
	}
	return words
}

// Normalize maps a query term to its index form. Terms that do not reduce
// to exactly one token normalise to "".
func (t *Tokenizer) Normalize(term string) string {
	tokens := t.Tokenize(term)
	if len(tokens) != 1 {
		return ""
	}
	return tokens[0].Term
}

func (t *Tokenizer) normalizeWord(word string) (string, bool) {
	if utf8.RuneCountInString(word) < t.opts.MinLength {
		return "", false
	}
	if t.opts.RemoveStopWords {
		if _, isStop := stopWords[word]; isStop {
			return "", false
		}
	}
	if t.opts.Stem {
		word = porter2.Stem(word)
	}
	if word == "" {
		return "", false
	}
	return word, true
}

func IsStopWord(word string) bool {
	_, ok := stopWords[strings.ToLower(word)]
	return ok
}
