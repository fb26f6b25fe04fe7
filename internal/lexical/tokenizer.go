package lexical

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// wordPattern matches runs of letters, digits and underscores in any script.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// token is a normalized term with its byte span in the source text.
type token struct {
	term  string
	start int
	end   int
}

// Tokenizer lowercases words and drops stop words and short tokens.
type Tokenizer struct {
	stopWords map[string]struct{}
	minLength int
}

// NewTokenizer builds a Tokenizer from cfg.
func NewTokenizer(cfg Config) *Tokenizer {
	return &Tokenizer{
		stopWords: BuildStopWordMap(cfg.StopWords),
		minLength: cfg.MinTokenLength,
	}
}

// Tokenize returns the normalized terms of text in order.
func (t *Tokenizer) Tokenize(text string) []string {
	tokens := t.scan(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.term
	}
	return terms
}

func (t *Tokenizer) scan(text string) []token {
	matches := wordPattern.FindAllStringIndex(text, -1)
	tokens := make([]token, 0, len(matches))
	for _, m := range matches {
		term := strings.ToLower(text[m[0]:m[1]])
		if utf8.RuneCountInString(term) < t.minLength {
			continue
		}
		if _, stop := t.stopWords[term]; stop {
			continue
		}
		tokens = append(tokens, token{term: term, start: m[0], end: m[1]})
	}
	return tokens
}

// BuildStopWordMap converts a slice of stop words to a lookup set.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
