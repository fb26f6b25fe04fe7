package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// sentenceEnd matches terminal punctuation followed by whitespace.
var sentenceEnd = regexp.MustCompile(`([.!?]+)\s+`)

// splitSentences breaks text after runs of . ! or ? that are followed by
// whitespace. The final sentence may lack terminal punctuation.
func splitSentences(text string) []string {
	var sentences []string
	prev := 0
	for _, m := range sentenceEnd.FindAllStringSubmatchIndex(text, -1) {
		if s := strings.TrimSpace(text[prev:m[3]]); s != "" {
			sentences = append(sentences, s)
		}
		prev = m[1]
	}
	if s := strings.TrimSpace(text[prev:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// sentenceSpans groups n sentences per chunk, joined by a single space.
// The last group may be shorter.
func sentenceSpans(text string, n int) []span {
	sentences := splitSentences(text)

	var spans []span
	cursor := 0
	for i := 0; i < len(sentences); i += n {
		content := strings.Join(sentences[i:min(i+n, len(sentences))], " ")
		end := cursor + utf8.RuneCountInString(content)
		spans = append(spans, span{content: content, start: cursor, end: end})
		cursor = end + 1
	}
	return spans
}
