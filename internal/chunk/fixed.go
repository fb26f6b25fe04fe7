package chunk

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// fixedSpans slides a size-rune window across text, advancing size-overlap
// runes per step. Trailing whitespace is trimmed from each window and
// whitespace-only windows are dropped.
func fixedSpans(text string, size, overlap int) []span {
	runes := []rune(text)
	step := size - overlap

	var spans []span
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		content := strings.TrimRightFunc(string(runes[start:end]), unicode.IsSpace)
		if content != "" {
			spans = append(spans, span{
				content: content,
				start:   start,
				end:     start + utf8.RuneCountInString(content),
			})
		}
		if end == len(runes) {
			break
		}
	}
	return spans
}
