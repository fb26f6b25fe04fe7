package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// blankLine separates paragraphs.
	blankLine = regexp.MustCompile(`\n\s*\n`)

	// headerPattern matches a markdown ATX heading line.
	headerPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
)

const (
	paragraphSep = "\n\n"
	sentenceSep  = " "
)

// packer accumulates parts into chunks no larger than max runes.
// Offsets advance cumulatively over emitted content plus separators, so
// they are positions in the re-joined text rather than exact source offsets.
type packer struct {
	max     int
	spans   []span
	cursor  int
	parts   []string
	size    int
	heading string
	sep     string
}

func (p *packer) add(part, sep, heading string) {
	n := utf8.RuneCountInString(part)
	if len(p.parts) > 0 && (p.sep != sep || p.size+utf8.RuneCountInString(sep)+n > p.max) {
		p.flush()
	}
	if len(p.parts) == 0 {
		p.heading = heading
		p.sep = sep
		p.size = n
	} else {
		p.size += utf8.RuneCountInString(sep) + n
	}
	p.parts = append(p.parts, part)
}

// emit writes content as its own chunk, bypassing packing.
func (p *packer) emit(content, heading string) {
	p.flush()
	p.push(content, heading)
}

func (p *packer) flush() {
	if len(p.parts) == 0 {
		return
	}
	p.push(strings.Join(p.parts, p.sep), p.heading)
	p.parts = p.parts[:0]
	p.size = 0
}

func (p *packer) push(content, heading string) {
	if len(p.spans) > 0 {
		p.cursor += utf8.RuneCountInString(paragraphSep)
	}
	end := p.cursor + utf8.RuneCountInString(content)
	p.spans = append(p.spans, span{content: content, heading: heading, start: p.cursor, end: end})
	p.cursor = end
}

// paragraphSpans packs blank-line separated paragraphs greedily up to max
// runes. An oversized paragraph is packed by sentence instead; one without
// any sentence boundary is sliced into max-rune pieces. A single sentence
// longer than max is emitted whole.
func paragraphSpans(text string, max int) []span {
	p := &packer{max: max}
	heading := ""

	for _, para := range blankLine.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if h := headingOf(para); h != "" {
			heading = h
		}

		if utf8.RuneCountInString(para) <= max {
			p.add(para, paragraphSep, heading)
			continue
		}

		p.flush()
		sentences := splitSentences(para)
		if len(sentences) <= 1 {
			for _, piece := range sliceRunes(para, max) {
				p.emit(piece, heading)
			}
			continue
		}
		for _, s := range sentences {
			if utf8.RuneCountInString(s) > max {
				p.emit(s, heading)
				continue
			}
			p.add(s, sentenceSep, heading)
		}
		p.flush()
	}
	p.flush()
	return p.spans
}

// headingOf returns the heading text if para opens with a markdown heading.
func headingOf(para string) string {
	first, _, _ := strings.Cut(para, "\n")
	if m := headerPattern.FindStringSubmatch(strings.TrimSpace(first)); m != nil {
		return strings.TrimSpace(m[2])
	}
	return ""
}

// sliceRunes cuts s into consecutive pieces of at most n runes.
func sliceRunes(s string, n int) []string {
	runes := []rune(s)
	pieces := make([]string, 0, len(runes)/n+1)
	for start := 0; start < len(runes); start += n {
		if piece := strings.TrimSpace(string(runes[start:min(start+n, len(runes))])); piece != "" {
			pieces = append(pieces, piece)
		}
	}
	return pieces
}
