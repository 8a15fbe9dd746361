package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// chunkProse groups paragraphs into chunks up to the maximum, re-splitting
// oversized paragraphs at sentence boundaries. Each chunk after the first
// carries an overlap taken from the tail of its predecessor.
func (c *Chunker) chunkProse(text string) []string {
	paragraphs := strings.Split(text, "\n\n")

	var units []string
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) > c.opts.MaxChunkSize {
			units = append(units, splitSentences(p)...)
		} else {
			units = append(units, p)
		}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		chunks = append(chunks, strings.TrimSpace(current.String()))
		current.Reset()
		currentLen = 0
	}

	for _, unit := range units {
		unitLen := utf8.RuneCountInString(unit)

		// A single sentence can still exceed the maximum; hard-wrap it.
		if unitLen > c.opts.MaxChunkSize {
			flush()
			for _, piece := range hardWrap(unit, c.opts.MaxChunkSize) {
				chunks = append(chunks, piece)
			}
			continue
		}

		if currentLen > 0 && currentLen+unitLen+2 > c.opts.MaxChunkSize {
			flush()
		}

		if currentLen == 0 && len(chunks) > 0 && c.opts.Overlap > 0 {
			tail := overlapTail(chunks[len(chunks)-1], c.opts.Overlap)
			if tail != "" && utf8.RuneCountInString(tail)+unitLen+2 <= c.opts.MaxChunkSize {
				current.WriteString(tail)
				current.WriteString("\n\n")
				currentLen = utf8.RuneCountInString(tail) + 2
			}
		}

		if currentLen > 0 {
			current.WriteString("\n\n")
			currentLen += 2
		}
		current.WriteString(unit)
		currentLen += unitLen
	}
	flush()

	return chunks
}

// sentenceEnders includes German-typographic sentence endings alongside the
// usual ASCII terminators.
var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true, '…': true,
}

// closingQuotes may trail a sentence terminator.
var closingQuotes = map[rune]bool{
	'"': true, '\'': true, '«': true, '»': true, '“': true, '”': true, '‘': true, '’': true,
}

// splitSentences splits a paragraph at sentence boundaries. A boundary is a
// sentence-ending rune (optionally followed by a closing quote) followed by
// whitespace and an uppercase letter or digit. Common German ordinal and
// abbreviation patterns ("z.B.", "15. Mai") do not break sentences because
// the following rune check rejects lowercase continuations and the
// digit-before-dot case is treated as an ordinal.
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	for i := 0; i < len(runes); i++ {
		if !sentenceEnders[runes[i]] {
			continue
		}

		// A digit directly before the dot marks a German ordinal
		// ("15. Mai"), not a sentence end.
		if runes[i] == '.' && i > 0 && unicode.IsDigit(runes[i-1]) {
			continue
		}

		end := i + 1
		if end < len(runes) && closingQuotes[runes[end]] {
			end++
		}

		// Look ahead past whitespace for a capital or digit.
		j := end
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == end {
			continue // no whitespace after terminator
		}
		if j >= len(runes) || unicode.IsUpper(runes[j]) || unicode.IsDigit(runes[j]) {
			s := strings.TrimSpace(string(runes[start:end]))
			if s != "" {
				sentences = append(sentences, s)
			}
			start = j
			i = j - 1
		}
	}

	if start < len(runes) {
		s := strings.TrimSpace(string(runes[start:]))
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	return sentences
}

// overlapTail returns up to budget characters from the end of text, aligned
// to a word boundary.
func overlapTail(text string, budget int) string {
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}

	tail := runes[len(runes)-budget:]
	// Trim the leading partial word.
	for i, r := range tail {
		if unicode.IsSpace(r) {
			return strings.TrimSpace(string(tail[i:]))
		}
	}
	return ""
}

// hardWrap splits text into pieces of at most size runes, preferring
// whitespace boundaries.
func hardWrap(text string, size int) []string {
	runes := []rune(text)
	var pieces []string

	for len(runes) > 0 {
		if len(runes) <= size {
			pieces = append(pieces, strings.TrimSpace(string(runes)))
			break
		}

		cut := size
		for i := size - 1; i > size/2; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}

		pieces = append(pieces, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
		for len(runes) > 0 && unicode.IsSpace(runes[0]) {
			runes = runes[1:]
		}
	}

	return pieces
}
