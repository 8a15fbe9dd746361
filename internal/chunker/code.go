package chunker

import (
	"strings"
	"unicode/utf8"
)

// codeBoundaryPrefixes mark definitions where a new chunk may begin.
var codeBoundaryPrefixes = []string{
	"func ", "def ", "class ", "@", "function ", "fn ", "public ", "private ",
	"protected ", "static ", "type ", "interface ", "impl ",
}

// chunkCode packs lines and prefers to break at function/class/decorator
// boundaries once the accumulator already holds at least the minimum.
func (c *Chunker) chunkCode(text string) []string {
	lines := strings.Split(text, "\n")

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
		current.Reset()
		currentLen = 0
	}

	for _, line := range lines {
		lineLen := utf8.RuneCountInString(line) + 1

		// A single line can exceed the maximum on its own; hard-wrap it.
		if lineLen-1 > c.opts.MaxChunkSize {
			flush()
			chunks = append(chunks, hardWrap(line, c.opts.MaxChunkSize)...)
			continue
		}

		atBoundary := isCodeBoundary(line)
		if atBoundary && currentLen >= c.opts.MinChunkSize {
			flush()
		} else if currentLen+lineLen > c.opts.MaxChunkSize && currentLen > 0 {
			flush()
		}

		current.WriteString(line)
		current.WriteString("\n")
		currentLen += lineLen
	}
	flush()

	return chunks
}

func isCodeBoundary(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	for _, prefix := range codeBoundaryPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
