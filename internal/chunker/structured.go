package chunker

import (
	"strings"
	"unicode/utf8"
)

// chunkStructured line-packs markup text. Boundaries are incidental; the
// structure is preserved only to the extent that lines are not split.
func (c *Chunker) chunkStructured(text string) []string {
	lines := strings.Split(text, "\n")

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, line := range lines {
		lineLen := utf8.RuneCountInString(line) + 1

		if currentLen+lineLen > c.opts.MaxChunkSize && currentLen > 0 {
			chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
			current.Reset()
			currentLen = 0
		}

		current.WriteString(line)
		current.WriteString("\n")
		currentLen += lineLen
	}

	if currentLen > 0 {
		chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
	}

	return chunks
}
