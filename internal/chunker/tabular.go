package chunker

import (
	"strings"
	"unicode/utf8"
)

// chunkTabular treats the first non-empty line as a header and packs data
// rows under it. Every chunk is prefixed with the header so each chunk is
// independently interpretable; trailing header-only chunks are discarded.
func (c *Chunker) chunkTabular(text string) []string {
	lines := strings.Split(text, "\n")

	header := ""
	var rows []string
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " ")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		if header == "" {
			header = trimmed
			continue
		}
		rows = append(rows, trimmed)
	}

	if header == "" {
		return nil
	}
	if len(rows) == 0 {
		// Header-only input still describes the document.
		return []string{header}
	}

	headerLen := utf8.RuneCountInString(header)

	var chunks []string
	var current strings.Builder
	currentLen := 0

	startChunk := func() {
		current.WriteString(header)
		currentLen = headerLen
	}

	flush := func() {
		if currentLen <= headerLen {
			// Header-only chunk carries no rows; drop it.
			current.Reset()
			currentLen = 0
			return
		}
		chunks = append(chunks, current.String())
		current.Reset()
		currentLen = 0
	}

	startChunk()
	for _, row := range rows {
		rowLen := utf8.RuneCountInString(row) + 1 // newline

		// A single row can exceed the maximum even under a bare header;
		// hard-wrap it and prefix the header onto every piece.
		if headerLen+rowLen > c.opts.MaxChunkSize {
			flush()
			budget := c.opts.MaxChunkSize - headerLen - 1
			if budget < 1 {
				budget = c.opts.MaxChunkSize
			}
			for _, piece := range hardWrap(row, budget) {
				chunks = append(chunks, header+"\n"+piece)
			}
			startChunk()
			continue
		}

		if currentLen+rowLen > c.opts.MaxChunkSize && currentLen > headerLen {
			flush()
			startChunk()
		}

		current.WriteString("\n")
		current.WriteString(row)
		currentLen += rowLen
	}
	flush()

	return chunks
}
