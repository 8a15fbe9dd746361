package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSVHandler parses delimiter-separated files with the delimiter detected
// from per-line count consistency and the encoding sniffed from the bytes.
type CSVHandler struct{}

var _ Handler = (*CSVHandler)(nil)

func (h *CSVHandler) Name() string { return "csv" }

func (h *CSVHandler) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s; %w", path, err)
	}

	text := DecodeText(data)
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	delim := DetectDelimiter(text)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var b strings.Builder
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing %s; %w", path, err)
		}
		b.WriteString(strings.Join(record, string(delim)))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n"), nil
}
