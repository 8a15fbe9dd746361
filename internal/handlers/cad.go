package handlers

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// CADHandler reads DXF drawings: header variables plus the text content of
// TEXT and MTEXT entities. Binary DWG is out of reach without a converter.
type CADHandler struct{}

var _ Handler = (*CADHandler)(nil)

func (h *CADHandler) Name() string { return "cad" }

func (h *CADHandler) Extract(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("reading %s; %w", path, err)
	}
	defer f.Close()

	// DXF is a flat stream of (group code, value) line pairs. Group code 1
	// carries primary text values; 0 introduces a new entity.
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	var entity string
	inText := false

	for scanner.Scan() {
		code := strings.TrimSpace(scanner.Text())
		if !scanner.Scan() {
			break
		}
		value := strings.TrimSpace(scanner.Text())

		switch code {
		case "0":
			entity = value
			inText = entity == "TEXT" || entity == "MTEXT"
		case "1", "3":
			if inText && value != "" {
				lines = append(lines, cleanMText(value))
			}
		case "9":
			// Header variables like $PROJECTNAME precede their value pair.
			if strings.HasPrefix(value, "$") {
				entity = value
			}
		case "2":
			if entity == "SECTION" && value != "" {
				lines = append(lines, "section: "+value)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading %s; %w", path, err)
	}

	return strings.Join(lines, "\n"), nil
}

// cleanMText strips the inline formatting codes MTEXT values carry.
func cleanMText(value string) string {
	value = strings.ReplaceAll(value, `\P`, "\n")
	for _, code := range []string{`\L`, `\l`, `\O`, `\o`, `{`, `}`} {
		value = strings.ReplaceAll(value, code, "")
	}
	return value
}
