package handlers

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
)

// XMLHandler walks the element tree and emits text content with element
// names as prefixes. Catalog exports (BMEcat-style) get product-oriented
// rendering.
type XMLHandler struct{}

var _ Handler = (*XMLHandler)(nil)

func (h *XMLHandler) Name() string { return "xml" }

func (h *XMLHandler) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s; %w", path, err)
	}

	text := DecodeText(data)
	if isCatalogXML(text) {
		return extractCatalog(text, path)
	}
	return walkXML(text, path)
}

// walkXML renders "element: text" lines for every element holding character
// data.
func walkXML(text, path string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(text))
	decoder.Strict = false

	var lines []string
	var stack []string

	for {
		tok, err := decoder.Token()
		if tok == nil {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing %s; %w", path, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			content := strings.TrimSpace(string(t))
			if content == "" {
				continue
			}
			name := ""
			if len(stack) > 0 {
				name = stack[len(stack)-1]
			}
			lines = append(lines, fmt.Sprintf("%s: %s", name, content))
		}
	}

	return strings.Join(lines, "\n"), nil
}
