package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// JSONHandler renders JSON documents as one "key.path: value" line per leaf,
// which keeps product exports searchable as plain text.
type JSONHandler struct{}

var _ Handler = (*JSONHandler)(nil)

func (h *JSONHandler) Name() string { return "json" }

func (h *JSONHandler) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s; %w", path, err)
	}

	var root any
	if err := json.Unmarshal([]byte(DecodeText(data)), &root); err != nil {
		return "", fmt.Errorf("parsing %s; %w", path, err)
	}

	var lines []string
	renderJSON("", root, &lines)
	return strings.Join(lines, "\n"), nil
}

func renderJSON(prefix string, node any, lines *[]string) {
	switch v := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			renderJSON(joinPath(prefix, k), v[k], lines)
		}
	case []any:
		for i, item := range v {
			renderJSON(fmt.Sprintf("%s[%d]", prefix, i), item, lines)
		}
	case nil:
		// Null leaves carry no text.
	default:
		*lines = append(*lines, fmt.Sprintf("%s: %v", prefix, v))
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
