package handlers

import (
	"context"
	"fmt"
	"os"
)

// TextHandler reads plain-text files under the sniffed encoding.
type TextHandler struct{}

var _ Handler = (*TextHandler)(nil)

func (h *TextHandler) Name() string { return "text" }

func (h *TextHandler) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s; %w", path, err)
	}
	return DecodeText(data), nil
}
