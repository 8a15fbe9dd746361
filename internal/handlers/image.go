package handlers

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageHandler describes an image by its decoded dimensions and, when
// enabled, OCRs visible text out of it.
type ImageHandler struct {
	OCREnabled bool
	logger     *slog.Logger
}

var _ Handler = (*ImageHandler)(nil)

func (h *ImageHandler) Name() string { return "image" }

func (h *ImageHandler) Extract(ctx context.Context, path string) (string, error) {
	var b strings.Builder

	if cfg, format, err := decodeConfig(path); err == nil {
		fmt.Fprintf(&b, "Bild: %s (%s, %dx%d)\n",
			filepath.Base(path), format, cfg.Width, cfg.Height)
	} else {
		fmt.Fprintf(&b, "Bild: %s\n", filepath.Base(path))
	}

	if h.OCREnabled {
		text, err := runTesseract(ctx, path)
		if err != nil {
			logger := h.logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("image ocr failed", "path", path, "error", err)
		} else if strings.TrimSpace(text) != "" {
			b.WriteString("\n")
			b.WriteString(strings.TrimSpace(text))
		}
	}

	return strings.TrimSpace(b.String()), nil
}

func decodeConfig(path string) (image.Config, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer f.Close()
	return image.DecodeConfig(f)
}
