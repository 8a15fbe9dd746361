package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// PDFHandler extracts the text layer via pdftotext and falls back to
// rasterize-plus-OCR when the layer is shorter than the floor.
type PDFHandler struct {
	// OCRFloor is the text-layer length below which OCR is attempted.
	OCRFloor int

	// OCREnabled gates the subprocess fallback entirely.
	OCREnabled bool

	logger *slog.Logger
}

var _ Handler = (*PDFHandler)(nil)

func (h *PDFHandler) Name() string { return "pdf" }

const subprocessTimeout = 120 * time.Second

func (h *PDFHandler) Extract(ctx context.Context, path string) (string, error) {
	text, err := pdfTextLayer(ctx, path)
	if err != nil {
		return "", err
	}

	if len(strings.TrimSpace(text)) >= h.OCRFloor {
		return text, nil
	}

	if !h.OCREnabled {
		// Below the floor without OCR the text layer is all there is.
		return strings.TrimSpace(text), nil
	}

	logger := h.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("pdf text layer below floor, running ocr",
		"path", path, "layer_length", len(strings.TrimSpace(text)))

	ocrText, err := h.ocr(ctx, path)
	if err != nil {
		logger.Warn("pdf ocr failed, keeping text layer", "path", path, "error", err)
		return strings.TrimSpace(text), nil
	}
	return ocrText, nil
}

func pdfTextLayer(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, subprocessTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext on %s; %w", path, err)
	}
	return string(out), nil
}

// ocr rasterizes every page with pdftoppm and runs tesseract over the
// images.
func (h *PDFHandler) ocr(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, subprocessTimeout)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "lakecore-ocr-*")
	if err != nil {
		return "", fmt.Errorf("creating ocr scratch dir; %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-r", "300", "-png", path, prefix)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("rasterizing %s; %w", path, err)
	}

	pages, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(pages) == 0 {
		return "", fmt.Errorf("no pages rasterized for %s", path)
	}
	sort.Strings(pages)

	var parts []string
	for _, page := range pages {
		text, err := runTesseract(ctx, page)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, strings.TrimSpace(text))
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func runTesseract(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, "tesseract", imagePath, "stdout", "-l", "deu+eng")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract on %s; %w", imagePath, err)
	}
	return string(out), nil
}
