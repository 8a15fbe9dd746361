package handlers

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// LegacySpreadsheetHandler converts pre-OOXML workbooks (.xls) to .xlsx with
// a libreoffice subprocess and reuses the container extractor on the result.
type LegacySpreadsheetHandler struct {
	inner *SpreadsheetHandler
}

var _ Handler = (*LegacySpreadsheetHandler)(nil)

func (h *LegacySpreadsheetHandler) Name() string { return "spreadsheet-legacy" }

func (h *LegacySpreadsheetHandler) Extract(ctx context.Context, path string) (string, error) {
	converted, cleanup, err := convertToXLSX(ctx, path)
	if err != nil {
		return "", err
	}
	defer cleanup()
	return h.inner.Extract(ctx, converted)
}

// convertToXLSX writes the converted workbook into a scratch directory and
// returns its path with a cleanup function for the directory.
func convertToXLSX(ctx context.Context, path string) (string, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, subprocessTimeout)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "lakecore-convert-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating conversion scratch dir; %w", err)
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	cmd := exec.CommandContext(ctx, "libreoffice", "--headless",
		"--convert-to", "xlsx", "--outdir", tmpDir, path)
	if err := cmd.Run(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("converting %s to xlsx; %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	converted := filepath.Join(tmpDir, base+".xlsx")
	if _, err := os.Stat(converted); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("conversion of %s produced no workbook; %w", path, err)
	}
	return converted, cleanup, nil
}
