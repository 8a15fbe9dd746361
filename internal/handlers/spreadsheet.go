package handlers

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// SpreadsheetHandler extracts cell text from .xlsx and .ods containers. Rows
// come out semicolon-joined so the tabular chunker sees one line per row.
type SpreadsheetHandler struct{}

var _ Handler = (*SpreadsheetHandler)(nil)

func (h *SpreadsheetHandler) Name() string { return "spreadsheet" }

func (h *SpreadsheetHandler) Extract(_ context.Context, path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening %s; %w", path, err)
	}
	defer r.Close()

	if f, err := openZipEntry(&r.Reader, "xl/workbook.xml"); err == nil {
		f.Close()
		return extractXLSX(&r.Reader, path)
	}
	if f, err := openZipEntry(&r.Reader, "content.xml"); err == nil {
		defer f.Close()
		return extractODSContent(f, path)
	}
	return "", fmt.Errorf("%s holds no recognizable workbook", path)
}

func extractXLSX(r *zip.Reader, path string) (string, error) {
	shared, err := readSharedStrings(r)
	if err != nil {
		return "", fmt.Errorf("reading shared strings of %s; %w", path, err)
	}

	var sheetNames []string
	for _, f := range r.File {
		if strings.HasPrefix(f.Name, "xl/worksheets/sheet") && strings.HasSuffix(f.Name, ".xml") {
			sheetNames = append(sheetNames, f.Name)
		}
	}
	sort.Strings(sheetNames)

	var sheets []string
	for _, name := range sheetNames {
		f, err := openZipEntry(r, name)
		if err != nil {
			continue
		}
		text, err := readSheet(f, shared)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("reading %s of %s; %w", name, path, err)
		}
		if text != "" {
			sheets = append(sheets, text)
		}
	}

	return strings.Join(sheets, "\n\n"), nil
}

func readSharedStrings(r *zip.Reader) ([]string, error) {
	f, err := openZipEntry(r, "xl/sharedStrings.xml")
	if err != nil {
		return nil, nil // workbook without shared strings
	}
	defer f.Close()

	decoder := xml.NewDecoder(f)
	var shared []string
	var current strings.Builder
	depth := 0

	for {
		tok, err := decoder.Token()
		if tok == nil {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "si" {
				depth++
				current.Reset()
			}
		case xml.EndElement:
			if t.Name.Local == "si" && depth > 0 {
				depth--
				shared = append(shared, current.String())
			}
		case xml.CharData:
			if depth > 0 {
				current.Write(t)
			}
		}
	}
	return shared, nil
}

type xlsxCell struct {
	R string `xml:"r,attr"`
	T string `xml:"t,attr"`
	V string `xml:"v"`
	// Inline strings nest the value one level deeper.
	IS struct {
		T string `xml:"t"`
	} `xml:"is"`
}

type xlsxRow struct {
	Cells []xlsxCell `xml:"c"`
}

func readSheet(r io.Reader, shared []string) (string, error) {
	decoder := xml.NewDecoder(r)

	var lines []string
	for {
		tok, err := decoder.Token()
		if tok == nil {
			break
		}
		if err != nil {
			return "", err
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "row" {
			continue
		}

		var row xlsxRow
		if err := decoder.DecodeElement(&row, &start); err != nil {
			return "", err
		}

		var cells []string
		for _, c := range row.Cells {
			value := c.V
			switch c.T {
			case "s":
				idx, err := strconv.Atoi(c.V)
				if err == nil && idx >= 0 && idx < len(shared) {
					value = shared[idx]
				}
			case "inlineStr":
				value = c.IS.T
			}
			cells = append(cells, strings.TrimSpace(value))
		}
		line := strings.TrimRight(strings.Join(cells, ";"), ";")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n"), nil
}

// extractODSContent walks OpenDocument table markup.
func extractODSContent(r io.Reader, path string) (string, error) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false

	var lines []string
	var cells []string
	var current strings.Builder
	inCell := false

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
			if t.Name.Local == "table-cell" {
				inCell = true
				current.Reset()
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "table-cell":
				inCell = false
				cells = append(cells, strings.TrimSpace(current.String()))
			case "table-row":
				line := strings.TrimRight(strings.Join(cells, ";"), ";")
				if strings.TrimSpace(line) != "" {
					lines = append(lines, line)
				}
				cells = nil
			}
		case xml.CharData:
			if inCell {
				current.Write(t)
			}
		}
	}

	return strings.Join(lines, "\n"), nil
}
