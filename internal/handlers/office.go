package handlers

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// OfficeHandler extracts text from OOXML (.docx) and OpenDocument (.odt)
// files by tag-walking the document XML inside the ZIP container.
type OfficeHandler struct{}

var _ Handler = (*OfficeHandler)(nil)

func (h *OfficeHandler) Name() string { return "office" }

// documentParts lists the ZIP entries holding the body text, per container
// flavor.
var documentParts = []string{"word/document.xml", "content.xml"}

func (h *OfficeHandler) Extract(_ context.Context, path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening %s; %w", path, err)
	}
	defer r.Close()

	for _, part := range documentParts {
		f, err := openZipEntry(&r.Reader, part)
		if err != nil {
			continue
		}
		text, err := officeXMLText(f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("parsing %s in %s; %w", part, path, err)
		}
		return text, nil
	}

	return "", fmt.Errorf("%s holds no recognizable document part", path)
}

func openZipEntry(r *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range r.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("entry %s not found", name)
}

// officeXMLText collects character data, inserting paragraph breaks at the
// paragraph elements both formats share ("p") and explicit breaks/tabs.
func officeXMLText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false

	var b strings.Builder
	for {
		tok, err := decoder.Token()
		if tok == nil {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "br", "line-break":
				b.WriteString("\n")
			case "tab":
				b.WriteString("\t")
			}
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "h" {
				b.WriteString("\n\n")
			}
		case xml.CharData:
			b.Write(t)
		}
	}

	return strings.TrimSpace(b.String()), nil
}
