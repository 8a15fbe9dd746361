package handlers

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// isCatalogXML recognizes BMEcat-style catalog exports.
func isCatalogXML(text string) bool {
	head := text
	if len(head) > 2048 {
		head = head[:2048]
	}
	upper := strings.ToUpper(head)
	return strings.Contains(upper, "<BMECAT") || strings.Contains(upper, "<T_NEW_CATALOG")
}

// catalogFieldNames are the element names whose character data describes a
// product in BMEcat exports.
var catalogFieldNames = map[string]string{
	"SUPPLIER_AID":      "artikelnummer",
	"INTERNATIONAL_AID": "gtin",
	"EAN":               "gtin",
	"DESCRIPTION_SHORT": "name",
	"DESCRIPTION_LONG":  "beschreibung",
	"MANUFACTURER_NAME": "hersteller",
	"PRICE_AMOUNT":      "preis",
	"PRICE_CURRENCY":    "währung",
	"ORDER_UNIT":        "einheit",
	"KEYWORD":           "stichwort",
}

// extractCatalog renders one labeled line per product field, with a blank
// line between articles.
func extractCatalog(text, path string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(text))
	decoder.Strict = false

	var lines []string
	var current string
	inArticle := false

	for {
		tok, err := decoder.Token()
		if tok == nil {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing catalog %s; %w", path, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToUpper(t.Name.Local)
			if name == "ARTICLE" || name == "PRODUCT" {
				if inArticle && len(lines) > 0 && lines[len(lines)-1] != "" {
					lines = append(lines, "")
				}
				inArticle = true
			}
			current = name
		case xml.EndElement:
			current = ""
		case xml.CharData:
			label, known := catalogFieldNames[current]
			if !known {
				continue
			}
			content := strings.TrimSpace(string(t))
			if content == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s: %s", label, content))
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
