package handlers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistryLastWriterWins(t *testing.T) {
	r := NewRegistry(nil)
	first := &TextHandler{}
	second := &CSVHandler{}

	r.Register(".txt", first)
	r.Register("txt", second) // dot is optional

	h, ok := r.Get(".TXT")
	require.True(t, ok)
	assert.Equal(t, "csv", h.Name())
}

func TestRegistryUnknownExtension(t *testing.T) {
	r := NewRegistry(nil)
	_, ok := r.Get(".xyz")
	assert.False(t, ok)
}

func TestDefaultRegistryCoversCoreFormats(t *testing.T) {
	r := DefaultRegistry(Options{})
	for _, ext := range []string{".pdf", ".docx", ".xlsx", ".csv", ".xml", ".html", ".json", ".eml", ".png", ".dxf", ".txt"} {
		_, ok := r.Get(ext)
		assert.True(t, ok, "missing handler for %s", ext)
	}
}

func TestDetectEncoding(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Encoding
	}{
		{"utf8 bom", []byte{0xEF, 0xBB, 0xBF, 'a'}, EncodingUTF8},
		{"utf16le bom", []byte{0xFF, 0xFE, 'a', 0}, EncodingUTF16LE},
		{"utf16be bom", []byte{0xFE, 0xFF, 0, 'a'}, EncodingUTF16BE},
		{"plain ascii", []byte("hello"), EncodingUTF8},
		{"valid utf8 umlauts", []byte("Gerät"), EncodingUTF8},
		{"latin1 umlauts", []byte{'G', 'e', 'r', 0xE4, 't'}, EncodingLatin1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectEncoding(tt.data))
		})
	}
}

func TestDecodeTextLatin1(t *testing.T) {
	got := DecodeText([]byte{'G', 'e', 'r', 0xE4, 't'})
	assert.Equal(t, "Gerät", got)
}

func TestDecodeTextUTF16LE(t *testing.T) {
	got := DecodeText([]byte{0xFF, 0xFE, 'a', 0, 'b', 0})
	assert.Equal(t, "ab", got)
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		want   rune
	}{
		{"semicolon", "a;b;c\n1;2;3\n4;5;6", ';'},
		{"comma", "a,b,c\n1,2,3", ','},
		{"tab", "a\tb\tc\n1\t2\t3", '\t'},
		{"semicolon beats embedded comma", "a;b;c\n1,5;2;3\n4;5,1;6", ';'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter(tt.sample))
		})
	}
}

func TestAnalyze(t *testing.T) {
	a := Analyze([]byte(`{"gtin": "4012345", "preis": 43}`))
	assert.True(t, a.JSONLike)
	assert.False(t, a.XMLPreamble)
	assert.Contains(t, a.DomainKeys, "gtin")
	assert.Contains(t, a.DomainKeys, "preis")

	x := Analyze([]byte(`<?xml version="1.0"?><BMECAT></BMECAT>`))
	assert.True(t, x.XMLPreamble)
	assert.True(t, x.MarkupTags)
	assert.Contains(t, x.DomainKeys, "bmecat")
}

func TestTextHandler(t *testing.T) {
	path := writeFile(t, "notes.txt", "Hallo Welt")
	text, err := (&TextHandler{}).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Hallo Welt", text)
}

func TestCSVHandler(t *testing.T) {
	path := writeFile(t, "produkte.csv", "sku;name;preis\nFRCDM-40;Schutzschalter;43,00\n")
	text, err := (&CSVHandler{}).Extract(context.Background(), path)
	require.NoError(t, err)

	lines := splitLines(text)
	require.Len(t, lines, 2)
	assert.Equal(t, "sku;name;preis", lines[0])
	assert.Contains(t, lines[1], "FRCDM-40")
}

func TestCSVHandlerEmptyFile(t *testing.T) {
	path := writeFile(t, "leer.csv", "")
	text, err := (&CSVHandler{}).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestJSONHandler(t *testing.T) {
	path := writeFile(t, "produkt.json", `{"product": {"gtin": "4062321283001", "prices": [43, 50]}}`)
	text, err := (&JSONHandler{}).Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Contains(t, text, "product.gtin: 4062321283001")
	assert.Contains(t, text, "product.prices[0]: 43")
	assert.Contains(t, text, "product.prices[1]: 50")
}

func TestXMLHandler(t *testing.T) {
	path := writeFile(t, "export.xml", `<?xml version="1.0"?><root><name>Schalter</name><preis>43</preis></root>`)
	text, err := (&XMLHandler{}).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "name: Schalter")
	assert.Contains(t, text, "preis: 43")
}

func TestXMLHandlerCatalog(t *testing.T) {
	catalog := `<?xml version="1.0"?>
<BMECAT version="1.2">
  <T_NEW_CATALOG>
    <ARTICLE>
      <SUPPLIER_AID>FRCDM-40</SUPPLIER_AID>
      <DESCRIPTION_SHORT>Fehlerstromschutzschalter</DESCRIPTION_SHORT>
      <EAN>4062321283001</EAN>
    </ARTICLE>
  </T_NEW_CATALOG>
</BMECAT>`
	path := writeFile(t, "katalog.xml", catalog)
	text, err := (&XMLHandler{}).Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Contains(t, text, "artikelnummer: FRCDM-40")
	assert.Contains(t, text, "name: Fehlerstromschutzschalter")
	assert.Contains(t, text, "gtin: 4062321283001")
}

func TestHTMLHandler(t *testing.T) {
	html := `<html><head><style>body{color:red}</style></head>
<body><h1>Produkte</h1><p>Schutzschalter f&uuml;r 43&nbsp;&euro;</p>
<script>alert(1)</script></body></html>`
	path := writeFile(t, "seite.html", html)
	text, err := (&HTMLHandler{}).Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Contains(t, text, "Produkte")
	assert.Contains(t, text, "Schutzschalter für 43 €")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color:red")
}

func TestEmailHandler(t *testing.T) {
	msg := "From: anna@example.de\r\nTo: vertrieb@example.de\r\nSubject: Bestellung\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nBitte 40 Schutzschalter liefern.\r\n"
	path := writeFile(t, "bestellung.eml", msg)
	text, err := (&EmailHandler{}).Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Contains(t, text, "From: anna@example.de")
	assert.Contains(t, text, "Subject: Bestellung")
	assert.Contains(t, text, "Bitte 40 Schutzschalter liefern.")
}

func TestCADHandler(t *testing.T) {
	dxf := "0\nSECTION\n2\nENTITIES\n0\nTEXT\n1\nSchaltplan FRCDM-40\n0\nENDSEC\n0\nEOF\n"
	path := writeFile(t, "plan.dxf", dxf)
	text, err := (&CADHandler{}).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "Schaltplan FRCDM-40")
}

func TestValidateSource(t *testing.T) {
	valid := "import sys\n\nclass XyzHandler:\n    def extract(self, path):\n        return open(path).read()\n\nif __name__ == \"__main__\":\n    print(XyzHandler().extract(sys.argv[1]))\n"
	assert.NoError(t, validateSource(valid))

	assert.Error(t, validateSource("def extract(path): pass"))
	assert.Error(t, validateSource("class X:\n    pass"))
	assert.Error(t, validateSource("class X:\n    def extract(self, path): pass"))
}

func TestGeneratorLoadPersisted(t *testing.T) {
	store := t.TempDir()
	script := filepath.Join(store, "xyz_handler.py")
	require.NoError(t, os.WriteFile(script, []byte("print('x')"), 0o644))

	g := NewGenerator(nil, store)
	r := NewRegistry(nil)
	require.NoError(t, g.LoadPersisted(r))

	h, ok := r.Get(".xyz")
	require.True(t, ok)
	assert.Equal(t, "adaptive:xyz_handler", h.Name())
}

func TestGeneratorUnavailableWithoutProvider(t *testing.T) {
	g := NewGenerator(nil, t.TempDir())
	assert.False(t, g.Available())
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

func TestDefaultRegistryLegacySpreadsheet(t *testing.T) {
	r := DefaultRegistry(Options{})
	h, ok := r.Get(".xls")
	require.True(t, ok)
	assert.Equal(t, "spreadsheet-legacy", h.Name())

	// Modern containers keep the direct extractor.
	h, ok = r.Get(".xlsx")
	require.True(t, ok)
	assert.Equal(t, "spreadsheet", h.Name())
}

func TestLegacySpreadsheetMissingInput(t *testing.T) {
	h := &LegacySpreadsheetHandler{inner: &SpreadsheetHandler{}}
	_, err := h.Extract(context.Background(), filepath.Join(t.TempDir(), "fehlt.xls"))
	assert.Error(t, err)
}
