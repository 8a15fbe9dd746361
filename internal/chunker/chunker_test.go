package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want Strategy
	}{
		{".csv", StrategyTabular},
		{".xlsx", StrategyTabular},
		{".py", StrategyCode},
		{".go", StrategyCode},
		{".json", StrategyStructured},
		{".html", StrategyStructured},
		{".txt", StrategyProse},
		{".pdf", StrategyProse},
		{"", StrategyProse},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, ForExtension(tt.ext))
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"crlf", "a\r\nb", "a\nb"},
		{"newline runs", "a\n\n\n\nb", "a\n\nb"},
		{"space runs", "a    b", "a b"},
		{"tabs", "a\t\tb", "a b"},
		{"trim", "  a  ", "a"},
		{"empty", "   \n\n  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	input := "Erster Absatz.\r\n\r\n\r\nZweiter   Absatz\tmit Tabs.\n"
	once := Normalize(input)
	assert.Equal(t, once, Normalize(once))
}

func TestChunkEmptyInput(t *testing.T) {
	c := New(DefaultOptions())
	chunks := c.Chunk("doc1", "", ".txt")
	assert.Empty(t, chunks)

	chunks = c.Chunk("doc1", "   \n\n  ", ".txt")
	assert.Empty(t, chunks)
}

func TestChunkBelowMinimumSingleChunk(t *testing.T) {
	c := New(Options{MaxChunkSize: 2000, MinChunkSize: 100, Overlap: 200})
	chunks := c.Chunk("doc1", "Kurzer Text.", ".txt")
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc1_0", chunks[0].ID)
	assert.Equal(t, "Kurzer Text.", chunks[0].Text)
}

func TestChunkProseRespectsBounds(t *testing.T) {
	c := New(Options{MaxChunkSize: 300, MinChunkSize: 50, Overlap: 60})

	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Die Firma liefert Schutzschalter und Relais an Kunden in ganz Europa. ")
		if i%4 == 3 {
			b.WriteString("\n\n")
		}
	}

	chunks := c.Chunk("doc1", b.String(), ".txt")
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 300, "chunk %d over max", i)
		assert.GreaterOrEqual(t, utf8.RuneCountInString(ch.Text), 50, "chunk %d under min", i)
		assert.Equal(t, i, ch.Ordinal)
		assert.Equal(t, "doc1", ch.DocumentID)
	}
}

func TestChunkProseOverlap(t *testing.T) {
	c := New(Options{MaxChunkSize: 200, MinChunkSize: 20, Overlap: 50})

	p1 := strings.Repeat("Alpha beta gamma delta. ", 7)
	p2 := strings.Repeat("Epsilon zeta eta theta. ", 7)
	chunks := c.Chunk("doc1", p1+"\n\n"+p2, ".txt")
	require.Greater(t, len(chunks), 1)

	// The second chunk starts with words carried over from the first.
	firstWords := strings.Fields(chunks[0].Text)
	lastWord := firstWords[len(firstWords)-1]
	assert.Contains(t, chunks[1].Text, lastWord)
}

func TestChunkTabularHeaderOnEveryChunk(t *testing.T) {
	c := New(Options{MaxChunkSize: 200, MinChunkSize: 20, Overlap: 0})

	var b strings.Builder
	b.WriteString("sku;name;price\n")
	for i := 0; i < 30; i++ {
		b.WriteString("FRCDM-40;Fehlerstromschutzschalter;129.00\n")
	}

	chunks := c.Chunk("doc1", b.String(), ".csv")
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.True(t, strings.HasPrefix(ch.Text, "sku;name;price"), "chunk %d missing header", i)
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 200)
		// A header-only chunk carries no data rows and must not survive.
		assert.Greater(t, strings.Count(ch.Text, "\n"), 0, "chunk %d header-only", i)
	}
}

func TestChunkTabularHeaderOnly(t *testing.T) {
	c := New(Options{MaxChunkSize: 200, MinChunkSize: 5, Overlap: 0})
	chunks := c.Chunk("doc1", "sku;name;price", ".csv")
	require.Len(t, chunks, 1)
	assert.Equal(t, "sku;name;price", chunks[0].Text)
}

func TestChunkCodeBreaksAtDefinitions(t *testing.T) {
	c := New(Options{MaxChunkSize: 400, MinChunkSize: 30, Overlap: 0})

	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteString("def handler():\n")
		b.WriteString("    value = compute()\n")
		b.WriteString("    return value\n")
		b.WriteString("\n")
	}

	chunks := c.Chunk("doc1", b.String(), ".py")
	require.Greater(t, len(chunks), 1)

	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 400)
	}
	// Chunks after the first begin at a definition boundary.
	for _, ch := range chunks[1:] {
		firstLine := strings.SplitN(ch.Text, "\n", 2)[0]
		assert.True(t, isCodeBoundary(firstLine), "chunk starts mid-function: %q", firstLine)
	}
}

func TestChunkStructuredPacksLines(t *testing.T) {
	c := New(Options{MaxChunkSize: 150, MinChunkSize: 10, Overlap: 0})

	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("<product><sku>FRCDM-40</sku></product>\n")
	}

	chunks := c.Chunk("doc1", b.String(), ".xml")
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 150)
	}
}

func TestChunkIDsSequential(t *testing.T) {
	c := New(Options{MaxChunkSize: 120, MinChunkSize: 10, Overlap: 0})
	text := strings.Repeat("Ein Satz mit etwas Inhalt darin. ", 20)

	chunks := c.Chunk("abc", text, ".txt")
	require.Greater(t, len(chunks), 1)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Ordinal)
		assert.Contains(t, ch.ID, "abc_")
	}
}

func TestSplitSentencesGermanOrdinals(t *testing.T) {
	sentences := splitSentences("Die Messe findet am 15. Mai statt. Danach folgt die Auswertung.")
	require.Len(t, sentences, 2)
	assert.Equal(t, "Die Messe findet am 15. Mai statt.", sentences[0])
	assert.Equal(t, "Danach folgt die Auswertung.", sentences[1])
}

func TestSplitSentencesAbbreviations(t *testing.T) {
	sentences := splitSentences("Wir liefern z.B. nach Bonn. Der Versand erfolgt morgen.")
	require.Len(t, sentences, 2)
	assert.Contains(t, sentences[0], "z.B.")
}

func TestHardWrap(t *testing.T) {
	pieces := hardWrap(strings.Repeat("wort ", 100), 120)
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		assert.LessOrEqual(t, utf8.RuneCountInString(p), 120)
	}
}

func TestChunkTabularOversizedRowWrapped(t *testing.T) {
	c := New(Options{MaxChunkSize: 200, MinChunkSize: 20, Overlap: 0})

	header := "sku;name;description;price"
	row := strings.TrimRight(strings.Repeat("wert42;", 100), ";")
	require.Greater(t, utf8.RuneCountInString(row), 600)

	chunks := c.Chunk("doc1", header+"\n"+row+"\nFRCDM-40;Schalter;kompakt;129.00", ".csv")
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.LessOrEqual(t, ch.CharCount, 200, "chunk %d oversized", i)
		assert.True(t, strings.HasPrefix(ch.Text, header+"\n"), "chunk %d missing header", i)
	}
	assert.Contains(t, chunks[len(chunks)-1].Text, "FRCDM-40")
}

func TestChunkCodeOversizedLineWrapped(t *testing.T) {
	c := New(Options{MaxChunkSize: 200, MinChunkSize: 20, Overlap: 0})

	long := "werte = [" + strings.TrimRight(strings.Repeat("\"eintrag\", ", 40), ", ") + "]"
	require.Greater(t, utf8.RuneCountInString(long), 200)
	src := "def lade_werte():\n    return werte\n\n" + long

	chunks := c.Chunk("doc1", src, ".py")
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.LessOrEqual(t, ch.CharCount, 200, "chunk %d oversized", i)
	}
	joined := ""
	for _, ch := range chunks {
		joined += ch.Text
	}
	assert.Contains(t, joined, "eintrag")
}
