package deployment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDescriptor = `# Deployment

**Company Name:** Acme Elektro GmbH
**Industry:** Elektrotechnik
**Source Format:** JSON

## Ingestion Instructions

Preise sind Nettopreise in Euro.
GTIN steht im Feld "ean".

## Notes

Internes, nicht relevant.
`

func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, DescriptorFilename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	ctx, err := Load(writeDescriptor(t, sampleDescriptor))
	require.NoError(t, err)

	assert.Equal(t, "Acme Elektro GmbH", ctx.CompanyName)
	assert.Equal(t, "Elektrotechnik", ctx.Industry)
	assert.Equal(t, "JSON", ctx.SourceFormat)
	assert.Contains(t, ctx.TransformationRules, "Nettopreise in Euro")
	assert.Contains(t, ctx.TransformationRules, `GTIN steht im Feld "ean".`)
	assert.NotContains(t, ctx.TransformationRules, "nicht relevant")
}

func TestLoadPlainFields(t *testing.T) {
	ctx, err := Load(writeDescriptor(t, "Company Name: Acme\nIndustry: Handel\nSource Format: CSV\n"))
	require.NoError(t, err)
	assert.Equal(t, "Acme", ctx.CompanyName)
	assert.Equal(t, "Handel", ctx.Industry)
	assert.Equal(t, "CSV", ctx.SourceFormat)
	assert.Empty(t, ctx.TransformationRules)
}

func TestLoadMissingCompanyName(t *testing.T) {
	_, err := Load(writeDescriptor(t, "Industry: Handel\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.md"))
	assert.Error(t, err)
}
