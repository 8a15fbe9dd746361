package mapper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christoph-ui/lakecore/internal/document"
	"github.com/christoph-ui/lakecore/internal/providers"
)

type stubChat struct {
	response string
	err      error
}

func (s *stubChat) Name() string                         { return "stub" }
func (s *stubChat) Type() providers.ProviderType         { return providers.ProviderTypeChat }
func (s *stubChat) Available() bool                      { return true }
func (s *stubChat) RateLimit() providers.RateLimitConfig { return providers.RateLimitConfig{} }
func (s *stubChat) ModelName() string                    { return "stub-model" }

func (s *stubChat) Complete(_ context.Context, _ providers.ChatRequest) (string, error) {
	return s.response, s.err
}

var testDeployment = &document.DeploymentContext{
	CustomerID:          "acme",
	CompanyName:         "Acme Elektro GmbH",
	Industry:            "Elektrotechnik",
	SourceFormat:        "JSON",
	TransformationRules: "Preise sind Nettopreise in Euro.",
}

func TestEligible(t *testing.T) {
	assert.True(t, Eligible(testDeployment, document.CategoryProducts))
	assert.False(t, Eligible(nil, document.CategoryProducts))
	assert.False(t, Eligible(testDeployment, document.CategoryLegal))
}

func TestExtractProductRecord(t *testing.T) {
	chat := &stubChat{response: `{
		"products": [{"gtin": "4062321283001", "name": "FRCDM-40", "price": 43}],
		"syndication_products": [{"gtin": "4062321283001", "title": "FRCDM-40"}],
		"data_quality": []
	}`}
	m := New(chat)

	fd := &document.FileDescriptor{Name: "produkte.json", Text: `{"gtin": "4062321283001"}`}
	out, err := m.Extract(context.Background(), testDeployment, fd)
	require.NoError(t, err)

	require.Len(t, out.Products, 1)
	assert.Equal(t, "4062321283001", out.Products[0]["gtin"])
	assert.Equal(t, "43.00", out.Products[0]["price"])
	assert.Equal(t, "EUR", out.Products[0]["currency"])

	require.Len(t, out.SyndicationProducts, 1)
	assert.Equal(t, "4062321283001", out.SyndicationProducts[0]["id"])

	require.Len(t, out.DataQuality, 1)
	assert.Equal(t, "structured_extraction", out.DataQuality[0]["check_name"])
}

func TestExtractDropsRecordsWithoutPrimaryKey(t *testing.T) {
	chat := &stubChat{response: `{
		"products": [
			{"name": "ohne GTIN", "price": 10},
			{"gtin": "123", "name": "mit GTIN"}
		]
	}`}
	m := New(chat)

	fd := &document.FileDescriptor{Name: "produkte.json", Text: "x"}
	out, err := m.Extract(context.Background(), testDeployment, fd)
	require.NoError(t, err)

	require.Len(t, out.Products, 1)
	assert.Equal(t, "123", out.Products[0]["gtin"])

	require.Len(t, out.DataQuality, 1)
	assert.Equal(t, "partial", out.DataQuality[0]["status"])
}

func TestExtractUnknownFieldsToMetadata(t *testing.T) {
	chat := &stubChat{response: `{
		"products": [{"gtin": "123", "farbe": "rot", "spannung": "230V"}]
	}`}
	m := New(chat)

	fd := &document.FileDescriptor{Name: "produkte.json", Text: "x"}
	out, err := m.Extract(context.Background(), testDeployment, fd)
	require.NoError(t, err)

	require.Len(t, out.Products, 1)
	meta, ok := out.Products[0]["metadata"].(string)
	require.True(t, ok)
	assert.Contains(t, meta, "farbe")
	assert.Contains(t, meta, "rot")
}

func TestExtractFencedResponse(t *testing.T) {
	chat := &stubChat{response: "```json\n{\"products\": [{\"gtin\": \"99\"}]}\n```"}
	m := New(chat)

	fd := &document.FileDescriptor{Name: "p.json", Text: "x"}
	out, err := m.Extract(context.Background(), testDeployment, fd)
	require.NoError(t, err)
	assert.Len(t, out.Products, 1)
}

func TestExtractBadJSON(t *testing.T) {
	chat := &stubChat{response: "not json at all"}
	m := New(chat)

	fd := &document.FileDescriptor{Name: "p.json", Text: "x"}
	_, err := m.Extract(context.Background(), testDeployment, fd)
	assert.Error(t, err)
}

func TestCoerceMoney(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{43.0, "43.00"},
		{43.5, "43.50"},
		{"43", "43.00"},
		{"129,99", "129.99"},
		{"129,99 €", "129.99"},
		{"12 EUR", "12.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, coerceMoney(tt.in), "input %v", tt.in)
	}
}

func TestCoerceTimestamp(t *testing.T) {
	assert.Equal(t, "2025-05-15T00:00:00Z", coerceTimestamp("2025-05-15"))
	assert.Equal(t, "2025-05-15T00:00:00Z", coerceTimestamp("15.05.2025"))
	assert.Equal(t, "kein datum", coerceTimestamp("kein datum"))
}

func TestCoerceScalarSerializesObjects(t *testing.T) {
	got := coerceScalar(map[string]any{"a": 1})
	s, ok := got.(string)
	require.True(t, ok)
	assert.Contains(t, s, `"a"`)
}

func TestOutputMerge(t *testing.T) {
	a := Output{Products: []map[string]any{{"gtin": "1"}}}
	b := Output{Products: []map[string]any{{"gtin": "2"}}, DataQuality: []map[string]any{{"id": "x"}}}
	a.Merge(b)
	assert.Len(t, a.Products, 2)
	assert.Len(t, a.DataQuality, 1)
	assert.False(t, a.Empty())
	empty := Output{}
	assert.True(t, empty.Empty())
}
