package tabular

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christoph-ui/lakecore/internal/document"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesStandardTables(t *testing.T) {
	s := openTestStore(t)

	tables, err := s.Tables(context.Background())
	require.NoError(t, err)
	assert.Contains(t, tables, "products")
	assert.Contains(t, tables, "syndication_products")
	assert.Contains(t, tables, "data_quality_audit")
}

func TestAppendAndQueryProducts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Append(ctx, "products", "acme", []map[string]any{
		{"gtin": "4062321283001", "name": "FRCDM-40", "price": "43.00", "currency": "EUR"},
	})
	require.NoError(t, err)

	it, err := s.Query(ctx, "products", []string{"gtin", "price", "currency"}, "acme")
	require.NoError(t, err)
	defer it.Close()

	row, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "4062321283001", row["gtin"])
	assert.Equal(t, "43.00", row["price"])
	assert.Equal(t, "EUR", row["currency"])

	_, ok, err = it.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppendMergesOnPrimaryKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, price := range []string{"43.00", "45.00"} {
		err := s.Append(ctx, "products", "acme", []map[string]any{
			{"gtin": "123", "price": price},
		})
		require.NoError(t, err)
	}

	count, err := s.RowCount(ctx, "products", "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	it, err := s.Query(ctx, "products", []string{"price"}, "acme")
	require.NoError(t, err)
	defer it.Close()
	row, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "45.00", row["price"])
}

func TestSchemaEvolution(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Append(ctx, "products", "acme", []map[string]any{
		{"gtin": "1", "voltage_rating": "230V"},
	})
	require.NoError(t, err)

	it, err := s.Query(ctx, "products", []string{"gtin", "voltage_rating"}, "acme")
	require.NoError(t, err)
	defer it.Close()

	row, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "230V", row["voltage_rating"])

	// Rows without the evolved column read back as nulls.
	err = s.Append(ctx, "products", "acme", []map[string]any{{"gtin": "2"}})
	require.NoError(t, err)
}

func TestCustomerIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "products", "acme", []map[string]any{{"gtin": "a1"}}))
	require.NoError(t, s.Append(ctx, "products", "other", []map[string]any{{"gtin": "o1"}}))

	count, err := s.RowCount(ctx, "products", "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	it, err := s.Query(ctx, "products", []string{"gtin"}, "acme")
	require.NoError(t, err)
	defer it.Close()
	row, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a1", row["gtin"])
}

func TestAppendDocumentsAndChunks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fd := &document.FileDescriptor{
		ID:        document.DocumentID("/data/katalog.csv"),
		Path:      "/data/katalog.csv",
		Name:      "katalog.csv",
		Extension: ".csv",
		Size:      120,
		ModTime:   time.Now(),
		MIMEType:  "text/csv",
		Text:      "sku;name\n1;a",
		Chunks: []document.Chunk{
			{ID: document.ChunkID(document.DocumentID("/data/katalog.csv"), 0), DocumentID: document.DocumentID("/data/katalog.csv"), Ordinal: 0, Text: "sku;name\n1;a", CharCount: 12, WordCount: 2},
		},
	}

	require.NoError(t, s.AppendDocuments(ctx, "acme", document.CategoryProducts, []*document.FileDescriptor{fd}))
	require.NoError(t, s.AppendChunks(ctx, "acme", document.CategoryProducts, fd.Chunks))

	docs, err := s.RowCount(ctx, "products_documents", "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, docs)

	chunks, err := s.RowCount(ctx, "products_chunks", "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, chunks)

	// Re-ingesting the same file must not duplicate rows.
	require.NoError(t, s.AppendDocuments(ctx, "acme", document.CategoryProducts, []*document.FileDescriptor{fd}))
	docs, err = s.RowCount(ctx, "products_documents", "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, docs)
}

func TestQueryUnknownTable(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Query(context.Background(), "missing", nil, "acme")
	assert.Error(t, err)
}

func TestAppendUnknownTable(t *testing.T) {
	s := openTestStore(t)
	err := s.Append(context.Background(), "bogus", "acme", []map[string]any{{"id": "1"}})
	assert.Error(t, err)
}

func TestVacuumRemovesOldRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureCategoryTables(ctx, document.CategoryGeneral))
	old := time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339)
	require.NoError(t, s.Append(ctx, "general_documents", "acme", []map[string]any{
		{"id": "old", "ingested_at": old},
	}))
	require.NoError(t, s.AppendDocuments(ctx, "acme", document.CategoryGeneral, []*document.FileDescriptor{
		{ID: "fresh", Path: "/p", Name: "p.txt", ModTime: time.Now()},
	}))

	deleted, err := s.Vacuum(ctx, "general_documents", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	count, err := s.RowCount(ctx, "general_documents", "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCompact(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Compact(context.Background()))
}
