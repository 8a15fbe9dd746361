package graphstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/christoph-ui/lakecore/internal/document"
)

func TestNilStoreIsNoOp(t *testing.T) {
	var s *Store
	ctx := context.Background()

	assert.False(t, s.IsConnected())
	assert.NoError(t, s.Start(ctx))
	assert.NoError(t, s.Stop(ctx))
	assert.NoError(t, s.UpsertDocument(ctx, "acme", "doc1", "a.txt", document.CategoryGeneral))
	assert.NoError(t, s.UpsertEntity(ctx, "acme", document.Entity{Text: "Eaton", Type: document.EntityOrg}))
	assert.NoError(t, s.LinkMention(ctx, "acme", "doc1", "ent_x"))
	assert.NoError(t, s.Flush(ctx))
}

func TestDisconnectedWritesAreNoOps(t *testing.T) {
	s := New()
	ctx := context.Background()

	assert.NoError(t, s.UpsertDocument(ctx, "acme", "doc1", "a.txt", document.CategoryGeneral))
	assert.NoError(t, s.UpsertRelationship(ctx, "acme", document.Relationship{
		SourceID: "a", TargetID: "b", Type: document.RelProduces,
	}))

	top, err := s.TopEntities(ctx, "acme", 5)
	assert.NoError(t, err)
	assert.Nil(t, top)
}

func TestValidRelationType(t *testing.T) {
	assert.True(t, validRelationType(document.RelProducedBy))
	assert.True(t, validRelationType(document.RelMentions))
	assert.False(t, validRelationType(document.RelationType("DROP_ALL")))
}

func TestEscapeString(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeString("O'Brien"))
	assert.Equal(t, `a\\b`, escapeString(`a\b`))
	assert.Equal(t, "plain", escapeString("plain"))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 6379, cfg.Port)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 3, cfg.MaxHops)
}

func TestUpsertEntityQueryMergeSemantics(t *testing.T) {
	e := document.Entity{Text: "Eaton Industries GmbH", Type: document.EntityOrg}
	q := upsertEntityQuery("acme", e, 1700000000)

	assert.Contains(t, q, "MERGE (e:Entity {id: '"+e.ID()+"'})")

	// First sighting initializes the counters.
	assert.Contains(t, q, "ON CREATE SET e.text = 'Eaton Industries GmbH'")
	assert.Contains(t, q, "e.count = 1")
	assert.Contains(t, q, "e.first_seen = 1700000000")
	assert.Contains(t, q, "e.customer_id = 'acme'")

	// Every later sighting increments the count and advances last_seen
	// without touching first_seen.
	assert.Contains(t, q, "ON MATCH SET e.count = e.count + 1")
	onMatch := q[strings.Index(q, "ON MATCH"):]
	assert.Contains(t, onMatch, "e.last_seen = 1700000000")
	assert.NotContains(t, onMatch, "first_seen")
}

func TestUpsertEntityQueryEscapesText(t *testing.T) {
	e := document.Entity{Text: "O'Brien & Söhne", Type: document.EntityOrg}
	q := upsertEntityQuery("acme", e, 1700000000)
	assert.Contains(t, q, `O\'Brien & Söhne`)
	assert.NotContains(t, q, "'O'Brien")
}

func TestUpsertDocumentQueryMergeSemantics(t *testing.T) {
	q := upsertDocumentQuery("acme", "doc_1", "preisliste.csv", document.CategoryProducts, 1700000000)

	assert.Contains(t, q, "MERGE (d:Document {id: 'doc_1'})")
	assert.Contains(t, q, "ON CREATE SET d.created_at = 1700000000")

	// Filename, category, and owner refresh on every write.
	unconditional := q[strings.Index(q, "SET d.filename"):]
	assert.Contains(t, unconditional, "d.filename = 'preisliste.csv'")
	assert.Contains(t, unconditional, "d.category = 'products'")
	assert.Contains(t, unconditional, "d.customer_id = 'acme'")
	assert.Contains(t, unconditional, "d.updated_at = 1700000000")
}

func TestLinkMentionQueryCarriesCustomer(t *testing.T) {
	q := linkMentionQuery("acme", "doc_1", "ent_x", 1700000000)
	assert.Contains(t, q, "MATCH (d:Document {id: 'doc_1'}), (e:Entity {id: 'ent_x'})")
	assert.Contains(t, q, "MERGE (d)-[r:MENTIONS]->(e)")
	assert.Contains(t, q, "r.customer_id = 'acme'")
}

func TestUpsertRelationshipQueryInlinesLabel(t *testing.T) {
	rel := document.Relationship{
		SourceID: "ent_a", TargetID: "ent_b",
		Type: document.RelProduces, Confidence: 0.8,
	}
	q := upsertRelationshipQuery("acme", rel, 1700000000)

	assert.Contains(t, q, "MERGE (a)-[r:PRODUCES]->(b)")
	assert.Contains(t, q, "r.customer_id = 'acme'")
	assert.Contains(t, q, "r.confidence = 0.8")
}
