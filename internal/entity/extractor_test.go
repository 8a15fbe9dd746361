package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christoph-ui/lakecore/internal/document"
)

func findEntity(entities []document.Entity, typ document.EntityType, text string) *document.Entity {
	for i := range entities {
		if entities[i].Type == typ && entities[i].Text == text {
			return &entities[i]
		}
	}
	return nil
}

func hasRelationship(rels []document.Relationship, src, dst string, typ document.RelationType) bool {
	for _, r := range rels {
		if r.SourceID == src && r.TargetID == dst && r.Type == typ {
			return true
		}
	}
	return false
}

func TestExtractGermanProductDescription(t *testing.T) {
	e := New()
	text := "Der Eaton FRCDM-40 Fehlerstromschutzschalter wird in Bonn vertrieben."

	entities, rels := e.Extract(text, "doc1")

	product := findEntity(entities, document.EntityProduct, "Eaton FRCDM-40")
	require.NotNil(t, product, "product entity missing")
	org := findEntity(entities, document.EntityOrg, "Eaton")
	require.NotNil(t, org, "brand organization missing")
	loc := findEntity(entities, document.EntityLoc, "Bonn")
	require.NotNil(t, loc, "location missing")

	assert.True(t, hasRelationship(rels, product.ID(), org.ID(), document.RelProducedBy),
		"expected PRODUCED_BY from product to organization")
	assert.True(t, hasRelationship(rels, org.ID(), product.ID(), document.RelProduces))
	assert.True(t, hasRelationship(rels, org.ID(), loc.ID(), document.RelLocatedIn))
}

func TestExtractEmptyText(t *testing.T) {
	e := New()
	entities, rels := e.Extract("   ", "doc1")
	assert.Empty(t, entities)
	assert.Empty(t, rels)
}

func TestExtractTypes(t *testing.T) {
	e := New()

	tests := []struct {
		name string
		text string
		typ  document.EntityType
		want string
	}{
		{"org legal suffix", "Die Muster Elektro GmbH liefert ab Lager.", document.EntityOrg, "Muster Elektro GmbH"},
		{"person salutation", "Frau Schmidt leitet den Einkauf.", document.EntityPerson, "Schmidt"},
		{"numeric date", "Lieferung erfolgt am 15.05.2025 frei Haus.", document.EntityDate, "15.05.2025"},
		{"textual date", "Markteinführung am 15. Mai 2025 geplant.", document.EntityDate, "15. Mai 2025"},
		{"money euro sign", "Der Listenpreis beträgt 129,00 € netto.", document.EntityMoney, "129,00 €"},
		{"norm reference", "Geprüft nach DIN EN 61008 im Werk.", document.EntityMisc, "DIN EN 61008"},
		{"gazetteer location", "Unser Standort in München ist erreichbar.", document.EntityLoc, "München"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entities, _ := e.Extract(tt.text, "doc1")
			assert.NotNil(t, findEntity(entities, tt.typ, tt.want),
				"expected %s %q in %v", tt.typ, tt.want, entities)
		})
	}
}

func TestExtractOverlapResolution(t *testing.T) {
	e := New()
	// "Eaton" is both a gazetteer organization and the prefix of the product
	// span; only one entity may claim the overlapping characters.
	entities, _ := e.Extract("Eaton FRCDM-40 sofort lieferbar.", "doc1")

	var productCount, orgCount int
	for _, ent := range entities {
		switch ent.Type {
		case document.EntityProduct:
			productCount++
		case document.EntityOrg:
			orgCount++
		}
	}
	assert.Equal(t, 1, productCount)
	assert.Equal(t, 1, orgCount)
}

func TestExtractPersonOrgRelationship(t *testing.T) {
	e := New()
	entities, rels := e.Extract("Herr Weber arbeitet bei der Muster Elektro GmbH.", "doc1")

	person := findEntity(entities, document.EntityPerson, "Weber")
	require.NotNil(t, person)
	org := findEntity(entities, document.EntityOrg, "Muster Elektro GmbH")
	require.NotNil(t, org)

	assert.True(t, hasRelationship(rels, person.ID(), org.ID(), document.RelWorksAt))
	assert.True(t, hasRelationship(rels, org.ID(), person.ID(), document.RelEmploys))
}

func TestExtractNoCrossSentenceRelationships(t *testing.T) {
	e := New()
	_, rels := e.Extract("Die Firma sitzt in Bonn. Siemens liefert morgen.", "doc1")

	// "Bonn" and "Siemens" sit in different sentences; no edge links them.
	for _, r := range rels {
		assert.NotEqual(t, document.RelLocatedIn, r.Type)
		assert.NotEqual(t, document.RelHosts, r.Type)
	}
}

func TestRelationshipConfidence(t *testing.T) {
	e := New()
	_, rels := e.Extract("Eaton FRCDM-40 aus Bonn.", "doc1")
	require.NotEmpty(t, rels)
	for _, r := range rels {
		assert.Equal(t, 0.8, r.Confidence)
	}
}

func TestEntityIDStable(t *testing.T) {
	a := document.Entity{Text: "Eaton", Type: document.EntityOrg}
	b := document.Entity{Text: "eaton", Type: document.EntityOrg}
	c := document.Entity{Text: "Eaton", Type: document.EntityProduct}

	assert.Equal(t, a.ID(), b.ID())
	assert.NotEqual(t, a.ID(), c.ID())
}
