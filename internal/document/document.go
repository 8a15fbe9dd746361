// Package document defines the core data model shared across the ingestion
// pipeline and the lakehouse stores: file descriptors, chunks, embedding
// records, entities, relationships, and the per-customer deployment context.
package document

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode/utf8"
)

// Category is a closed-set document class assigned by the classifier.
// It doubles as the partitioning key for the tabular and vector stores.
type Category string

const (
	CategoryTax            Category = "tax"
	CategoryLegal          Category = "legal"
	CategoryProducts       Category = "products"
	CategoryHR             Category = "hr"
	CategoryCorrespondence Category = "correspondence"
	CategoryGeneral        Category = "general"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryTax,
	CategoryLegal,
	CategoryProducts,
	CategoryHR,
	CategoryCorrespondence,
	CategoryGeneral,
}

// ValidCategory reports whether s names a category in the closed set.
func ValidCategory(s string) bool {
	for _, c := range Categories {
		if string(c) == s {
			return true
		}
	}
	return false
}

// ExtractionStatus tracks the outcome of text extraction for one file.
type ExtractionStatus string

const (
	ExtractionPending     ExtractionStatus = "pending"
	ExtractionOK          ExtractionStatus = "ok"
	ExtractionEmpty       ExtractionStatus = "empty"
	ExtractionUnsupported ExtractionStatus = "unsupported"
	ExtractionFailed      ExtractionStatus = "failed"
)

// FileDescriptor describes one discovered file. It is created by the crawler
// and mutated by pipeline stages strictly in stage order; two stages never
// touch the same descriptor concurrently.
type FileDescriptor struct {
	ID        string
	Path      string
	Name      string
	Extension string // lowercased, dot-prefixed
	Size      int64
	ModTime   time.Time
	MIMEType  string

	// PreAssigned is an optional caller-supplied category for the folder.
	PreAssigned Category

	// Detected is the category assigned by the classifier.
	Detected Category

	Text      string
	Status    ExtractionStatus
	LastError string

	Chunks   []Chunk
	Metadata map[string]any
}

// Chunk is one contiguous text fragment of a document.
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int
	Text       string
	CharCount  int
	WordCount  int
}

// ChunkID builds the stable chunk identifier for a document ordinal.
func ChunkID(documentID string, ordinal int) string {
	return fmt.Sprintf("%s_%d", documentID, ordinal)
}

// TruncateBytes shortens s to at most max bytes without splitting a rune,
// walking back to the nearest rune start. Valid UTF-8 in means valid UTF-8
// out.
func TruncateBytes(s string, max int) string {
	if max < 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// DocumentID derives the stable document identifier from the file path.
// Re-ingesting an unchanged folder reproduces the same ids, so merge-mode
// loads update rows instead of duplicating them.
func DocumentID(path string) string {
	h := fnv.New64a()
	h.Write([]byte(path))
	return fmt.Sprintf("doc_%016x", h.Sum64())
}

// EmbeddingRecord is one row destined for the vector table.
type EmbeddingRecord struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Category   Category
	Ordinal    int
	Text       string
	CharCount  int
	Vector     []float32
}

// EntityType classifies an extracted named reference.
type EntityType string

const (
	EntityPerson  EntityType = "PERSON"
	EntityOrg     EntityType = "ORG"
	EntityLoc     EntityType = "LOC"
	EntityProduct EntityType = "PRODUCT"
	EntityDate    EntityType = "DATE"
	EntityMoney   EntityType = "MONEY"
	EntityMisc    EntityType = "MISC"
)

// Entity is a named reference extracted from document text. Identity across
// documents is the hash of (text, type); occurrences are counted, not
// duplicated.
type Entity struct {
	Text       string
	Type       EntityType
	Start      int
	End        int
	Context    string
	Confidence float64
	DocumentID string
}

// ID returns the stable entity identity hash over (text, type).
func (e Entity) ID() string {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(e.Text)))
	h.Write([]byte{0})
	h.Write([]byte(e.Type))
	return fmt.Sprintf("ent_%016x", h.Sum64())
}

// RelationType labels a directed edge between two entities.
type RelationType string

const (
	RelMentions    RelationType = "MENTIONS"
	RelProduces    RelationType = "PRODUCES"
	RelProducedBy  RelationType = "PRODUCED_BY"
	RelWorksAt     RelationType = "WORKS_AT"
	RelEmploys     RelationType = "EMPLOYS"
	RelLocatedIn   RelationType = "LOCATED_IN"
	RelHosts       RelationType = "HOSTS"
	RelReleasedOn  RelationType = "RELEASED_ON"
	RelReleaseDate RelationType = "RELEASE_DATE"
)

// Relationship is a directed, labeled edge between two entities.
type Relationship struct {
	SourceID   string
	TargetID   string
	Type       RelationType
	Confidence float64
	DocumentID string
}

// DeploymentContext carries per-customer onboarding metadata consumed by the
// structured extractor. It is read-only for the duration of a run.
type DeploymentContext struct {
	CustomerID          string
	CompanyName         string
	Industry            string
	SourceFormat        string
	TransformationRules string
}
