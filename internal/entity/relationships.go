package entity

import (
	"github.com/christoph-ui/lakecore/internal/document"
)

// ruleConfidence is the fixed confidence for co-occurrence relationships.
const ruleConfidence = 0.8

// deriveRelationships applies pairwise rules to entities that co-occur in the
// same sentence. Each typed pair yields both directed edges; pairs without a
// rule fall back to a single MENTIONS edge.
func (e *Extractor) deriveRelationships(text string, entities []document.Entity, documentID string) []document.Relationship {
	if len(entities) < 2 {
		return nil
	}

	bounds := sentenceBounds(text)
	seen := make(map[string]bool)
	var out []document.Relationship

	add := func(src, dst document.Entity, typ document.RelationType) {
		srcID, dstID := src.ID(), dst.ID()
		if srcID == dstID {
			return
		}
		key := srcID + "|" + dstID + "|" + string(typ)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, document.Relationship{
			SourceID:   srcID,
			TargetID:   dstID,
			Type:       typ,
			Confidence: ruleConfidence,
			DocumentID: documentID,
		})
	}

	for _, b := range bounds {
		var inSentence []document.Entity
		for _, ent := range entities {
			if ent.Start >= b[0] && ent.End <= b[1] {
				inSentence = append(inSentence, ent)
			}
		}

		for i := 0; i < len(inSentence); i++ {
			for j := i + 1; j < len(inSentence); j++ {
				a, c := inSentence[i], inSentence[j]
				switch {
				case pairIs(a, c, document.EntityOrg, document.EntityProduct):
					org, product := ordered(a, c, document.EntityOrg)
					add(org, product, document.RelProduces)
					add(product, org, document.RelProducedBy)
				case pairIs(a, c, document.EntityPerson, document.EntityOrg):
					person, org := ordered(a, c, document.EntityPerson)
					add(person, org, document.RelWorksAt)
					add(org, person, document.RelEmploys)
				case pairIs(a, c, document.EntityOrg, document.EntityLoc):
					org, loc := ordered(a, c, document.EntityOrg)
					add(org, loc, document.RelLocatedIn)
					add(loc, org, document.RelHosts)
				case pairIs(a, c, document.EntityProduct, document.EntityDate):
					product, date := ordered(a, c, document.EntityProduct)
					add(product, date, document.RelReleasedOn)
					add(date, product, document.RelReleaseDate)
				default:
					add(a, c, document.RelMentions)
				}
			}
		}
	}

	return out
}

func pairIs(a, b document.Entity, t1, t2 document.EntityType) bool {
	return (a.Type == t1 && b.Type == t2) || (a.Type == t2 && b.Type == t1)
}

// ordered returns the pair with the entity of type first leading.
func ordered(a, b document.Entity, first document.EntityType) (document.Entity, document.Entity) {
	if a.Type == first {
		return a, b
	}
	return b, a
}

// sentenceBounds returns [start, end) byte offsets of sentences, splitting at
// terminators followed by whitespace. Offsets cover the whole text so every
// entity falls into exactly one sentence.
func sentenceBounds(text string) [][2]int {
	var bounds [][2]int
	start := 0

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch != '.' && ch != '!' && ch != '?' && ch != '\n' {
			continue
		}
		// A dot needs trailing whitespace to end a sentence; newlines always do.
		if ch != '\n' && (i+1 >= len(text) || !isSpaceByte(text[i+1])) {
			continue
		}
		// Ordinal dots ("15. Mai") do not end sentences.
		if ch == '.' && i > 0 && text[i-1] >= '0' && text[i-1] <= '9' {
			continue
		}
		bounds = append(bounds, [2]int{start, i + 1})
		start = i + 1
	}

	if start < len(text) {
		bounds = append(bounds, [2]int{start, len(text)})
	}
	if len(bounds) == 0 {
		bounds = append(bounds, [2]int{0, len(text)})
	}
	return bounds
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
