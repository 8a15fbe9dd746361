// Package entity extracts named references and co-occurrence relationships
// from German-leaning business text using compiled patterns and small
// gazetteers.
package entity

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/christoph-ui/lakecore/internal/document"
)

const contextWindow = 50

// Extractor finds entities and derives relationships between them.
type Extractor struct {
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the entities found in text and the relationships derived
// from sentence-level co-occurrence. Overlapping matches are resolved by
// earlier start, then higher confidence.
func (e *Extractor) Extract(text, documentID string) ([]document.Entity, []document.Relationship) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	candidates := e.match(text, documentID)
	entities := resolveOverlaps(candidates)
	entities = append(entities, brandOrgs(entities, text)...)
	relationships := e.deriveRelationships(text, entities, documentID)

	return entities, relationships
}

// match runs every pattern and gazetteer over the text.
func (e *Extractor) match(text, documentID string) []document.Entity {
	var out []document.Entity

	add := func(start, end int, typ document.EntityType, confidence float64) {
		if typ == document.EntityOrg {
			start = skipArticles(text, start, end)
		}
		surface := strings.TrimSpace(text[start:end])
		if surface == "" {
			return
		}
		out = append(out, document.Entity{
			Text:       surface,
			Type:       typ,
			Start:      start,
			End:        end,
			Context:    contextAround(text, start, end),
			Confidence: confidence,
			DocumentID: documentID,
		})
	}

	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			if len(loc) >= 4 && loc[2] >= 0 {
				start, end = loc[2], loc[3]
			}
			add(start, end, p.entityType, p.confidence)
		}
	}

	for _, loc := range locationRe.FindAllStringIndex(text, -1) {
		add(loc[0], loc[1], document.EntityLoc, 0.85)
	}
	for _, loc := range orgRe.FindAllStringIndex(text, -1) {
		add(loc[0], loc[1], document.EntityOrg, 0.85)
	}

	return out
}

// resolveOverlaps keeps at most one entity per overlapping span, preferring
// the earlier start and then the higher confidence. Exact duplicates of
// (span, type) collapse to the higher-confidence occurrence first.
func resolveOverlaps(candidates []document.Entity) []document.Entity {
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Start != candidates[j].Start {
			return candidates[i].Start < candidates[j].Start
		}
		return candidates[i].Confidence > candidates[j].Confidence
	})

	var kept []document.Entity
	lastEnd := -1
	for _, c := range candidates {
		if c.Start < lastEnd {
			continue
		}
		kept = append(kept, c)
		lastEnd = c.End
	}
	return kept
}

// leadingStopwords are German articles and fillers the legal-suffix pattern
// sweeps up because matching is leftmost.
var leadingStopwords = map[string]bool{
	"Die": true, "Der": true, "Das": true, "Ein": true, "Eine": true,
	"Unsere": true, "Unser": true, "Bei": true, "Mit": true, "Von": true,
	"Für": true, "An": true,
}

// skipArticles advances start past leading stopword tokens.
func skipArticles(text string, start, end int) int {
	for {
		rest := text[start:end]
		sp := strings.IndexByte(rest, ' ')
		if sp <= 0 {
			return start
		}
		if !leadingStopwords[rest[:sp]] {
			return start
		}
		start += sp + 1
	}
}

// brandOrgs derives an organization entity from the leading brand token of
// each product entity, skipping brands already covered by a kept entity.
func brandOrgs(kept []document.Entity, text string) []document.Entity {
	seen := make(map[string]bool, len(kept))
	for _, ent := range kept {
		seen[ent.ID()] = true
	}

	var out []document.Entity
	for _, ent := range kept {
		if ent.Type != document.EntityProduct {
			continue
		}
		brandEnd := strings.IndexFunc(ent.Text, unicode.IsSpace)
		if brandEnd <= 0 {
			continue
		}
		org := document.Entity{
			Text:       ent.Text[:brandEnd],
			Type:       document.EntityOrg,
			Start:      ent.Start,
			End:        ent.Start + brandEnd,
			Context:    contextAround(text, ent.Start, ent.End),
			Confidence: 0.7,
			DocumentID: ent.DocumentID,
		}
		if seen[org.ID()] {
			continue
		}
		seen[org.ID()] = true
		out = append(out, org)
	}
	return out
}

func contextAround(text string, start, end int) string {
	from := start - contextWindow
	if from < 0 {
		from = 0
	}
	to := end + contextWindow
	if to > len(text) {
		to = len(text)
	}
	return strings.TrimSpace(text[from:to])
}
