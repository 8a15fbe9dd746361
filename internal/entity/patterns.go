package entity

import (
	"regexp"

	"github.com/christoph-ui/lakecore/internal/document"
)

// pattern binds a compiled expression to the entity type it yields. Group 1,
// when present, narrows the span to the entity surface text.
type pattern struct {
	re         *regexp.Regexp
	entityType document.EntityType
	confidence float64
}

// productPattern matches brand-plus-model shapes such as "Eaton FRCDM-40"
// or "Siemens S7-1200". The brand token doubles as an organization.
var productPattern = pattern{
	re:         regexp.MustCompile(`\b([A-ZÄÖÜ][a-zäöüA-ZÄÖÜ]+\s+[A-Z][A-Z0-9]*(?:-[A-Z0-9]+)+)\b`),
	entityType: document.EntityProduct,
	confidence: 0.85,
}

var patterns = []pattern{
	productPattern,
	{
		// Capitalized token run ending in a German or common legal suffix.
		re:         regexp.MustCompile(`\b((?:[A-ZÄÖÜ][\wäöüß&.\-]*\s+){1,4}(?:GmbH(?:\s+&\s+Co\.\s+KG)?\b|AG\b|SE\b|KG\b|OHG\b|UG\b|e\.V\.|Inc\.|Ltd\.|Corp\.))`),
		entityType: document.EntityOrg,
		confidence: 0.9,
	},
	{
		// Salutation or title followed by a name.
		re:         regexp.MustCompile(`\b(?:Herr|Frau|Dr\.|Prof\.)\s+([A-ZÄÖÜ][a-zäöüß]+(?:\s+[A-ZÄÖÜ][a-zäöüß]+)?)`),
		entityType: document.EntityPerson,
		confidence: 0.8,
	},
	{
		// German numeric dates: 15.05.2025, 1.5.25.
		re:         regexp.MustCompile(`\b(\d{1,2}\.\d{1,2}\.\d{2,4})\b`),
		entityType: document.EntityDate,
		confidence: 0.9,
	},
	{
		// German textual dates: 15. Mai 2025.
		re:         regexp.MustCompile(`\b(\d{1,2}\.\s?(?:Januar|Februar|März|April|Mai|Juni|Juli|August|September|Oktober|November|Dezember)(?:\s+\d{4})?)`),
		entityType: document.EntityDate,
		confidence: 0.85,
	},
	{
		// ISO dates.
		re:         regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`),
		entityType: document.EntityDate,
		confidence: 0.9,
	},
	{
		// Amounts with a currency marker, either side.
		re:         regexp.MustCompile(`((?:€|EUR\s?)\s?\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{1,2})?|\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{1,2})?\s?(?:€|EUR\b|Euro\b))`),
		entityType: document.EntityMoney,
		confidence: 0.9,
	},
	{
		// Norm references kept as miscellaneous technical entities.
		re:         regexp.MustCompile(`\b((?:DIN|EN|ISO|IEC|VDE)(?:\s+(?:EN|ISO|IEC))*\s+\d{2,6}(?:-\d+)?)\b`),
		entityType: document.EntityMisc,
		confidence: 0.75,
	},
}

// locationGazetteer lists cities the customer base actually writes about.
// Gazetteer hits are high-precision; the list errs on the small side.
var locationGazetteer = []string{
	"Berlin", "Hamburg", "München", "Köln", "Frankfurt", "Stuttgart",
	"Düsseldorf", "Dortmund", "Essen", "Leipzig", "Bremen", "Dresden",
	"Hannover", "Nürnberg", "Bonn", "Mannheim", "Karlsruhe", "Wiesbaden",
	"Münster", "Augsburg", "Aachen", "Kiel", "Freiburg", "Wien", "Zürich",
	"Basel", "Graz", "Linz", "Salzburg", "Deutschland", "Österreich",
	"Schweiz",
}

var locationRe = buildGazetteerRe(locationGazetteer)

// orgGazetteer lists manufacturers common in the customers' product data.
var orgGazetteer = []string{
	"Eaton", "Siemens", "Bosch", "ABB", "Schneider Electric", "Phoenix Contact",
	"Hager", "Legrand", "Wago", "Rittal", "Festo", "SEW-Eurodrive",
}

var orgRe = buildGazetteerRe(orgGazetteer)

func buildGazetteerRe(names []string) *regexp.Regexp {
	expr := `\b(`
	for i, n := range names {
		if i > 0 {
			expr += `|`
		}
		expr += regexp.QuoteMeta(n)
	}
	expr += `)\b`
	return regexp.MustCompile(expr)
}
