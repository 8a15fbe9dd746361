package classify

import (
	"regexp"
	"strings"

	"github.com/christoph-ui/lakecore/internal/document"
)

const (
	pathScore     = 2
	filenameScore = 1
	minScore      = 2
	minMargin     = 2
)

// categoryPatterns maps each category to path/filename patterns. German and
// English terms are mixed since customer folders carry both.
var categoryPatterns = map[document.Category][]*regexp.Regexp{
	document.CategoryTax: compilePatterns(
		`(?i)\bsteuer`,
		`(?i)\btax\b`,
		`(?i)umsatzsteuer`,
		`(?i)\bust\b`,
		`(?i)\bvat\b`,
		`(?i)finanzamt`,
		`(?i)elster`,
		`(?i)rechnung`,
		`(?i)invoice`,
		`(?i)beleg`,
	),
	document.CategoryLegal: compilePatterns(
		`(?i)vertrag`,
		`(?i)\bcontract\b`,
		`(?i)\bagb\b`,
		`(?i)\bnda\b`,
		`(?i)datenschutz`,
		`(?i)\bgdpr\b`,
		`(?i)\bdsgvo\b`,
		`(?i)\blegal\b`,
		`(?i)vollmacht`,
		`(?i)satzung`,
	),
	document.CategoryProducts: compilePatterns(
		`(?i)produkt`,
		`(?i)\bproduct`,
		`(?i)katalog`,
		`(?i)catalog`,
		`(?i)artikel`,
		`(?i)\bsku\b`,
		`(?i)\bgtin\b`,
		`(?i)\bean\b`,
		`(?i)preisliste`,
		`(?i)price.?list`,
		`(?i)datenblatt`,
		`(?i)datasheet`,
		`(?i)sortiment`,
	),
	document.CategoryHR: compilePatterns(
		`(?i)personal`,
		`(?i)\bhr\b`,
		`(?i)mitarbeiter`,
		`(?i)employee`,
		`(?i)gehalt`,
		`(?i)lohn`,
		`(?i)payroll`,
		`(?i)bewerbung`,
		`(?i)lebenslauf`,
		`(?i)arbeitsvertrag`,
		`(?i)urlaub`,
	),
	document.CategoryCorrespondence: compilePatterns(
		`(?i)\bemail\b`,
		`(?i)\be-mail\b`,
		`(?i)\bmail\b`,
		`(?i)korrespondenz`,
		`(?i)correspondence`,
		`(?i)\bbrief\b`,
		`(?i)\bletter\b`,
		`(?i)anschreiben`,
		`(?i)\.eml$`,
		`(?i)\.msg$`,
	),
}

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// classifyRules scores each category against the full path and the filename.
// The winner must hold the strictly highest score, lead the runner-up by the
// margin, and reach the minimum; otherwise the result is general.
func (c *Classifier) classifyRules(path, filename string) Result {
	path = strings.ToLower(path)
	filename = strings.ToLower(filename)

	scores := make(map[document.Category]int, len(categoryPatterns))
	for cat, patterns := range categoryPatterns {
		score := 0
		for _, p := range patterns {
			if p.MatchString(path) {
				score += pathScore
			}
			if p.MatchString(filename) {
				score += filenameScore
			}
		}
		scores[cat] = score
	}

	best := document.CategoryGeneral
	bestScore, runnerUp := 0, 0
	tied := false
	for cat, score := range scores {
		switch {
		case score > bestScore:
			runnerUp = bestScore
			bestScore = score
			best = cat
			tied = false
		case score == bestScore && score > 0:
			tied = true
			if score > runnerUp {
				runnerUp = score
			}
		case score > runnerUp:
			runnerUp = score
		}
	}

	if tied || bestScore < minScore || bestScore-runnerUp < minMargin {
		return Result{Category: document.CategoryGeneral, Confidence: 0.0, Tier: "rules"}
	}

	confidence := float64(bestScore) / 10
	if confidence > 1.0 {
		confidence = 1.0
	}
	return Result{Category: best, Confidence: confidence, Tier: "rules"}
}
