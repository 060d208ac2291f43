// Package coverage decides which changes the current documentation already
// describes. Scoring is lexical: a change's salient terms are looked up as
// substrings of the lower-cased doc corpus.
package coverage

import (
	"log/slog"
	"math"
	"path"
	"regexp"
	"strings"

	"github.com/tomehq/tome/internal/corpus"
	"github.com/tomehq/tome/internal/models"
)

// DefaultThreshold is the score below which a change is a gap.
const DefaultThreshold = 0.4

var termRegex = regexp.MustCompile(`[a-z_][a-z0-9_]{2,}`)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "to": true, "for": true,
	"of": true, "and": true, "or": true, "is": true, "was": true, "with": true,
	"that": true, "this": true, "add": true, "added": true, "new": true,
	"update": true, "change": true, "changed": true, "remove": true,
	"removed": true, "function": true, "method": true, "class": true,
	"file": true, "now": true, "can": true, "has": true, "have": true,
	"been": true, "from": true, "will": true, "are": true, "not": true,
}

// ExtractTerms lower-cases text and returns its word-like terms of three or
// more characters, minus stop words. Repeated terms are kept, so a term that
// appears twice weighs twice.
func ExtractTerms(text string) []string {
	words := termRegex.FindAllString(strings.ToLower(text), -1)
	terms := words[:0]
	for _, w := range words {
		if !stopWords[w] {
			terms = append(terms, w)
		}
	}
	return terms
}

// Score is the fraction of terms found in haystack. haystack must already be
// lower-cased. An empty term list scores 0.
func Score(terms []string, haystack string) float64 {
	if len(terms) == 0 {
		return 0
	}
	hits := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// Result partitions a change list. Every change lands in exactly one of
// Gaps, Covered or Skipped.
type Result struct {
	Gaps    []models.Gap
	Covered []models.ChangeRecord
	// Skipped holds changes with no scorable terms; they are neither gaps
	// nor counted as covered.
	Skipped []models.ChangeRecord
}

// Analyzer classifies changes against a corpus.
type Analyzer struct {
	threshold float64
	logger    *slog.Logger
}

// NewAnalyzer creates an Analyzer. A threshold outside (0, 1] falls back to
// DefaultThreshold.
func NewAnalyzer(threshold float64) *Analyzer {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Analyzer{
		threshold: threshold,
		logger:    slog.Default().With("component", "coverage"),
	}
}

// FindGaps scores each change and returns those under the threshold as gaps,
// in input order. Gap coverage is rounded to two decimals.
func (a *Analyzer) FindGaps(changes []models.ChangeRecord, docs *corpus.Corpus) Result {
	var result Result
	haystack := docs.Haystack()
	for _, change := range changes {
		terms := ExtractTerms(change.SearchText())
		if len(terms) == 0 {
			result.Skipped = append(result.Skipped, change)
			continue
		}
		score := Score(terms, haystack)
		if score < a.threshold {
			result.Gaps = append(result.Gaps, models.Gap{
				Change:   change,
				Coverage: math.Round(score*100) / 100,
			})
			continue
		}
		result.Covered = append(result.Covered, change)
	}
	a.logger.Debug("coverage analyzed",
		"changes", len(changes),
		"gaps", len(result.Gaps),
		"covered", len(result.Covered),
		"skipped", len(result.Skipped),
	)
	return result
}

// BaseName is the final path segment without its last extension, lower-cased.
func BaseName(p string) string {
	base := path.Base(p)
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	return strings.ToLower(base)
}

// TreeResult is the full-tree coverage of a set of source files.
type TreeResult struct {
	TotalSourceFiles int
	Uncovered        []string
	CoveragePct      float64
}

// ScanTree reports source files with no discoverable documentation: neither
// a doc file whose base name contains the source base name, nor a mention of
// the base name anywhere in the corpus.
func ScanTree(sourcePaths []string, docs *corpus.Corpus) TreeResult {
	docBases := make([]string, 0, docs.Len())
	for _, p := range docs.Paths() {
		docBases = append(docBases, BaseName(p))
	}
	haystack := docs.Haystack()

	var uncovered []string
	for _, src := range sourcePaths {
		base := BaseName(src)
		if hasDocFile(base, docBases) || strings.Contains(haystack, base) {
			continue
		}
		uncovered = append(uncovered, src)
	}

	total := len(sourcePaths)
	pct := (1 - float64(len(uncovered))/float64(max(total, 1))) * 100
	return TreeResult{
		TotalSourceFiles: total,
		Uncovered:        uncovered,
		CoveragePct:      math.Round(pct*10) / 10,
	}
}

func hasDocFile(base string, docBases []string) bool {
	for _, d := range docBases {
		if strings.Contains(d, base) {
			return true
		}
	}
	return false
}
