package coverage

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomehq/tome/internal/corpus"
	"github.com/tomehq/tome/internal/models"
)

func change(file, summary, details string) models.ChangeRecord {
	return models.ChangeRecord{SourceFile: file, Kind: models.KindNewFeature, Summary: summary, Details: details}
}

func TestExtractTerms(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"Add parse_config function", []string{"parse_config"}},
		{"The new API has been ADDED to the file", []string{"api"}},
		{"9lives x1 ab __init__ retry_count2", []string{"lives", "__init__", "retry_count2"}},
		{"a an the of to", nil},
		{"cache cache", []string{"cache", "cache"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ExtractTerms(tt.text)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScore(t *testing.T) {
	assert.Equal(t, 0.0, Score(nil, "anything"))
	assert.Equal(t, 1.0, Score([]string{"alpha", "beta"}, "alpha and beta"))
	assert.Equal(t, 0.5, Score([]string{"alpha", "gamma"}, "alphabet"))
}

func TestFindGapsScenarios(t *testing.T) {
	parseConfig := change("config.py", "Add parse_config", "parse_config reads configuration files and returns settings")
	a := NewAnalyzer(0.4)

	t.Run("undocumented change is a gap with zero coverage", func(t *testing.T) {
		docs := corpus.New(corpus.Doc{Path: "docs/install.md", Content: "Install with pip."})
		result := a.FindGaps([]models.ChangeRecord{parseConfig}, docs)
		require.Len(t, result.Gaps, 1)
		assert.Equal(t, 0.0, result.Gaps[0].Coverage)
		assert.Equal(t, parseConfig, result.Gaps[0].Change)
	})

	t.Run("documented change is covered", func(t *testing.T) {
		docs := corpus.New(corpus.Doc{
			Path:    "docs/settings.md",
			Content: "The parse_config function reads configuration files and returns a dict of settings.",
		})
		result := a.FindGaps([]models.ChangeRecord{parseConfig}, docs)
		assert.Empty(t, result.Gaps)
		assert.Len(t, result.Covered, 1)
	})

	t.Run("term-less change is skipped, not covered", func(t *testing.T) {
		docs := corpus.New(corpus.Doc{Path: "docs/a.md", Content: "anything"})
		empty := change("x.py", "Add new function", "to the file")
		result := a.FindGaps([]models.ChangeRecord{empty}, docs)
		assert.Empty(t, result.Gaps)
		assert.Empty(t, result.Covered)
		assert.Equal(t, []models.ChangeRecord{empty}, result.Skipped)
	})

	t.Run("coverage is rounded to two decimals", func(t *testing.T) {
		docs := corpus.New(corpus.Doc{Path: "docs/a.md", Content: "alpha"})
		c := change("x.py", "alpha beta gamma", "")
		result := a.FindGaps([]models.ChangeRecord{c}, docs)
		require.Len(t, result.Gaps, 1)
		assert.Equal(t, 0.33, result.Gaps[0].Coverage)
	})
}

func TestFullyPresentTermsNeverGap(t *testing.T) {
	c := change("svc/rate.go", "RateLimiter throttles outbound requests", "burst_size controls bursts")
	terms := ExtractTerms(c.SearchText())
	docs := corpus.New(corpus.Doc{Path: "docs/x.md", Content: fmt.Sprint(terms)})

	assert.Equal(t, 1.0, Score(terms, docs.Haystack()))
	assert.Empty(t, NewAnalyzer(0.4).FindGaps([]models.ChangeRecord{c}, docs).Gaps)
}

func TestScoreIsMonotonicInCorpus(t *testing.T) {
	vocab := []string{"ingest", "queue", "retry", "backoff", "webhook", "tenant", "shard", "cursor", "lease", "quota"}
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		var summary string
		for i := 0; i < 5; i++ {
			summary += vocab[rng.Intn(len(vocab))] + " "
		}
		terms := ExtractTerms(summary)

		var docs []corpus.Doc
		prev := Score(terms, corpus.New().Haystack())
		prevGaps := len(NewAnalyzer(0).FindGaps([]models.ChangeRecord{change("f.go", summary, "")}, corpus.New()).Gaps)
		for i, w := range rng.Perm(len(vocab)) {
			docs = append(docs, corpus.Doc{Path: fmt.Sprintf("docs/%d.md", i), Content: vocab[w]})
			c := corpus.New(docs...)

			score := Score(terms, c.Haystack())
			require.GreaterOrEqual(t, score, prev)
			prev = score

			gaps := len(NewAnalyzer(0).FindGaps([]models.ChangeRecord{change("f.go", summary, "")}, c).Gaps)
			require.LessOrEqual(t, gaps, prevGaps)
			prevGaps = gaps
		}
		assert.Equal(t, 1.0, prev)
	}
}

func TestNewAnalyzerThresholdFallback(t *testing.T) {
	assert.Equal(t, DefaultThreshold, NewAnalyzer(0).threshold)
	assert.Equal(t, DefaultThreshold, NewAnalyzer(2).threshold)
	assert.Equal(t, 0.6, NewAnalyzer(0.6).threshold)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "config", BaseName("src/app/Config.py"))
	assert.Equal(t, "archive.tar", BaseName("archive.tar.gz"))
	assert.Equal(t, "makefile", BaseName("Makefile"))
}

func TestScanTree(t *testing.T) {
	sources := []string{
		"src/auth.py", "src/billing.py", "src/cache.py", "src/router.py", "src/models.py",
		"src/worker.py", "src/queue.py", "src/mailer.py", "src/ledger.py", "src/search.py",
	}
	docs := corpus.New(
		corpus.Doc{Path: "docs/auth-guide.md", Content: "Login flows."},
		corpus.Doc{Path: "docs/billing.md", Content: "Invoices."},
		corpus.Doc{Path: "docs/architecture.md", Content: "The cache layer fronts the router. Models map to tables. " +
			"A worker drains the queue."},
	)

	result := ScanTree(sources, docs)
	assert.Equal(t, 10, result.TotalSourceFiles)
	assert.Equal(t, []string{"src/mailer.py", "src/ledger.py", "src/search.py"}, result.Uncovered)
	assert.Equal(t, 70.0, result.CoveragePct)
}

func TestScanTreeEmpty(t *testing.T) {
	result := ScanTree(nil, corpus.New())
	assert.Equal(t, 100.0, result.CoveragePct)
	assert.Empty(t, result.Uncovered)

	result = ScanTree([]string{"a.go", "b.go", "c.go"}, corpus.New())
	assert.Equal(t, 0.0, result.CoveragePct)
	assert.Len(t, result.Uncovered, 3)

	result = ScanTree([]string{"a1.go", "b2.go", "c3.go"}, corpus.New(corpus.Doc{Path: "docs/a1.md", Content: "x"}))
	assert.Equal(t, 33.3, result.CoveragePct)
}
