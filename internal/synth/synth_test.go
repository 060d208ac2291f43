package synth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomehq/tome/internal/corpus"
	"github.com/tomehq/tome/internal/llm"
	"github.com/tomehq/tome/internal/models"
)

func gapFor(file, summary string) models.Gap {
	return models.Gap{Change: models.ChangeRecord{
		SourceFile: file,
		Kind:       models.KindNewFeature,
		Summary:    summary,
		Details:    summary + " details",
	}}
}

func TestFindTarget(t *testing.T) {
	paths := []string{"docs/intro.md", "docs/Configuration.md", "docs/config.md"}

	tests := []struct {
		name    string
		source  string
		docsDir string
		want    Target
	}{
		{"contains match wins by order", "src/config.py", "docs", Target{"docs/Configuration.md", ModeUpdate}},
		{"exact match", "lib/intro.ts", "docs", Target{"docs/intro.md", ModeUpdate}},
		{"no match creates", "src/parser.go", "docs", Target{"docs/parser.md", ModeCreate}},
		{"create uses docs dir", "src/Parser.go", "/guide/", Target{"guide/parser.md", ModeCreate}},
		{"empty docs dir", "src/parser.go", "", Target{"docs/parser.md", ModeCreate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindTarget(tt.source, paths, tt.docsDir))
		})
	}
}

func TestFindTargetDeterministic(t *testing.T) {
	docs := corpus.New(
		corpus.Doc{Path: "docs/b-cache.md", Content: "b"},
		corpus.Doc{Path: "docs/a-cache.md", Content: "a"},
	)
	first := FindTarget("pkg/cache.go", docs.Paths(), "docs")
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, FindTarget("pkg/cache.go", docs.Paths(), "docs"))
	}
	assert.Equal(t, "docs/b-cache.md", first.Path)
}

func TestSynthesizeCreateMode(t *testing.T) {
	gen := llm.NewScriptedGenerator("\n\n# parse_config\n\nReads configuration.\n\n")
	s := New(gen, Options{StyleSampleBytes: 10, CreateDiffExcerpt: 12})
	docs := corpus.New(corpus.Doc{Path: "docs/install.md", Content: "# Install\nRun pip install."})

	draft, err := s.Synthesize(context.Background(), gapFor("src/config.py", "Add parse_config"), docs, "+def parse_config(path):\n+    pass\n")
	require.NoError(t, err)
	assert.Equal(t, Target{"docs/config.md", ModeCreate}, draft.Target)
	assert.Equal(t, "# parse_config\n\nReads configuration.", draft.Content)

	prompt := gen.Calls()[0].Prompt
	assert.Contains(t, prompt, "Match this documentation style:\n```\n# Install\n\n```")
	assert.Contains(t, prompt, "+def parse_c\n```")
	assert.Contains(t, prompt, "- Source file: src/config.py")
	assert.False(t, gen.Calls()[0].StrictJSON)
}

func TestSynthesizeCreateWithoutDocsHasNoStyleHint(t *testing.T) {
	gen := llm.NewScriptedGenerator("# Doc")
	_, err := New(gen, Options{}).Synthesize(context.Background(), gapFor("a.py", "x"), corpus.New(), "diff")
	require.NoError(t, err)
	assert.NotContains(t, gen.Calls()[0].Prompt, "Match this documentation style")
}

func TestSynthesizeUpdateMode(t *testing.T) {
	existing := "# Config\n\nThe loader reads YAML files."
	gen := llm.NewScriptedGenerator(existing + "\n\n## parse_config\n\nparse_config returns settings.")
	docs := corpus.New(corpus.Doc{Path: "docs/config.md", Content: existing})

	draft, err := New(gen, Options{}).Synthesize(context.Background(), gapFor("src/config.py", "Add parse_config"), docs, "diff")
	require.NoError(t, err)
	assert.Equal(t, ModeUpdate, draft.Target.Mode)
	assert.Equal(t, "docs/config.md", draft.Target.Path)

	// Every term of the original survives the update.
	assert.Empty(t, MissingTerms(existing, draft.Content))

	prompt := gen.Calls()[0].Prompt
	assert.Contains(t, prompt, "Existing doc (docs/config.md)")
	assert.Contains(t, prompt, existing)
	assert.Contains(t, prompt, "COMPLETE updated document")
}

func TestSynthesizeUpdateRejectsLossyDraft(t *testing.T) {
	existing := "# Config\n\nThe loader reads YAML files and validates schemas."
	gen := llm.NewScriptedGenerator("# Config\n\nparse_config returns settings.")
	docs := corpus.New(corpus.Doc{Path: "docs/config.md", Content: existing})

	_, err := New(gen, Options{}).Synthesize(context.Background(), gapFor("config.py", "parse_config"), docs, "diff")
	var lossy *LossyUpdateError
	require.ErrorAs(t, err, &lossy)
	assert.Equal(t, "docs/config.md", lossy.Path)
	assert.Contains(t, lossy.Missing, "loader")
	assert.Contains(t, lossy.Missing, "schemas")
}

func TestSynthesizeUpdateKeepsUnseenTail(t *testing.T) {
	head := "# Config\nintro line\n"
	tail := "## Appendix\nlegacy_flags are listed here.\n"
	gen := llm.NewScriptedGenerator("# Config\nintro line\nparse_config added.")
	docs := corpus.New(corpus.Doc{Path: "docs/config.md", Content: head + tail})

	draft, err := New(gen, Options{MaxDocContext: len(head) + 3}).
		Synthesize(context.Background(), gapFor("config.py", "parse_config"), docs, "diff")
	require.NoError(t, err)

	prompt := gen.Calls()[0].Prompt
	assert.NotContains(t, prompt, "legacy_flags")
	assert.True(t, strings.HasSuffix(draft.Content, "## Appendix\nlegacy_flags are listed here."))
	assert.Empty(t, MissingTerms(head+tail, draft.Content))
}

func TestSynthesizeEmptyContent(t *testing.T) {
	gen := llm.NewScriptedGenerator("   \n\t")
	draft, err := New(gen, Options{}).Synthesize(context.Background(), gapFor("a.py", "x"), corpus.New(), "diff")
	require.NoError(t, err)
	assert.Empty(t, draft.Content)
}

func TestSynthesizeGeneratorError(t *testing.T) {
	gen := llm.NewScriptedGenerator()
	gen.Respond = func(string, bool) (string, error) { return "", errors.New("timeout") }
	_, err := New(gen, Options{}).Synthesize(context.Background(), gapFor("a.py", "x"), corpus.New(), "diff")
	assert.Error(t, err)
}

func TestSessionMergesSameTarget(t *testing.T) {
	gen := llm.NewScriptedGenerator()
	gen.Respond = func(prompt string, _ bool) (string, error) {
		if strings.Contains(prompt, "Existing doc (docs/config.md)") {
			return "# Config\n\nparse_config reads files.\n\nload_defaults fills gaps.", nil
		}
		return "# Config\n\nparse_config reads files.", nil
	}
	s := New(gen, Options{})
	session := s.NewSession(corpus.New(), "diff")

	added, err := session.Add(context.Background(), gapFor("src/config.py", "Add parse_config"))
	require.NoError(t, err)
	assert.True(t, added)
	added, err = session.Add(context.Background(), gapFor("lib/config.rs", "Add load_defaults"))
	require.NoError(t, err)
	assert.True(t, added)

	updates := session.Updates()
	require.Len(t, updates, 1)
	u := updates[0]
	assert.Equal(t, "docs/config.md", u.TargetPath)
	assert.True(t, u.IsNew, "first draft created the file")
	assert.Len(t, u.Gaps, 2)
	assert.Contains(t, u.Content, "parse_config")
	assert.Contains(t, u.Content, "load_defaults")

	calls := gen.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].Prompt, "# Config\n\nparse_config reads files.", "second gap sees the first draft")
}

func TestSessionSkipsEmptyDrafts(t *testing.T) {
	gen := llm.NewScriptedGenerator()
	gen.Respond = func(prompt string, _ bool) (string, error) {
		if strings.Contains(prompt, "empty.py") {
			return "", nil
		}
		return "# Doc", nil
	}
	session := New(gen, Options{}).NewSession(corpus.New(), "diff")

	added, err := session.Add(context.Background(), gapFor("empty.py", "nothing"))
	require.NoError(t, err)
	assert.False(t, added)
	_, err = session.Add(context.Background(), gapFor("real.py", "something"))
	require.NoError(t, err)

	updates := session.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, "docs/real.md", updates[0].TargetPath)
}

func TestSessionExistingDocUpdate(t *testing.T) {
	docs := corpus.New(corpus.Doc{Path: "docs/api.md", Content: "# API\nlist endpoints"})
	gen := llm.NewScriptedGenerator("# API\nlist endpoints\nhealth endpoint")
	session := New(gen, Options{}).NewSession(docs, "diff")

	_, err := session.Add(context.Background(), gapFor("server/api.go", "health endpoint"))
	require.NoError(t, err)
	updates := session.Updates()
	require.Len(t, updates, 1)
	assert.False(t, updates[0].IsNew)
}

func TestSplitContext(t *testing.T) {
	excerpt, tail := splitContext("line1\nline2\nline3\n", 9)
	assert.Equal(t, "line1\n", excerpt)
	assert.Equal(t, "line2\nline3\n", tail)

	excerpt, tail = splitContext("short", 100)
	assert.Equal(t, "short", excerpt)
	assert.Empty(t, tail)

	excerpt, tail = splitContext("nolinebreaks", 5)
	assert.Equal(t, "nolin", excerpt)
	assert.Equal(t, "ebreaks", tail)
}
