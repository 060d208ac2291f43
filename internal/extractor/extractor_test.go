package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomehq/tome/internal/llm"
	"github.com/tomehq/tome/internal/models"
)

func TestParseChanges(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantOK    bool
		wantFiles []string
	}{
		{
			name:      "object with changes",
			reply:     `{"changes": [{"source_file": "config.py", "change_kind": "new_feature", "summary": "Add parse_config", "details": "reads config"}]}`,
			wantOK:    true,
			wantFiles: []string{"config.py"},
		},
		{
			name:   "object without changes key",
			reply:  `{"result": "nothing"}`,
			wantOK: true,
		},
		{
			name:      "bare array",
			reply:     `[{"file": "api.go", "change_type": "new_endpoint", "summary": "GET /health"}]`,
			wantOK:    true,
			wantFiles: []string{"api.go"},
		},
		{
			name:      "array embedded in prose",
			reply:     "Here you go:\n```json\n[{\"source_file\": \"cli.rs\", \"summary\": \"new flag\"}]\n```\nDone.",
			wantOK:    true,
			wantFiles: []string{"cli.rs"},
		},
		{
			name:      "array followed by bracketed prose",
			reply:     "Here are the changes: [{\"source_file\": \"src/config.py\", \"change_kind\": \"new_function\", \"summary\": \"Add parse_config\", \"details\": \"reads YAML\"}] Note: I skipped [tests].",
			wantOK:    true,
			wantFiles: []string{"src/config.py"},
		},
		{
			name:      "brackets inside strings",
			reply:     "Result [{\"source_file\": \"src/idx.py\", \"summary\": \"items[0] now returns ] safely\", \"details\": \"a \\\"[\\\" quote\"}] and [more].",
			wantOK:    true,
			wantFiles: []string{"src/idx.py"},
		},
		{
			name:   "not json",
			reply:  "not json",
			wantOK: false,
		},
		{
			name:   "broken brackets",
			reply:  "changes: [oops",
			wantOK: false,
		},
		{
			name:      "non-object and empty entries skipped",
			reply:     `{"changes": ["text", 3, {"source_file": "x.py"}, {"source_file": "y.py", "details": "documents y"}]}`,
			wantOK:    true,
			wantFiles: []string{"y.py"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes, ok := ParseChanges(tt.reply)
			assert.Equal(t, tt.wantOK, ok)
			var files []string
			for _, c := range changes {
				files = append(files, c.SourceFile)
			}
			assert.Equal(t, tt.wantFiles, files)
		})
	}
}

func TestParseChangesNormalizesKinds(t *testing.T) {
	changes, ok := ParseChanges(`[
		{"source_file": "a.py", "change_kind": "NEW_FUNCTION", "summary": "s"},
		{"source_file": "b.py", "change_kind": "refactor", "summary": "s"},
		{"change_kind": "config_change", "summary": "s"}
	]`)
	require.True(t, ok)
	require.Len(t, changes, 3)
	assert.Equal(t, models.KindNewFunction, changes[0].Kind)
	assert.Equal(t, models.KindOther, changes[1].Kind)
	assert.Equal(t, models.UnknownSourceFile, changes[2].SourceFile)
}

func TestTruncate(t *testing.T) {
	got, cut := Truncate("abcdef", 10)
	assert.False(t, cut)
	assert.Equal(t, "abcdef", got)

	got, cut = Truncate("abcdef", 4)
	assert.True(t, cut)
	assert.Equal(t, "abcd", got)

	// "é" is two bytes; cutting inside it backs off to the rune start.
	got, cut = Truncate("abé", 3)
	assert.True(t, cut)
	assert.Equal(t, "ab", got)
}

func TestExtract(t *testing.T) {
	gen := llm.NewScriptedGenerator(`{"changes": [{"source_file": "config.py", "change_kind": "new_feature", "summary": "Add parse_config", "details": "Parses YAML settings"}]}`)
	ex := New(gen, 16)

	diff := strings.Repeat("+line\n", 10)
	result, err := ex.Extract(context.Background(), diff)
	require.NoError(t, err)

	require.Len(t, result.Changes, 1)
	assert.Equal(t, models.KindNewFeature, result.Changes[0].Kind)
	assert.True(t, result.Truncated)
	assert.Equal(t, 16, result.OffsetBytes)
	assert.Equal(t, len(diff), result.TotalBytes)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].StrictJSON)
	assert.Contains(t, calls[0].Prompt, diff[:16]+"\n```")
	assert.NotContains(t, calls[0].Prompt, diff[:17]+"\n```")
}

func TestExtractMalformedReplyIsEmpty(t *testing.T) {
	ex := New(llm.NewScriptedGenerator("not json"), 0)
	result, err := ex.Extract(context.Background(), "+def parse_config(): pass")
	require.NoError(t, err)
	assert.Empty(t, result.Changes)
	assert.True(t, result.Degraded)
	assert.False(t, result.Truncated)
}

func TestExtractGeneratorFailure(t *testing.T) {
	gen := llm.NewScriptedGenerator()
	gen.Respond = func(string, bool) (string, error) {
		return "", &llm.GatewayError{Backend: "scripted", Cause: errors.New("503")}
	}
	_, err := New(gen, 0).Extract(context.Background(), "diff")
	var gwErr *llm.GatewayError
	assert.ErrorAs(t, err, &gwErr)
}

func TestFirstArray(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"skips unbalanced prefix", `oops [ then [1, 2] after`, "[1, 2]"},
		{"skips invalid candidate", `see [notes] then [1, 2] and [3]`, "[1, 2]"},
		{"nested", `x [[1], [2]] y ]`, "[[1], [2]]"},
		{"no brackets", "plain prose", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, firstArray(tt.text))
		})
	}
}
