// Package extractor turns a raw diff into documentation-relevant change
// records using a text generator.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/tomehq/tome/internal/llm"
	"github.com/tomehq/tome/internal/models"
)

// DefaultMaxDiffBytes is used when the configured limit is not positive.
const DefaultMaxDiffBytes = 8000

const rawLogLimit = 200

// Greedy: first '[' to the last ']'.
var arrayRegex = regexp.MustCompile(`(?s)\[.*\]`)

// Result is the outcome of one extraction.
type Result struct {
	Changes []models.ChangeRecord
	// Truncated is set when the diff was cut at MaxDiffBytes; nothing past
	// OffsetBytes was analyzed.
	Truncated   bool
	OffsetBytes int
	TotalBytes  int
	// Degraded is set when the reply could not be parsed and was treated as
	// zero changes.
	Degraded bool
}

// Extractor builds the extraction prompt and parses the reply.
type Extractor struct {
	gen          llm.TextGenerator
	maxDiffBytes int
	logger       *slog.Logger
}

// New creates an Extractor.
func New(gen llm.TextGenerator, maxDiffBytes int) *Extractor {
	if maxDiffBytes <= 0 {
		maxDiffBytes = DefaultMaxDiffBytes
	}
	return &Extractor{
		gen:          gen,
		maxDiffBytes: maxDiffBytes,
		logger:       slog.Default().With("component", "extractor"),
	}
}

// Extract asks the generator for the documentation-relevant changes in diff.
// Only a generator failure is returned as an error; an unusable reply yields
// an empty, degraded result.
func (e *Extractor) Extract(ctx context.Context, diff string) (Result, error) {
	truncated, cut := Truncate(diff, e.maxDiffBytes)
	result := Result{
		Truncated:   cut,
		OffsetBytes: len(truncated),
		TotalBytes:  len(diff),
	}
	if cut {
		e.logger.Info("diff truncated", "analyzed_bytes", len(truncated), "total_bytes", len(diff))
	}

	text, err := e.gen.Generate(ctx, BuildPrompt(truncated), true)
	if err != nil {
		return result, err
	}

	changes, ok := ParseChanges(text)
	if !ok {
		e.logger.Warn("failed to parse generator reply as JSON", "raw", preview(text))
		result.Degraded = true
		return result, nil
	}
	result.Changes = changes
	e.logger.Debug("changes extracted", "count", len(changes))
	return result, nil
}

// Truncate right-truncates diff to at most maxBytes, backing off to a rune
// boundary. The second result reports whether anything was cut.
func Truncate(diff string, maxBytes int) (string, bool) {
	if len(diff) <= maxBytes {
		return diff, false
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(diff[cut]) {
		cut--
	}
	return diff[:cut], true
}

// BuildPrompt renders the extraction prompt for an already truncated diff.
func BuildPrompt(diff string) string {
	var sb strings.Builder
	sb.WriteString(`You are a documentation analyst. Analyze this git diff and identify changes that need documentation updates.

For each doc-relevant change, output a JSON object with:
- "source_file": source file that changed
- "change_kind": one of "new_function", "changed_api", "new_endpoint", "new_feature", "breaking_change", "config_change", "new_module", "other"
- "summary": one-line description
- "details": what specifically should be documented

Rules:
- Only include changes users or developers need to know about
- Skip: variable renames, formatting, internal refactors, test-only changes, dependency bumps
- Be specific about what changed

Return a JSON object with key "changes" containing an array. If nothing is doc-relevant, return {"changes": []}.

Diff:
` + "```\n")
	sb.WriteString(diff)
	sb.WriteString("\n```")
	return sb.String()
}

// ParseChanges applies the parse policy in order: the whole reply as JSON
// (object with "changes", or a bare array), then the span from the first '['
// to the last ']', then the first balanced bracketed array that is valid
// JSON. ok is false when none of them yields JSON.
func ParseChanges(text string) (changes []models.ChangeRecord, ok bool) {
	trimmed := strings.TrimSpace(text)
	if gjson.Valid(trimmed) {
		parsed := gjson.Parse(trimmed)
		switch {
		case parsed.IsObject():
			return recordsFrom(parsed.Get("changes")), true
		case parsed.IsArray():
			return recordsFrom(parsed), true
		default:
			return nil, true
		}
	}

	if match := arrayRegex.FindString(trimmed); match != "" && gjson.Valid(match) {
		return recordsFrom(gjson.Parse(match)), true
	}
	if match := firstArray(trimmed); match != "" {
		return recordsFrom(gjson.Parse(match)), true
	}
	return nil, false
}

// firstArray returns the first balanced [...] substring that is valid JSON.
// Brackets inside string literals do not count toward the balance.
func firstArray(text string) string {
	for start := strings.IndexByte(text, '['); start >= 0; {
		if end := matchingBracket(text, start); end > 0 {
			if candidate := text[start : end+1]; gjson.Valid(candidate) {
				return candidate
			}
		}
		next := strings.IndexByte(text[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return ""
}

// matchingBracket returns the index of the ']' closing the '[' at start, or
// -1 when the text ends first.
func matchingBracket(text string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// recordsFrom converts array elements into validated records, skipping
// anything that is not an object or carries no text.
func recordsFrom(arr gjson.Result) []models.ChangeRecord {
	if !arr.IsArray() {
		return nil
	}
	var out []models.ChangeRecord
	arr.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		record, err := models.NewChangeRecord(
			firstString(item, "source_file", "file"),
			firstString(item, "change_kind", "change_type", "kind"),
			item.Get("summary").String(),
			item.Get("details").String(),
		)
		if err == nil {
			out = append(out, record)
		}
		return true
	})
	return out
}

func firstString(item gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := item.Get(key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func preview(text string) string {
	if len(text) <= rawLogLimit {
		return text
	}
	return fmt.Sprintf("%s...", text[:rawLogLimit])
}
