package synth

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tomehq/tome/internal/models"
)

func updatePrompt(target string, existing string, gap models.Gap, diffExcerpt string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Update this documentation to cover the following change.\n\nExisting doc (%s):\n```markdown\n%s\n```\n\n", target, existing)
	writeChange(&sb, "Change to document:", gap)
	fmt.Fprintf(&sb, "\nDiff context:\n```\n%s\n```\n\n", diffExcerpt)
	sb.WriteString("Write the COMPLETE updated document. Keep existing content, add coverage for the new change.\n")
	sb.WriteString("Match the existing style and structure exactly. Do not output a diff or a partial patch. Output only the markdown.")
	return sb.String()
}

func createPrompt(styleSample string, gap models.Gap, diffExcerpt string) string {
	var sb strings.Builder
	sb.WriteString("Write documentation for the following code change.\n")
	if styleSample != "" {
		fmt.Fprintf(&sb, "\nMatch this documentation style:\n```\n%s\n```\n", styleSample)
	}
	sb.WriteString("\n")
	writeChange(&sb, "Change:", gap)
	fmt.Fprintf(&sb, "\nCode context:\n```\n%s\n```\n\n", diffExcerpt)
	sb.WriteString(`Write clear, useful markdown documentation. Include:
- What this does and why it matters
- How to use it with code examples
- Parameters/options if applicable
- Common patterns or gotchas

Output only markdown.`)
	return sb.String()
}

func writeChange(sb *strings.Builder, heading string, gap models.Gap) {
	c := gap.Change
	fmt.Fprintf(sb, "%s\n- Source file: %s\n- Type: %s\n- Summary: %s\n- Details: %s\n",
		heading, c.SourceFile, c.Kind, c.Summary, c.Details)
}

// clip returns at most n bytes of s, cut on a rune boundary.
func clip(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// splitContext divides an existing document into the part shown to the
// generator and the tail that is carried over unchanged. The cut prefers the
// last line break within max bytes.
func splitContext(doc string, max int) (excerpt, tail string) {
	if max <= 0 || len(doc) <= max {
		return doc, ""
	}
	head := clip(doc, max)
	if i := strings.LastIndexByte(head, '\n'); i > 0 {
		head = head[:i+1]
	}
	return head, doc[len(head):]
}
