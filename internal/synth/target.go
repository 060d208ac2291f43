package synth

import (
	"path"
	"strings"

	"github.com/tomehq/tome/internal/coverage"
)

// Mode says whether a synthesized document replaces an existing file or
// creates a new one.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

func (m Mode) String() string {
	if m == ModeUpdate {
		return "update"
	}
	return "create"
}

// Target is where a gap's documentation goes.
type Target struct {
	Path string
	Mode Mode
}

// FindTarget resolves the documentation file for a source file. The first
// doc path (in the given order) whose base name equals or contains the source
// base name is updated; otherwise a new <docsDir>/<base>.md is created.
func FindTarget(sourceFile string, docPaths []string, docsDir string) Target {
	base := coverage.BaseName(sourceFile)
	for _, p := range docPaths {
		docBase := coverage.BaseName(p)
		if docBase == base || strings.Contains(docBase, base) {
			return Target{Path: p, Mode: ModeUpdate}
		}
	}
	if docsDir = strings.Trim(docsDir, "/"); docsDir == "" {
		docsDir = "docs"
	}
	return Target{Path: path.Join(docsDir, base+".md"), Mode: ModeCreate}
}
