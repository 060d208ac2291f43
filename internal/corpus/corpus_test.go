package corpus

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomehq/tome/internal/vcs"
	"github.com/tomehq/tome/internal/vcs/vcstest"
)

var (
	repo    = vcs.Repo{Owner: "acme", Name: "widgets"}
	docExts = []string{".md", ".mdx", ".rst", ".txt"}
	srcExts = []string{".py", ".js", ".ts", ".go", ".rs", ".java", ".rb", ".php"}
)

func TestCorpusKeepsInsertionOrder(t *testing.T) {
	c := New(
		Doc{Path: "docs/z.md", Content: "Zeta"},
		Doc{Path: "docs/a.md", Content: "Alpha"},
		Doc{Path: "docs/z.md", Content: "Zeta two"},
	)
	assert.Equal(t, []string{"docs/z.md", "docs/a.md"}, c.Paths())
	assert.Equal(t, 2, c.Len())

	content, ok := c.Get("docs/z.md")
	require.True(t, ok)
	assert.Equal(t, "Zeta two", content)
	assert.Equal(t, "zeta two\nalpha", c.Haystack())

	first, ok := c.First()
	require.True(t, ok)
	assert.Equal(t, "docs/z.md", first.Path)

	_, ok = New().First()
	assert.False(t, ok)
}

func TestFilterBlobs(t *testing.T) {
	entries := []vcs.TreeEntry{
		{Path: "docs", Kind: vcs.EntryTree},
		{Path: "docs/guide.md", Kind: vcs.EntryBlob},
		{Path: "docs/img.png", Kind: vcs.EntryBlob},
		{Path: "docs/api/REF.RST", Kind: vcs.EntryBlob},
		{Path: "README.md", Kind: vcs.EntryBlob},
		{Path: "src/app.py", Kind: vcs.EntryBlob},
		{Path: "src/notes.md", Kind: vcs.EntryBlob},
		{Path: "lib/util.go", Kind: vcs.EntryBlob},
	}
	l := NewLoader(nil, docExts, srcExts, 0)

	assert.Equal(t, []string{"docs/guide.md", "docs/api/REF.RST"}, l.DocPaths(entries, []string{"docs/"}))
	assert.Equal(t, []string{"src/app.py"}, l.SourcePaths(entries, []string{"./src"}))
	assert.Equal(t, []string{"src/app.py", "lib/util.go"}, l.SourcePaths(entries, nil))
	assert.Equal(t, []string{"src/app.py", "lib/util.go"}, l.SourcePaths(entries, []string{"src", " lib/"}))
}

func TestLoadDocs(t *testing.T) {
	p := vcstest.New("main")
	p.AddFile("main", "docs/b.md", "# B\nbeta")
	p.AddFile("main", "docs/a.md", "# A\nalpha")
	p.AddFile("main", "docs/empty.md", "   \n")
	p.AddFile("main", "src/app.py", "print('x')")

	l := NewLoader(p, docExts, srcExts, 2)
	c, err := l.LoadDocs(context.Background(), repo, "main", []string{"docs/"})
	require.NoError(t, err)

	assert.Equal(t, []string{"docs/a.md", "docs/b.md"}, c.Paths(), "tree order, empty docs dropped")
	assert.Contains(t, c.Haystack(), "alpha")
}

func TestReadPreservesOrderUnderConcurrency(t *testing.T) {
	p := vcstest.New("main")
	var paths []string
	for i := 0; i < 40; i++ {
		path := fmt.Sprintf("docs/%02d.md", 39-i)
		p.AddFile("main", path, "doc "+path)
		paths = append(paths, path)
	}

	l := NewLoader(p, docExts, srcExts, 8)
	c, err := l.Read(context.Background(), repo, "main", paths)
	require.NoError(t, err)
	assert.Equal(t, paths, c.Paths())
}

func TestReadSkipsVanishedFiles(t *testing.T) {
	p := vcstest.New("main")
	p.AddFile("main", "docs/a.md", "alpha")

	l := NewLoader(p, docExts, srcExts, 4)
	c, err := l.Read(context.Background(), repo, "main", []string{"docs/gone.md", "docs/a.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a.md"}, c.Paths())
}

func TestLoadDocsPropagatesProviderFailure(t *testing.T) {
	p := vcstest.New("main")
	p.AddFile("main", "docs/a.md", "alpha")
	p.FailOn("ReadFile", errors.New("connection reset"))

	l := NewLoader(p, docExts, srcExts, 4)
	_, err := l.LoadDocs(context.Background(), repo, "main", nil)
	assert.ErrorContains(t, err, "connection reset")
}
