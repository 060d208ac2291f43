// Package corpus holds the documentation snapshot a pipeline run reads and
// the tree filtering that selects doc and source files.
package corpus

import (
	"strings"
)

// Corpus maps documentation paths to their text. Paths keep the order they
// were added in, so lookups that take "the first match" are deterministic for
// a given snapshot. A Corpus is read-only once loaded.
type Corpus struct {
	paths    []string
	contents map[string]string
	haystack string
}

// New builds a corpus from path/content pairs in order. Later duplicates of a
// path replace the content but keep the original position.
func New(docs ...Doc) *Corpus {
	c := &Corpus{contents: make(map[string]string, len(docs))}
	for _, d := range docs {
		if _, seen := c.contents[d.Path]; !seen {
			c.paths = append(c.paths, d.Path)
		}
		c.contents[d.Path] = d.Content
	}
	values := make([]string, len(c.paths))
	for i, p := range c.paths {
		values[i] = c.contents[p]
	}
	c.haystack = strings.ToLower(strings.Join(values, "\n"))
	return c
}

// Doc is one documentation file.
type Doc struct {
	Path    string
	Content string
}

// Paths returns the document paths in insertion order.
func (c *Corpus) Paths() []string {
	return append([]string(nil), c.paths...)
}

// Get returns a document's content.
func (c *Corpus) Get(path string) (string, bool) {
	content, ok := c.contents[path]
	return content, ok
}

func (c *Corpus) Len() int {
	return len(c.paths)
}

// Haystack is every document joined by newlines and lower-cased.
func (c *Corpus) Haystack() string {
	return c.haystack
}

// First returns the first document, used as a style sample.
func (c *Corpus) First() (Doc, bool) {
	if len(c.paths) == 0 {
		return Doc{}, false
	}
	p := c.paths[0]
	return Doc{Path: p, Content: c.contents[p]}, true
}
