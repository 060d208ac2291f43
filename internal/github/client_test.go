package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomehq/tome/internal/errors"
	"github.com/tomehq/tome/internal/vcs"
)

var testRepo = vcs.Repo{Owner: "acme", Name: "widgets"}

// fakeGitHub serves the handful of REST endpoints the provider uses.
type fakeGitHub struct {
	t        *testing.T
	requests []string
	bodies   map[string]map[string]any
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	f.requests = append(f.requests, key)
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			var body map[string]any
			require.NoError(f.t, json.Unmarshal(data, &body))
			f.bodies[key] = body
		}
	}

	w.Header().Set("Content-Type", "application/json")
	switch key {
	case "GET /api/v3/repos/acme/widgets/compare/aaa...bbb":
		assert.Contains(f.t, r.Header.Get("Accept"), "diff")
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "diff --git a/config.py b/config.py\n+def parse_config(path):\n")
	case "GET /api/v3/repos/acme/widgets/git/trees/main":
		assert.Equal(f.t, "1", r.URL.Query().Get("recursive"))
		fmt.Fprint(w, `{"sha": "t1", "truncated": false, "tree": [
			{"path": "docs", "type": "tree"},
			{"path": "docs/guide.md", "type": "blob"},
			{"path": "vendor/lib", "type": "commit"}
		]}`)
	case "GET /api/v3/repos/acme/widgets/contents/docs/guide.md":
		assert.Equal(f.t, "main", r.URL.Query().Get("ref"))
		content := base64.StdEncoding.EncodeToString([]byte("# Guide\n"))
		fmt.Fprintf(w, `{"type": "file", "encoding": "base64", "path": "docs/guide.md", "sha": "blob1", "content": %q}`, content)
	case "GET /api/v3/repos/acme/widgets/git/ref/heads/main":
		fmt.Fprint(w, `{"ref": "refs/heads/main", "object": {"type": "commit", "sha": "tip123"}}`)
	case "POST /api/v3/repos/acme/widgets/git/refs":
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"ref": "refs/heads/tome/docs-update-1", "object": {"type": "commit", "sha": "tip123"}}`)
	case "PUT /api/v3/repos/acme/widgets/contents/docs/config.md":
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"content": {"path": "docs/config.md", "sha": "blob2"}, "commit": {"sha": "commit1"}}`)
	case "POST /api/v3/repos/acme/widgets/pulls":
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number": 42, "html_url": "https://github.com/acme/widgets/pull/42"}`)
	case "GET /api/v3/repos/acme/widgets/git/ref/heads/gone":
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeGitHub) {
	t.Helper()
	fake := &fakeGitHub{t: t, bodies: map[string]map[string]any{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{Token: "ghp_test", BaseURL: srv.URL + "/", RateLimit: 1000, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return client, fake
}

func TestGetDiff(t *testing.T) {
	client, _ := newTestClient(t)
	diff, err := client.GetDiff(context.Background(), testRepo, "aaa", "bbb")
	require.NoError(t, err)
	assert.Contains(t, diff, "parse_config")
}

func TestListTreeSkipsSubmodules(t *testing.T) {
	client, _ := newTestClient(t)
	entries, err := client.ListTree(context.Background(), testRepo, "main")
	require.NoError(t, err)
	assert.Equal(t, []vcs.TreeEntry{
		{Path: "docs", Kind: vcs.EntryTree},
		{Path: "docs/guide.md", Kind: vcs.EntryBlob},
	}, entries)
}

func TestReadFileAndSHA(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	content, err := client.ReadFile(ctx, testRepo, "docs/guide.md", "main")
	require.NoError(t, err)
	assert.Equal(t, "# Guide\n", content)

	sha, err := client.FileSHA(ctx, testRepo, "docs/guide.md", "main")
	require.NoError(t, err)
	assert.Equal(t, "blob1", sha)

	_, err = client.FileSHA(ctx, testRepo, "docs/missing.md", "main")
	assert.True(t, vcs.IsNotFound(err), "404 maps to ErrNotFound, got %v", err)
}

func TestBranchAndPublishCalls(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	tip, err := client.GetBranchTip(ctx, testRepo, "main")
	require.NoError(t, err)
	assert.Equal(t, "tip123", tip)

	require.NoError(t, client.CreateBranch(ctx, testRepo, "tome/docs-update-1", tip))
	refBody := fake.bodies["POST /api/v3/repos/acme/widgets/git/refs"]
	assert.Equal(t, "refs/heads/tome/docs-update-1", refBody["ref"])
	assert.Equal(t, "tip123", refBody["sha"])

	sha, err := client.PutFile(ctx, testRepo, vcs.FileCommit{
		Path:    "docs/config.md",
		Content: "# Config\n",
		Message: "docs: add docs/config.md",
		Branch:  "tome/docs-update-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "commit1", sha)
	putBody := fake.bodies["PUT /api/v3/repos/acme/widgets/contents/docs/config.md"]
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("# Config\n")), putBody["content"])
	_, hasSHA := putBody["sha"]
	assert.False(t, hasSHA, "creating a file sends no prior sha")

	pr, err := client.OpenPullRequest(ctx, testRepo, vcs.PullRequestSpec{
		Title: "docs: update documentation (1 file)",
		Body:  "body",
		Head:  "tome/docs-update-1",
		Base:  "main",
	})
	require.NoError(t, err)
	assert.Equal(t, vcs.PullRequest{Number: 42, URL: "https://github.com/acme/widgets/pull/42"}, pr)
}

func TestUpdateSendsPriorSHA(t *testing.T) {
	client, fake := newTestClient(t)
	_, err := client.PutFile(context.Background(), testRepo, vcs.FileCommit{
		Path: "docs/config.md", Content: "x", Message: "m", Branch: "b", PriorSHA: "blob0",
	})
	require.NoError(t, err)
	assert.Equal(t, "blob0", fake.bodies["PUT /api/v3/repos/acme/widgets/contents/docs/config.md"]["sha"])
}

func TestMissingBranchIsNotFound(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.GetBranchTip(context.Background(), testRepo, "gone")
	assert.True(t, vcs.IsNotFound(err))
}

func TestRemoteFailureIsExternalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message": "Reference already exists"}`)
	}))
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{BaseURL: srv.URL + "/", RateLimit: 1000})
	require.NoError(t, err)

	err = client.CreateBranch(context.Background(), testRepo, "tome/x", "tip")
	require.Error(t, err)
	assert.False(t, vcs.IsNotFound(err))
	assert.True(t, errors.HasType(err, errors.ErrorTypeExternal))
}

func TestSplitFullName(t *testing.T) {
	repo, err := SplitFullName("acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, testRepo, repo)

	for _, bad := range []string{"", "acme", "/widgets", "acme/", "a/b/c"} {
		_, err := SplitFullName(bad)
		assert.Error(t, err, bad)
	}
}
