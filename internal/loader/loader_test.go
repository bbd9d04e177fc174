package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func sourceIDs(docs []Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.SourceID
	}
	return ids
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "intro.md", "# Welcome\n\n## Setup\nInstall it.\n")
	writeFile(t, root, "module-1/nodes.md", "## Nodes\nA node is a process.\n")
	writeFile(t, root, "module-1/index.mdx", "# Module 1\n")
	writeFile(t, root, "module-2/index.md", "# Module 2\n")
	writeFile(t, root, "notes.txt", "not markdown")
	writeFile(t, root, ".hidden/secret.md", "# hidden")
	writeFile(t, root, "node_modules/pkg/readme.md", "# dep")

	res, err := Discover(context.Background(), root, Options{})
	require.NoError(t, err)

	assert.Equal(t, root, res.Root)
	assert.Equal(t, []string{
		"intro.md",
		"module-1/index.mdx",
		"module-1/nodes.md",
		"module-2/index.md",
	}, sourceIDs(res.Documents))
	assert.Empty(t, res.Skipped)

	intro := res.Documents[0]
	assert.Equal(t, "intro", intro.URL)
	assert.Equal(t, "Welcome", intro.Title)
	assert.Equal(t, filepath.Join(root, "intro.md"), intro.Path)
	assert.Contains(t, intro.Content, "## Setup")
	assert.False(t, intro.ModTime.IsZero())

	nodes := res.Documents[2]
	assert.Equal(t, "module-1/nodes", nodes.URL)
	assert.Empty(t, nodes.Title)
}

func TestDiscover_IgnoreFileAndExclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, IgnoreFile, "# drafts are private\ndrafts/\n*.wip.md\narchive\n")
	writeFile(t, root, "keep.md", "keep")
	writeFile(t, root, "drafts/one.md", "draft")
	writeFile(t, root, "todo.wip.md", "wip")
	writeFile(t, root, "deep/archive/old.md", "old")
	writeFile(t, root, "deep/current.md", "current")
	writeFile(t, root, "changelog.md", "log")

	res, err := Discover(context.Background(), root, Options{Exclude: []string{"changelog.md"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"deep/current.md", "keep.md"}, sourceIDs(res.Documents))
}

func TestDiscover_Skipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.md", strings.Repeat("x", 64))
	writeFile(t, root, "binary.md", string([]byte{0xff, 0xfe, 0x00}))
	writeFile(t, root, "ok.md", "fine")

	res, err := Discover(context.Background(), root, Options{MaxFileSize: 32})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.md"}, sourceIDs(res.Documents))
	require.Len(t, res.Skipped, 2)

	reasons := map[string]string{}
	for _, s := range res.Skipped {
		reasons[s.Path] = s.Reason
	}
	assert.Contains(t, reasons["big.md"], "larger than 32 bytes")
	assert.Contains(t, reasons["binary.md"], "not valid UTF-8")
}

func TestDiscover_Errors(t *testing.T) {
	_, err := Discover(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{})
	assert.Error(t, err)

	root := t.TempDir()
	writeFile(t, root, "a.md", "a")
	_, err = Discover(context.Background(), root, Options{Exclude: []string{"$(rm -rf)"}})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Discover(ctx, root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "guide/setup.md", "Setup\n=====\n\nbody\n")

	doc, err := Load(root, filepath.Join(root, "guide", "setup.md"))
	require.NoError(t, err)
	assert.Equal(t, "guide/setup.md", doc.SourceID)
	assert.Equal(t, "guide/setup", doc.URL)
	assert.Equal(t, "Setup", doc.Title, "setext headings count")

	rel, err := Load(root, "guide/setup.md")
	require.NoError(t, err)
	assert.Equal(t, doc.SourceID, rel.SourceID)

	_, err = Load(root, "../escape.md")
	assert.Error(t, err)

	_, err = Load(root, "guide")
	assert.Error(t, err)
}

func TestSourceIDFor(t *testing.T) {
	root := t.TempDir()
	id, err := SourceIDFor(root, filepath.Join(root, "a", "b.md"))
	require.NoError(t, err)
	assert.Equal(t, "a/b.md", id)

	_, err = SourceIDFor(root, "/elsewhere/b.md")
	assert.Error(t, err)
}

func TestIsMarkdown(t *testing.T) {
	assert.True(t, IsMarkdown("a.md"))
	assert.True(t, IsMarkdown("dir/B.MDX"))
	assert.False(t, IsMarkdown("a.txt"))
	assert.False(t, IsMarkdown("md"))
}
