// Package loader discovers markdown documents under a docs directory.
package loader

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/docrag/internal/sanitize"
)

// DefaultMaxFileSize bounds a single document (1MB).
const DefaultMaxFileSize = 1024 * 1024

// IgnoreFile holds gitignore-style exclusions in the docs root.
const IgnoreFile = ".docragignore"

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"build":        true,
	"__pycache__":  true,
}

// Document is one markdown file ready for chunking.
type Document struct {
	// Path is the absolute file path.
	Path string
	// SourceID is the slash-separated path relative to the docs root,
	// extension included ("intro.md", "guide/setup.md").
	SourceID string
	// URL is SourceID without its extension ("guide/setup").
	URL string
	// Title is the first level-1 heading, if any.
	Title   string
	Content string
	ModTime time.Time
}

// Options configures discovery.
type Options struct {
	// Extensions defaults to .md and .mdx.
	Extensions []string
	// Exclude holds extra glob patterns on top of IgnoreFile.
	Exclude []string
	// MaxFileSize defaults to DefaultMaxFileSize.
	MaxFileSize int64
}

func (o Options) withDefaults() Options {
	if len(o.Extensions) == 0 {
		o.Extensions = []string{".md", ".mdx"}
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	return o
}

// Skipped records a file that matched but was not loaded.
type Skipped struct {
	Path   string
	Reason string
}

// Result is the outcome of Discover.
type Result struct {
	Root      string
	Documents []Document
	Skipped   []Skipped
}

// Discover walks docsDir and loads every markdown document, sorted by
// SourceID. Hidden directories, skipDirs and ignore patterns are skipped;
// oversized and non-UTF-8 files are reported in Result.Skipped.
func Discover(ctx context.Context, docsDir string, opts Options) (*Result, error) {
	filter, err := NewFilter(docsDir, opts)
	if err != nil {
		return nil, err
	}
	root := filter.Root()
	opts = opts.withDefaults()

	res := &Result{Root: root}
	err = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p == root {
				return nil
			}
			if filter.skipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !filter.matchFile(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", rel, err)
		}
		if info.Size() > opts.MaxFileSize {
			res.Skipped = append(res.Skipped, Skipped{Path: rel, Reason: fmt.Sprintf("larger than %d bytes", opts.MaxFileSize)})
			return nil
		}

		doc, err := read(p, rel, info.ModTime())
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: rel, Reason: err.Error()})
			return nil
		}
		res.Documents = append(res.Documents, *doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Slice(res.Documents, func(i, j int) bool {
		return res.Documents[i].SourceID < res.Documents[j].SourceID
	})
	return res, nil
}

// Load reads a single file under docsDir.
func Load(docsDir, file string) (*Document, error) {
	root, err := sanitize.ValidateDir(docsDir)
	if err != nil {
		return nil, fmt.Errorf("invalid docs dir: %w", err)
	}
	abs, err := sanitize.ValidatePath(file, root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", abs)
	}
	if info.Size() > DefaultMaxFileSize {
		return nil, fmt.Errorf("%s is larger than %d bytes", abs, DefaultMaxFileSize)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return nil, err
	}
	return read(abs, filepath.ToSlash(rel), info.ModTime())
}

// SourceIDFor maps a path under docsDir to its SourceID.
func SourceIDFor(docsDir, file string) (string, error) {
	root, err := filepath.Abs(docsDir)
	if err != nil {
		return "", err
	}
	abs, err := sanitize.ValidatePath(file, root)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// IsMarkdown reports whether name carries a default markdown extension.
func IsMarkdown(name string) bool {
	return hasExtension(name, Options{}.withDefaults().Extensions)
}

func read(abs, rel string, modTime time.Time) (*Document, error) {
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%s is not valid UTF-8", rel)
	}

	return &Document{
		Path:     abs,
		SourceID: rel,
		URL:      strings.TrimPrefix(strings.TrimSuffix(rel, path.Ext(rel)), "/"),
		Title:    ExtractTitle(content),
		Content:  string(content),
		ModTime:  modTime,
	}, nil
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func validatePatterns(patterns []string) error {
	for i, p := range patterns {
		for _, part := range strings.Split(p, "/") {
			if part == "**" {
				continue
			}
			if err := sanitize.ValidateGlobPattern(part); err != nil {
				return fmt.Errorf("ignore pattern[%d] %q: %w", i, p, err)
			}
		}
	}
	return nil
}
