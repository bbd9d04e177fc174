package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/sanitize"
)

// Filter decides which paths under a docs root are documents, applying the
// same rules as Discover. The watcher uses it to ignore unrelated events.
type Filter struct {
	root   string
	exts   []string
	ignore *matcher
}

// NewFilter validates docsDir and reads its IgnoreFile.
func NewFilter(docsDir string, opts Options) (*Filter, error) {
	root, err := sanitize.ValidateDir(docsDir)
	if err != nil {
		return nil, fmt.Errorf("invalid docs dir: %w", err)
	}
	opts = opts.withDefaults()

	patterns, err := ParseIgnoreFile(filepath.Join(root, IgnoreFile))
	if err != nil {
		return nil, err
	}
	patterns = append(patterns, opts.Exclude...)
	if err := validatePatterns(patterns); err != nil {
		return nil, err
	}
	return &Filter{root: root, exts: opts.Extensions, ignore: newMatcher(patterns)}, nil
}

// Root is the absolute docs directory.
func (f *Filter) Root() string {
	return f.root
}

// Match reports whether the slash-separated path rel, relative to Root,
// would be loaded by Discover. Every parent directory is checked too.
func (f *Filter) Match(rel string) bool {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." || strings.HasPrefix(rel, "../") {
		return false
	}
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if f.skipDir(strings.Join(parts[:i], "/")) {
			return false
		}
	}
	return f.matchFile(rel)
}

// SkipDir reports whether the directory rel is excluded.
func (f *Filter) SkipDir(rel string) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}
	return f.skipDir(rel)
}

func (f *Filter) skipDir(rel string) bool {
	name := rel[strings.LastIndex(rel, "/")+1:]
	return strings.HasPrefix(name, ".") || skipDirs[name] || f.ignore.match(rel+"/")
}

func (f *Filter) matchFile(rel string) bool {
	return hasExtension(rel, f.exts) && !f.ignore.match(rel)
}
