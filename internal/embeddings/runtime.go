package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/logging"
	"go.uber.org/zap"
)

// ONNXRuntimeVersion is the onnxruntime release fastembed-go links against.
const ONNXRuntimeVersion = "1.23.0"

// DefaultReleaseURL is where onnxruntime release archives are published.
const DefaultReleaseURL = "https://github.com/microsoft/onnxruntime/releases/download"

// ErrUnsupportedPlatform is returned for platforms without a prebuilt
// onnxruntime archive.
var ErrUnsupportedPlatform = errors.New("onnx runtime: unsupported platform")

type runtimeTarget struct {
	archive string
	library string
}

var runtimeTargets = map[string]runtimeTarget{
	"linux/amd64":  {archive: "linux-x64", library: "libonnxruntime.so"},
	"linux/arm64":  {archive: "linux-aarch64", library: "libonnxruntime.so"},
	"darwin/amd64": {archive: "osx-x86_64", library: "libonnxruntime.dylib"},
	"darwin/arm64": {archive: "osx-arm64", library: "libonnxruntime.dylib"},
}

// RuntimeConfig locates the onnxruntime shared library used by the fastembed
// provider.
type RuntimeConfig struct {
	// CacheDir is the embeddings cache root (config embeddings.cache_dir).
	// The runtime lives under <CacheDir>/onnxruntime/<Version>. Empty uses
	// ~/.cache/docrag.
	CacheDir   string
	Version    string
	ReleaseURL string
	Client     *http.Client
	Logger     *logging.Logger
	// GOOS and GOARCH default to the running platform.
	GOOS   string
	GOARCH string
}

// Runtime installs and locates onnxruntime.
type Runtime struct {
	cfg    RuntimeConfig
	target runtimeTarget
	dir    string
}

// NewRuntime resolves defaults and the release archive for the platform.
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	if cfg.Version == "" {
		cfg.Version = ONNXRuntimeVersion
	}
	if cfg.ReleaseURL == "" {
		cfg.ReleaseURL = DefaultReleaseURL
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	if cfg.GOARCH == "" {
		cfg.GOARCH = runtime.GOARCH
	}

	target, ok := runtimeTargets[cfg.GOOS+"/"+cfg.GOARCH]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s (set ONNX_PATH to an existing install)", ErrUnsupportedPlatform, cfg.GOOS, cfg.GOARCH)
	}

	return &Runtime{
		cfg:    cfg,
		target: target,
		dir:    filepath.Join(cacheRoot(cfg.CacheDir), "onnxruntime", cfg.Version),
	}, nil
}

// cacheRoot returns dir, or ~/.cache/docrag when dir is empty.
func cacheRoot(dir string) string {
	if dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cache", "docrag")
}

// Dir is the install directory.
func (r *Runtime) Dir() string { return r.dir }

// URL is the release archive for the configured version and platform.
func (r *Runtime) URL() string {
	return fmt.Sprintf("%s/v%s/onnxruntime-%s-%s.tgz",
		strings.TrimRight(r.cfg.ReleaseURL, "/"), r.cfg.Version, r.target.archive, r.cfg.Version)
}

// LibraryPath returns ONNX_PATH when set, else the installed library, else "".
func (r *Runtime) LibraryPath() string {
	if p := os.Getenv("ONNX_PATH"); p != "" {
		return p
	}
	p := filepath.Join(r.dir, r.target.library)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// Ensure installs the runtime if it is missing and exports ONNX_PATH for
// fastembed-go. It returns the library path.
func (r *Runtime) Ensure(ctx context.Context) (string, error) {
	p := r.LibraryPath()
	if p == "" {
		r.cfg.Logger.Info(ctx, "downloading onnx runtime",
			zap.String("url", r.URL()),
			zap.String("dir", r.dir),
		)
		files, err := r.install(ctx)
		if err != nil {
			return "", fmt.Errorf("installing onnx runtime v%s: %w", r.cfg.Version, err)
		}
		p = filepath.Join(r.dir, r.target.library)
		r.cfg.Logger.Info(ctx, "onnx runtime installed",
			zap.String("path", p),
			zap.Strings("files", files),
		)
	}
	if err := os.Setenv("ONNX_PATH", p); err != nil {
		return "", fmt.Errorf("setting ONNX_PATH: %w", err)
	}
	return p, nil
}

// install extracts the archive's lib/ directory into a staging directory
// and renames it into place, so a failed download leaves nothing behind.
func (r *Runtime) install(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := r.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading %s: status %d", r.URL(), resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(r.dir), 0o700); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	staging, err := os.MkdirTemp(filepath.Dir(r.dir), ".onnxruntime-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	prefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", r.target.archive, r.cfg.Version)
	files, err := extractLibs(resp.Body, staging, prefix)
	if err != nil {
		return nil, err
	}
	if !hasLibrary(files, r.target.library) {
		return nil, fmt.Errorf("%s not found in archive", r.target.library)
	}

	if err := os.RemoveAll(r.dir); err != nil {
		return nil, fmt.Errorf("removing stale install: %w", err)
	}
	if err := os.Rename(staging, r.dir); err != nil {
		return nil, fmt.Errorf("moving runtime into place: %w", err)
	}
	return files, nil
}

func hasLibrary(files []string, lib string) bool {
	for _, f := range files {
		if f == lib || strings.HasPrefix(f, lib+".") {
			return true
		}
	}
	return false
}

// extractLibs writes the regular files and symlinks found directly under
// prefix in a gzipped tarball into dst and returns their names.
func extractLibs(src io.Reader, dst, prefix string) ([]string, error) {
	gz, err := gzip.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("reading gzip: %w", err)
	}
	defer gz.Close()

	var files []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(hdr.Name, "./")
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || rest == "" || strings.Contains(rest, "/") {
			continue
		}
		target := filepath.Join(dst, rest)

		switch hdr.Typeflag {
		case tar.TypeSymlink:
			// Links must stay inside the lib directory.
			if path.IsAbs(hdr.Linkname) || strings.Contains(hdr.Linkname, "/") {
				continue
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return nil, fmt.Errorf("linking %s: %w", rest, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr); err != nil {
				return nil, err
			}
		default:
			continue
		}
		files = append(files, rest)
	}
}

func writeFile(target string, r io.Reader) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(target), err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(target), err)
	}
	return f.Close()
}
