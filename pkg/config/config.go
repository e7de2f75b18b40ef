// Package config holds the path-sandboxing helpers and the build/search/
// writer configuration the command-line tools load. Grounded on the
// teacher's pkg/config path-security helpers (ValidatePath/SanitizeDataDir
// are load-bearing enough to keep verbatim in spirit); the TLS/API-key/auth
// surface the teacher's full config system carries has no caller in this
// domain and is not ported.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gibram-io/vamana/pkg/verrors"
)

var disallowedDataDirs = map[string]bool{
	"/":     true,
	"/etc":  true,
	"/bin":  true,
	"/sbin": true,
	"/usr":  true,
	"/var":  true,
	"/root": true,
}

// ValidatePath resolves targetPath and confirms it lies within basePath,
// rejecting ".." traversal outside the sandbox. Symlinks are not resolved,
// so a link inside basePath that points outside it is accepted. It returns
// the cleaned absolute target path.
func ValidatePath(basePath, targetPath string) (string, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return "", verrors.Wrap(verrors.InvalidArgument, err, "resolve base path %s", basePath)
	}
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return "", verrors.Wrap(verrors.InvalidArgument, err, "resolve target path %s", targetPath)
	}
	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil {
		return "", verrors.Wrap(verrors.InvalidArgument, err, "compute relative path from %s to %s", absBase, absTarget)
	}
	if rel == ".." || len(rel) >= 2 && rel[:2] == ".."+string(filepath.Separator) {
		return "", verrors.New(verrors.InvalidArgument, "path %s escapes base %s", targetPath, basePath)
	}
	return absTarget, nil
}

// SanitizeDataDir resolves dataDir to an absolute path and rejects a short
// list of filesystem roots no index should ever be pointed at.
func SanitizeDataDir(dataDir string) (string, error) {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return "", verrors.Wrap(verrors.InvalidArgument, err, "resolve data directory %s", dataDir)
	}
	clean := filepath.Clean(abs)
	if disallowedDataDirs[clean] {
		return "", verrors.New(verrors.InvalidArgument, "refusing to use %s as a data directory", clean)
	}
	return clean, nil
}

// EnsureDataDir creates dataDir (and parents) if missing, after sanitizing
// it, and returns the sanitized absolute path.
func EnsureDataDir(dataDir string) (string, error) {
	clean, err := SanitizeDataDir(dataDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(clean, 0o755); err != nil {
		return "", verrors.Wrap(verrors.Io, err, "create data directory %s", clean)
	}
	return clean, nil
}

// IndexConfig is the top-level configuration a build/search command-line
// tool loads: where the index lives, and the builder/searcher tunables
// spec §4.G/§4.H expose.
type IndexConfig struct {
	DataDir          string
	Dimension        int
	MaxDegree        int
	BeamWidth        int
	AlphaOverflow    float32
	AlphaDiversity   float32
	Hierarchy        bool
	IDUpperBound     int
	SearchTopK       int
	SearchOverqueryK int
	CacheDepth       int
	CacheTTL         time.Duration
}

// DefaultIndexConfig returns conservative defaults suitable for a small to
// medium on-disk index.
func DefaultIndexConfig() *IndexConfig {
	return &IndexConfig{
		DataDir:          "./data",
		MaxDegree:        64,
		BeamWidth:        100,
		AlphaOverflow:    1.2,
		AlphaDiversity:   1.2,
		Hierarchy:        false,
		IDUpperBound:     1 << 20,
		SearchTopK:       10,
		SearchOverqueryK: 50,
		CacheDepth:       3,
	}
}

// Validate checks the configuration is internally consistent, sanitizing
// DataDir in the process.
func (c *IndexConfig) Validate() error {
	clean, err := SanitizeDataDir(c.DataDir)
	if err != nil {
		return err
	}
	c.DataDir = clean
	if c.Dimension <= 0 {
		return verrors.New(verrors.InvalidArgument, "dimension must be positive, got %d", c.Dimension)
	}
	if c.MaxDegree <= 0 {
		return verrors.New(verrors.InvalidArgument, "max_degree must be positive, got %d", c.MaxDegree)
	}
	if c.BeamWidth <= 0 {
		return verrors.New(verrors.InvalidArgument, "beam_width must be positive, got %d", c.BeamWidth)
	}
	if c.IDUpperBound <= 0 {
		return verrors.New(verrors.InvalidArgument, "id_upper_bound must be positive, got %d", c.IDUpperBound)
	}
	if c.SearchTopK <= 0 {
		c.SearchTopK = 10
	}
	if c.SearchOverqueryK < c.SearchTopK {
		c.SearchOverqueryK = c.SearchTopK
	}
	if c.CacheDepth <= 0 {
		c.CacheDepth = 3
	}
	return nil
}
