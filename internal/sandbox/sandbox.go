// Package sandbox confines every filesystem path the version-control core
// touches to a configured root directory. The core never resolves absolute
// or parent-traversing paths itself; it hands every user-supplied relative
// path to a Guard first.
package sandbox

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/quarryvcs/quarry/internal/vcserr"
)

// Guard maps user-supplied relative paths to absolute paths guaranteed to
// stay within a root, rejecting traversal attempts.
type Guard interface {
	// Resolve returns the absolute path for rel inside the root.
	Resolve(rel string) (string, error)

	// Root returns the absolute confinement root.
	Root() string
}

// DirGuard confines paths to a single directory.
type DirGuard struct {
	root string
}

// NewDirGuard creates a guard rooted at dir. The directory must exist.
func NewDirGuard(dir string) (*DirGuard, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, vcserr.Wrap(vcserr.IO, err, "resolve sandbox root %q", dir)
	}
	abs = filepath.Clean(abs)
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vcserr.New(vcserr.NotFound, "sandbox root %q does not exist", dir)
		}
		return nil, vcserr.Wrap(vcserr.IO, err, "stat sandbox root %q", dir)
	}
	if !info.IsDir() {
		return nil, vcserr.New(vcserr.InvalidOperation, "sandbox root %q is not a directory", dir)
	}
	return &DirGuard{root: abs}, nil
}

// Root implements Guard.Root.
func (g *DirGuard) Root() string { return g.root }

// Resolve implements Guard.Resolve. Absolute input paths are rejected
// outright; relative paths are joined to the root and the cleaned result
// must still sit inside it.
func (g *DirGuard) Resolve(rel string) (string, error) {
	if rel == "" || rel == "." {
		return g.root, nil
	}
	if filepath.IsAbs(rel) {
		return "", vcserr.New(vcserr.InvalidOperation, "absolute path not allowed: %q", rel)
	}
	full := filepath.Clean(filepath.Join(g.root, rel))
	if full != g.root && !strings.HasPrefix(full, g.root+string(filepath.Separator)) {
		return "", vcserr.New(vcserr.InvalidOperation, "path traversal detected: %q", rel)
	}
	return full, nil
}

// Rel converts an absolute path back to its root-relative, slash-separated
// form. The path must sit inside the root.
func (g *DirGuard) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(g.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", vcserr.New(vcserr.InvalidOperation, "path %q outside sandbox root", abs)
	}
	return filepath.ToSlash(rel), nil
}
