// Package worktree synchronizes the on-disk directory tree with tree
// objects from the store: materializing snapshots onto disk and pruning
// files a target snapshot no longer contains.
package worktree

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quarryvcs/quarry/internal/objects"
	"github.com/quarryvcs/quarry/internal/sandbox"
	"github.com/quarryvcs/quarry/internal/vcserr"
)

// PathError records one file the sync could not write or delete.
type PathError struct {
	Path string
	Err  error
}

// Report is the partial-success result of a sync. A single locked or
// permission-denied file must not block restoring the rest of the tree, so
// per-path failures are collected here instead of aborting.
type Report struct {
	Written []string
	Deleted []string
	Failed  []PathError
}

// Ok reports whether every path synced cleanly.
func (r *Report) Ok() bool { return len(r.Failed) == 0 }

func (r *Report) fail(p string, err error) {
	r.Failed = append(r.Failed, PathError{Path: p, Err: err})
}

// Sync materializes tree objects under a confined working directory.
type Sync struct {
	store   objects.Store
	guard   sandbox.Guard
	control string // control directory name, excluded from every walk
}

// NewSync creates a Sync writing below the guard's root. The named control
// directory is excluded from both the write and the delete pass.
func NewSync(store objects.Store, guard sandbox.Guard, controlDir string) *Sync {
	return &Sync{store: store, guard: guard, control: controlDir}
}

// Materialize writes every blob in the tree to its path, creating parent
// directories as needed. Files already on disk are overwritten.
func (s *Sync) Materialize(tree objects.Hash) (*Report, error) {
	report := &Report{}
	if err := s.writeTree(tree, "", report); err != nil {
		return report, err
	}
	return report, nil
}

// Checkout makes the working tree match the target tree exactly: a write
// pass seeds every path the target needs, then a delete pass removes files
// absent from it. The ordering matters for renames: the new path is written
// before the delete pass can remove the old one, so shared content is never
// transiently lost.
func (s *Sync) Checkout(tree objects.Hash) (*Report, error) {
	report := &Report{}
	if err := s.writeTree(tree, "", report); err != nil {
		return report, err
	}

	tracked, err := TrackedPaths(s.store, tree, "", make(map[string]struct{}))
	if err != nil {
		return report, err
	}
	if err := s.prune(tracked, report); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Sync) writeTree(treeHash objects.Hash, prefix string, report *Report) error {
	tree, err := objects.GetTree(s.store, treeHash)
	if err != nil {
		return err
	}

	for _, entry := range tree.Entries {
		rel := path.Join(prefix, entry.Name)
		if entry.Mode.IsDir() {
			abs, err := s.guard.Resolve(filepath.FromSlash(rel))
			if err != nil {
				report.fail(rel, err)
				continue
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				report.fail(rel, vcserr.Wrap(vcserr.IO, err, "create directory"))
				continue
			}
			if err := s.writeTree(entry.Hash, rel, report); err != nil {
				return err
			}
			continue
		}

		if err := s.writeBlob(entry, rel); err != nil {
			report.fail(rel, err)
			continue
		}
		report.Written = append(report.Written, rel)
	}
	return nil
}

func (s *Sync) writeBlob(entry objects.TreeEntry, rel string) error {
	kind, content, err := s.store.Get(entry.Hash)
	if err != nil {
		return err
	}
	if kind != objects.KindBlob {
		return vcserr.New(vcserr.Corruption, "tree entry %q references a %s, not a blob", rel, kind)
	}

	abs, err := s.guard.Resolve(filepath.FromSlash(rel))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return vcserr.Wrap(vcserr.IO, err, "create parent directory")
	}

	perm := os.FileMode(0o644)
	if entry.Mode.IsExec() {
		perm = 0o755
	}
	if err := os.WriteFile(abs, content, perm); err != nil {
		return vcserr.Wrap(vcserr.IO, err, "write file")
	}
	// WriteFile does not change the mode of an existing file.
	if err := os.Chmod(abs, perm); err != nil {
		return vcserr.Wrap(vcserr.IO, err, "set file mode")
	}
	return nil
}

// prune deletes every on-disk file whose path is not in tracked. Directories
// emptied as a side effect are left in place; emptiness is not an error.
func (s *Sync) prune(tracked map[string]struct{}, report *Report) error {
	root := s.guard.Root()
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == s.control || strings.HasPrefix(rel, s.control+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := tracked[rel]; ok {
			return nil
		}
		if err := os.Remove(p); err != nil {
			report.fail(rel, vcserr.Wrap(vcserr.IO, err, "delete file"))
			return nil
		}
		report.Deleted = append(report.Deleted, rel)
		return nil
	})
}

// TrackedPaths collects every file path in the tree into acc, returning the
// accumulator. Recursion is explicit, with the accumulator threaded through
// calls rather than captured by a closure.
func TrackedPaths(store objects.Store, treeHash objects.Hash, prefix string, acc map[string]struct{}) (map[string]struct{}, error) {
	tree, err := objects.GetTree(store, treeHash)
	if err != nil {
		return acc, err
	}
	for _, entry := range tree.Entries {
		rel := path.Join(prefix, entry.Name)
		if entry.Mode.IsDir() {
			acc, err = TrackedPaths(store, entry.Hash, rel, acc)
			if err != nil {
				return acc, err
			}
			continue
		}
		acc[rel] = struct{}{}
	}
	return acc, nil
}

// ListFiles returns every (path, mode, blob) in the tree, sorted by path.
func ListFiles(store objects.Store, treeHash objects.Hash) ([]objects.TreeEntry, error) {
	flat, err := listFiles(store, treeHash, "", nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(flat, func(i, j int) bool { return flat[i].Name < flat[j].Name })
	return flat, nil
}

func listFiles(store objects.Store, treeHash objects.Hash, prefix string, acc []objects.TreeEntry) ([]objects.TreeEntry, error) {
	tree, err := objects.GetTree(store, treeHash)
	if err != nil {
		return acc, err
	}
	for _, entry := range tree.Entries {
		rel := path.Join(prefix, entry.Name)
		if entry.Mode.IsDir() {
			acc, err = listFiles(store, entry.Hash, rel, acc)
			if err != nil {
				return acc, err
			}
			continue
		}
		acc = append(acc, objects.TreeEntry{Mode: entry.Mode, Name: rel, Hash: entry.Hash})
	}
	return acc, nil
}

// RestoreFile writes one file from the tree back to disk, leaving the rest
// of the working tree untouched.
func (s *Sync) RestoreFile(treeHash objects.Hash, file string) (int, error) {
	file = path.Clean(filepath.ToSlash(file))
	segments := strings.Split(file, "/")

	current := treeHash
	for _, seg := range segments[:len(segments)-1] {
		tree, err := objects.GetTree(s.store, current)
		if err != nil {
			return 0, err
		}
		entry, ok := tree.Lookup(seg)
		if !ok || !entry.Mode.IsDir() {
			return 0, vcserr.New(vcserr.NotFound, "file %q not found in tree", file)
		}
		current = entry.Hash
	}

	tree, err := objects.GetTree(s.store, current)
	if err != nil {
		return 0, err
	}
	entry, ok := tree.Lookup(segments[len(segments)-1])
	if !ok || entry.Mode.IsDir() {
		return 0, vcserr.New(vcserr.NotFound, "file %q not found in tree", file)
	}
	if err := s.writeBlob(entry, file); err != nil {
		return 0, err
	}

	_, content, err := s.store.Get(entry.Hash)
	if err != nil {
		return 0, err
	}
	return len(content), nil
}
