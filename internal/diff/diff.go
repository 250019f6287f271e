// Package diff computes path-level change sets between the three views of a
// workspace: the HEAD tree, the staging index, and the working directory.
package diff

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quarryvcs/quarry/internal/index"
	"github.com/quarryvcs/quarry/internal/objects"
	"github.com/quarryvcs/quarry/internal/sandbox"
	"github.com/quarryvcs/quarry/internal/vcserr"
	"github.com/quarryvcs/quarry/internal/worktree"
)

// Op classifies a change.
type Op string

const (
	OpAdd    Op = "add"
	OpModify Op = "modify"
	OpDelete Op = "delete"
)

// Change is one path-level difference. Adds carry only NewPath, deletes
// only OldPath, modifications both.
type Change struct {
	Op      Op
	OldPath string
	NewPath string
}

// Path returns whichever side of the change names the file.
func (c Change) Path() string {
	if c.NewPath != "" {
		return c.NewPath
	}
	return c.OldPath
}

// Engine computes change sets against one object store.
type Engine struct {
	store objects.Store
}

// NewEngine creates a diff engine over the store.
func NewEngine(store objects.Store) *Engine {
	return &Engine{store: store}
}

// CompareTrees computes the structural difference between two trees. A zero
// hash on either side stands for the empty tree. The optional filter
// restricts the result to one file path. Entries whose mode class changed
// (file to directory or back) are reported as delete plus add, not modify.
func (e *Engine) CompareTrees(oldTree, newTree objects.Hash, filter string) ([]Change, error) {
	var changes []Change
	changes, err := e.compareLevel(oldTree, newTree, "", changes)
	if err != nil {
		return nil, err
	}
	changes = applyFilter(changes, filter)
	sortChanges(changes)
	return changes, nil
}

func (e *Engine) compareLevel(oldHash, newHash objects.Hash, prefix string, acc []Change) ([]Change, error) {
	// Identical ids mean identical subtrees.
	if oldHash == newHash {
		return acc, nil
	}

	oldEntries, err := e.levelEntries(oldHash)
	if err != nil {
		return acc, err
	}
	newEntries, err := e.levelEntries(newHash)
	if err != nil {
		return acc, err
	}

	names := make(map[string]struct{})
	for name := range oldEntries {
		names[name] = struct{}{}
	}
	for name := range newEntries {
		names[name] = struct{}{}
	}

	for name := range names {
		oldEntry, inOld := oldEntries[name]
		newEntry, inNew := newEntries[name]
		rel := path.Join(prefix, name)

		switch {
		case inOld && !inNew:
			acc, err = e.recordAll(oldEntry, rel, OpDelete, acc)
		case !inOld && inNew:
			acc, err = e.recordAll(newEntry, rel, OpAdd, acc)
		case oldEntry.Mode.IsDir() != newEntry.Mode.IsDir():
			acc, err = e.recordAll(oldEntry, rel, OpDelete, acc)
			if err != nil {
				return acc, err
			}
			acc, err = e.recordAll(newEntry, rel, OpAdd, acc)
		case oldEntry.Mode.IsDir():
			acc, err = e.compareLevel(oldEntry.Hash, newEntry.Hash, rel, acc)
		case oldEntry.Hash != newEntry.Hash || oldEntry.Mode != newEntry.Mode:
			acc = append(acc, Change{Op: OpModify, OldPath: rel, NewPath: rel})
		}
		if err != nil {
			return acc, err
		}
	}
	return acc, nil
}

func (e *Engine) levelEntries(hash objects.Hash) (map[string]objects.TreeEntry, error) {
	entries := make(map[string]objects.TreeEntry)
	if hash.IsZero() {
		return entries, nil
	}
	tree, err := objects.GetTree(e.store, hash)
	if err != nil {
		return nil, err
	}
	for _, entry := range tree.Entries {
		entries[entry.Name] = entry
	}
	return entries, nil
}

// recordAll emits one change for a file entry, or one per file for a
// directory entry's whole subtree.
func (e *Engine) recordAll(entry objects.TreeEntry, rel string, op Op, acc []Change) ([]Change, error) {
	if !entry.Mode.IsDir() {
		acc = append(acc, makeChange(op, rel))
		return acc, nil
	}
	files, err := worktree.ListFiles(e.store, entry.Hash)
	if err != nil {
		return acc, err
	}
	for _, f := range files {
		acc = append(acc, makeChange(op, path.Join(rel, f.Name)))
	}
	return acc, nil
}

func makeChange(op Op, rel string) Change {
	switch op {
	case OpAdd:
		return Change{Op: OpAdd, NewPath: rel}
	case OpDelete:
		return Change{Op: OpDelete, OldPath: rel}
	default:
		return Change{Op: op, OldPath: rel, NewPath: rel}
	}
}

// Unstaged compares the staging index against the working tree. For every
// tracked path the recorded blob id is checked against a freshly computed
// hash of the on-disk content; a missing file is a delete. Every on-disk
// file the index does not track is an add. The control directory is
// excluded from the walk.
func (e *Engine) Unstaged(ix *index.Index, guard sandbox.Guard, control, filter string) ([]Change, error) {
	entries, err := ix.Entries()
	if err != nil {
		return nil, err
	}

	var changes []Change
	tracked := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		tracked[entry.Path] = struct{}{}

		abs, err := guard.Resolve(filepath.FromSlash(entry.Path))
		if err != nil {
			return nil, err
		}
		info, statErr := os.Stat(abs)
		if statErr != nil {
			if !os.IsNotExist(statErr) {
				return nil, vcserr.Wrap(vcserr.IO, statErr, "stat %q", entry.Path)
			}
			// The file is in the index but gone from the working tree.
			changes = append(changes, Change{Op: OpDelete, OldPath: entry.Path})
			continue
		}
		if info.IsDir() {
			// The tracked path is now a directory. The file is gone; the
			// directory's contents show up as adds in the walk below.
			changes = append(changes, Change{Op: OpDelete, OldPath: entry.Path})
			continue
		}
		onDisk, err := worktree.HashFile(abs)
		if err != nil {
			return nil, err
		}
		if onDisk != entry.Blob {
			changes = append(changes, Change{Op: OpModify, OldPath: entry.Path, NewPath: entry.Path})
		}
	}

	root := guard.Root()
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == control || strings.HasPrefix(rel, control+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, ok := tracked[rel]; !ok {
			changes = append(changes, Change{Op: OpAdd, NewPath: rel})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	changes = applyFilter(changes, filter)
	sortChanges(changes)
	return changes, nil
}

func applyFilter(changes []Change, filter string) []Change {
	if filter == "" {
		return changes
	}
	filtered := changes[:0]
	for _, c := range changes {
		if c.OldPath == filter || c.NewPath == filter {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path() < changes[j].Path() })
}
