// Package index implements the staging area: a mutable, persisted mapping
// from workspace-relative path to a staged blob reference. The index is what
// the next commit will contain, distinct from both HEAD and the working
// tree.
package index

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.etcd.io/bbolt"

	"github.com/quarryvcs/quarry/internal/objects"
	"github.com/quarryvcs/quarry/internal/sandbox"
	"github.com/quarryvcs/quarry/internal/vcserr"
	"github.com/quarryvcs/quarry/internal/worktree"
)

// Buckets
var (
	bucketStaging = []byte("staging") // path -> "<hash hex> <octal mode>"
	bucketMeta    = []byte("meta")    // index format metadata
)

const formatVersion = "1"

// Entry is one staged path.
type Entry struct {
	Path string
	Blob objects.Hash
	Mode objects.FileMode
}

// Index is a bbolt-backed staging area.
type Index struct {
	db *bbolt.DB
}

// Open opens or creates the index database at path.
func Open(path string) (*Index, error) {
	db, err := bbolt.Open(path, 0o666, nil)
	if err != nil {
		return nil, vcserr.Wrap(vcserr.IO, err, "open index database")
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists(bucketStaging); e != nil {
			return e
		}
		meta, e := tx.CreateBucketIfNotExists(bucketMeta)
		if e != nil {
			return e
		}
		return meta.Put([]byte("version"), []byte(formatVersion))
	}); err != nil {
		_ = db.Close()
		return nil, vcserr.Wrap(vcserr.IO, err, "initialize index database")
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error { return ix.db.Close() }

func encodeEntry(e Entry) []byte {
	return []byte(fmt.Sprintf("%s %o", e.Blob.String(), uint32(e.Mode)))
}

func decodeEntry(path string, value []byte) (Entry, error) {
	fields := strings.Fields(string(value))
	if len(fields) != 2 {
		return Entry{}, vcserr.New(vcserr.Corruption, "invalid index entry for %q", path)
	}
	hash, err := objects.ParseHash(fields[0])
	if err != nil {
		return Entry{}, vcserr.Wrap(vcserr.Corruption, err, "invalid index entry for %q", path)
	}
	mode, err := strconv.ParseUint(fields[1], 8, 32)
	if err != nil {
		return Entry{}, vcserr.Wrap(vcserr.Corruption, err, "invalid index entry mode for %q", path)
	}
	return Entry{Path: path, Blob: hash, Mode: objects.FileMode(mode)}, nil
}

// Stage inserts or overwrites the entry for a path.
func (ix *Index) Stage(path string, blob objects.Hash, mode objects.FileMode) error {
	return ix.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketStaging).Put([]byte(path), encodeEntry(Entry{Blob: blob, Mode: mode}))
	})
}

// Unstage removes the entry for a path. Removing an absent path is a no-op.
func (ix *Index) Unstage(path string) error {
	return ix.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketStaging).Delete([]byte(path))
	})
}

// Lookup returns the staged entry for a path, if any.
func (ix *Index) Lookup(path string) (Entry, bool, error) {
	var entry Entry
	var found bool
	err := ix.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketStaging).Get([]byte(path))
		if value == nil {
			return nil
		}
		e, err := decodeEntry(path, value)
		if err != nil {
			return err
		}
		entry = e
		found = true
		return nil
	})
	return entry, found, err
}

// Entries returns every staged entry, sorted by path.
func (ix *Index) Entries() ([]Entry, error) {
	var entries []Entry
	err := ix.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketStaging).ForEach(func(k, v []byte) error {
			e, err := decodeEntry(string(k), v)
			if err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// bbolt iterates byte-sorted keys, which is already lexicographic order.
	return entries, nil
}

// Clear removes every staged entry.
func (ix *Index) Clear() error {
	return ix.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketStaging); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketStaging)
		return err
	})
}

// StageFile hashes one on-disk file, stores its blob, and stages it.
func (ix *Index) StageFile(store objects.Store, guard sandbox.Guard, rel string) (Entry, error) {
	abs, err := guard.Resolve(filepath.FromSlash(rel))
	if err != nil {
		return Entry{}, err
	}
	content, err := worktree.ReadFile(abs)
	if err != nil {
		return Entry{}, err
	}
	blob, err := store.Put(objects.KindBlob, content)
	if err != nil {
		return Entry{}, err
	}

	mode := objects.ModeFile
	if info, statErr := os.Stat(abs); statErr == nil && info.Mode()&0o111 != 0 {
		mode = objects.ModeExec
	}
	entry := Entry{Path: rel, Blob: blob, Mode: mode}
	if err := ix.Stage(rel, blob, mode); err != nil {
		return Entry{}, vcserr.Wrap(vcserr.IO, err, "stage %q", rel)
	}
	return entry, nil
}

// StageAll walks a working-tree subtree and stages every regular file,
// creating blob objects as needed. When the subtree is the whole root,
// index entries whose on-disk file has vanished are unstaged, so the built
// tree matches the working tree exactly.
func (ix *Index) StageAll(store objects.Store, guard sandbox.Guard, control, subtree string) ([]string, error) {
	subtree = filepath.ToSlash(filepath.Clean(filepath.FromSlash(subtree)))
	wholeRoot := subtree == "." || subtree == ""

	start, err := guard.Resolve(filepath.FromSlash(subtree))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var staged []string
	root := guard.Root()
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
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
		if _, err := ix.StageFile(store, guard, rel); err != nil {
			return err
		}
		seen[rel] = struct{}{}
		staged = append(staged, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if wholeRoot {
		entries, err := ix.Entries()
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if _, ok := seen[e.Path]; !ok {
				if err := ix.Unstage(e.Path); err != nil {
					return nil, err
				}
			}
		}
	}

	sort.Strings(staged)
	return staged, nil
}

// ReadTree resets the index to mirror a committed tree, the way checkout
// and restore rebuild the staging area.
func (ix *Index) ReadTree(store objects.Store, tree objects.Hash) error {
	files, err := worktree.ListFiles(store, tree)
	if err != nil {
		return err
	}
	if err := ix.Clear(); err != nil {
		return err
	}
	return ix.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketStaging)
		for _, f := range files {
			if err := bucket.Put([]byte(f.Name), encodeEntry(Entry{Blob: f.Hash, Mode: f.Mode})); err != nil {
				return err
			}
		}
		return nil
	})
}
