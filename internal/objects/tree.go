package objects

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/quarryvcs/quarry/internal/vcserr"
)

// FileMode is the subset of modes a tree entry can carry.
type FileMode uint32

const (
	ModeFile FileMode = 0o100644
	ModeExec FileMode = 0o100755
	ModeDir  FileMode = 0o040000
)

// IsDir reports whether the mode marks a subdirectory entry.
func (m FileMode) IsDir() bool { return m == ModeDir }

// IsExec reports whether the mode marks an executable file.
func (m FileMode) IsExec() bool { return m == ModeExec }

func (m FileMode) valid() bool {
	return m == ModeFile || m == ModeExec || m == ModeDir
}

// TreeEntry is one name within a directory snapshot. Directory-mode entries
// reference child Tree objects; file modes reference blobs.
type TreeEntry struct {
	Mode FileMode
	Name string
	Hash Hash
}

// Tree is a snapshot of one directory level, entries sorted by name.
type Tree struct {
	Entries []TreeEntry
}

// Lookup returns the entry with the given name, if present.
func (t *Tree) Lookup(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// EncodeTree produces the canonical tree content: entries sorted by name,
// each encoded as "<octal mode> <name>\x00" followed by the raw 32-byte hash.
// Entry names must be non-empty, slash-free, and unique within the tree.
func EncodeTree(entries []TreeEntry) ([]byte, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var buf bytes.Buffer
	prev := ""
	for i, e := range sorted {
		if e.Name == "" || bytes.ContainsAny([]byte(e.Name), "/\x00") {
			return nil, vcserr.New(vcserr.InvalidOperation, "invalid tree entry name %q", e.Name)
		}
		if i > 0 && e.Name == prev {
			return nil, vcserr.New(vcserr.InvalidOperation, "duplicate tree entry name %q", e.Name)
		}
		if !e.Mode.valid() {
			return nil, vcserr.New(vcserr.InvalidOperation, "invalid mode %o for tree entry %q", uint32(e.Mode), e.Name)
		}
		prev = e.Name
		fmt.Fprintf(&buf, "%o %s\x00", uint32(e.Mode), e.Name)
		buf.Write(e.Hash[:])
	}
	return buf.Bytes(), nil
}

// ParseTree decodes canonical tree content.
func ParseTree(data []byte) (*Tree, error) {
	tree := &Tree{}
	rest := data
	for len(rest) > 0 {
		sp := bytes.IndexByte(rest, ' ')
		if sp < 0 {
			return nil, vcserr.New(vcserr.Corruption, "tree entry missing mode separator")
		}
		mode, err := strconv.ParseUint(string(rest[:sp]), 8, 32)
		if err != nil {
			return nil, vcserr.Wrap(vcserr.Corruption, err, "tree entry has invalid mode")
		}
		rest = rest[sp+1:]

		nul := bytes.IndexByte(rest, 0x00)
		if nul < 0 {
			return nil, vcserr.New(vcserr.Corruption, "tree entry missing name terminator")
		}
		name := string(rest[:nul])
		rest = rest[nul+1:]

		if len(rest) < 32 {
			return nil, vcserr.New(vcserr.Corruption, "tree entry %q truncated", name)
		}
		var h Hash
		copy(h[:], rest[:32])
		rest = rest[32:]

		tree.Entries = append(tree.Entries, TreeEntry{Mode: FileMode(mode), Name: name, Hash: h})
	}
	return tree, nil
}

// PutTree validates, encodes, and stores a tree, returning its id.
func PutTree(store Store, entries []TreeEntry) (Hash, error) {
	data, err := EncodeTree(entries)
	if err != nil {
		return ZeroHash, err
	}
	return store.Put(KindTree, data)
}

// GetTree loads a tree by id, failing if the object is of a different kind.
func GetTree(store Store, hash Hash) (*Tree, error) {
	kind, data, err := store.Get(hash)
	if err != nil {
		return nil, err
	}
	if kind != KindTree {
		return nil, vcserr.New(vcserr.InvalidOperation, "object %s is a %s, not a tree", hash.Short(), kind)
	}
	return ParseTree(data)
}
