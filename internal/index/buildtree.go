package index

import (
	"sort"
	"strings"

	"github.com/quarryvcs/quarry/internal/objects"
)

// directoryNode is one level of the nested structure the flat staged set is
// grouped into before tree objects are built bottom-up.
type directoryNode struct {
	files   []Entry
	subdirs map[string]*directoryNode
}

func newDirectoryNode() *directoryNode {
	return &directoryNode{subdirs: make(map[string]*directoryNode)}
}

// BuildTree converts the flat path-to-blob map into a nested tree object
// graph and returns the root tree's id. Paths are sorted lexicographically
// before grouping, so identical staged sets produce identical roots
// regardless of insertion order. Directories empty of staged files are not
// represented.
func (ix *Index) BuildTree(store objects.Store) (objects.Hash, error) {
	entries, err := ix.Entries()
	if err != nil {
		return objects.ZeroHash, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	root := newDirectoryNode()
	for _, entry := range entries {
		parts := strings.Split(entry.Path, "/")
		node := root
		for _, part := range parts[:len(parts)-1] {
			if node.subdirs[part] == nil {
				node.subdirs[part] = newDirectoryNode()
			}
			node = node.subdirs[part]
		}
		leaf := entry
		leaf.Path = parts[len(parts)-1]
		node.files = append(node.files, leaf)
	}

	return buildTreeNode(store, root)
}

func buildTreeNode(store objects.Store, node *directoryNode) (objects.Hash, error) {
	var treeEntries []objects.TreeEntry

	for _, file := range node.files {
		treeEntries = append(treeEntries, objects.TreeEntry{
			Mode: file.Mode,
			Name: file.Path,
			Hash: file.Blob,
		})
	}
	for name, subdir := range node.subdirs {
		subHash, err := buildTreeNode(store, subdir)
		if err != nil {
			return objects.ZeroHash, err
		}
		treeEntries = append(treeEntries, objects.TreeEntry{
			Mode: objects.ModeDir,
			Name: name,
			Hash: subHash,
		})
	}

	// PutTree sorts entries by name, so map iteration order does not leak
	// into the encoding.
	return objects.PutTree(store, treeEntries)
}
