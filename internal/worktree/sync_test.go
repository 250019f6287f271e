package worktree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quarryvcs/quarry/internal/objects"
	"github.com/quarryvcs/quarry/internal/sandbox"
	"github.com/quarryvcs/quarry/internal/vcserr"
)

const testControl = ".quarry"

func newTestSync(t *testing.T) (*Sync, objects.Store, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, testControl), 0o755); err != nil {
		t.Fatalf("mkdir control: %v", err)
	}
	guard, err := sandbox.NewDirGuard(dir)
	if err != nil {
		t.Fatalf("NewDirGuard failed: %v", err)
	}
	store := objects.NewMemoryStore()
	return NewSync(store, guard, testControl), store, dir
}

func putBlob(t *testing.T, store objects.Store, content string) objects.Hash {
	t.Helper()
	h, err := store.Put(objects.KindBlob, []byte(content))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	return h
}

// buildTree stores a one-level-deep tree: map keys of the form "a" become
// file entries, keys of the form "d/a" become files inside subtree d.
func buildTestTree(t *testing.T, store objects.Store, files map[string]string) objects.Hash {
	t.Helper()
	top := map[string]objects.TreeEntry{}
	subs := map[string]map[string]objects.TreeEntry{}

	for p, content := range files {
		blob := putBlob(t, store, content)
		dir, name := filepath.Split(p)
		if dir == "" {
			top[name] = objects.TreeEntry{Mode: objects.ModeFile, Name: name, Hash: blob}
			continue
		}
		dir = filepath.Clean(dir)
		if subs[dir] == nil {
			subs[dir] = map[string]objects.TreeEntry{}
		}
		subs[dir][name] = objects.TreeEntry{Mode: objects.ModeFile, Name: name, Hash: blob}
	}

	for dir, entries := range subs {
		var list []objects.TreeEntry
		for _, e := range entries {
			list = append(list, e)
		}
		sub, err := objects.PutTree(store, list)
		if err != nil {
			t.Fatalf("PutTree failed: %v", err)
		}
		top[dir] = objects.TreeEntry{Mode: objects.ModeDir, Name: dir, Hash: sub}
	}

	var list []objects.TreeEntry
	for _, e := range top {
		list = append(list, e)
	}
	root, err := objects.PutTree(store, list)
	if err != nil {
		t.Fatalf("PutTree failed: %v", err)
	}
	return root
}

func TestMaterialize(t *testing.T) {
	sync, store, dir := newTestSync(t)
	tree := buildTestTree(t, store, map[string]string{
		"readme.md":   "hello",
		"src/main.go": "package main",
	})

	report, err := sync.Materialize(tree)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if !report.Ok() {
		t.Fatalf("report has failures: %v", report.Failed)
	}
	if len(report.Written) != 2 {
		t.Errorf("Written = %v, want 2 entries", report.Written)
	}

	data, err := os.ReadFile(filepath.Join(dir, "src", "main.go"))
	if err != nil {
		t.Fatalf("read materialized file: %v", err)
	}
	if string(data) != "package main" {
		t.Errorf("content = %q", data)
	}
}

func TestMaterializeKeepsUntrackedFiles(t *testing.T) {
	sync, store, dir := newTestSync(t)
	if err := os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("keep me"), 0o644); err != nil {
		t.Fatalf("write scratch: %v", err)
	}

	tree := buildTestTree(t, store, map[string]string{"a.txt": "a"})
	if _, err := sync.Materialize(tree); err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "scratch.txt")); err != nil {
		t.Error("Materialize should not delete untracked files")
	}
}

func TestCheckoutRemovesExtraFiles(t *testing.T) {
	sync, store, dir := newTestSync(t)
	if err := os.WriteFile(filepath.Join(dir, "extra.txt"), []byte("stale"), 0o644); err != nil {
		t.Fatalf("write extra: %v", err)
	}

	tree := buildTestTree(t, store, map[string]string{"kept.txt": "kept"})
	report, err := sync.Checkout(tree)
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	if !report.Ok() {
		t.Fatalf("report has failures: %v", report.Failed)
	}

	if _, err := os.Stat(filepath.Join(dir, "extra.txt")); !os.IsNotExist(err) {
		t.Error("extra file should be removed by checkout")
	}
	if _, err := os.Stat(filepath.Join(dir, "kept.txt")); err != nil {
		t.Error("tracked file should exist after checkout")
	}
	if len(report.Deleted) != 1 || report.Deleted[0] != "extra.txt" {
		t.Errorf("Deleted = %v", report.Deleted)
	}
}

func TestCheckoutPreservesControlDir(t *testing.T) {
	sync, store, dir := newTestSync(t)
	marker := filepath.Join(dir, testControl, "HEAD")
	if err := os.WriteFile(marker, []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	tree := buildTestTree(t, store, map[string]string{"a.txt": "a"})
	if _, err := sync.Checkout(tree); err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}

	if _, err := os.Stat(marker); err != nil {
		t.Error("checkout must never touch the control directory")
	}
}

func TestCheckoutExecMode(t *testing.T) {
	sync, store, dir := newTestSync(t)
	blob := putBlob(t, store, "#!/bin/sh\n")
	tree, err := objects.PutTree(store, []objects.TreeEntry{
		{Mode: objects.ModeExec, Name: "run.sh", Hash: blob},
	})
	if err != nil {
		t.Fatalf("PutTree failed: %v", err)
	}

	if _, err := sync.Checkout(tree); err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "run.sh"))
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode()&0o111 == 0 {
		t.Error("executable entry should carry the exec bit on disk")
	}
}

func TestTrackedPathsAndListFiles(t *testing.T) {
	_, store, _ := newTestSync(t)
	tree := buildTestTree(t, store, map[string]string{
		"b.txt":   "b",
		"a.txt":   "a",
		"d/c.txt": "c",
	})

	tracked, err := TrackedPaths(store, tree, "", make(map[string]struct{}))
	if err != nil {
		t.Fatalf("TrackedPaths failed: %v", err)
	}
	for _, p := range []string{"a.txt", "b.txt", "d/c.txt"} {
		if _, ok := tracked[p]; !ok {
			t.Errorf("tracked should contain %q", p)
		}
	}

	flat, err := ListFiles(store, tree)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(flat) != 3 {
		t.Fatalf("len = %d, want 3", len(flat))
	}
	// Sorted by full path.
	if flat[0].Name != "a.txt" || flat[1].Name != "b.txt" || flat[2].Name != "d/c.txt" {
		t.Errorf("unexpected order: %v", flat)
	}
}

func TestRestoreFile(t *testing.T) {
	sync, store, dir := newTestSync(t)
	tree := buildTestTree(t, store, map[string]string{
		"keep.txt":    "unchanged",
		"sub/deep.go": "package sub",
	})

	// Put a different version on disk, then restore.
	if err := os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("clobbered"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	n, err := sync.RestoreFile(tree, "keep.txt")
	if err != nil {
		t.Fatalf("RestoreFile failed: %v", err)
	}
	if n != len("unchanged") {
		t.Errorf("bytes = %d, want %d", n, len("unchanged"))
	}
	data, _ := os.ReadFile(filepath.Join(dir, "keep.txt"))
	if string(data) != "unchanged" {
		t.Errorf("content = %q", data)
	}

	// Nested path.
	if _, err := sync.RestoreFile(tree, "sub/deep.go"); err != nil {
		t.Fatalf("nested RestoreFile failed: %v", err)
	}

	// Missing paths and directories are NotFound.
	if _, err := sync.RestoreFile(tree, "nope.txt"); !vcserr.IsKind(err, vcserr.NotFound) {
		t.Errorf("missing file: kind = %v, want NotFound", vcserr.KindOf(err))
	}
	if _, err := sync.RestoreFile(tree, "sub"); !vcserr.IsKind(err, vcserr.NotFound) {
		t.Errorf("directory: kind = %v, want NotFound", vcserr.KindOf(err))
	}
}

func TestHashFileMatchesHashBlob(t *testing.T) {
	dir := t.TempDir()
	content := []byte("file hashing content")
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if got != objects.HashBlob(content) {
		t.Error("streaming hash should match the in-memory hash")
	}
}

func TestReadFileEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("len = %d, want 0", len(data))
	}
}
