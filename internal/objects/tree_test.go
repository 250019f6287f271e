package objects

import (
	"testing"
)

func TestEncodeTreeSortsEntries(t *testing.T) {
	store := NewMemoryStore()
	a := HashBlob([]byte("a"))
	b := HashBlob([]byte("b"))

	h1, err := PutTree(store, []TreeEntry{
		{Name: "zebra.txt", Mode: ModeFile, Hash: a},
		{Name: "alpha.txt", Mode: ModeFile, Hash: b},
	})
	if err != nil {
		t.Fatalf("PutTree failed: %v", err)
	}
	h2, err := PutTree(store, []TreeEntry{
		{Name: "alpha.txt", Mode: ModeFile, Hash: b},
		{Name: "zebra.txt", Mode: ModeFile, Hash: a},
	})
	if err != nil {
		t.Fatalf("PutTree failed: %v", err)
	}
	if h1 != h2 {
		t.Error("entry order should not affect the tree hash")
	}

	tree, err := GetTree(store, h1)
	if err != nil {
		t.Fatalf("GetTree failed: %v", err)
	}
	if len(tree.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(tree.Entries))
	}
	if tree.Entries[0].Name != "alpha.txt" || tree.Entries[1].Name != "zebra.txt" {
		t.Error("entries should come back sorted by name")
	}
}

func TestEncodeTreeRejectsBadEntries(t *testing.T) {
	h := HashBlob([]byte("x"))

	if _, err := EncodeTree([]TreeEntry{
		{Name: "a", Mode: ModeFile, Hash: h},
		{Name: "a", Mode: ModeFile, Hash: h},
	}); err == nil {
		t.Error("duplicate names should be rejected")
	}
	if _, err := EncodeTree([]TreeEntry{
		{Name: "a/b", Mode: ModeFile, Hash: h},
	}); err == nil {
		t.Error("names containing a slash should be rejected")
	}
	if _, err := EncodeTree([]TreeEntry{
		{Name: "", Mode: ModeFile, Hash: h},
	}); err == nil {
		t.Error("empty names should be rejected")
	}
	if _, err := EncodeTree([]TreeEntry{
		{Name: "a", Mode: FileMode(0o777), Hash: h},
	}); err == nil {
		t.Error("unknown modes should be rejected")
	}
}

func TestTreeModesRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	blob := HashBlob([]byte("content"))
	sub, err := PutTree(store, nil)
	if err != nil {
		t.Fatalf("PutTree failed: %v", err)
	}

	h, err := PutTree(store, []TreeEntry{
		{Name: "dir", Mode: ModeDir, Hash: sub},
		{Name: "plain", Mode: ModeFile, Hash: blob},
		{Name: "run.sh", Mode: ModeExec, Hash: blob},
	})
	if err != nil {
		t.Fatalf("PutTree failed: %v", err)
	}

	tree, err := GetTree(store, h)
	if err != nil {
		t.Fatalf("GetTree failed: %v", err)
	}
	for _, want := range []struct {
		name string
		mode FileMode
	}{
		{"dir", ModeDir},
		{"plain", ModeFile},
		{"run.sh", ModeExec},
	} {
		entry, ok := tree.Lookup(want.name)
		if !ok {
			t.Fatalf("Lookup(%q) should find the entry", want.name)
		}
		if entry.Mode != want.mode {
			t.Errorf("%s mode = %o, want %o", want.name, entry.Mode, want.mode)
		}
	}
}

func TestGetTreeKindMismatch(t *testing.T) {
	store := NewMemoryStore()
	h, err := store.Put(KindBlob, []byte("not a tree"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := GetTree(store, h); err == nil {
		t.Error("GetTree on a blob should fail")
	}
}
