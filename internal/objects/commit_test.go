package objects

import (
	"testing"
	"time"
)

func TestCommitRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	tree, err := PutTree(store, nil)
	if err != nil {
		t.Fatalf("PutTree failed: %v", err)
	}

	when := time.Unix(1756400000, 0).UTC()
	original := &Commit{
		Tree:       tree,
		Author:     "Quarry User <user@quarry.local>",
		Committer:  "Quarry User <user@quarry.local>",
		AuthorTime: when,
		CommitTime: when,
		Message:    "first commit\n\nwith a body line",
	}

	id, err := PutCommit(store, original)
	if err != nil {
		t.Fatalf("PutCommit failed: %v", err)
	}

	loaded, err := GetCommit(store, id)
	if err != nil {
		t.Fatalf("GetCommit failed: %v", err)
	}
	if loaded.Tree != tree {
		t.Error("tree hash should round-trip")
	}
	if loaded.Author != original.Author || loaded.Committer != original.Committer {
		t.Errorf("identity round-trip: got %q / %q", loaded.Author, loaded.Committer)
	}
	if !loaded.CommitTime.Equal(when) {
		t.Errorf("CommitTime = %v, want %v", loaded.CommitTime, when)
	}
	if loaded.Message != original.Message {
		t.Errorf("Message = %q, want %q", loaded.Message, original.Message)
	}
	if _, ok := loaded.Parent(); ok {
		t.Error("root commit should have no parent")
	}
}

func TestCommitParentChain(t *testing.T) {
	store := NewMemoryStore()
	tree, err := PutTree(store, nil)
	if err != nil {
		t.Fatalf("PutTree failed: %v", err)
	}

	root := &Commit{Tree: tree, Author: "a <a@b>", Committer: "a <a@b>", Message: "root"}
	rootID, err := PutCommit(store, root)
	if err != nil {
		t.Fatalf("PutCommit failed: %v", err)
	}

	child := &Commit{
		Tree: tree, Parents: []Hash{rootID},
		Author: "a <a@b>", Committer: "a <a@b>", Message: "child",
	}
	childID, err := PutCommit(store, child)
	if err != nil {
		t.Fatalf("PutCommit failed: %v", err)
	}

	loaded, err := GetCommit(store, childID)
	if err != nil {
		t.Fatalf("GetCommit failed: %v", err)
	}
	parent, ok := loaded.Parent()
	if !ok || parent != rootID {
		t.Error("parent hash should round-trip")
	}
}

func TestGetCommitKindMismatch(t *testing.T) {
	store := NewMemoryStore()
	h, err := store.Put(KindBlob, []byte("not a commit"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := GetCommit(store, h); err == nil {
		t.Error("GetCommit on a blob should fail")
	}
}
