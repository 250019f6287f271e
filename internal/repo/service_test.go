package repo

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/quarryvcs/quarry/internal/diff"
	"github.com/quarryvcs/quarry/internal/sandbox"
	"github.com/quarryvcs/quarry/internal/vcserr"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	guard, err := sandbox.NewDirGuard(dir)
	if err != nil {
		t.Fatalf("NewDirGuard failed: %v", err)
	}
	svc := NewService(guard, slog.New(slog.DiscardHandler))
	return svc, dir
}

func initTestRepo(t *testing.T) (*Service, string) {
	t.Helper()
	svc, dir := newTestService(t)
	if _, err := svc.Init(InitParams{}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return svc, dir
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	abs := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func readFile(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func stageAndCommit(t *testing.T, svc *Service, message string) *CommitResult {
	t.Helper()
	if _, err := svc.Add(AddParams{Pattern: "."}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	result, err := svc.Commit(CommitParams{Message: message})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	return result
}

func TestInit(t *testing.T) {
	svc, dir := newTestService(t)

	result, err := svc.Init(InitParams{})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if result.Branch != "main" {
		t.Errorf("branch = %q, want main", result.Branch)
	}
	if _, err := os.Stat(filepath.Join(dir, ControlDirName, "HEAD")); err != nil {
		t.Error("init should create the HEAD file")
	}
	if _, err := os.Stat(filepath.Join(dir, ControlDirName, "config.json")); err != nil {
		t.Error("init should write the default config")
	}

	// Re-initialization is refused.
	if _, err := svc.Init(InitParams{}); !vcserr.IsKind(err, vcserr.AlreadyExists) {
		t.Errorf("second init: kind = %v, want AlreadyExists", vcserr.KindOf(err))
	}
}

func TestStatusOnFreshRepo(t *testing.T) {
	svc, _ := initTestRepo(t)

	status, err := svc.Status(StatusParams{})
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Clean {
		t.Errorf("fresh repo should be clean: %+v", status)
	}
}

func TestAddCommitStatusCycle(t *testing.T) {
	svc, dir := initTestRepo(t)
	writeFile(t, dir, "readme.md", "hello")
	writeFile(t, dir, "src/main.go", "package main")

	// Untracked files show as unstaged adds.
	status, err := svc.Status(StatusParams{})
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(status.Unstaged) != 2 || len(status.Staged) != 0 {
		t.Errorf("status = %+v, want 2 unstaged adds", status)
	}

	added, err := svc.Add(AddParams{Pattern: "."})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(added.Added) != 2 {
		t.Errorf("Added = %v, want 2 paths", added.Added)
	}

	status, err = svc.Status(StatusParams{})
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(status.Staged) != 2 || len(status.Unstaged) != 0 {
		t.Errorf("status after add = %+v, want 2 staged adds", status)
	}

	commit, err := svc.Commit(CommitParams{Message: "initial"})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if len(commit.ID) != 64 || len(commit.Short) != 7 {
		t.Errorf("commit ids = %q / %q", commit.ID, commit.Short)
	}

	status, err = svc.Status(StatusParams{})
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Clean {
		t.Errorf("status after commit should be clean: %+v", status)
	}
}

func TestCommitValidation(t *testing.T) {
	svc, dir := initTestRepo(t)

	if _, err := svc.Commit(CommitParams{}); !vcserr.IsKind(err, vcserr.InvalidOperation) {
		t.Errorf("empty message: kind = %v, want InvalidOperation", vcserr.KindOf(err))
	}
	if _, err := svc.Commit(CommitParams{Message: "nothing staged"}); !vcserr.IsKind(err, vcserr.InvalidOperation) {
		t.Errorf("empty staging: kind = %v, want InvalidOperation", vcserr.KindOf(err))
	}

	// A commit that changes nothing relative to HEAD is also refused.
	writeFile(t, dir, "a.txt", "a")
	stageAndCommit(t, svc, "first")
	if _, err := svc.Commit(CommitParams{Message: "no-op"}); !vcserr.IsKind(err, vcserr.InvalidOperation) {
		t.Errorf("unchanged tree: kind = %v, want InvalidOperation", vcserr.KindOf(err))
	}
}

func TestAddPatterns(t *testing.T) {
	svc, dir := initTestRepo(t)
	writeFile(t, dir, "a.go", "package a")
	writeFile(t, dir, "b.go", "package b")
	writeFile(t, dir, "note.txt", "note")
	writeFile(t, dir, "sub/c.txt", "c")

	// Single file.
	added, err := svc.Add(AddParams{Pattern: "note.txt"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(added.Added) != 1 || added.Added[0] != "note.txt" {
		t.Errorf("Added = %v", added.Added)
	}

	// Glob.
	added, err = svc.Add(AddParams{Pattern: "*.go"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(added.Added) != 2 {
		t.Errorf("Added = %v, want both .go files", added.Added)
	}

	// Directory.
	added, err = svc.Add(AddParams{Pattern: "sub"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(added.Added) != 1 || added.Added[0] != "sub/c.txt" {
		t.Errorf("Added = %v", added.Added)
	}

	// Missing file.
	if _, err := svc.Add(AddParams{Pattern: "missing.txt"}); !vcserr.IsKind(err, vcserr.NotFound) {
		t.Errorf("missing file: kind = %v, want NotFound", vcserr.KindOf(err))
	}
	// Escaping the workspace.
	if _, err := svc.Add(AddParams{Pattern: "../outside.txt"}); !vcserr.IsKind(err, vcserr.InvalidOperation) {
		t.Errorf("traversal: kind = %v, want InvalidOperation", vcserr.KindOf(err))
	}
}

func TestLog(t *testing.T) {
	svc, dir := initTestRepo(t)

	// Unborn branch logs empty.
	result, err := svc.Log(LogParams{})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if len(result.Commits) != 0 {
		t.Errorf("log before first commit = %v, want empty", result.Commits)
	}

	writeFile(t, dir, "a.txt", "v1")
	first := stageAndCommit(t, svc, "first")
	writeFile(t, dir, "a.txt", "v2")
	second := stageAndCommit(t, svc, "second")

	result, err = svc.Log(LogParams{})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if len(result.Commits) != 2 {
		t.Fatalf("len = %d, want 2", len(result.Commits))
	}
	// Newest first.
	if result.Commits[0].ID != second.ID || result.Commits[1].ID != first.ID {
		t.Error("log should walk newest first")
	}
	if result.Commits[0].Message != "second" {
		t.Errorf("message = %q", result.Commits[0].Message)
	}

	// MaxCount caps the walk.
	result, err = svc.Log(LogParams{MaxCount: 1})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if len(result.Commits) != 1 || result.Commits[0].ID != second.ID {
		t.Errorf("capped log = %v", result.Commits)
	}

	if _, err := svc.Log(LogParams{MaxCount: -1}); !vcserr.IsKind(err, vcserr.InvalidOperation) {
		t.Errorf("negative max: kind = %v, want InvalidOperation", vcserr.KindOf(err))
	}
}

func TestDiff(t *testing.T) {
	svc, dir := initTestRepo(t)
	writeFile(t, dir, "a.txt", "v1")
	writeFile(t, dir, "b.txt", "b")
	stageAndCommit(t, svc, "base")

	writeFile(t, dir, "a.txt", "v2")

	// Working-tree diff sees the modification.
	result, err := svc.Diff(DiffParams{})
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(result.Changes) != 1 || result.Changes[0].Op != diff.OpModify || result.Changes[0].Path() != "a.txt" {
		t.Errorf("unstaged diff = %v", result.Changes)
	}

	// Staged diff is still empty.
	result, err = svc.Diff(DiffParams{Staged: true})
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(result.Changes) != 0 {
		t.Errorf("staged diff = %v, want empty", result.Changes)
	}

	// After staging, the change moves across.
	if _, err := svc.Add(AddParams{Pattern: "a.txt"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	result, err = svc.Diff(DiffParams{Staged: true})
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(result.Changes) != 1 || result.Changes[0].Path() != "a.txt" {
		t.Errorf("staged diff = %v", result.Changes)
	}

	// File filter.
	result, err = svc.Diff(DiffParams{Staged: true, File: "b.txt"})
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(result.Changes) != 0 {
		t.Errorf("filtered diff = %v, want empty", result.Changes)
	}
}

func TestStatusAfterFileBecomesDirectory(t *testing.T) {
	svc, dir := initTestRepo(t)
	writeFile(t, dir, "thing", "flat")
	stageAndCommit(t, svc, "base")

	if err := os.Remove(filepath.Join(dir, "thing")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	writeFile(t, dir, "thing/inner.txt", "nested")

	result, err := svc.Status(StatusParams{})
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(result.Unstaged) != 2 {
		t.Fatalf("unstaged = %v, want 2", result.Unstaged)
	}
	if result.Unstaged[0].Op != diff.OpDelete || result.Unstaged[0].OldPath != "thing" {
		t.Errorf("unstaged[0] = %+v, want delete of thing", result.Unstaged[0])
	}
	if result.Unstaged[1].Op != diff.OpAdd || result.Unstaged[1].NewPath != "thing/inner.txt" {
		t.Errorf("unstaged[1] = %+v, want add of thing/inner.txt", result.Unstaged[1])
	}
}

func TestRemove(t *testing.T) {
	svc, dir := initTestRepo(t)
	writeFile(t, dir, "doomed.txt", "x")
	writeFile(t, dir, "kept.txt", "y")
	stageAndCommit(t, svc, "base")

	result, err := svc.Remove(RemoveParams{File: "doomed.txt"})
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !result.Deleted {
		t.Error("Remove should delete the on-disk file")
	}
	if _, err := os.Stat(filepath.Join(dir, "doomed.txt")); !os.IsNotExist(err) {
		t.Error("file should be gone from disk")
	}

	// Cached removal keeps the file.
	result, err = svc.Remove(RemoveParams{File: "kept.txt", Cached: true})
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if result.Deleted {
		t.Error("cached removal must not touch the disk")
	}
	if _, err := os.Stat(filepath.Join(dir, "kept.txt")); err != nil {
		t.Error("cached removal should keep the file on disk")
	}
}

func TestRenameCarriesStagedEntry(t *testing.T) {
	svc, dir := initTestRepo(t)
	writeFile(t, dir, "old.txt", "content")
	stageAndCommit(t, svc, "base")

	result, err := svc.Rename(RenameParams{Src: "old.txt", Dst: "sub/new.txt"})
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if result.Dst != "sub/new.txt" {
		t.Errorf("Dst = %q", result.Dst)
	}
	if readFile(t, dir, "sub/new.txt") != "content" {
		t.Error("renamed file should keep its content")
	}

	// The staged view shows the move as delete plus add, nothing unstaged.
	status, err := svc.Status(StatusParams{})
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(status.Unstaged) != 0 {
		t.Errorf("unstaged = %v, want empty after tracked rename", status.Unstaged)
	}
	if len(status.Staged) != 2 {
		t.Errorf("staged = %v, want delete+add pair", status.Staged)
	}

	// Error cases.
	if _, err := svc.Rename(RenameParams{Src: "missing.txt", Dst: "x.txt"}); !vcserr.IsKind(err, vcserr.NotFound) {
		t.Errorf("missing src: kind = %v, want NotFound", vcserr.KindOf(err))
	}
	writeFile(t, dir, "blocker.txt", "z")
	if _, err := svc.Rename(RenameParams{Src: "sub/new.txt", Dst: "blocker.txt"}); !vcserr.IsKind(err, vcserr.AlreadyExists) {
		t.Errorf("existing dst: kind = %v, want AlreadyExists", vcserr.KindOf(err))
	}
}

func TestBranchLifecycle(t *testing.T) {
	svc, dir := initTestRepo(t)

	// Branching before the first commit is refused.
	_, err := svc.Branch(BranchParams{Action: BranchCreate, Name: "early"})
	if !vcserr.IsKind(err, vcserr.InvalidOperation) {
		t.Errorf("early branch: kind = %v, want InvalidOperation", vcserr.KindOf(err))
	}

	writeFile(t, dir, "a.txt", "main v1")
	stageAndCommit(t, svc, "base")

	if _, err := svc.Branch(BranchParams{Action: BranchCreate, Name: "feature"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	list, err := svc.Branch(BranchParams{Action: BranchList})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list.Branches) != 2 || list.Current != "main" {
		t.Errorf("list = %+v", list)
	}

	// Deleting the checked-out branch is refused; deleting the other works.
	if _, err := svc.Branch(BranchParams{Action: BranchDelete, Name: "main"}); !vcserr.IsKind(err, vcserr.InvalidOperation) {
		t.Errorf("delete current: kind = %v, want InvalidOperation", vcserr.KindOf(err))
	}
	if _, err := svc.Branch(BranchParams{Action: BranchDelete, Name: "feature"}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestCheckoutSwitchesWorkingTree(t *testing.T) {
	svc, dir := initTestRepo(t)
	writeFile(t, dir, "shared.txt", "main version")
	stageAndCommit(t, svc, "on main")

	// Create and switch to feature, change the file, add one more.
	if _, err := svc.Branch(BranchParams{Action: BranchCreate, Name: "feature", Checkout: true}); err != nil {
		t.Fatalf("branch create failed: %v", err)
	}
	writeFile(t, dir, "shared.txt", "feature version")
	writeFile(t, dir, "feature-only.txt", "extra")
	stageAndCommit(t, svc, "on feature")

	// Back to main: content reverts, the feature file disappears.
	result, err := svc.Checkout(CheckoutParams{Branch: "main"})
	if err != nil {
		t.Fatalf("checkout main failed: %v", err)
	}
	if result.Branch != "main" {
		t.Errorf("Branch = %q", result.Branch)
	}
	if readFile(t, dir, "shared.txt") != "main version" {
		t.Error("shared.txt should have the main content")
	}
	if _, err := os.Stat(filepath.Join(dir, "feature-only.txt")); !os.IsNotExist(err) {
		t.Error("feature-only.txt should not exist on main")
	}

	// And forward again.
	if _, err := svc.Checkout(CheckoutParams{Branch: "feature"}); err != nil {
		t.Fatalf("checkout feature failed: %v", err)
	}
	if readFile(t, dir, "shared.txt") != "feature version" {
		t.Error("shared.txt should have the feature content")
	}
	if readFile(t, dir, "feature-only.txt") != "extra" {
		t.Error("feature-only.txt should be restored")
	}
}

func TestCheckoutValidation(t *testing.T) {
	svc, dir := initTestRepo(t)
	writeFile(t, dir, "a.txt", "a")
	stageAndCommit(t, svc, "base")

	if _, err := svc.Checkout(CheckoutParams{}); !vcserr.IsKind(err, vcserr.InvalidOperation) {
		t.Errorf("neither branch nor file: kind = %v", vcserr.KindOf(err))
	}
	if _, err := svc.Checkout(CheckoutParams{Branch: "b", File: "f"}); !vcserr.IsKind(err, vcserr.InvalidOperation) {
		t.Errorf("both branch and file: kind = %v", vcserr.KindOf(err))
	}
	if _, err := svc.Checkout(CheckoutParams{Branch: "nope"}); !vcserr.IsKind(err, vcserr.NotFound) {
		t.Errorf("unknown branch: kind = %v, want NotFound", vcserr.KindOf(err))
	}
}

func TestCheckoutCreateBranch(t *testing.T) {
	svc, dir := initTestRepo(t)
	writeFile(t, dir, "a.txt", "a")
	stageAndCommit(t, svc, "base")

	result, err := svc.Checkout(CheckoutParams{Branch: "feature", Create: true})
	if err != nil {
		t.Fatalf("create checkout failed: %v", err)
	}
	if result.Branch != "feature" {
		t.Errorf("Branch = %q", result.Branch)
	}

	branches, err := svc.Branch(BranchParams{Action: BranchList})
	if err != nil {
		t.Fatalf("Branch failed: %v", err)
	}
	if branches.Current != "feature" {
		t.Errorf("Current = %q, want feature", branches.Current)
	}
	if len(branches.Branches) != 2 {
		t.Errorf("branches = %v, want main and feature", branches.Branches)
	}
}

func TestCheckoutSingleFile(t *testing.T) {
	svc, dir := initTestRepo(t)
	writeFile(t, dir, "a.txt", "committed")
	writeFile(t, dir, "b.txt", "other")
	stageAndCommit(t, svc, "base")

	writeFile(t, dir, "a.txt", "scribbled")
	writeFile(t, dir, "b.txt", "also scribbled")

	result, err := svc.Checkout(CheckoutParams{File: "a.txt"})
	if err != nil {
		t.Fatalf("file checkout failed: %v", err)
	}
	if result.Bytes != len("committed") {
		t.Errorf("Bytes = %d", result.Bytes)
	}
	if readFile(t, dir, "a.txt") != "committed" {
		t.Error("a.txt should be restored from HEAD")
	}
	if readFile(t, dir, "b.txt") != "also scribbled" {
		t.Error("b.txt must stay untouched")
	}

	if _, err := svc.Checkout(CheckoutParams{File: "missing.txt"}); !vcserr.IsKind(err, vcserr.NotFound) {
		t.Errorf("missing file: kind = %v, want NotFound", vcserr.KindOf(err))
	}
}

func TestOperationsOutsideRepository(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Status(StatusParams{}); !vcserr.IsKind(err, vcserr.NotFound) {
		t.Errorf("status without repo: kind = %v, want NotFound", vcserr.KindOf(err))
	}
	if _, err := svc.Log(LogParams{}); !vcserr.IsKind(err, vcserr.NotFound) {
		t.Errorf("log without repo: kind = %v, want NotFound", vcserr.KindOf(err))
	}
}
