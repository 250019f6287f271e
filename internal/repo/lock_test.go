package repo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLockIsExclusive(t *testing.T) {
	_, dir := initTestRepo(t)
	r, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	release, err := r.Lock()
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	lockPath := filepath.Join(dir, ControlDirName, "lock")
	if _, err := os.Stat(lockPath); err != nil {
		t.Error("lock file should exist while held")
	}

	release()
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("release should remove the lock file")
	}

	// Reacquire after release.
	release, err = r.Lock()
	if err != nil {
		t.Fatalf("relock failed: %v", err)
	}
	release()
}

func TestLockBlocksSecondHolder(t *testing.T) {
	_, dir := initTestRepo(t)
	r, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	release, err := r.Lock()
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		second, err := r.Lock()
		if err != nil {
			t.Errorf("second Lock failed: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder should wait for release")
	default:
	}

	release()
	<-acquired
}
