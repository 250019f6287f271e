package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quarryvcs/quarry/internal/vcserr"
)

const (
	lockFileName   = "lock"
	lockWaitLimit  = 10 * time.Second
	lockRetryDelay = 25 * time.Millisecond
)

// Lock acquires the exclusive advisory lock serializing mutating operations
// against this repository. The lock is held for the whole operation,
// including any working-tree rewrite; the returned release function removes
// it. Read-only operations run without it and tolerate observing a state
// update mid-read.
func (r *Repository) Lock() (func(), error) {
	path := filepath.Join(r.control, lockFileName)
	deadline := time.Now().Add(lockWaitLimit)
	for {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, vcserr.Wrap(vcserr.IO, err, "acquire repository lock")
		}
		if time.Now().After(deadline) {
			return nil, vcserr.New(vcserr.IO, "timeout waiting for repository lock %q", path)
		}
		time.Sleep(lockRetryDelay)
	}
}
