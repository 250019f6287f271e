// Package repo wires the version-control components together and exposes
// the operation surface consumed by the surrounding tool layer: typed
// parameter and result structs per operation, synchronous, no streams.
package repo

import (
	"os"
	"path/filepath"
	"time"

	"github.com/quarryvcs/quarry/internal/config"
	"github.com/quarryvcs/quarry/internal/diff"
	"github.com/quarryvcs/quarry/internal/index"
	"github.com/quarryvcs/quarry/internal/objects"
	"github.com/quarryvcs/quarry/internal/refs"
	"github.com/quarryvcs/quarry/internal/sandbox"
	"github.com/quarryvcs/quarry/internal/vcserr"
	"github.com/quarryvcs/quarry/internal/worktree"
)

// ControlDirName is the control directory holding objects, index, and refs.
// It is excluded from every working-tree walk.
const ControlDirName = ".quarry"

// Repository is one open workspace repository.
type Repository struct {
	root    string            // absolute repository root
	control string            // absolute control directory
	guard   *sandbox.DirGuard // confined to the repository root

	Objects objects.Store
	Refs    *refs.Store
	Index   *index.Index
	Sync    *worktree.Sync
	Diff    *diff.Engine
	Config  *config.Config
}

// Init creates the control directory structure inside root and points HEAD
// at the default branch.
func Init(root string) (*Repository, error) {
	control := filepath.Join(root, ControlDirName)
	if _, err := os.Stat(control); err == nil {
		return nil, vcserr.New(vcserr.AlreadyExists, "repository already initialized at %q", root)
	}
	if err := os.MkdirAll(control, 0o755); err != nil {
		return nil, vcserr.Wrap(vcserr.IO, err, "create control directory")
	}

	r, err := Open(root)
	if err != nil {
		return nil, err
	}
	if err := r.Refs.Init(r.Config.Core.DefaultBranch); err != nil {
		r.Close()
		return nil, err
	}
	if err := config.Save(control, r.Config); err != nil {
		r.Close()
		return nil, vcserr.Wrap(vcserr.IO, err, "write initial config")
	}
	return r, nil
}

// Open opens an existing repository rooted at root.
func Open(root string) (*Repository, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, vcserr.Wrap(vcserr.IO, err, "resolve repository root")
	}
	control := filepath.Join(abs, ControlDirName)
	if _, err := os.Stat(control); err != nil {
		if os.IsNotExist(err) {
			return nil, vcserr.New(vcserr.NotFound, "no repository at %q", root)
		}
		return nil, vcserr.Wrap(vcserr.IO, err, "stat control directory")
	}

	guard, err := sandbox.NewDirGuard(abs)
	if err != nil {
		return nil, err
	}
	store, err := objects.NewFileStore(filepath.Join(control, "objects"))
	if err != nil {
		return nil, err
	}
	refStore, err := refs.NewStore(control, store)
	if err != nil {
		return nil, err
	}
	ix, err := index.Open(filepath.Join(control, "index.db"))
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(control)
	if err != nil {
		ix.Close()
		return nil, vcserr.Wrap(vcserr.IO, err, "load config")
	}

	return &Repository{
		root:    abs,
		control: control,
		guard:   guard,
		Objects: store,
		Refs:    refStore,
		Index:   ix,
		Sync:    worktree.NewSync(store, guard, ControlDirName),
		Diff:    diff.NewEngine(store),
		Config:  cfg,
	}, nil
}

// Close releases the repository's open resources.
func (r *Repository) Close() error {
	return r.Index.Close()
}

// Root returns the absolute repository root.
func (r *Repository) Root() string { return r.root }

// Guard returns the repository-rooted path guard.
func (r *Repository) Guard() *sandbox.DirGuard { return r.guard }

// Head returns the commit HEAD resolves to, or ok=false when the current
// branch is unborn.
func (r *Repository) Head() (objects.Hash, bool, error) {
	hash, err := r.Refs.Resolve("HEAD")
	if err != nil {
		if vcserr.KindOf(err) == vcserr.NotFound {
			return objects.ZeroHash, false, nil
		}
		return objects.ZeroHash, false, err
	}
	return hash, true, nil
}

// HeadTree returns the root tree of the HEAD commit; the zero hash stands
// for the empty tree of an unborn branch.
func (r *Repository) HeadTree() (objects.Hash, error) {
	head, ok, err := r.Head()
	if err != nil || !ok {
		return objects.ZeroHash, err
	}
	commit, err := objects.GetCommit(r.Objects, head)
	if err != nil {
		return objects.ZeroHash, err
	}
	return commit.Tree, nil
}

// CreateCommit stores a commit for tree with HEAD as its parent and
// advances HEAD: the current branch when symbolic, HEAD itself when
// detached.
func (r *Repository) CreateCommit(tree objects.Hash, message, author string) (objects.Hash, error) {
	var parents []objects.Hash
	if head, ok, err := r.Head(); err != nil {
		return objects.ZeroHash, err
	} else if ok {
		parents = append(parents, head)
	}

	now := time.Now().UTC()
	commit := &objects.Commit{
		Tree:       tree,
		Parents:    parents,
		Author:     author,
		Committer:  author,
		AuthorTime: now,
		CommitTime: now,
		Message:    message,
	}
	id, err := objects.PutCommit(r.Objects, commit)
	if err != nil {
		return objects.ZeroHash, err
	}

	if branch, onBranch, err := r.Refs.CurrentBranch(); err != nil {
		return objects.ZeroHash, err
	} else if onBranch {
		if err := r.Refs.UpdateBranch(branch, id); err != nil {
			return objects.ZeroHash, err
		}
	} else if err := r.Refs.DetachHead(id); err != nil {
		return objects.ZeroHash, err
	}
	return id, nil
}
