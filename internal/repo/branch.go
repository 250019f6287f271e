package repo

import (
	"github.com/quarryvcs/quarry/internal/objects"
	"github.com/quarryvcs/quarry/internal/refs"
	"github.com/quarryvcs/quarry/internal/vcserr"
	"github.com/quarryvcs/quarry/internal/worktree"
)

// BranchAction selects the branch sub-operation.
type BranchAction string

const (
	BranchList     BranchAction = "list"
	BranchCreate   BranchAction = "create"
	BranchDelete   BranchAction = "delete"
	BranchCheckout BranchAction = "checkout"
)

// BranchParams configures Branch.
type BranchParams struct {
	Path   string
	Action BranchAction
	// Name is required for create, delete, and checkout.
	Name string
	// Checkout switches to the branch after creating it.
	Checkout bool
}

// BranchResult reports the outcome of a branch operation.
type BranchResult struct {
	Branches []refs.BranchInfo // populated by list
	Current  string            // current branch, empty when detached
	Name     string            // branch acted on by create/delete/checkout
	Report   *worktree.Report  // working-tree changes when a checkout ran
}

// Branch lists, creates, deletes, or checks out branches.
func (s *Service) Branch(p BranchParams) (*BranchResult, error) {
	action := p.Action
	if action == "" {
		action = BranchList
	}

	r, err := s.open(p.Path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	switch action {
	case BranchList:
		branches, err := r.Refs.ListBranches()
		if err != nil {
			return nil, err
		}
		current, _, err := r.Refs.CurrentBranch()
		if err != nil {
			return nil, err
		}
		return &BranchResult{Branches: branches, Current: current}, nil

	case BranchCreate:
		if p.Name == "" {
			return nil, vcserr.New(vcserr.InvalidOperation, "missing branch name")
		}
		release, err := r.Lock()
		if err != nil {
			return nil, err
		}
		defer release()

		head, ok, err := r.Head()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, vcserr.New(vcserr.InvalidOperation, "cannot create a branch before the first commit")
		}
		if err := r.Refs.CreateBranch(p.Name, head); err != nil {
			return nil, err
		}
		s.logger.Info("branch created", "path", p.Path, "branch", p.Name)
		if !p.Checkout {
			return &BranchResult{Name: p.Name}, nil
		}
		report, err := r.checkoutBranch(p.Name, false)
		if err != nil {
			return nil, err
		}
		return &BranchResult{Name: p.Name, Current: p.Name, Report: report}, nil

	case BranchDelete:
		if p.Name == "" {
			return nil, vcserr.New(vcserr.InvalidOperation, "missing branch name")
		}
		release, err := r.Lock()
		if err != nil {
			return nil, err
		}
		defer release()

		if err := r.Refs.DeleteBranch(p.Name); err != nil {
			return nil, err
		}
		s.logger.Info("branch deleted", "path", p.Path, "branch", p.Name)
		return &BranchResult{Name: p.Name}, nil

	case BranchCheckout:
		if p.Name == "" {
			return nil, vcserr.New(vcserr.InvalidOperation, "missing branch name")
		}
		release, err := r.Lock()
		if err != nil {
			return nil, err
		}
		defer release()

		report, err := r.checkoutBranch(p.Name, false)
		if err != nil {
			return nil, err
		}
		return &BranchResult{Name: p.Name, Current: p.Name, Report: report}, nil

	default:
		return nil, vcserr.New(vcserr.InvalidOperation, "unknown branch action %q", p.Action)
	}
}

// checkoutBranch switches HEAD to a branch, rebuilds the index from its
// tree, and resets the working tree to match it exactly. The caller holds
// the repository lock.
func (r *Repository) checkoutBranch(name string, create bool) (*worktree.Report, error) {
	if !r.Refs.BranchExists(name) {
		if !create {
			return nil, vcserr.New(vcserr.NotFound, "branch %q not found", name)
		}
		head, ok, err := r.Head()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, vcserr.New(vcserr.InvalidOperation, "cannot create a branch before the first commit")
		}
		if err := r.Refs.CreateBranch(name, head); err != nil {
			return nil, err
		}
	}

	target, err := r.Refs.ReadBranch(name)
	if err != nil {
		return nil, err
	}
	commit, err := objects.GetCommit(r.Objects, target)
	if err != nil {
		return nil, err
	}
	if err := r.Refs.SetHeadToBranch(name); err != nil {
		return nil, err
	}
	if err := r.Index.ReadTree(r.Objects, commit.Tree); err != nil {
		return nil, err
	}
	return r.Sync.Checkout(commit.Tree)
}

// CheckoutParams configures Checkout. Exactly one of Branch or File must be
// set.
type CheckoutParams struct {
	Path string
	// Branch switches branches, resetting the whole working tree.
	Branch string
	// File restores one file from HEAD, leaving everything else untouched.
	File string
	// Create creates the branch at HEAD if it does not exist yet.
	Create bool
}

// CheckoutResult reports the completed checkout.
type CheckoutResult struct {
	Branch string
	Commit string
	File   string
	Bytes  int // bytes written for a single-file restore
	Report *worktree.Report
}

// Checkout switches branches or restores a single file from HEAD.
func (s *Service) Checkout(p CheckoutParams) (*CheckoutResult, error) {
	if (p.Branch == "") == (p.File == "") {
		return nil, vcserr.New(vcserr.InvalidOperation, "checkout requires exactly one of branch or file")
	}

	r, err := s.open(p.Path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	release, err := r.Lock()
	if err != nil {
		return nil, err
	}
	defer release()

	if p.File != "" {
		headTree, err := r.HeadTree()
		if err != nil {
			return nil, err
		}
		if headTree.IsZero() {
			return nil, vcserr.New(vcserr.NotFound, "file %q not found in HEAD", p.File)
		}
		n, err := r.Sync.RestoreFile(headTree, p.File)
		if err != nil {
			return nil, err
		}
		s.logger.Info("file restored from HEAD", "path", p.Path, "file", p.File, "bytes", n)
		return &CheckoutResult{File: p.File, Bytes: n}, nil
	}

	report, err := r.checkoutBranch(p.Branch, p.Create)
	if err != nil {
		return nil, err
	}
	commit, err := r.Refs.ReadBranch(p.Branch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("branch checked out", "path", p.Path, "branch", p.Branch, "commit", commit.Short())
	return &CheckoutResult{Branch: p.Branch, Commit: commit.Short(), Report: report}, nil
}
