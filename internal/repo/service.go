package repo

import (
	"log/slog"
	"time"

	"github.com/quarryvcs/quarry/internal/diff"
	"github.com/quarryvcs/quarry/internal/objects"
	"github.com/quarryvcs/quarry/internal/sandbox"
	"github.com/quarryvcs/quarry/internal/vcserr"
)

// defaultLogLimit is the log entry cap when the caller supplies none.
const defaultLogLimit = 20

// Service is the long-lived operation surface over one sandbox root. All
// state lives here rather than in package-level variables, so multiple
// sandbox sessions can run without cross-talk.
type Service struct {
	guard  sandbox.Guard
	logger *slog.Logger
}

// NewService creates a Service confined to the guard's root. A nil logger
// falls back to slog.Default().
func NewService(guard sandbox.Guard, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{guard: guard, logger: logger}
}

// open resolves a sandbox-relative repository path and opens it.
func (s *Service) open(repoPath string) (*Repository, error) {
	abs, err := s.guard.Resolve(repoPath)
	if err != nil {
		return nil, err
	}
	return Open(abs)
}

// InitParams configures Init.
type InitParams struct {
	// Path is the repository directory, relative to the sandbox root.
	// Empty means the root itself.
	Path string
}

// InitResult reports a successful initialization.
type InitResult struct {
	Path   string
	Branch string
}

// Init creates a new repository.
func (s *Service) Init(p InitParams) (*InitResult, error) {
	abs, err := s.guard.Resolve(p.Path)
	if err != nil {
		return nil, err
	}
	r, err := Init(abs)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	branch := r.Config.Core.DefaultBranch
	s.logger.Info("repository initialized", "path", p.Path, "branch", branch)
	return &InitResult{Path: p.Path, Branch: branch}, nil
}

// StatusParams configures Status.
type StatusParams struct {
	Path string
}

// StatusResult reports staged and unstaged change sets. Untracked files
// appear as adds in Unstaged.
type StatusResult struct {
	Staged   []diff.Change
	Unstaged []diff.Change
	Clean    bool
}

// Status compares HEAD against the index and the index against the working
// tree.
func (s *Service) Status(p StatusParams) (*StatusResult, error) {
	r, err := s.open(p.Path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	staged, unstaged, err := r.changeSets("")
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		Staged:   staged,
		Unstaged: unstaged,
		Clean:    len(staged) == 0 && len(unstaged) == 0,
	}, nil
}

// changeSets computes both diff kinds, optionally filtered to one path.
// Staged and unstaged records for the same path stay separate; they
// describe different base states.
func (r *Repository) changeSets(filter string) (staged, unstaged []diff.Change, err error) {
	headTree, err := r.HeadTree()
	if err != nil {
		return nil, nil, err
	}
	indexTree, err := r.Index.BuildTree(r.Objects)
	if err != nil {
		return nil, nil, err
	}
	staged, err = r.Diff.CompareTrees(headTree, indexTree, filter)
	if err != nil {
		return nil, nil, err
	}
	unstaged, err = r.Diff.Unstaged(r.Index, r.guard, ControlDirName, filter)
	if err != nil {
		return nil, nil, err
	}
	return staged, unstaged, nil
}

// LogParams configures Log.
type LogParams struct {
	Path string
	// MaxCount caps the returned entries; 0 means the default of 20.
	MaxCount int
}

// CommitInfo describes one history entry.
type CommitInfo struct {
	ID        string
	Short     string
	Message   string
	Author    string
	Committer string
	Time      time.Time
}

// LogResult lists history newest-first.
type LogResult struct {
	Commits []CommitInfo
}

// Log walks the parent chain from HEAD. An unborn branch yields an empty
// list rather than an error.
func (s *Service) Log(p LogParams) (*LogResult, error) {
	if p.MaxCount < 0 {
		return nil, vcserr.New(vcserr.InvalidOperation, "max_count must not be negative")
	}
	limit := p.MaxCount
	if limit == 0 {
		limit = defaultLogLimit
	}

	r, err := s.open(p.Path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	head, ok, err := r.Head()
	if err != nil {
		return nil, err
	}
	result := &LogResult{}
	if !ok {
		return result, nil
	}

	seen := make(map[objects.Hash]struct{})
	current := head
	for len(result.Commits) < limit {
		if _, dup := seen[current]; dup {
			break
		}
		seen[current] = struct{}{}

		commit, err := objects.GetCommit(r.Objects, current)
		if err != nil {
			return nil, err
		}
		result.Commits = append(result.Commits, CommitInfo{
			ID:        current.String(),
			Short:     current.Short(),
			Message:   commit.Message,
			Author:    commit.Author,
			Committer: commit.Committer,
			Time:      commit.CommitTime,
		})

		parent, hasParent := commit.Parent()
		if !hasParent {
			break
		}
		current = parent
	}
	return result, nil
}

// DiffParams configures Diff.
type DiffParams struct {
	Path string
	// File restricts the comparison to one path without changing the
	// underlying algorithm.
	File string
	// Staged selects HEAD-vs-index; otherwise index-vs-working-tree.
	Staged bool
}

// DiffResult lists the computed changes.
type DiffResult struct {
	Staged  bool
	Changes []diff.Change
}

// Diff computes one of the two change sets.
func (s *Service) Diff(p DiffParams) (*DiffResult, error) {
	r, err := s.open(p.Path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if p.Staged {
		headTree, err := r.HeadTree()
		if err != nil {
			return nil, err
		}
		indexTree, err := r.Index.BuildTree(r.Objects)
		if err != nil {
			return nil, err
		}
		changes, err := r.Diff.CompareTrees(headTree, indexTree, p.File)
		if err != nil {
			return nil, err
		}
		return &DiffResult{Staged: true, Changes: changes}, nil
	}

	changes, err := r.Diff.Unstaged(r.Index, r.guard, ControlDirName, p.File)
	if err != nil {
		return nil, err
	}
	return &DiffResult{Changes: changes}, nil
}
