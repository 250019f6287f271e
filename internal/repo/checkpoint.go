package repo

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quarryvcs/quarry/internal/objects"
	"github.com/quarryvcs/quarry/internal/vcserr"
	"github.com/quarryvcs/quarry/internal/worktree"
)

// CheckpointPrefix marks a commit as a workflow checkpoint. Checkpoints are
// ordinary commits discovered by message shape, not a separate ref
// namespace, which keeps the object model minimal at the cost of listing
// being linear in history length.
const CheckpointPrefix = "[WORKFLOW-CHECKPOINT]"

const boundIndexToken = "message_index"

// defaultCheckpointLimit caps listing when the caller supplies none.
const defaultCheckpointLimit = 50

// checkpointIdent is the committer identity for automatic checkpoints.
const checkpointIdent = "Quarry Workflow <workflow@quarry.local>"

func formatCheckpointMessage(message string, boundIndex *int) string {
	full := CheckpointPrefix + " " + message
	if boundIndex != nil {
		full += fmt.Sprintf(" | %s=%d", boundIndexToken, *boundIndex)
	}
	return full
}

// parseCheckpointMessage recognizes checkpoint commits and splits the
// caller's message back out of the stored one, along with the optional
// bound index token.
func parseCheckpointMessage(stored string) (message string, boundIndex *int, ok bool) {
	if !strings.HasPrefix(stored, CheckpointPrefix) {
		return "", nil, false
	}
	message = strings.TrimSpace(strings.TrimPrefix(stored, CheckpointPrefix))

	if idx := strings.LastIndex(message, " | "+boundIndexToken+"="); idx >= 0 {
		tail := message[idx+len(" | "+boundIndexToken+"="):]
		if n, err := strconv.Atoi(tail); err == nil {
			message = message[:idx]
			boundIndex = &n
		}
	}
	return message, boundIndex, true
}

// CheckpointParams configures Checkpoint.
type CheckpointParams struct {
	Path string
	// Message defaults to "Workflow checkpoint".
	Message string
	// BoundIndex optionally binds the checkpoint to an external sequence
	// number, embedded in the commit message.
	BoundIndex *int
}

// CheckpointResult reports the checkpoint commit. Created is false when the
// tree was unchanged and the existing HEAD commit id was returned instead.
type CheckpointResult struct {
	ID      string
	Short   string
	Message string
	Created bool
}

// Checkpoint stages the whole working tree and commits it under the
// checkpoint prefix. An unchanged tree is an idempotent no-op returning the
// current HEAD commit.
func (s *Service) Checkpoint(p CheckpointParams) (*CheckpointResult, error) {
	message := p.Message
	if message == "" {
		message = "Workflow checkpoint"
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

	if _, err := r.Index.StageAll(r.Objects, r.guard, ControlDirName, "."); err != nil {
		return nil, err
	}
	tree, err := r.Index.BuildTree(r.Objects)
	if err != nil {
		return nil, err
	}

	stored := formatCheckpointMessage(message, p.BoundIndex)

	head, hasHead, err := r.Head()
	if err != nil {
		return nil, err
	}
	if hasHead {
		headCommit, err := objects.GetCommit(r.Objects, head)
		if err != nil {
			return nil, err
		}
		if headCommit.Tree == tree {
			s.logger.Info("checkpoint unchanged", "path", p.Path, "id", head.Short())
			return &CheckpointResult{
				ID:      head.String(),
				Short:   head.Short(),
				Message: stored,
				Created: false,
			}, nil
		}
	}

	id, err := r.CreateCommit(tree, stored, checkpointIdent)
	if err != nil {
		return nil, err
	}
	s.logger.Info("checkpoint created", "path", p.Path, "id", id.Short(), "message", message)
	return &CheckpointResult{
		ID:      id.String(),
		Short:   id.Short(),
		Message: stored,
		Created: true,
	}, nil
}

// RestoreParams configures Restore.
type RestoreParams struct {
	Path string
	// CheckpointID is a full or unambiguous short commit id.
	CheckpointID string
	// KeepExtra skips the delete pass, leaving files absent from the
	// checkpoint tree on disk. The default restores exactly.
	KeepExtra bool
}

// RestoreResult reports the completed restore, including the per-path
// partial-failure report from the working-tree rewrite.
type RestoreResult struct {
	ID     string
	Short  string
	Report *worktree.Report
}

// Restore detaches HEAD at the checkpoint commit, rebuilds the index from
// its tree, and rewrites the working tree to match.
func (s *Service) Restore(p RestoreParams) (*RestoreResult, error) {
	if p.CheckpointID == "" {
		return nil, vcserr.New(vcserr.InvalidOperation, "missing checkpoint id")
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

	id, err := objects.ResolveID(r.Objects, p.CheckpointID)
	if err != nil {
		return nil, err
	}
	commit, err := objects.GetCommit(r.Objects, id)
	if err != nil {
		return nil, err
	}

	if err := r.Refs.DetachHead(id); err != nil {
		return nil, err
	}
	if err := r.Index.ReadTree(r.Objects, commit.Tree); err != nil {
		return nil, err
	}

	var report *worktree.Report
	if p.KeepExtra {
		report, err = r.Sync.Materialize(commit.Tree)
	} else {
		report, err = r.Sync.Checkout(commit.Tree)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("checkpoint restored", "path", p.Path, "id", id.Short(),
		"written", len(report.Written), "deleted", len(report.Deleted), "failed", len(report.Failed))
	return &RestoreResult{ID: id.String(), Short: id.Short(), Report: report}, nil
}

// ListCheckpointsParams configures ListCheckpoints.
type ListCheckpointsParams struct {
	Path string
	// Limit caps the returned entries; 0 means the default of 50.
	Limit int
}

// CheckpointInfo describes one checkpoint, newest-first.
type CheckpointInfo struct {
	ID         string
	Short      string
	Message    string
	BoundIndex *int
	Author     string
	Time       time.Time
}

// ListCheckpointsResult lists discovered checkpoints.
type ListCheckpointsResult struct {
	Checkpoints []CheckpointInfo
}

// ListCheckpoints walks the parent chain from HEAD and returns commits
// carrying the checkpoint prefix, deduplicated by commit id.
func (s *Service) ListCheckpoints(p ListCheckpointsParams) (*ListCheckpointsResult, error) {
	if p.Limit < 0 {
		return nil, vcserr.New(vcserr.InvalidOperation, "limit must not be negative")
	}
	limit := p.Limit
	if limit == 0 {
		limit = defaultCheckpointLimit
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
	result := &ListCheckpointsResult{}
	if !ok {
		return result, nil
	}

	seen := make(map[objects.Hash]struct{})
	current := head
	for len(result.Checkpoints) < limit {
		if _, dup := seen[current]; dup {
			break
		}
		seen[current] = struct{}{}

		commit, err := objects.GetCommit(r.Objects, current)
		if err != nil {
			return nil, err
		}
		if message, bound, isCheckpoint := parseCheckpointMessage(commit.Message); isCheckpoint {
			result.Checkpoints = append(result.Checkpoints, CheckpointInfo{
				ID:         current.String(),
				Short:      current.Short(),
				Message:    message,
				BoundIndex: bound,
				Author:     commit.Author,
				Time:       commit.CommitTime,
			})
		}

		parent, hasParent := commit.Parent()
		if !hasParent {
			break
		}
		current = parent
	}
	return result, nil
}
