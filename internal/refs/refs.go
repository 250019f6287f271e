// Package refs manages the reference namespace: branch heads under
// refs/heads and the special HEAD entry, which is either symbolic (points
// at a branch, the common case) or detached (points directly at a commit).
package refs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quarryvcs/quarry/internal/objects"
	"github.com/quarryvcs/quarry/internal/vcserr"
)

// DefaultBranch is the branch created at repository init.
const DefaultBranch = "main"

const symbolicPrefix = "ref: refs/heads/"

// Head is the decoded state of the HEAD entry.
type Head struct {
	Symbolic bool
	Branch   string       // branch name when symbolic
	Commit   objects.Hash // commit id when detached
}

// BranchInfo describes one branch for listing.
type BranchInfo struct {
	Name    string
	Commit  objects.Hash
	Current bool
}

// Store reads and writes the reference namespace inside a control
// directory. Branch targets are validated against the object store.
type Store struct {
	controlDir string
	headsDir   string
	objects    objects.Store
}

// NewStore opens the reference namespace under controlDir.
func NewStore(controlDir string, objectStore objects.Store) (*Store, error) {
	headsDir := filepath.Join(controlDir, "refs", "heads")
	if err := os.MkdirAll(headsDir, 0o755); err != nil {
		return nil, vcserr.Wrap(vcserr.IO, err, "create refs directory")
	}
	return &Store{controlDir: controlDir, headsDir: headsDir, objects: objectStore}, nil
}

// Init points HEAD at the default branch. The branch itself stays unborn
// until the first commit creates its file.
func (s *Store) Init(branch string) error {
	if err := validateBranchName(branch); err != nil {
		return err
	}
	return s.SetHeadToBranch(branch)
}

func validateBranchName(name string) error {
	if name == "" || name == "HEAD" {
		return vcserr.New(vcserr.InvalidOperation, "invalid branch name %q", name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return vcserr.New(vcserr.InvalidOperation, "invalid branch name %q", name)
		}
	}
	return nil
}

func (s *Store) headPath() string {
	return filepath.Join(s.controlDir, "HEAD")
}

func (s *Store) branchPath(name string) string {
	return filepath.Join(s.headsDir, filepath.FromSlash(name))
}

// ReadHead decodes the HEAD entry.
func (s *Store) ReadHead() (Head, error) {
	data, err := os.ReadFile(s.headPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Head{}, vcserr.New(vcserr.NotFound, "HEAD not found")
		}
		return Head{}, vcserr.Wrap(vcserr.IO, err, "read HEAD")
	}
	content := strings.TrimSpace(string(data))

	if branch, ok := strings.CutPrefix(content, symbolicPrefix); ok {
		return Head{Symbolic: true, Branch: branch}, nil
	}
	hash, err := objects.ParseHash(content)
	if err != nil {
		return Head{}, vcserr.Wrap(vcserr.Corruption, err, "HEAD has invalid content")
	}
	return Head{Commit: hash}, nil
}

// SetHeadToBranch makes HEAD symbolic, pointing at the named branch.
func (s *Store) SetHeadToBranch(name string) error {
	if err := validateBranchName(name); err != nil {
		return err
	}
	content := symbolicPrefix + name + "\n"
	if err := os.WriteFile(s.headPath(), []byte(content), 0o644); err != nil {
		return vcserr.Wrap(vcserr.IO, err, "write HEAD")
	}
	return nil
}

// DetachHead points HEAD directly at a commit id.
func (s *Store) DetachHead(commit objects.Hash) error {
	if err := os.WriteFile(s.headPath(), []byte(commit.String()+"\n"), 0o644); err != nil {
		return vcserr.Wrap(vcserr.IO, err, "write HEAD")
	}
	return nil
}

// CurrentBranch returns the checked-out branch name, or false when HEAD is
// detached.
func (s *Store) CurrentBranch() (string, bool, error) {
	head, err := s.ReadHead()
	if err != nil {
		return "", false, err
	}
	if !head.Symbolic {
		return "", false, nil
	}
	return head.Branch, true, nil
}

// ReadBranch returns the commit a branch points at.
func (s *Store) ReadBranch(name string) (objects.Hash, error) {
	if err := validateBranchName(name); err != nil {
		return objects.ZeroHash, err
	}
	data, err := os.ReadFile(s.branchPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return objects.ZeroHash, vcserr.New(vcserr.NotFound, "branch %q not found", name)
		}
		return objects.ZeroHash, vcserr.Wrap(vcserr.IO, err, "read branch %q", name)
	}
	hash, err := objects.ParseHash(strings.TrimSpace(string(data)))
	if err != nil {
		return objects.ZeroHash, vcserr.Wrap(vcserr.Corruption, err, "branch %q has invalid content", name)
	}
	return hash, nil
}

// BranchExists reports whether the branch file exists.
func (s *Store) BranchExists(name string) bool {
	_, err := os.Stat(s.branchPath(name))
	return err == nil
}

// Resolve dereferences a name to a commit id. "HEAD" resolves transitively
// through the symbolic ref; any other name resolves as a branch.
func (s *Store) Resolve(name string) (objects.Hash, error) {
	if name == "HEAD" {
		head, err := s.ReadHead()
		if err != nil {
			return objects.ZeroHash, err
		}
		if !head.Symbolic {
			return head.Commit, nil
		}
		return s.ReadBranch(head.Branch)
	}
	return s.ReadBranch(name)
}

// CreateBranch creates a branch pointing at a commit the object store
// already contains.
func (s *Store) CreateBranch(name string, at objects.Hash) error {
	if err := validateBranchName(name); err != nil {
		return err
	}
	if s.BranchExists(name) {
		return vcserr.New(vcserr.AlreadyExists, "branch %q already exists", name)
	}
	ok, err := s.objects.Has(at)
	if err != nil {
		return err
	}
	if !ok {
		return vcserr.New(vcserr.NotFound, "commit %s not found", at.Short())
	}
	return s.writeBranch(name, at)
}

// UpdateBranch moves an existing or unborn branch to a commit.
func (s *Store) UpdateBranch(name string, commit objects.Hash) error {
	if err := validateBranchName(name); err != nil {
		return err
	}
	return s.writeBranch(name, commit)
}

func (s *Store) writeBranch(name string, commit objects.Hash) error {
	path := s.branchPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return vcserr.Wrap(vcserr.IO, err, "create branch directory")
	}
	if err := os.WriteFile(path, []byte(commit.String()+"\n"), 0o644); err != nil {
		return vcserr.Wrap(vcserr.IO, err, "write branch %q", name)
	}
	return nil
}

// DeleteBranch removes a branch. Deleting the branch HEAD points to is
// never allowed.
func (s *Store) DeleteBranch(name string) error {
	if err := validateBranchName(name); err != nil {
		return err
	}
	if !s.BranchExists(name) {
		return vcserr.New(vcserr.NotFound, "branch %q not found", name)
	}
	if current, ok, err := s.CurrentBranch(); err != nil {
		return err
	} else if ok && current == name {
		return vcserr.New(vcserr.InvalidOperation, "cannot delete the checked-out branch %q", name)
	}
	if err := os.Remove(s.branchPath(name)); err != nil {
		return vcserr.Wrap(vcserr.IO, err, "delete branch %q", name)
	}
	return nil
}

// ListBranches returns every branch with its commit id, marking the one
// HEAD points at.
func (s *Store) ListBranches() ([]BranchInfo, error) {
	current, onBranch, err := s.CurrentBranch()
	if err != nil && vcserr.KindOf(err) != vcserr.NotFound {
		return nil, err
	}

	var branches []BranchInfo
	walkErr := filepath.WalkDir(s.headsDir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(s.headsDir, p)
		if relErr != nil {
			return relErr
		}
		name := filepath.ToSlash(rel)
		commit, readErr := s.ReadBranch(name)
		if readErr != nil {
			return readErr
		}
		branches = append(branches, BranchInfo{
			Name:    name,
			Commit:  commit,
			Current: onBranch && name == current,
		})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}
