package repo

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/quarryvcs/quarry/internal/vcserr"
)

// AddParams configures Add.
type AddParams struct {
	Path string
	// Pattern is "." for everything, a glob pattern, or a single file path.
	Pattern string
}

// AddResult lists the staged paths.
type AddResult struct {
	Added []string
}

// Add stages files matching the pattern.
func (s *Service) Add(p AddParams) (*AddResult, error) {
	if p.Pattern == "" {
		return nil, vcserr.New(vcserr.InvalidOperation, "missing file pattern")
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

	added, err := r.stagePattern(p.Pattern)
	if err != nil {
		return nil, err
	}
	s.logger.Info("files staged", "path", p.Path, "pattern", p.Pattern, "count", len(added))
	return &AddResult{Added: added}, nil
}

func (r *Repository) stagePattern(pattern string) ([]string, error) {
	if pattern == "." {
		return r.Index.StageAll(r.Objects, r.guard, ControlDirName, ".")
	}

	if strings.ContainsAny(pattern, "*?[") {
		var added []string
		root := r.guard.Root()
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				return relErr
			}
			rel = filepath.ToSlash(rel)
			if d.IsDir() {
				if rel == ControlDirName {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			matched, matchErr := path.Match(pattern, rel)
			if matchErr != nil {
				return vcserr.Wrap(vcserr.InvalidOperation, matchErr, "invalid pattern %q", pattern)
			}
			if !matched {
				return nil
			}
			if _, err := r.Index.StageFile(r.Objects, r.guard, rel); err != nil {
				return err
			}
			added = append(added, rel)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return added, nil
	}

	rel := path.Clean(filepath.ToSlash(pattern))
	abs, err := r.guard.Resolve(filepath.FromSlash(rel))
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vcserr.New(vcserr.NotFound, "file not found: %q", pattern)
		}
		return nil, vcserr.Wrap(vcserr.IO, err, "stat %q", pattern)
	}
	if info.IsDir() {
		return r.Index.StageAll(r.Objects, r.guard, ControlDirName, rel)
	}
	if _, err := r.Index.StageFile(r.Objects, r.guard, rel); err != nil {
		return nil, err
	}
	return []string{rel}, nil
}

// CommitParams configures Commit.
type CommitParams struct {
	Path    string
	Message string
	// Author overrides the configured identity when non-empty. Format is
	// "Name <email>".
	Author string
}

// CommitResult reports the created commit.
type CommitResult struct {
	ID    string
	Short string
}

// Commit records the staged tree as a new commit. Committing with nothing
// staged is refused.
func (s *Service) Commit(p CommitParams) (*CommitResult, error) {
	if p.Message == "" {
		return nil, vcserr.New(vcserr.InvalidOperation, "missing commit message")
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

	headTree, err := r.HeadTree()
	if err != nil {
		return nil, err
	}
	indexTree, err := r.Index.BuildTree(r.Objects)
	if err != nil {
		return nil, err
	}
	staged, err := r.Diff.CompareTrees(headTree, indexTree, "")
	if err != nil {
		return nil, err
	}
	if len(staged) == 0 {
		return nil, vcserr.New(vcserr.InvalidOperation, "no changes staged for commit")
	}

	author := p.Author
	if author == "" {
		author = r.Config.Ident()
	}
	id, err := r.CreateCommit(indexTree, p.Message, author)
	if err != nil {
		return nil, err
	}
	s.logger.Info("commit created", "path", p.Path, "id", id.Short(), "files", len(staged))
	return &CommitResult{ID: id.String(), Short: id.Short()}, nil
}

// RemoveParams configures Remove.
type RemoveParams struct {
	Path string
	File string
	// Cached removes the file from the index only, keeping it on disk.
	Cached bool
}

// RemoveResult reports what was removed.
type RemoveResult struct {
	File    string
	Deleted bool // whether the on-disk file was deleted
}

// Remove unstages a file and, unless cached, deletes it from disk.
func (s *Service) Remove(p RemoveParams) (*RemoveResult, error) {
	if p.File == "" {
		return nil, vcserr.New(vcserr.InvalidOperation, "missing file path")
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

	rel := path.Clean(filepath.ToSlash(p.File))
	if err := r.Index.Unstage(rel); err != nil {
		return nil, vcserr.Wrap(vcserr.IO, err, "unstage %q", rel)
	}

	deleted := false
	if !p.Cached {
		abs, err := r.guard.Resolve(filepath.FromSlash(rel))
		if err != nil {
			return nil, err
		}
		if err := os.Remove(abs); err == nil {
			deleted = true
		} else if !os.IsNotExist(err) {
			return nil, vcserr.Wrap(vcserr.IO, err, "delete %q", rel)
		}
	}
	s.logger.Info("file removed", "path", p.Path, "file", rel, "cached", p.Cached)
	return &RemoveResult{File: rel, Deleted: deleted}, nil
}

// RenameParams configures Rename.
type RenameParams struct {
	Path string
	Src  string
	Dst  string
}

// RenameResult reports the completed rename.
type RenameResult struct {
	Src string
	Dst string
}

// Rename moves a working-tree file and carries any staged entry along with
// it, so a staged diff afterwards reports only the moved path.
func (s *Service) Rename(p RenameParams) (*RenameResult, error) {
	if p.Src == "" || p.Dst == "" {
		return nil, vcserr.New(vcserr.InvalidOperation, "rename requires both src and dst")
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

	src := path.Clean(filepath.ToSlash(p.Src))
	dst := path.Clean(filepath.ToSlash(p.Dst))
	srcAbs, err := r.guard.Resolve(filepath.FromSlash(src))
	if err != nil {
		return nil, err
	}
	dstAbs, err := r.guard.Resolve(filepath.FromSlash(dst))
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(srcAbs); err != nil {
		if os.IsNotExist(err) {
			return nil, vcserr.New(vcserr.NotFound, "file not found: %q", src)
		}
		return nil, vcserr.Wrap(vcserr.IO, err, "stat %q", src)
	}
	if _, err := os.Stat(dstAbs); err == nil {
		return nil, vcserr.New(vcserr.AlreadyExists, "destination already exists: %q", dst)
	}

	if err := os.MkdirAll(filepath.Dir(dstAbs), 0o755); err != nil {
		return nil, vcserr.Wrap(vcserr.IO, err, "create destination directory")
	}
	if err := os.Rename(srcAbs, dstAbs); err != nil {
		return nil, vcserr.Wrap(vcserr.IO, err, "rename %q to %q", src, dst)
	}

	if entry, tracked, err := r.Index.Lookup(src); err != nil {
		return nil, err
	} else if tracked {
		if err := r.Index.Unstage(src); err != nil {
			return nil, vcserr.Wrap(vcserr.IO, err, "unstage %q", src)
		}
		if err := r.Index.Stage(dst, entry.Blob, entry.Mode); err != nil {
			return nil, vcserr.Wrap(vcserr.IO, err, "stage %q", dst)
		}
	}
	s.logger.Info("file renamed", "path", p.Path, "src", src, "dst", dst)
	return &RenameResult{Src: src, Dst: dst}, nil
}
