package objects

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/quarryvcs/quarry/internal/vcserr"
)

// Commit is a tree snapshot plus lineage and metadata. Histories are linear:
// a commit has at most one parent.
type Commit struct {
	Tree       Hash
	Parents    []Hash
	Author     string
	Committer  string
	AuthorTime time.Time
	CommitTime time.Time
	Message    string
}

// Parent returns the single parent hash, or false for a root commit.
func (c *Commit) Parent() (Hash, bool) {
	if len(c.Parents) == 0 {
		return ZeroHash, false
	}
	return c.Parents[0], true
}

// EncodeCommit produces the canonical commit content: header lines for the
// tree, parents, author, and committer, then a blank line and the message.
func EncodeCommit(c *Commit) []byte {
	var buf bytes.Buffer

	buf.WriteString("tree ")
	buf.WriteString(c.Tree.String())
	buf.WriteByte('\n')

	for _, parent := range c.Parents {
		buf.WriteString("parent ")
		buf.WriteString(parent.String())
		buf.WriteByte('\n')
	}

	fmt.Fprintf(&buf, "author %s %d +0000\n", c.Author, c.AuthorTime.Unix())
	fmt.Fprintf(&buf, "committer %s %d +0000\n", c.Committer, c.CommitTime.Unix())

	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	if !bytes.HasSuffix([]byte(c.Message), []byte{'\n'}) {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ParseCommit decodes canonical commit content.
func ParseCommit(data []byte) (*Commit, error) {
	lines := bytes.Split(data, []byte{'\n'})
	commit := &Commit{}

	messageStart := len(lines)
	for i, line := range lines {
		if len(line) == 0 {
			messageStart = i + 1
			break
		}

		parts := bytes.SplitN(line, []byte{' '}, 2)
		if len(parts) < 2 {
			continue
		}
		key := string(parts[0])
		value := string(parts[1])

		switch key {
		case "tree":
			hash, err := ParseHash(value)
			if err != nil {
				return nil, vcserr.Wrap(vcserr.Corruption, err, "commit has invalid tree hash")
			}
			commit.Tree = hash

		case "parent":
			hash, err := ParseHash(value)
			if err != nil {
				return nil, vcserr.Wrap(vcserr.Corruption, err, "commit has invalid parent hash")
			}
			commit.Parents = append(commit.Parents, hash)

		case "author":
			name, ts, err := parseIdentLine(value)
			if err != nil {
				return nil, err
			}
			commit.Author = name
			commit.AuthorTime = ts

		case "committer":
			name, ts, err := parseIdentLine(value)
			if err != nil {
				return nil, err
			}
			commit.Committer = name
			commit.CommitTime = ts
		}
	}

	if messageStart < len(lines) {
		msg := bytes.Join(lines[messageStart:], []byte{'\n'})
		msg = bytes.TrimSuffix(msg, []byte{'\n'})
		commit.Message = string(msg)
	}
	return commit, nil
}

// parseIdentLine splits "<name> <unix> <zone>" back into name and timestamp.
func parseIdentLine(value string) (string, time.Time, error) {
	fields := bytes.Fields([]byte(value))
	if len(fields) < 3 {
		return "", time.Time{}, vcserr.New(vcserr.Corruption, "commit has invalid identity line %q", value)
	}
	name := string(bytes.Join(fields[:len(fields)-2], []byte{' '}))
	unix, err := strconv.ParseInt(string(fields[len(fields)-2]), 10, 64)
	if err != nil {
		return "", time.Time{}, vcserr.Wrap(vcserr.Corruption, err, "commit has invalid timestamp in %q", value)
	}
	return name, time.Unix(unix, 0).UTC(), nil
}

// PutCommit encodes and stores a commit, returning its id. Identical commits
// collide to the same id; the store's idempotent Put tolerates that.
func PutCommit(store Store, c *Commit) (Hash, error) {
	return store.Put(KindCommit, EncodeCommit(c))
}

// GetCommit loads a commit by id, failing if the object is of another kind.
func GetCommit(store Store, hash Hash) (*Commit, error) {
	kind, data, err := store.Get(hash)
	if err != nil {
		return nil, err
	}
	if kind != KindCommit {
		return nil, vcserr.New(vcserr.InvalidOperation, "object %s is a %s, not a commit", hash.Short(), kind)
	}
	return ParseCommit(data)
}
