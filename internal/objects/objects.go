// Package objects implements the content-addressed object model: blobs,
// trees, and commits, keyed by the BLAKE3 hash of their canonical encoding.
//
// Every object is framed as "<kind> <length>\x00<content>" before hashing,
// so two logically identical objects always produce the same id regardless
// of how they were constructed. The diff and checkpoint layers rely on this
// for cheap equality checks.
package objects

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"

	"lukechampine.com/blake3"

	"github.com/quarryvcs/quarry/internal/vcserr"
)

// Kind identifies one of the three stored object kinds.
type Kind string

const (
	KindBlob   Kind = "blob"
	KindTree   Kind = "tree"
	KindCommit Kind = "commit"
)

func (k Kind) valid() bool {
	return k == KindBlob || k == KindTree || k == KindCommit
}

// Hash is a BLAKE3-256 digest of a framed object.
type Hash [32]byte

// ZeroHash is the absent-object sentinel.
var ZeroHash Hash

// String returns the full hexadecimal form of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the 7-character abbreviated form used in user-facing output.
func (h Hash) Short() string {
	return h.String()[:7]
}

// IsZero reports whether the hash is the absent-object sentinel.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// ParseHash decodes a full 64-character hex hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != len(h)*2 {
		return h, vcserr.New(vcserr.NotFound, "invalid object id %q: want %d hex chars", s, len(h)*2)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, vcserr.Wrap(vcserr.NotFound, err, "invalid object id %q", s)
	}
	copy(h[:], raw)
	return h, nil
}

// Frame produces the canonical "<kind> <len>\x00<content>" encoding.
func Frame(kind Kind, content []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", kind, len(content))
	out := make([]byte, 0, len(header)+len(content))
	out = append(out, header...)
	out = append(out, content...)
	return out
}

// ParseFrame splits a canonical encoding back into kind and content.
func ParseFrame(framed []byte) (Kind, []byte, error) {
	sep := bytes.IndexByte(framed, 0x00)
	if sep < 0 {
		return "", nil, vcserr.New(vcserr.Corruption, "object missing NUL after header")
	}
	header := string(framed[:sep])
	content := framed[sep+1:]

	fields := bytes.Fields([]byte(header))
	if len(fields) != 2 {
		return "", nil, vcserr.New(vcserr.Corruption, "invalid object header %q", header)
	}
	kind := Kind(fields[0])
	if !kind.valid() {
		return "", nil, vcserr.New(vcserr.Corruption, "unknown object kind %q", fields[0])
	}
	size, err := strconv.Atoi(string(fields[1]))
	if err != nil || size < 0 {
		return "", nil, vcserr.New(vcserr.Corruption, "invalid object size in header %q", header)
	}
	if size != len(content) {
		return "", nil, vcserr.New(vcserr.Corruption, "object size mismatch: header says %d, got %d bytes", size, len(content))
	}
	return kind, content, nil
}

// HashObject computes the id of an object from its kind and content.
func HashObject(kind Kind, content []byte) Hash {
	return blake3.Sum256(Frame(kind, content))
}

// HashBlob computes the id a blob with the given content would have.
func HashBlob(content []byte) Hash {
	return HashObject(KindBlob, content)
}
