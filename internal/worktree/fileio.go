package worktree

import (
	"fmt"
	"io"

	"golang.org/x/exp/mmap"
	"lukechampine.com/blake3"

	"github.com/quarryvcs/quarry/internal/objects"
	"github.com/quarryvcs/quarry/internal/vcserr"
)

// hashChunkSize bounds how much of a mapped file is fed to the hasher at
// once, so huge files never need a contiguous copy.
const hashChunkSize = 1 << 20

// ReadFile reads a working-tree file through a memory mapping.
func ReadFile(path string) ([]byte, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, vcserr.Wrap(vcserr.IO, err, "open %q", path)
	}
	defer r.Close()

	size := r.Len()
	if size == 0 {
		return nil, nil
	}
	buf := make([]byte, size)
	if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, vcserr.Wrap(vcserr.IO, err, "read %q", path)
	}
	return buf, nil
}

// HashFile computes the blob id the file's current content would have,
// streaming the mapped bytes through the hasher in bounded chunks. The
// on-disk content is always re-hashed; modification times are not a
// reliable signal of change across copy and restore operations.
func HashFile(path string) (objects.Hash, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return objects.ZeroHash, vcserr.Wrap(vcserr.IO, err, "open %q", path)
	}
	defer r.Close()

	size := r.Len()
	hasher := blake3.New(32, nil)
	fmt.Fprintf(hasher, "%s %d\x00", objects.KindBlob, size)

	buf := make([]byte, hashChunkSize)
	for off := 0; off < size; off += hashChunkSize {
		n := hashChunkSize
		if off+n > size {
			n = size - off
		}
		if _, err := r.ReadAt(buf[:n], int64(off)); err != nil && err != io.EOF {
			return objects.ZeroHash, vcserr.Wrap(vcserr.IO, err, "read %q", path)
		}
		hasher.Write(buf[:n])
	}

	var out objects.Hash
	copy(out[:], hasher.Sum(nil))
	return out, nil
}
