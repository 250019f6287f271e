package objects

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/quarryvcs/quarry/internal/vcserr"
)

// Store is immutable, content-addressed storage for framed objects.
type Store interface {
	// Put stores the object and returns its id. Idempotent: storing
	// identical bytes twice returns the same id without duplicating storage.
	Put(kind Kind, content []byte) (Hash, error)

	// Get retrieves an object by id.
	Get(hash Hash) (Kind, []byte, error)

	// Has checks whether an object exists.
	Has(hash Hash) (bool, error)

	// ResolvePrefix resolves an unambiguous hex prefix to a full id.
	ResolvePrefix(prefix string) (Hash, error)
}

// ResolveID resolves either a full hex id or a short prefix.
func ResolveID(store Store, id string) (Hash, error) {
	if len(id) == len(ZeroHash)*2 {
		return ParseHash(id)
	}
	return store.ResolvePrefix(id)
}

func checkPrefix(prefix string) error {
	if prefix == "" {
		return vcserr.New(vcserr.NotFound, "empty object id prefix")
	}
	if len(prefix) > len(ZeroHash)*2 {
		return vcserr.New(vcserr.NotFound, "object id prefix %q too long", prefix)
	}
	for _, c := range prefix {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return vcserr.New(vcserr.NotFound, "invalid object id prefix %q", prefix)
		}
	}
	return nil
}

// FileStore keeps zstd-compressed canonical objects under a two-level
// fan-out directory: the first two hex characters select the subdirectory,
// the rest name the file.
type FileStore struct {
	root string
}

// NewFileStore opens or creates a file-backed object store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, vcserr.Wrap(vcserr.IO, err, "create object store directory")
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) path(hash Hash) string {
	hexStr := hash.String()
	return filepath.Join(s.root, hexStr[:2], hexStr[2:])
}

// Put implements Store.Put.
func (s *FileStore) Put(kind Kind, content []byte) (Hash, error) {
	framed := Frame(kind, content)
	hash := HashObject(kind, content)
	path := s.path(hash)

	// Content-addressed: an existing file already holds these bytes.
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ZeroHash, vcserr.Wrap(vcserr.IO, err, "create object fan-out directory")
	}

	compressed, err := compressObject(framed)
	if err != nil {
		return ZeroHash, err
	}

	// Write to a temp file first, then rename, so readers never observe a
	// partially written object.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".obj-*")
	if err != nil {
		return ZeroHash, vcserr.Wrap(vcserr.IO, err, "create temp object file")
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(compressed)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpName)
		return ZeroHash, vcserr.Wrap(vcserr.IO, writeErr, "write object %s", hash.Short())
	}
	if closeErr != nil {
		os.Remove(tmpName)
		return ZeroHash, vcserr.Wrap(vcserr.IO, closeErr, "close object %s", hash.Short())
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return ZeroHash, vcserr.Wrap(vcserr.IO, err, "store object %s", hash.Short())
	}
	return hash, nil
}

// Get implements Store.Get. Stored bytes are re-hashed against the key;
// a mismatch reports Corruption.
func (s *FileStore) Get(hash Hash) (Kind, []byte, error) {
	compressed, err := os.ReadFile(s.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, vcserr.New(vcserr.NotFound, "object not found: %s", hash.Short())
		}
		return "", nil, vcserr.Wrap(vcserr.IO, err, "read object %s", hash.Short())
	}

	framed, err := decompressObject(compressed)
	if err != nil {
		return "", nil, vcserr.Wrap(vcserr.Corruption, err, "decompress object %s", hash.Short())
	}
	kind, content, err := ParseFrame(framed)
	if err != nil {
		return "", nil, err
	}
	if HashObject(kind, content) != hash {
		return "", nil, vcserr.New(vcserr.Corruption, "object %s does not re-hash to its key", hash.Short())
	}
	return kind, content, nil
}

// Has implements Store.Has.
func (s *FileStore) Has(hash Hash) (bool, error) {
	_, err := os.Stat(s.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, vcserr.Wrap(vcserr.IO, err, "stat object %s", hash.Short())
	}
	return true, nil
}

// ResolvePrefix implements Store.ResolvePrefix by scanning the fan-out
// directories the prefix can fall into. A one-character prefix scans up to
// sixteen subdirectories; anything longer scans one.
func (s *FileStore) ResolvePrefix(prefix string) (Hash, error) {
	prefix = strings.ToLower(prefix)
	if err := checkPrefix(prefix); err != nil {
		return ZeroHash, err
	}

	var dirs []string
	if len(prefix) >= 2 {
		dirs = []string{prefix[:2]}
	} else {
		all, err := os.ReadDir(s.root)
		if err != nil {
			return ZeroHash, vcserr.Wrap(vcserr.IO, err, "scan object store")
		}
		for _, d := range all {
			if d.IsDir() && strings.HasPrefix(d.Name(), prefix) {
				dirs = append(dirs, d.Name())
			}
		}
	}

	var matches []Hash
	for _, dir := range dirs {
		names, err := os.ReadDir(filepath.Join(s.root, dir))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return ZeroHash, vcserr.Wrap(vcserr.IO, err, "scan object store")
		}
		for _, name := range names {
			full := dir + name.Name()
			if !strings.HasPrefix(full, prefix) {
				continue
			}
			hash, err := ParseHash(full)
			if err != nil {
				continue
			}
			matches = append(matches, hash)
		}
	}

	switch len(matches) {
	case 0:
		return ZeroHash, vcserr.New(vcserr.NotFound, "no object matches prefix %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return ZeroHash, vcserr.New(vcserr.AmbiguousID, "prefix %q matches %d objects", prefix, len(matches))
	}
}

func compressObject(framed []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, vcserr.Wrap(vcserr.IO, err, "zstd writer")
	}
	if _, err := enc.Write(framed); err != nil {
		enc.Close()
		return nil, vcserr.Wrap(vcserr.IO, err, "zstd write")
	}
	if err := enc.Close(); err != nil {
		return nil, vcserr.Wrap(vcserr.IO, err, "zstd close")
	}
	return buf.Bytes(), nil
}

func decompressObject(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()
	framed, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("read zstd payload: %w", err)
	}
	return framed, nil
}

// MemoryStore implements Store with in-memory storage and thread-safe
// access. Used by tests and short-lived tooling.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[Hash]memObject
}

type memObject struct {
	kind    Kind
	content []byte
}

// NewMemoryStore creates an empty in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[Hash]memObject)}
}

// Put implements Store.Put.
func (m *MemoryStore) Put(kind Kind, content []byte) (Hash, error) {
	hash := HashObject(kind, content)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[hash]; exists {
		return hash, nil
	}
	stored := make([]byte, len(content))
	copy(stored, content)
	m.objects[hash] = memObject{kind: kind, content: stored}
	return hash, nil
}

// Get implements Store.Get.
func (m *MemoryStore) Get(hash Hash) (Kind, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, exists := m.objects[hash]
	if !exists {
		return "", nil, vcserr.New(vcserr.NotFound, "object not found: %s", hash.Short())
	}
	content := make([]byte, len(obj.content))
	copy(content, obj.content)
	return obj.kind, content, nil
}

// Has implements Store.Has.
func (m *MemoryStore) Has(hash Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.objects[hash]
	return exists, nil
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// ResolvePrefix implements Store.ResolvePrefix with a linear scan.
func (m *MemoryStore) ResolvePrefix(prefix string) (Hash, error) {
	prefix = strings.ToLower(prefix)
	if err := checkPrefix(prefix); err != nil {
		return ZeroHash, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var matches []Hash
	for hash := range m.objects {
		if strings.HasPrefix(hash.String(), prefix) {
			matches = append(matches, hash)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return bytes.Compare(matches[i][:], matches[j][:]) < 0
	})

	switch len(matches) {
	case 0:
		return ZeroHash, vcserr.New(vcserr.NotFound, "no object matches prefix %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return ZeroHash, vcserr.New(vcserr.AmbiguousID, "prefix %q matches %d objects", prefix, len(matches))
	}
}
