package session

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const fileFormatVersion = 1

// Sealer encrypts the file store payload at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// FileStore keeps slots in a single JSON file, rewritten atomically on every change.
//
// When a Sealer is configured the slot map is stored as an opaque sealed blob.
type FileStore struct {
	path   string
	sealer Sealer

	mu sync.Mutex
}

type fileDoc struct {
	Version int             `json:"v"`
	Slots   map[Slot]string `json:"slots,omitempty"`
	Sealed  []byte          `json:"sealed,omitempty"`
}

// NewFileStore returns a file-backed Store. sealer may be nil.
func NewFileStore(path string, sealer Sealer) (*FileStore, error) {
	if path == "" {
		return nil, ErrConfig
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, storeErr("file", "mkdir", err)
	}
	return &FileStore{path: path, sealer: sealer}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Close closes the store (noop for files).
func (s *FileStore) Close() error { return nil }

// Get returns the slot value or ErrSlotEmpty.
func (s *FileStore) Get(ctx context.Context, slot Slot) (string, error) {
	if err := checkSlots(slot); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := slots[slot]
	if !ok {
		return "", ErrSlotEmpty
	}
	return v, nil
}

// Set merges values into the file.
func (s *FileStore) Set(ctx context.Context, values map[Slot]string) error {
	if err := checkValues(values); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.load()
	if err != nil {
		return err
	}
	for k, v := range values {
		slots[k] = v
	}
	return s.save(slots)
}

// Delete removes the named slots. The file is removed once no slot remains.
func (s *FileStore) Delete(ctx context.Context, slots ...Slot) error {
	if err := checkSlots(slots...); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.load()
	if err != nil && !errors.Is(err, ErrCorruptFile) {
		return err
	}
	for _, k := range slots {
		delete(cur, k)
	}
	if len(cur) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return storeErr("file", "remove", err)
		}
		return nil
	}
	return s.save(cur)
}

func (s *FileStore) load() (map[Slot]string, error) {
	out := make(map[Slot]string, 2)

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return out, storeErr("file", "read", err)
	}

	var doc fileDoc
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Version != fileFormatVersion {
		return out, ErrCorruptFile
	}

	if doc.Sealed != nil {
		if s.sealer == nil {
			return out, storeErr("file", "open", errors.New("file is sealed but no passphrase is configured"))
		}
		plain, err := s.sealer.Open(doc.Sealed)
		if err != nil {
			return out, storeErr("file", "open", err)
		}
		if err := json.Unmarshal(plain, &doc.Slots); err != nil {
			return out, ErrCorruptFile
		}
	}

	for k, v := range doc.Slots {
		if k.Valid() && v != "" {
			out[k] = v
		}
	}
	return out, nil
}

func (s *FileStore) save(slots map[Slot]string) error {
	doc := fileDoc{Version: fileFormatVersion}
	if s.sealer != nil {
		plain, err := json.Marshal(slots)
		if err != nil {
			return storeErr("file", "encode", err)
		}
		sealed, err := s.sealer.Seal(plain)
		if err != nil {
			return storeErr("file", "seal", err)
		}
		doc.Sealed = sealed
	} else {
		doc.Slots = slots
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return storeErr("file", "encode", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".glowguard-session-*")
	if err != nil {
		return storeErr("file", "write", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return storeErr("file", "write", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return storeErr("file", "write", err)
	}
	if err := tmp.Close(); err != nil {
		return storeErr("file", "write", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return storeErr("file", "rename", err)
	}
	return nil
}
