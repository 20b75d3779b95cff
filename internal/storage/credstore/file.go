package credstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/yndnr/authctl/internal/core/domain"
)

const fileFormatVersion = 1

// FileConfig configures the file backend.
type FileConfig struct {
	Path       string
	Passphrase string
	Cipher     CipherType
}

// fileDocument is the on-disk layout. Exactly one of Entries or Sealed is set.
type fileDocument struct {
	Version int               `json:"version"`
	Entries map[string]string `json:"entries,omitempty"`
	Sealed  *sealedPayload    `json:"sealed,omitempty"`
}

type sealedPayload struct {
	Cipher CipherType `json:"cipher"`
	Salt   []byte     `json:"salt"`
	Data   []byte     `json:"data"`
}

// File is a Store backed by a single JSON document.
//
// Every operation re-reads the document so several processes sharing the
// file observe each other's writes. Writes go to a temp file which is then
// renamed over the original.
type File struct {
	mu     sync.Mutex
	cfg    FileConfig
	sealer *sealer
	closed bool
}

// NewFile opens (or prepares to create) the credentials file. An existing
// file is read once so a wrong passphrase fails here rather than later.
func NewFile(cfg FileConfig) (*File, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("credstore: file path is required")
	}
	f := &File{cfg: cfg}
	if _, err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the credentials file path.
func (f *File) Path() string {
	return f.cfg.Path
}

// Sealed reports whether the file is encrypted at rest.
func (f *File) Sealed() bool {
	return f.cfg.Passphrase != ""
}

// Get implements Store.
func (f *File) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return "", ErrClosed
	}
	entries, err := f.load()
	if err != nil {
		return "", err
	}
	v, ok := entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set implements Store.
func (f *File) Set(_ context.Context, key, value string) error {
	return f.update(func(entries map[string]string) bool {
		if cur, ok := entries[key]; ok && cur == value {
			return false
		}
		entries[key] = value
		return true
	})
}

// Delete implements Store.
func (f *File) Delete(_ context.Context, key string) error {
	return f.update(func(entries map[string]string) bool {
		if _, ok := entries[key]; !ok {
			return false
		}
		delete(entries, key)
		return true
	})
}

// SetPair implements PairStore with a single file write.
func (f *File) SetPair(_ context.Context, k1, v1, k2, v2 string) error {
	return f.update(func(entries map[string]string) bool {
		cur1, ok1 := entries[k1]
		cur2, ok2 := entries[k2]
		if ok1 && ok2 && cur1 == v1 && cur2 == v2 {
			return false
		}
		entries[k1] = v1
		entries[k2] = v2
		return true
	})
}

// DeletePair implements PairStore with a single file write.
func (f *File) DeletePair(_ context.Context, k1, k2 string) error {
	return f.update(func(entries map[string]string) bool {
		_, ok1 := entries[k1]
		_, ok2 := entries[k2]
		delete(entries, k1)
		delete(entries, k2)
		return ok1 || ok2
	})
}

// Close implements Store.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *File) update(mutate func(map[string]string) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	entries, err := f.load()
	if err != nil {
		return err
	}
	if !mutate(entries) {
		return nil
	}
	return f.write(entries)
}

// load reads the document. A missing file is an empty store.
func (f *File) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.cfg.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("credstore: read %s: %w", f.cfg.Path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return make(map[string]string), nil
	}

	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("credstore: decode %s: %w", f.cfg.Path, err)
	}
	if doc.Version > fileFormatVersion {
		return nil, fmt.Errorf("credstore: %s has unsupported format version %d", f.cfg.Path, doc.Version)
	}

	// A plain file read with a passphrase configured is sealed on the next write.
	if doc.Sealed == nil {
		if doc.Entries == nil {
			doc.Entries = make(map[string]string)
		}
		return doc.Entries, nil
	}

	if f.cfg.Passphrase == "" {
		return nil, domain.ErrStoreSealed.WithDetails("file is sealed but no passphrase is configured")
	}
	s, err := f.sealerFor(doc.Sealed)
	if err != nil {
		return nil, err
	}
	plain, err := s.open(doc.Sealed.Data)
	if err != nil {
		return nil, domain.ErrStoreSealed.WithCause(err)
	}

	entries := make(map[string]string)
	if err := json.Unmarshal(plain, &entries); err != nil {
		return nil, domain.ErrStoreSealed.WithCause(fmt.Errorf("decode sealed entries: %w", err))
	}
	return entries, nil
}

// sealerFor returns a sealer matching the salt and cipher of p, reusing the
// cached one when possible since key derivation is deliberately slow.
func (f *File) sealerFor(p *sealedPayload) (*sealer, error) {
	if f.sealer != nil && f.sealer.typ == p.Cipher && bytes.Equal(f.sealer.salt, p.Salt) {
		return f.sealer, nil
	}
	s, err := newSealer(f.cfg.Passphrase, p.Cipher, p.Salt)
	if err != nil {
		return nil, err
	}
	f.sealer = s
	return s, nil
}

func (f *File) write(entries map[string]string) error {
	doc := fileDocument{Version: fileFormatVersion}

	if f.cfg.Passphrase == "" {
		doc.Entries = entries
	} else {
		if f.sealer == nil || (f.cfg.Cipher != "" && f.sealer.typ != f.cfg.Cipher) {
			s, err := newSealer(f.cfg.Passphrase, f.cfg.Cipher, nil)
			if err != nil {
				return err
			}
			f.sealer = s
		}
		plain, err := json.Marshal(entries)
		if err != nil {
			return err
		}
		data, err := f.sealer.seal(plain)
		clear(plain)
		if err != nil {
			return fmt.Errorf("credstore: seal: %w", err)
		}
		doc.Sealed = &sealedPayload{Cipher: f.sealer.typ, Salt: f.sealer.salt, Data: data}
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(f.cfg.Path, raw)
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("credstore: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("credstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("credstore: chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("credstore: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("credstore: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credstore: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("credstore: rename: %w", err)
	}
	return nil
}
