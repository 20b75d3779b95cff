package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/yndnr/authctl/internal/core/domain"
)

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	f, err := NewFile(FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	defer f.Close()

	runStoreConformance(t, f)
}

func TestFile_Sealed(t *testing.T) {
	for _, c := range []CipherType{CipherAESGCM, CipherChaCha20} {
		t.Run(string(c), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "credentials.json")
			f, err := NewFile(FileConfig{Path: path, Passphrase: "correct horse", Cipher: c})
			if err != nil {
				t.Fatalf("NewFile() error = %v", err)
			}
			defer f.Close()

			runStoreConformance(t, f)
		})
	}
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	ctx := context.Background()

	f1, err := NewFile(FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	if err := f1.Set(ctx, "access_token", "A"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	f2, err := NewFile(FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFile() second instance error = %v", err)
	}
	got, err := f2.Get(ctx, "access_token")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "A" {
		t.Errorf("Get() = %q, want %q", got, "A")
	}
}

func TestFile_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := filepath.Join(t.TempDir(), "authctl")
	path := filepath.Join(dir, "credentials.json")

	f, err := NewFile(FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	if err := f.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
	dirInfo, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat(dir) error = %v", err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0700 {
		t.Errorf("dir mode = %o, want 700", perm)
	}
}

func TestFile_SealedContentIsOpaque(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	f, err := NewFile(FileConfig{Path: path, Passphrase: "s3cret-pass"})
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	if err := f.Set(context.Background(), "access_token", "plain-token-value"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(raw), "plain-token-value") {
		t.Error("sealed file contains the plaintext token")
	}

	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Sealed == nil || len(doc.Sealed.Salt) != saltLength {
		t.Errorf("sealed payload = %+v, want salt of %d bytes", doc.Sealed, saltLength)
	}
}

func TestFile_WrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	f, err := NewFile(FileConfig{Path: path, Passphrase: "right-pass"})
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	if err := f.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	_, err = NewFile(FileConfig{Path: path, Passphrase: "wrong-pass"})
	if !errors.Is(err, domain.ErrStoreSealed) {
		t.Errorf("NewFile(wrong passphrase) error = %v, want ErrStoreSealed", err)
	}

	_, err = NewFile(FileConfig{Path: path})
	if !errors.Is(err, domain.ErrStoreSealed) {
		t.Errorf("NewFile(no passphrase) error = %v, want ErrStoreSealed", err)
	}
}

func TestFile_PlainFileGetsSealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	ctx := context.Background()

	plain, _ := NewFile(FileConfig{Path: path})
	if err := plain.Set(ctx, "access_token", "A"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	sealed, err := NewFile(FileConfig{Path: path, Passphrase: "passphrase"})
	if err != nil {
		t.Fatalf("NewFile(passphrase) on plain file error = %v", err)
	}
	if got, _ := sealed.Get(ctx, "access_token"); got != "A" {
		t.Errorf("Get() = %q, want A", got)
	}
	if err := sealed.Set(ctx, "refresh_token", "R"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if _, err := NewFile(FileConfig{Path: path}); !errors.Is(err, domain.ErrStoreSealed) {
		t.Errorf("file should now be sealed, got %v", err)
	}
}

func TestFile_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFile(FileConfig{Path: path}); err == nil {
		t.Error("NewFile() on corrupt file should fail")
	}
}

func TestFile_EmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}
	f, err := NewFile(FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFile() on empty file error = %v", err)
	}
	if _, err := f.Get(context.Background(), "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestSealer_Tamper(t *testing.T) {
	s, err := newSealer("passphrase", CipherAESGCM, nil)
	if err != nil {
		t.Fatalf("newSealer() error = %v", err)
	}
	ct, err := s.seal([]byte("hello"))
	if err != nil {
		t.Fatalf("seal() error = %v", err)
	}

	ct[len(ct)-1] ^= 0xff
	if _, err := s.open(ct); err == nil {
		t.Error("open() of tampered ciphertext should fail")
	}
	if _, err := s.open([]byte("short")); err == nil {
		t.Error("open() of short ciphertext should fail")
	}
}

func TestSealer_UnknownCipher(t *testing.T) {
	if _, err := newSealer("passphrase", "rot13", nil); err == nil {
		t.Error("newSealer(unknown) should fail")
	}
}
