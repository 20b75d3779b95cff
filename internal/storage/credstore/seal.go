package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// CipherType identifies the AEAD used to seal the file store.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// Argon2id parameters for deriving the sealing key from a passphrase.
const (
	saltLength    = 16
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
)

// sealAAD binds ciphertexts to this file format.
var sealAAD = []byte("authctl-credstore-v1")

var errOpenFailed = errors.New("wrong passphrase or corrupted data")

// sealer performs authenticated encryption with a nonce prepended to the
// ciphertext.
type sealer struct {
	typ  CipherType
	aead cipher.AEAD
	salt []byte
}

// defaultCipher prefers AES-GCM where the platform accelerates it.
func defaultCipher() CipherType {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return CipherAESGCM
	default:
		return CipherChaCha20
	}
}

// deriveKey stretches passphrase with argon2id.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// newSealer derives a key from passphrase and salt. A nil salt generates a
// fresh one.
func newSealer(passphrase string, typ CipherType, salt []byte) (*sealer, error) {
	if typ == "" {
		typ = defaultCipher()
	}
	if salt == nil {
		salt = make([]byte, saltLength)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
	}

	key := deriveKey(passphrase, salt)
	defer clear(key)

	var (
		aead cipher.AEAD
		err  error
	)
	switch typ {
	case CipherAESGCM:
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case CipherChaCha20:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("unknown cipher type: %s", typ)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s: %w", typ, err)
	}

	return &sealer{typ: typ, aead: aead, salt: salt}, nil
}

func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, sealAAD), nil
}

func (s *sealer) open(ciphertext []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(ciphertext) < n+s.aead.Overhead() {
		return nil, errOpenFailed
	}
	out, err := s.aead.Open(nil, ciphertext[:n], ciphertext[n:], sealAAD)
	if err != nil {
		return nil, errOpenFailed
	}
	return out, nil
}
