// Package credential protects signing secrets at rest and gates their use
// behind a time-bounded secure session.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/flashsol/pkg/domain"
)

// KeySize is the AES-256 key length.
const KeySize = 32

var errDecrypt = errors.New("decryption failed with all available keys")

// Vault seals secrets with AES-256-GCM. New data is sealed with the active
// key; fallback keys are tried on open so keys can be rotated without
// re-encrypting stored records first.
type Vault struct {
	active    []byte
	fallbacks [][]byte
}

// NewVault creates a vault. Every key must be KeySize bytes.
func NewVault(active []byte, fallbacks ...[]byte) (*Vault, error) {
	if len(active) != KeySize {
		return nil, fmt.Errorf("active key must be %d bytes (AES-256), got %d", KeySize, len(active))
	}
	for i, k := range fallbacks {
		if len(k) != KeySize {
			return nil, fmt.Errorf("fallback key %d must be %d bytes", i, KeySize)
		}
	}
	return &Vault{active: active, fallbacks: fallbacks}, nil
}

// ParseKey decodes a hex-encoded 32-byte key.
func ParseKey(s string) ([]byte, error) {
	k, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("key is not hex: %w", err)
	}
	if len(k) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(k))
	}
	return k, nil
}

// Seal encrypts plaintext with a fresh IV.
func (v *Vault) Seal(plaintext []byte) (domain.SealedSecret, error) {
	gcm, err := newGCM(v.active)
	if err != nil {
		return domain.SealedSecret{}, err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return domain.SealedSecret{}, err
	}
	return domain.SealedSecret{
		Ciphertext: gcm.Seal(nil, iv, plaintext, nil),
		IV:         iv,
	}, nil
}

// Open decrypts s with the active key, then each fallback key.
func (v *Vault) Open(s domain.SealedSecret) ([]byte, error) {
	for _, key := range v.keys() {
		if plain, err := open(key, s.IV, s.Ciphertext); err == nil {
			return plain, nil
		}
	}
	return nil, errDecrypt
}

// SealBlob encrypts plaintext into a single nonce-prefixed blob.
func (v *Vault) SealBlob(plaintext []byte) ([]byte, error) {
	s, err := v.Seal(plaintext)
	if err != nil {
		return nil, err
	}
	return append(s.IV, s.Ciphertext...), nil
}

// OpenBlob reverses SealBlob.
func (v *Vault) OpenBlob(blob []byte) ([]byte, error) {
	const nonceSize = 12
	if len(blob) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	return v.Open(domain.SealedSecret{IV: blob[:nonceSize], Ciphertext: blob[nonceSize:]})
}

func (v *Vault) keys() [][]byte {
	return append([][]byte{v.active}, v.fallbacks...)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func open(key, iv, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != gcm.NonceSize() {
		return nil, errors.New("invalid iv length")
	}
	return gcm.Open(nil, iv, ciphertext, nil)
}
