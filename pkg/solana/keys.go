package solana

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

const (
	PublicKeySize = 32
	SignatureSize = 64
)

// PublicKey is a 32-byte account address.
type PublicKey [PublicKeySize]byte

// SystemProgramID is the all-zero address of the system program.
var SystemProgramID PublicKey

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	b, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return pk, fmt.Errorf("invalid base58 address: %w", err)
	}
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("invalid address length %d", len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// IsOnCurve reports whether pk is a valid ed25519 point. Program derived
// addresses are off the curve and cannot sign.
func (pk PublicKey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}

// IsMintAddress performs the cheap syntactic check applied to user-entered
// token addresses.
func IsMintAddress(s string) bool {
	_, err := ParsePublicKey(s)
	return err == nil
}

// Keypair is an ed25519 signing key.
type Keypair struct {
	key ed25519.PrivateKey
}

// NewKeypair generates a random keypair.
func NewKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{key: priv}, nil
}

// KeypairFromSecret decodes a secret key as exported by common wallets:
// base58 of the 64-byte secret (seed followed by public key), or a JSON
// byte array of the same. A bare 32-byte seed is also accepted.
func KeypairFromSecret(secret string) (*Keypair, error) {
	secret = strings.TrimSpace(secret)
	var raw []byte
	if strings.HasPrefix(secret, "[") {
		var ints []byte
		if err := json.Unmarshal([]byte(secret), &ints); err != nil {
			return nil, fmt.Errorf("invalid secret key array: %w", err)
		}
		raw = ints
	} else {
		b, err := base58.Decode(secret)
		if err != nil {
			return nil, fmt.Errorf("invalid base58 secret key: %w", err)
		}
		raw = b
	}

	switch len(raw) {
	case ed25519.SeedSize:
		return &Keypair{key: ed25519.NewKeyFromSeed(raw)}, nil
	case ed25519.PrivateKeySize:
		priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !priv.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(raw[ed25519.SeedSize:])) {
			return nil, fmt.Errorf("secret key does not match its public key")
		}
		return &Keypair{key: priv}, nil
	default:
		return nil, fmt.Errorf("invalid secret key length %d", len(raw))
	}
}

// PublicKey returns the address of the keypair.
func (k *Keypair) PublicKey() PublicKey {
	var pk PublicKey
	copy(pk[:], k.key[ed25519.SeedSize:])
	return pk
}

// Secret returns the base58 encoding of the 64-byte secret key.
func (k *Keypair) Secret() string {
	return base58.Encode(k.key)
}

// Sign signs message.
func (k *Keypair) Sign(message []byte) [SignatureSize]byte {
	var sig [SignatureSize]byte
	copy(sig[:], ed25519.Sign(k.key, message))
	return sig
}

// Bytes returns a copy of the key bytes.
func (pk PublicKey) Bytes() []byte {
	return append([]byte(nil), pk[:]...)
}
