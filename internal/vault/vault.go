// Package vault seals secrets at rest with a key derived from a
// passphrase (argon2id) and NaCl secretbox.
package vault

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	saltLen  = 16
	nonceLen = 24
	keyLen   = 32

	// version prefixes every sealed blob so the format can change.
	version byte = 1
)

// Argon2id parameters.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var (
	// ErrSealed means the blob could not be opened: wrong passphrase or
	// tampered data.
	ErrSealed = errors.New("vault: cannot open sealed data")
	// ErrFormat means the blob is not something Seal produced.
	ErrFormat = errors.New("vault: unrecognized sealed format")
)

// Vault seals and opens secrets. An empty passphrase is allowed and
// still protects against casual reads of the database file.
type Vault struct {
	passphrase []byte
	rand       io.Reader
}

// New returns a Vault keyed by passphrase.
func New(passphrase string) *Vault {
	return &Vault{passphrase: []byte(passphrase), rand: rand.Reader}
}

func (v *Vault) key(salt []byte) *[keyLen]byte {
	var k [keyLen]byte
	copy(k[:], argon2.IDKey(v.passphrase, salt, argonTime, argonMemory, argonThreads, keyLen))
	return &k
}

// Seal encrypts plaintext. The layout is version | salt | nonce | box.
func (v *Vault) Seal(plaintext []byte) ([]byte, error) {
	var salt [saltLen]byte
	var nonce [nonceLen]byte
	if _, err := io.ReadFull(v.rand, salt[:]); err != nil {
		return nil, fmt.Errorf("vault: salt: %w", err)
	}
	if _, err := io.ReadFull(v.rand, nonce[:]); err != nil {
		return nil, fmt.Errorf("vault: nonce: %w", err)
	}
	out := make([]byte, 0, 1+saltLen+nonceLen+len(plaintext)+secretbox.Overhead)
	out = append(out, version)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plaintext, &nonce, v.key(salt[:])), nil
}

// Open decrypts a blob produced by Seal.
func (v *Vault) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < 1+saltLen+nonceLen+secretbox.Overhead || sealed[0] != version {
		return nil, ErrFormat
	}
	salt := sealed[1 : 1+saltLen]
	var nonce [nonceLen]byte
	copy(nonce[:], sealed[1+saltLen:1+saltLen+nonceLen])
	plain, ok := secretbox.Open(nil, sealed[1+saltLen+nonceLen:], &nonce, v.key(salt))
	if !ok {
		return nil, ErrSealed
	}
	return plain, nil
}
