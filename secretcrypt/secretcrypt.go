// Package secretcrypt seals short values with a passphrase-derived secretbox key.
package secretcrypt

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	SaltLen = 8 // Length of salt in number of bytes.

	// These values are the recommended ones for 2009, except another power of 2 added to N for 32768 instead
	// of 16384. See:
	//
	//   https://godoc.org/golang.org/x/crypto/scrypt
	//   http://stackoverflow.com/questions/11126315/what-are-optimal-scrypt-work-factors
	_SCRYPT_N = 32768
	_SCRYPT_R = 8
	_SCRYPT_P = 1

	_KEY_LEN   = 32
	_NONCE_LEN = 24

	// Overhead is the number of bytes a sealed value grows by.
	Overhead = _NONCE_LEN + secretbox.Overhead
)

// Key is a derived secretbox key. Deriving is deliberately slow, so a Key is derived once and
// reused for every value; it is safe for concurrent use.
type Key struct {
	secret [_KEY_LEN]byte
}

func DeriveKey(passphrase string, salt []byte) (*Key, error) {
	if len(salt) != SaltLen {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltLen, len(salt))
	}
	derived, err := scrypt.Key([]byte(passphrase), salt, _SCRYPT_N, _SCRYPT_R, _SCRYPT_P, _KEY_LEN)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	k := &Key{}
	copy(k.secret[:], derived)
	return k, nil
}

// Seal encrypts plaintext under a fresh random nonce. The output is nonce followed by the box,
// so sealing the same plaintext twice gives unrelated outputs.
func (k *Key) Seal(plaintext []byte) ([]byte, error) {
	var nonce [_NONCE_LEN]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce generation failed: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &k.secret), nil
}

// SealConvergent encrypts plaintext under a nonce derived from the plaintext itself, so equal
// plaintexts give equal outputs. It leaks equality and exists to exercise detectors for that.
func (k *Key) SealConvergent(plaintext []byte) ([]byte, error) {
	mac, err := blake2b.New256(k.secret[:])
	if err != nil {
		return nil, err
	}
	mac.Write(plaintext)

	var nonce [_NONCE_LEN]byte
	copy(nonce[:], mac.Sum(nil))
	return secretbox.Seal(nonce[:], plaintext, &nonce, &k.secret), nil
}

// Open reverses Seal and SealConvergent.
func (k *Key) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < Overhead {
		return nil, errors.New("input likely truncated: shorter than nonce and authenticator")
	}

	var nonce [_NONCE_LEN]byte
	copy(nonce[:], sealed[:_NONCE_LEN])
	plaintext, ok := secretbox.Open([]byte{}, sealed[_NONCE_LEN:], &nonce, &k.secret)
	if !ok {
		return nil, errors.New("corrupt input, tampered-with data, or wrong key")
	}
	return plaintext, nil
}
