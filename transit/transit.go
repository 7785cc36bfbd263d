// Package transit is a small stand-in for a transit encryption engine: it keeps a versioned
// keyring and turns plaintext into "vault:v<N>:<payload>" envelopes and back.
package transit

import (
	"errors"
	"fmt"
	"sync"

	"github.com/scode/transitprobe/secretcrypt"
	"github.com/scode/transitprobe/varmor"
)

const Scheme = "vault"

// Engine encrypts with the latest key version and decrypts with whichever version an envelope
// names. Safe for concurrent use.
type Engine struct {
	passphrase string
	convergent bool

	mu   sync.RWMutex
	keys []*secretcrypt.Key // keys[i] is version i+1
}

// Option customizes an Engine.
type Option func(*Engine)

// Convergent makes equal plaintexts encrypt to equal ciphertexts under the same key version.
func Convergent() Option {
	return func(e *Engine) {
		e.convergent = true
	}
}

// New derives key version 1 from passphrase.
func New(passphrase string, opts ...Option) (*Engine, error) {
	e := &Engine{passphrase: passphrase}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := e.Rotate(); err != nil {
		return nil, err
	}
	return e, nil
}

// versionSalt is fixed per version so a restarted engine can still open stored envelopes.
func versionSalt(version int) []byte {
	return []byte(fmt.Sprintf("tp%06d", version))
}

// Rotate adds a key version and makes it the one used for new encryptions.
func (e *Engine) Rotate() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	version := len(e.keys) + 1
	k, err := secretcrypt.DeriveKey(e.passphrase, versionSalt(version))
	if err != nil {
		return 0, fmt.Errorf("derive key version %d: %w", version, err)
	}
	e.keys = append(e.keys, k)
	return version, nil
}

// LatestVersion is the key version new encryptions use.
func (e *Engine) LatestVersion() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.keys)
}

func (e *Engine) Encrypt(plaintext []byte) (string, error) {
	e.mu.RLock()
	version := len(e.keys)
	k := e.keys[version-1]
	e.mu.RUnlock()

	var (
		sealed []byte
		err    error
	)
	if e.convergent {
		sealed, err = k.SealConvergent(plaintext)
	} else {
		sealed, err = k.Seal(plaintext)
	}
	if err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}

	return varmor.Wrap(Scheme, version, sealed), nil
}

func (e *Engine) Decrypt(ciphertext string) ([]byte, error) {
	env, err := varmor.Parse(ciphertext)
	if err != nil {
		return nil, err
	}
	if !env.Prefixed || env.Scheme != Scheme {
		return nil, errors.New("ciphertext is not a vault envelope")
	}

	e.mu.RLock()
	if env.Version < 1 || env.Version > len(e.keys) {
		e.mu.RUnlock()
		return nil, fmt.Errorf("unknown key version %d", env.Version)
	}
	k := e.keys[env.Version-1]
	e.mu.RUnlock()

	plaintext, err := k.Open(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}
