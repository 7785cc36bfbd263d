package secretcrypt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, passphrase string) *Key {
	k, err := DeriveKey(passphrase, []byte("testsalt"))
	require.NoError(t, err)
	return k
}

func TestSealOpenDoesNotCorrupt(t *testing.T) {
	k := testKey(t, "testphrase")
	r := rand.New(rand.NewSource(0))

	for _, n := range []int{0, 5, 64000} {
		b := make([]byte, n)
		_, err := r.Read(b)
		require.NoError(t, err)

		sealed, err := k.Seal(b)
		require.NoError(t, err)
		assert.Len(t, sealed, n+Overhead)

		plain, err := k.Open(sealed)
		require.NoError(t, err)
		assert.EqualValues(t, b, plain)
	}
}

func TestSealIsRandomized(t *testing.T) {
	k := testKey(t, "testphrase")

	a, err := k.Seal([]byte("42.00"))
	require.NoError(t, err)
	b, err := k.Seal([]byte("42.00"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealConvergentRepeats(t *testing.T) {
	k := testKey(t, "testphrase")

	a, err := k.SealConvergent([]byte("42.00"))
	require.NoError(t, err)
	b, err := k.SealConvergent([]byte("42.00"))
	require.NoError(t, err)
	c, err := k.SealConvergent([]byte("42.01"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	plain, err := k.Open(a)
	require.NoError(t, err)
	assert.Equal(t, []byte("42.00"), plain)
}

func TestOpenRejects(t *testing.T) {
	k := testKey(t, "testphrase")
	sealed, err := k.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = testKey(t, "wrong").Open(sealed)
	assert.Error(t, err)

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0x01
	_, err = k.Open(tampered)
	assert.Error(t, err)

	_, err = k.Open(sealed[:Overhead-1])
	assert.Error(t, err)
}

func TestDeriveKeyRejectsBadSalt(t *testing.T) {
	_, err := DeriveKey("x", []byte("short"))
	assert.Error(t, err)
}

func TestOpenEmptyPlaintextIsNotNil(t *testing.T) {
	k := testKey(t, "testphrase")

	sealed, err := k.Seal(nil)
	require.NoError(t, err)

	plain, err := k.Open(sealed)
	require.NoError(t, err)
	assert.NotNil(t, plain)
	assert.Empty(t, plain)
}
