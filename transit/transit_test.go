package transit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scode/transitprobe/varmor"
)

func TestEncryptDecrypt(t *testing.T) {
	e, err := New("test")
	require.NoError(t, err)

	ct, err := e.Encrypt([]byte("42.00"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ct, "vault:v1:"))

	payload, err := varmor.Decode(ct)
	require.NoError(t, err)
	assert.NotEmpty(t, payload)

	plain, err := e.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("42.00"), plain)

	again, err := e.Encrypt([]byte("42.00"))
	require.NoError(t, err)
	assert.NotEqual(t, ct, again)
}

func TestRotateKeepsOldVersionsReadable(t *testing.T) {
	e, err := New("test")
	require.NoError(t, err)

	v1, err := e.Encrypt([]byte("1.00"))
	require.NoError(t, err)

	version, err := e.Rotate()
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.Equal(t, 2, e.LatestVersion())

	v2, err := e.Encrypt([]byte("2.00"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v2, "vault:v2:"))

	plain, err := e.Decrypt(v1)
	require.NoError(t, err)
	assert.Equal(t, []byte("1.00"), plain)

	plain, err = e.Decrypt(v2)
	require.NoError(t, err)
	assert.Equal(t, []byte("2.00"), plain)
}

func TestRestartedEngineOpensStoredEnvelopes(t *testing.T) {
	e, err := New("test")
	require.NoError(t, err)
	ct, err := e.Encrypt([]byte("9.99"))
	require.NoError(t, err)

	restarted, err := New("test")
	require.NoError(t, err)
	plain, err := restarted.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("9.99"), plain)
}

func TestConvergent(t *testing.T) {
	e, err := New("test", Convergent())
	require.NoError(t, err)

	a, err := e.Encrypt([]byte("42.00"))
	require.NoError(t, err)
	b, err := e.Encrypt([]byte("42.00"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecryptRejects(t *testing.T) {
	e, err := New("test")
	require.NoError(t, err)

	_, err = e.Decrypt("vault:v9:aGVsbG8")
	assert.EqualError(t, err, "unknown key version 9")

	_, err = e.Decrypt("aGVsbG8")
	assert.Error(t, err)

	_, err = e.Decrypt("kms:v1:aGVsbG8")
	assert.Error(t, err)

	_, err = e.Decrypt("vault:v1:***")
	var de *varmor.DecodeError
	assert.ErrorAs(t, err, &de)
}
