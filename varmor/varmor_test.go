package varmor

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func preserve(t *testing.T, body []byte) {
	b, err := Decode(Wrap("vault", 1, body))
	require.NoError(t, err)
	assert.Equal(t, body, b)

	b, err = Decode(WrapBare(body))
	require.NoError(t, err)
	assert.Equal(t, body, b)
}

func TestPreservation(t *testing.T) {
	preserve(t, []byte("x"))
	preserve(t, []byte("xy"))
	preserve(t, []byte("xyz"))
	preserve(t, []byte("42.00"))
	preserve(t, []byte{0x00, 0xFF, 0x10, 0x80})
}

func TestVaultCiphertext(t *testing.T) {
	env, err := Parse("vault:v1:8SDd3WHDOjf7mq69CyCqYjBXAiQQAVZRkFM13ok481zoCmHnSeDX9vyf7w==")
	require.NoError(t, err)
	assert.True(t, env.Prefixed)
	assert.Equal(t, "vault", env.Scheme)
	assert.Equal(t, 1, env.Version)
	assert.NotEmpty(t, env.Payload)
}

func TestBareVersionNumber(t *testing.T) {
	env, err := Parse("kms:7:aGVsbG8")
	require.NoError(t, err)
	assert.Equal(t, 7, env.Version)
	assert.Equal(t, []byte("hello"), env.Payload)
}

func TestPaddingRestored(t *testing.T) {
	b, err := Decode("aGVsbG8")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)

	b, err = Decode("aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)
}

func TestMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":             "",
		"empty payload":     "vault:v1:",
		"two segments":      "vault:aGVsbG8",
		"bad version":       "vault:vx:aGVsbG8",
		"negative version":  "vault:v-1:aGVsbG8",
		"signed version":    "vault:+1:aGVsbG8",
		"signed v version":  "vault:v+1:aGVsbG8",
		"bad alphabet":      "vault:v1:aGV*bG8",
		"url alphabet":      "aGV_bG8-",
		"dangling char":     "aGVsb",
		"over padded":       "aGVsbG8===",
		"embedded newline":  "aGVs\nbG8=",
		"non-zero pad bits": "aGVsbG9=",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			b, err := Decode(input)
			assert.Nil(t, b)
			require.Error(t, err)

			var de *DecodeError
			assert.True(t, errors.As(err, &de), "error should be a *DecodeError")
			assert.Equal(t, input, de.Input)
		})
	}
}

func TestDecodeErrorTruncatesInput(t *testing.T) {
	long := "vault:v1:" + string(make([]byte, 100))
	_, err := Decode(long)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "...")
}

func TestWrapDecodeProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("tagged wrap then decode is identity", prop.ForAll(
		func(body []byte, version int) bool {
			if len(body) == 0 {
				return true
			}
			got, err := Decode(Wrap("vault", version, body))
			return err == nil && string(got) == string(body)
		},
		gen.SliceOf(gen.UInt8()),
		gen.IntRange(0, 1000),
	))

	properties.Property("bare wrap then decode is identity", prop.ForAll(
		func(body []byte) bool {
			if len(body) == 0 {
				return true
			}
			got, err := Decode(WrapBare(body))
			return err == nil && string(got) == string(body)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}
