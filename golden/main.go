package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/scode/transitprobe/varmor"
)

const _VECTORS_PATH = "testdata/codec-vectors.json"

func main() {
	rootCmd := &cli.Command{
		Name:        "golden",
		Version:     "unknown (master)",
		Usage:       "a tool to pin down how ciphertext wire strings decode",
		HideVersion: true,
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Generate codec test vectors",
				Action: func(_ context.Context, _ *cli.Command) error {
					return generateFile(_VECTORS_PATH)
				},
			},
			{
				Name:  "validate",
				Usage: "Validate codec test vectors",
				Action: func(_ context.Context, _ *cli.Command) error {
					return validateFile(_VECTORS_PATH, os.Stdout)
				},
			},
		},
		Action: func(_ context.Context, _ *cli.Command) error {
			return errors.New("command is required; use help to see list of commands")
		},
	}

	err := rootCmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// codecVector pins the decoding of one wire string. Payload is the standard padded base64 of
// the decoded bytes; invalid vectors carry neither payload nor scheme.
type codecVector struct {
	Wire    string `json:"wire"`
	Payload string `json:"payload,omitempty"`
	Scheme  string `json:"scheme,omitempty"`
	Version int    `json:"version"`
	Valid   bool   `json:"valid"`
	Comment string `json:"comment"`
}

func pattern(n int, f func(i int) byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = f(i)
	}
	return b
}

func buildVectors() []codecVector {
	vectors := []codecVector{}

	addWrapped := func(scheme string, version int, payload []byte, comment string) {
		vectors = append(vectors, codecVector{
			Wire:    varmor.Wrap(scheme, version, payload),
			Payload: base64.StdEncoding.EncodeToString(payload),
			Scheme:  scheme,
			Version: version,
			Valid:   true,
			Comment: comment,
		})
	}
	addLiteral := func(wire string, scheme string, version int, payload []byte, comment string) {
		vectors = append(vectors, codecVector{
			Wire:    wire,
			Payload: base64.StdEncoding.EncodeToString(payload),
			Scheme:  scheme,
			Version: version,
			Valid:   true,
			Comment: comment,
		})
	}
	addInvalid := func(wire string, comment string) {
		vectors = append(vectors, codecVector{Wire: wire, Comment: comment})
	}

	addWrapped("vault", 1, []byte("x"), "single byte payload")
	addWrapped("vault", 1, pattern(256, func(i int) byte { return byte(i) }), "all byte values 0-255")
	addWrapped("vault", 2, bytes.Repeat([]byte{0xAB}, 40), "key version 2")
	addWrapped("vault", 12, []byte("hello world"), "multi-digit key version")
	addWrapped("vault", 1, pattern(29, func(i int) byte { return byte(i * 3) }), "payload missing one padding character")
	addWrapped("vault", 1, pattern(28, func(i int) byte { return byte(255 - i) }), "payload missing two padding characters")
	addWrapped("kms", 3, []byte("abc"), "other scheme")

	vectors = append(vectors, codecVector{
		Wire:    varmor.WrapBare(pattern(32, func(i int) byte { return byte(i * 7) })),
		Payload: base64.StdEncoding.EncodeToString(pattern(32, func(i int) byte { return byte(i * 7) })),
		Valid:   true,
		Comment: "bare payload",
	})

	addLiteral("vault:v1:aGVsbG8=", "vault", 1, []byte("hello"), "explicit padding")
	addLiteral("vault:1:aGVsbG8", "vault", 1, []byte("hello"), "version without marker")
	addLiteral("vault:v0:aGk", "vault", 0, []byte("hi"), "version zero")
	addLiteral("aGk=", "", 0, []byte("hi"), "bare padded payload")

	addInvalid("", "empty input")
	addInvalid("vault:v1:", "empty payload")
	addInvalid("vault:aGVsbG8", "missing version segment")
	addInvalid("vault:vx:aGVsbG8", "non-numeric version")
	addInvalid("vault:v-1:aGVsbG8", "negative version")
	addInvalid("vault:v1:aGVs*G8", "character outside the alphabet")
	addInvalid("vault:v1:a-_b", "URL-safe alphabet")
	addInvalid("vault:v1:aGVsb", "dangling character")
	addInvalid("vault:v1:aGVsbG8==", "too much padding")
	addInvalid("vault:v1:aGVs\nbG8", "embedded newline")
	addInvalid("vault:v1:aGVsbG9", "non-zero padding bits")

	// Sorted so regenerating produces reviewable diffs.
	sort.Slice(vectors, func(i, j int) bool {
		return vectors[i].Wire < vectors[j].Wire
	})
	return vectors
}

func writeVectors(w io.Writer, vectors []codecVector) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(vectors)
}

func generateFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return writeVectors(f, buildVectors())
}

// checkVector returns nil when the codec decodes v.Wire the way v says it should.
func checkVector(v codecVector) error {
	env, err := varmor.Parse(v.Wire)
	if !v.Valid {
		if err == nil {
			return errors.New("decoded, but should have been rejected")
		}
		var de *varmor.DecodeError
		if !errors.As(err, &de) {
			return fmt.Errorf("rejected with %T, want *varmor.DecodeError", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}

	want, err := base64.StdEncoding.DecodeString(v.Payload)
	if err != nil {
		return fmt.Errorf("failed to decode expected payload: %w", err)
	}
	if !bytes.Equal(env.Payload, want) {
		return fmt.Errorf("payload mismatch (expected %d bytes, got %d bytes)", len(want), len(env.Payload))
	}
	if env.Scheme != v.Scheme || env.Version != v.Version {
		return fmt.Errorf("envelope mismatch (expected %s:v%d, got %s:v%d)", v.Scheme, v.Version, env.Scheme, env.Version)
	}
	return nil
}

func validateFile(path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read codec vectors: %w", err)
	}

	var vectors []codecVector
	if err := json.Unmarshal(data, &vectors); err != nil {
		return fmt.Errorf("failed to parse codec vectors: %w", err)
	}

	fmt.Fprintf(out, "Validating %d codec vectors...\n", len(vectors))

	failCount := 0
	for i, v := range vectors {
		if err := checkVector(v); err != nil {
			fmt.Fprintf(out, "FAIL [%d] %s: %v\n", i, v.Comment, err)
			failCount++
			continue
		}
		fmt.Fprintf(out, "PASS [%d] %s\n", i, v.Comment)
	}

	if failCount > 0 {
		return fmt.Errorf("%d of %d vectors failed", failCount, len(vectors))
	}

	fmt.Fprintf(out, "\nAll %d vectors passed!\n", len(vectors))
	return nil
}
