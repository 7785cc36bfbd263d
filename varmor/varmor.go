// Package varmor decodes and produces versioned ciphertext envelopes.
//
// An envelope is either a bare standard-base64 payload or a payload carrying a scheme tag and a
// key version, separated by colons:
//
//	vault:v1:8SDd3WHDOjf7mq69CyCqYjBXAiQQAVZRkFM13ok481zoCmHnSeDX9vyf7w==
//
// Producers are allowed to strip base64 padding. Decoding restores it and then decodes strictly:
// no characters outside the alphabet are skipped and no trailing bits are silently dropped.
package varmor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	_DELIMITER      = ":"
	_VERSION_MARKER = "v"
)

var strictEncoding = base64.StdEncoding.Strict()

// Envelope is the logical decomposition of a wire-format ciphertext.
type Envelope struct {
	Scheme   string
	Version  int
	Payload  []byte
	Prefixed bool
}

// DecodeError reports a wire string that could not be turned into payload bytes.
type DecodeError struct {
	Input  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed ciphertext %q: %s: %v", truncate(e.Input), e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed ciphertext %q: %s", truncate(e.Input), e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Wrap renders body as a tagged envelope, e.g. Wrap("vault", 1, body) yields "vault:v1:<b64>".
// The payload is written without padding, the way some producers emit it.
func Wrap(scheme string, version int, body []byte) string {
	return fmt.Sprintf("%s%s%s%d%s%s", scheme, _DELIMITER, _VERSION_MARKER, version, _DELIMITER, WrapBare(body))
}

// WrapBare renders body as an untagged, unpadded payload.
func WrapBare(body []byte) string {
	return base64.RawStdEncoding.EncodeToString(body)
}

// Decode returns the raw payload bytes of a wire string.
func Decode(wire string) ([]byte, error) {
	env, err := Parse(wire)
	if err != nil {
		return nil, err
	}

	return env.Payload, nil
}

// Parse splits a wire string into its envelope parts and decodes the payload.
//
// Errors are always of type *DecodeError. Conditions include:
//
//   - empty input or empty payload segment
//   - a tagged envelope whose version segment is not an unsigned run of digits
//   - a payload that is not valid base64 once padding is restored
func Parse(wire string) (Envelope, error) {
	if wire == "" {
		return Envelope{}, &DecodeError{Input: wire, Reason: "empty input"}
	}

	env := Envelope{}
	encoded := wire

	if strings.Contains(wire, _DELIMITER) {
		parts := strings.SplitN(wire, _DELIMITER, 3)
		if len(parts) != 3 {
			return Envelope{}, &DecodeError{Input: wire, Reason: "tagged envelope needs scheme, version and payload"}
		}
		version, err := parseVersion(parts[1])
		if err != nil {
			return Envelope{}, &DecodeError{Input: wire, Reason: "bad version segment", Err: err}
		}
		env.Scheme = parts[0]
		env.Version = version
		env.Prefixed = true
		encoded = parts[2]
	}

	if encoded == "" {
		return Envelope{}, &DecodeError{Input: wire, Reason: "empty payload"}
	}

	payload, err := decodePadded(encoded)
	if err != nil {
		return Envelope{}, &DecodeError{Input: wire, Reason: "base64 decoding failed", Err: err}
	}
	env.Payload = payload

	return env, nil
}

func parseVersion(s string) (int, error) {
	digits := strings.TrimPrefix(s, _VERSION_MARKER)
	if digits == "" {
		return 0, errors.New("version is empty")
	}
	if strings.Trim(digits, "0123456789") != "" {
		return 0, fmt.Errorf("version %q is not a plain number", digits)
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0, err
	}

	return v, nil
}

func decodePadded(encoded string) ([]byte, error) {
	// encoding/base64 skips CR and LF even in strict mode.
	if strings.ContainsAny(encoded, "\r\n") {
		return nil, errors.New("line breaks inside payload")
	}
	if rem := len(encoded) % 4; rem != 0 {
		// A single dangling character can never be valid base64, padding won't save it.
		if rem == 1 {
			return nil, fmt.Errorf("impossible payload length %d", len(encoded))
		}
		encoded += strings.Repeat("=", 4-rem)
	}

	return strictEncoding.DecodeString(encoded)
}

func truncate(s string) string {
	const max = 48
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
