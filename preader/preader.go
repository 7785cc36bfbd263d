// Package preader obtains the passphrase the stand-in transit engine derives its keys from.
package preader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoPassphrase is returned when a source has nothing to offer.
var ErrNoPassphrase = errors.New("no passphrase available")

type PassphraseReader interface {
	ReadPassphrase() (string, error)
}

func NewTerminal() PassphraseReader {
	return &terminalPassphraseReader{}
}

// NewReader reads the whole of reader, dropping one trailing line ending.
func NewReader(reader io.Reader) PassphraseReader {
	return &readerPassphraseReader{reader: reader}
}

func NewConstant(passphrase string) PassphraseReader {
	return &constantPassphraseReader{passphrase: passphrase}
}

// NewEnv reads the named environment variable. Unset or empty yields ErrNoPassphrase.
func NewEnv(name string) PassphraseReader {
	return &envPassphraseReader{name: name}
}

// NewFirst tries each reader in turn and returns the first passphrase obtained. Errors are
// only surfaced when every reader fails.
func NewFirst(readers ...PassphraseReader) PassphraseReader {
	return &firstPassphraseReader{readers: readers}
}

type constantPassphraseReader struct {
	passphrase string
}

func (r *constantPassphraseReader) ReadPassphrase() (string, error) {
	return r.passphrase, nil
}

type envPassphraseReader struct {
	name string
}

func (r *envPassphraseReader) ReadPassphrase() (string, error) {
	v := os.Getenv(r.name)
	if v == "" {
		return "", fmt.Errorf("%s is not set: %w", r.name, ErrNoPassphrase)
	}
	return v, nil
}

type terminalPassphraseReader struct{}

func (r *terminalPassphraseReader) ReadPassphrase() (string, error) {
	if !term.IsTerminal(0) {
		return "", fmt.Errorf("stdin is not a terminal: %w", ErrNoPassphrase)
	}

	_, err := fmt.Fprint(os.Stderr, "Transit passphrase: ")
	if err != nil {
		return "", err
	}
	phrase, err := term.ReadPassword(0)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failure reading passphrase: %w", err)
	}

	return string(phrase), nil
}

type readerPassphraseReader struct {
	reader io.Reader
}

func (r *readerPassphraseReader) ReadPassphrase() (string, error) {
	data, err := io.ReadAll(r.reader)
	if err != nil {
		return "", fmt.Errorf("error reading passphrase: %w", err)
	}

	s := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(s, "\r"), nil
}

type firstPassphraseReader struct {
	readers []PassphraseReader
}

func (r *firstPassphraseReader) ReadPassphrase() (string, error) {
	var errs []error
	for _, reader := range r.readers {
		phrase, err := reader.ReadPassphrase()
		if err == nil {
			return phrase, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", ErrNoPassphrase
	}
	return "", errors.Join(errs...)
}
