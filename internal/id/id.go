// Package id generates short random suffixes used to keep photo identities unique.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// suffixAlphabet avoids characters that are awkward in file names or URLs.
const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// suffixLength keeps derived names readable while leaving 36^8 combinations.
const suffixLength = 8

// Suffix returns a lowercase alphanumeric NanoID of suffixLength characters.
func Suffix() (string, error) {
	s, err := gonanoid.Generate(suffixAlphabet, suffixLength)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return s, nil
}

// Derive appends a random suffix to base, e.g. "doggo" -> "doggo-k3v9x0qa".
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Derive(base string) (string, error) {
	s, err := Suffix()
	if err != nil {
		return "", err
	}
	return base + "-" + s, nil
}
