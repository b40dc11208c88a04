// Package querylabel maps query positions to short alphabetic symbols
// ("a", "b", ..., "z", "aa", ...) the way spreadsheet columns are named.
package querylabel

import (
	"errors"
	"fmt"
	"math"
)

const alphabetSize = 26

var (
	// ErrInvalidIndex is returned for indices below zero.
	ErrInvalidIndex = errors.New("invalid argument: label index must be >= 0")
	// ErrInvalidLabel is returned when a label is empty or has characters outside a-z.
	ErrInvalidLabel = errors.New("invalid argument: label must match [a-z]+")
)

// Label converts a 0-based index to its bijective base-26 label (0→a, 25→z, 26→aa).
func Label(index int) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidIndex, index)
	}

	// 14 letters cover every non-negative int64.
	var buf [16]byte
	pos := len(buf)
	for i := index; i >= 0; i = i/alphabetSize - 1 {
		pos--
		buf[pos] = byte('a' + i%alphabetSize)
	}
	return string(buf[pos:]), nil
}

// MustLabel is like Label but panics on a negative index.
func MustLabel(index int) string {
	label, err := Label(index)
	if err != nil {
		panic(err)
	}
	return label
}

// Index is the inverse of Label.
func Index(label string) (int, error) {
	if label == "" {
		return 0, ErrInvalidLabel
	}
	n := 0
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c < 'a' || c > 'z' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
		}
		if n > (math.MaxInt-alphabetSize)/alphabetSize {
			return 0, fmt.Errorf("%w: %q overflows int", ErrInvalidLabel, label)
		}
		n = n*alphabetSize + int(c-'a') + 1
	}
	return n - 1, nil
}

// Labels returns the first n labels in order.
func Labels(n int) []string {
	if n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, MustLabel(i))
	}
	return out
}
