package model

import (
	"fmt"
	"io"
	"strings"
)

// ShareCodeAlphabet leaves out 0/O and 1/I so codes survive being read aloud.
const ShareCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const ShareCodeLength = 6

// GenerateShareCode draws ShareCodeLength symbols from random. The alphabet
// has 32 symbols, so each byte maps uniformly via its low five bits.
func GenerateShareCode(random io.Reader) (string, error) {
	buf := make([]byte, ShareCodeLength)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	var sb strings.Builder
	sb.Grow(ShareCodeLength)
	for _, b := range buf {
		sb.WriteByte(ShareCodeAlphabet[int(b)%len(ShareCodeAlphabet)])
	}
	return sb.String(), nil
}

// IsShareCode reports whether s is shaped like a generated code, ignoring case.
func IsShareCode(s string) bool {
	if len(s) != ShareCodeLength {
		return false
	}
	for _, r := range strings.ToUpper(s) {
		if !strings.ContainsRune(ShareCodeAlphabet, r) {
			return false
		}
	}
	return true
}
