// Package cipher implements the password based encryption behind the
// `cipher` commands.
package cipher

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Supported algorithm names.
const (
	AlgPBEWithMD5AndDES = "PBEWithMD5AndDES"
	AlgPBKDF2AES256     = "PBKDF2WithHmacSHA256AndAES_256"
)

// DefaultIterations is the key obtention iteration count for both algorithms.
const DefaultIterations = 1000

// ErrDecrypt hides the cause of a failed decryption.
var ErrDecrypt = errors.New("unable to decrypt the input, check the password and the encrypted text")

// Cipher encrypts text to base64 and back.
type Cipher interface {
	Encrypt(plaintext, password string) (string, error)
	Decrypt(ciphertext, password string) (string, error)
}

// New returns the cipher registered under algorithm (case-insensitive).
func New(algorithm string) (Cipher, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", strings.ToLower(AlgPBEWithMD5AndDES):
		return &PBEWithMD5AndDES{}, nil
	case strings.ToLower(AlgPBKDF2AES256):
		return &PBKDF2AES{}, nil
	default:
		return nil, fmt.Errorf("unknown cipher algorithm %q, possible values are: %s, %s",
			algorithm, AlgPBEWithMD5AndDES, AlgPBKDF2AES256)
	}
}

func randomBytes(r io.Reader, n int) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return b, nil
}

func iterations(n int) int {
	if n <= 0 {
		return DefaultIterations
	}
	return n
}
