package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2SaltSize = 16
	aesKeySize     = 32
)

// PBKDF2AES derives an AES-256 key with PBKDF2-HMAC-SHA256 and seals with
// GCM. Output is base64 of salt || nonce || ciphertext.
type PBKDF2AES struct {
	Iterations int
	Rand       io.Reader
}

func (c *PBKDF2AES) aead(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, iterations(c.Iterations), aesKeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (c *PBKDF2AES) Encrypt(plaintext, password string) (string, error) {
	salt, err := randomBytes(c.Rand, pbkdf2SaltSize)
	if err != nil {
		return "", err
	}
	gcm, err := c.aead(password, salt)
	if err != nil {
		return "", err
	}
	nonce, err := randomBytes(c.Rand, gcm.NonceSize())
	if err != nil {
		return "", err
	}

	out := append(salt, nonce...)
	out = gcm.Seal(out, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *PBKDF2AES) Decrypt(ciphertext, password string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < pbkdf2SaltSize {
		return "", ErrDecrypt
	}
	salt := raw[:pbkdf2SaltSize]
	gcm, err := c.aead(password, salt)
	if err != nil {
		return "", err
	}

	rest := raw[pbkdf2SaltSize:]
	if len(rest) < gcm.NonceSize()+gcm.Overhead() {
		return "", ErrDecrypt
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
