package cipher

import (
	"bytes"
	"crypto/cipher"
	"crypto/des"
	"crypto/md5"
	"encoding/base64"
	"io"
)

const pbeSaltSize = 8

// PBEWithMD5AndDES produces output interchangeable with jasypt's default
// string encryptor: random 8 byte salt, no IV generator and base64 of
// salt || ciphertext.
type PBEWithMD5AndDES struct {
	Iterations int
	// Rand supplies salts, crypto/rand when nil.
	Rand io.Reader
}

// deriveKeyIV is PBKDF1 with MD5: key and IV are the two halves of the digest.
func deriveKeyIV(password, salt []byte, iter int) (key, iv []byte) {
	sum := md5.Sum(append(append([]byte{}, password...), salt...))
	for i := 1; i < iter; i++ {
		sum = md5.Sum(sum[:])
	}
	return sum[:8], sum[8:16]
}

func (c *PBEWithMD5AndDES) Encrypt(plaintext, password string) (string, error) {
	salt, err := randomBytes(c.Rand, pbeSaltSize)
	if err != nil {
		return "", err
	}
	key, iv := deriveKeyIV([]byte(password), salt, iterations(c.Iterations))

	block, err := des.NewCipher(key)
	if err != nil {
		return "", err
	}
	data := pkcs5Pad([]byte(plaintext), block.BlockSize())
	out := make([]byte, pbeSaltSize+len(data))
	copy(out, salt)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[pbeSaltSize:], data)

	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *PBEWithMD5AndDES) Decrypt(ciphertext, password string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(raw) <= pbeSaltSize || (len(raw)-pbeSaltSize)%des.BlockSize != 0 {
		return "", ErrDecrypt
	}
	salt, data := raw[:pbeSaltSize], raw[pbeSaltSize:]
	key, iv := deriveKeyIV([]byte(password), salt, iterations(c.Iterations))

	block, err := des.NewCipher(key)
	if err != nil {
		return "", err
	}
	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)

	plain, ok := pkcs5Unpad(plain, des.BlockSize)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

func pkcs5Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append([]byte{}, b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs5Unpad(b []byte, size int) ([]byte, bool) {
	if len(b) == 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, false
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}
