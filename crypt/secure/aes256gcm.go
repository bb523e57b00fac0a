package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/rampart-go/rampart/utils"
)

const (
	ErrInvalidKeyLength     = utils.Error("key length must be 32 bytes")
	ErrDataTooShort         = utils.Error("data too short")
	ErrAuthenticationFailed = utils.Error("authentication failed")

	KeyLength = 32
)

// AES256GCM encrypts and decrypts byte slices with AES-256 in GCM mode
type AES256GCM interface {
	Encrypt(data []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
	Clear()
}

type aes256Gcm struct {
	key []byte
}

// NewAES256GCM creates an AES256GCM object from a 32-byte key
func NewAES256GCM(key []byte) (AES256GCM, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	result := &aes256Gcm{
		key: make([]byte, KeyLength),
	}
	copy(result.key, key)
	return result, nil
}

func (a *aes256Gcm) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(a.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals data with a random nonce; the nonce is prepended to the result
func (a *aes256Gcm) Encrypt(data []byte) ([]byte, error) {
	gcm, err := a.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

// Decrypt opens data previously sealed with Encrypt
func (a *aes256Gcm) Decrypt(data []byte) ([]byte, error) {
	gcm, err := a.gcm()
	if err != nil {
		return nil, err
	}

	if len(data) < gcm.NonceSize() {
		return nil, ErrDataTooShort
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plain, nil
}

// Clear zeroes the key material
func (a *aes256Gcm) Clear() {
	for i := range a.key {
		a.key[i] = 0
	}
	a.key = nil
}
