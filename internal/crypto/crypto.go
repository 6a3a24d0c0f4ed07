package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	keySize       = 32 // AES-256

	// SaltFileName is stored next to the encrypted config
	SaltFileName = "config.salt"
	saltSize     = 32
)

// ErrCiphertextTooShort is returned for input shorter than a GCM nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// GenerateAndSaveSalt creates a new random salt and writes it base64-encoded to filename.
func GenerateAndSaveSalt(filename string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(salt)
	if err := os.WriteFile(filename, []byte(encoded), 0600); err != nil {
		return nil, err
	}
	return salt, nil
}

// LoadSalt reads the salt from a file
func LoadSalt(filename string) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(string(data))
}

// DeriveKey derives an encryption key from a password using Argon2id
func DeriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, keySize)
}

// Encrypt encrypts plaintext using AES-256 GCM. The nonce is prepended.
func Encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext produced by Encrypt
func Decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
