package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// keySalt is fixed so the same passphrase always opens the same database.
var keySalt = []byte("masa-app/settings/v1")

// sealedPrefix tags the row format: "v1.<nonce>.<ciphertext>", both parts
// unpadded base64url.
const sealedPrefix = "v1"

var errMalformedRow = errors.New("malformed sealed setting")

// DeriveKey stretches a passphrase into a 32-byte AES-256 key with Argon2id.
func DeriveKey(passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	return argon2.IDKey([]byte(passphrase), keySalt, 1, 64*1024, 4, 32), nil
}

// rowSealer encrypts setting values with AES-GCM. The setting's key is the
// additional data, so a sealed value only opens under the key it was
// written for.
type rowSealer struct {
	aead cipher.AEAD
}

func newRowSealer(key []byte) (*rowSealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid store key: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("invalid store key: %w", err)
	}
	return &rowSealer{aead: aead}, nil
}

func (s *rowSealer) seal(settingKey, value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := s.aead.Seal(nil, nonce, []byte(value), []byte(settingKey))

	enc := base64.RawURLEncoding
	return sealedPrefix + "." + enc.EncodeToString(nonce) + "." + enc.EncodeToString(ciphertext), nil
}

func (s *rowSealer) open(settingKey, row string) (string, error) {
	parts := strings.Split(row, ".")
	if len(parts) != 3 || parts[0] != sealedPrefix {
		return "", errMalformedRow
	}
	enc := base64.RawURLEncoding
	nonce, err := enc.DecodeString(parts[1])
	if err != nil || len(nonce) != s.aead.NonceSize() {
		return "", errMalformedRow
	}
	ciphertext, err := enc.DecodeString(parts[2])
	if err != nil {
		return "", errMalformedRow
	}

	plaintext, err := s.aead.Open(nil, nonce, ciphertext, []byte(settingKey))
	if err != nil {
		return "", errors.New("wrong store key or tampered setting")
	}
	return string(plaintext), nil
}
