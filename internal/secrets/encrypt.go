// Package secrets provides field-level encryption for sensitive values at
// rest (phone numbers, health readings) and HMAC-signed admin API tokens.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
)

// encPrefix marks stored values that are encrypted. Values without the
// prefix are treated as plain text for backward compatibility.
const encPrefix = "enc:"

// Cipher encrypts and decrypts individual string fields with AES-256-GCM.
// A Cipher built from an empty secret operates in passthrough mode and
// stores values unchanged.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives a 256-bit key from the given secret. An empty secret
// disables encryption; sensitive fields are then stored in plain text.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		slog.Warn("Cipher.New: DATA_ENCRYPTION_KEY not set, sensitive data will be stored in plain text")
		return &Cipher{}, nil
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Enabled reports whether the cipher actually encrypts.
func (c *Cipher) Enabled() bool { return c.aead != nil }

// EncryptField encrypts a value for storage, returning it prefixed with
// "enc:". Empty values and passthrough mode return the value unchanged.
func (c *Cipher) EncryptField(value string) string {
	if value == "" || c.aead == nil {
		return value
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		slog.Error("Cipher.EncryptField: failed to generate nonce, storing plain text", "error", err)
		return value
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(value), nil)
	return encPrefix + base64.URLEncoding.EncodeToString(sealed)
}

// DecryptField reverses EncryptField. Values without the "enc:" prefix are
// returned unchanged, as is anything that fails to decrypt, so a store can
// hold a mix of plain and encrypted data.
func (c *Cipher) DecryptField(value string) string {
	if !IsEncrypted(value) {
		return value
	}
	if c.aead == nil {
		slog.Warn("Cipher.DecryptField: encrypted data found but encryption is not enabled, returning raw value")
		return value
	}
	raw, err := base64.URLEncoding.DecodeString(strings.TrimPrefix(value, encPrefix))
	if err != nil || len(raw) < c.aead.NonceSize() {
		slog.Warn("Cipher.DecryptField: malformed ciphertext, returning raw value")
		return value
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		slog.Warn("Cipher.DecryptField: decryption failed, returning raw value", "error", err)
		return value
	}
	return string(plain)
}

// IsEncrypted reports whether a stored value carries the encryption prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encPrefix)
}

// GenerateKey returns a new random secret suitable for DATA_ENCRYPTION_KEY.
func GenerateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
