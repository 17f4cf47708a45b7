package store

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// TokenEncryption encrypts OAuth tokens at rest with AES-256-GCM.
// Each value is stored as base64(nonce || ciphertext || tag).
// A nil or disabled TokenEncryption passes values through unchanged.
type TokenEncryption struct {
	gcm cipher.AEAD
}

// NewTokenEncryption creates a token cipher. An empty key disables encryption.
func NewTokenEncryption(key []byte) (*TokenEncryption, error) {
	if len(key) == 0 {
		return &TokenEncryption{}, nil
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes (256 bits), got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &TokenEncryption{gcm: gcm}, nil
}

// Enabled reports whether values are encrypted.
func (e *TokenEncryption) Enabled() bool {
	return e != nil && e.gcm != nil
}

// Encrypt encrypts plaintext. Empty input stays empty.
func (e *TokenEncryption) Encrypt(plaintext string) (string, error) {
	if !e.Enabled() || plaintext == "" {
		return plaintext, nil
	}

	// nonce must be unique per encryption under one key
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (e *TokenEncryption) Decrypt(encoded string) (string, error) {
	if !e.Enabled() || encoded == "" {
		return encoded, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	nonceSize := e.gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := e.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// GenerateEncryptionKey returns a random 32-byte key.
// Generate once and keep it; rotating the key makes stored tokens unreadable.
func GenerateEncryptionKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return key, nil
}

// EncryptionKeyFromBase64 decodes a base64 key. An empty string disables encryption.
func EncryptionKeyFromBase64(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d bytes", len(key))
	}
	return key, nil
}

// EncryptionKeyToBase64 encodes a key for configuration.
func EncryptionKeyToBase64(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// EncryptedPrivileged wraps a Privileged accessor so that access and
// refresh tokens are encrypted before they reach the backend.
func EncryptedPrivileged(p Privileged, enc *TokenEncryption) Privileged {
	if !enc.Enabled() {
		return p
	}
	return &encryptedPrivileged{next: p, enc: enc}
}

type encryptedPrivileged struct {
	next Privileged
	enc  *TokenEncryption
}

func (e *encryptedPrivileged) UpsertToken(ctx context.Context, rec *TokenRecord) error {
	if rec == nil {
		return e.next.UpsertToken(ctx, rec)
	}
	sealed := *rec
	var err error
	if sealed.AccessToken, err = e.enc.Encrypt(rec.AccessToken); err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	if sealed.RefreshToken, err = e.enc.Encrypt(rec.RefreshToken); err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}
	return e.next.UpsertToken(ctx, &sealed)
}

func (e *encryptedPrivileged) GetToken(ctx context.Context, userID string) (*TokenRecord, error) {
	rec, err := e.next.GetToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec.AccessToken, err = e.enc.Decrypt(rec.AccessToken); err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	if rec.RefreshToken, err = e.enc.Decrypt(rec.RefreshToken); err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}
	return rec, nil
}

func (e *encryptedPrivileged) UpdateAccessToken(ctx context.Context, userID string, update TokenUpdate) error {
	var err error
	if update.AccessToken, err = e.enc.Encrypt(update.AccessToken); err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	if update.RefreshToken, err = e.enc.Encrypt(update.RefreshToken); err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}
	return e.next.UpdateAccessToken(ctx, userID, update)
}
