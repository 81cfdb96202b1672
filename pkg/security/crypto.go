package security

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the master and derived key length for AES-256.
	KeySize = 32

	// keyDerivationInfo provides domain separation for HKDF.
	keyDerivationInfo = "filekit-tenant-key-v1"

	// MetaEncrypted marks ciphertext in encryption metadata. Decrypt treats
	// input without it as plaintext passthrough.
	MetaEncrypted = "encrypted"

	// MetaAlgorithm records the cipher used.
	MetaAlgorithm = "algorithm"

	algorithmAESGCM = "aes-256-gcm"
)

// tenantKey derives and caches the per-tenant encryption key. Derivation runs
// once per tenant per process.
func (m *Manager) tenantKey(tenantID string) ([]byte, error) {
	if tenantID == "" {
		return nil, ErrInvalidTenantID
	}

	m.mu.RLock()
	key, ok := m.tenantKeys[tenantID]
	m.mu.RUnlock()
	if ok {
		return key, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if key, ok := m.tenantKeys[tenantID]; ok {
		return key, nil
	}

	r := hkdf.New(sha256.New, m.masterKey, []byte(tenantID), []byte(keyDerivationInfo))
	key = make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	m.tenantKeys[tenantID] = key
	return key, nil
}

// Encrypt seals content with the tenant's derived key using AES-256-GCM.
// The returned ciphertext is nonce + sealed data; metadata marks the content
// as encrypted so Decrypt knows to reverse it.
func (m *Manager) Encrypt(ctx context.Context, content []byte, tenantID string) ([]byte, map[string]string, error) {
	key, err := m.tenantKey(tenantID)
	if err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, errors.Join(ErrEncryptionFailed, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, errors.Join(ErrEncryptionFailed, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, errors.Join(ErrEncryptionFailed, err)
	}

	ciphertext := aead.Seal(nonce, nonce, content, []byte(tenantID))

	m.audit(ctx, "security.encrypt", tenantID, "content", "", "info", map[string]any{
		"plaintext_bytes":  len(content),
		"ciphertext_bytes": len(ciphertext),
	})

	return ciphertext, map[string]string{
		MetaEncrypted: "true",
		MetaAlgorithm: algorithmAESGCM,
	}, nil
}

// Decrypt reverses Encrypt. Input whose metadata lacks the encrypted flag is
// returned unchanged. The tenant id participates in authentication, so
// ciphertext sealed for one tenant never opens under another's key.
func (m *Manager) Decrypt(ctx context.Context, content []byte, tenantID string, metadata map[string]string) ([]byte, error) {
	if metadata[MetaEncrypted] != "true" {
		return content, nil
	}

	key, err := m.tenantKey(tenantID)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}

	if len(content) < aead.NonceSize() {
		return nil, ErrInvalidCiphertext
	}
	nonce, sealed := content[:aead.NonceSize()], content[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, []byte(tenantID))
	if err != nil {
		m.audit(ctx, "security.decrypt", tenantID, "content", "", "warning", map[string]any{
			"error": "authentication failed",
		})
		return nil, errors.Join(ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// IsEncrypted reports whether metadata marks content as sealed.
func IsEncrypted(metadata map[string]string) bool {
	return metadata[MetaEncrypted] == "true"
}
