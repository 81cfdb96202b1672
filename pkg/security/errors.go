package security

import "errors"

var (
	ErrInvalidMasterKey    = errors.New("security: master key must be 32 bytes")
	ErrInvalidTenantID     = errors.New("security: tenant id cannot be empty")
	ErrKeyDerivationFailed = errors.New("security: key derivation failed")
	ErrEncryptionFailed    = errors.New("security: encryption failed")
	ErrDecryptionFailed    = errors.New("security: decryption failed")
	ErrInvalidCiphertext   = errors.New("security: invalid ciphertext")
	ErrTenantIsolation     = errors.New("security: tenant isolation violation")
	ErrAccessDenied        = errors.New("security: access denied")
)
