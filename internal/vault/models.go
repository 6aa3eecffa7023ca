// Package vault implements the authenticated encryption layer protecting
// user data at rest: the AEAD engine, per-user key derivation, and the
// ciphertext stores.
package vault

import (
	"time"

	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
)

// Algorithm names the AEAD suite sealing a record. The set is closed; a
// record carrying anything else is malformed.
type Algorithm string

const (
	AlgorithmAESGCM           Algorithm = "aes-256-gcm"
	AlgorithmChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

// ParseAlgorithm constructs an Algorithm from external input.
//
// Errors: returns CodeInvalidInput for anything outside the suite set.
func ParseAlgorithm(s string) (Algorithm, error) {
	algorithm := Algorithm(s)
	if !algorithm.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown vault algorithm %q", s)
	}
	return algorithm, nil
}

// IsValid reports whether the algorithm is one of the supported suites.
func (a Algorithm) IsValid() bool {
	return a == AlgorithmAESGCM || a == AlgorithmChaCha20Poly1305
}

func (a Algorithm) String() string { return string(a) }

// Metadata travels unencrypted alongside the ciphertext so audit and access
// decisions never require decryption. It is not authenticated by the AEAD;
// the per-(user, scope) key derivation is what stops a relabeled record from
// decrypting under a different scope's key.
type Metadata struct {
	AgentID   id.AgentID
	Scope     id.ConsentScope
	CreatedAt time.Time
}

// VaultRecord is one sealed data item: ciphertext, the per-record nonce, the
// authentication tag, the suite that produced them, and the unencrypted
// metadata. The engine only transforms bytes; persistence belongs to the
// stores.
type VaultRecord struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
	Algorithm  Algorithm
	Metadata   Metadata
}

// DecryptedRecord is a stored record opened for delivery: the persistence
// address, the flattened metadata, and the plaintext.
type DecryptedRecord struct {
	RecordID  RecordID
	Category  string
	AgentID   id.AgentID
	Scope     id.ConsentScope
	Algorithm Algorithm
	CreatedAt time.Time
	Data      []byte
}

// Export is the portability bundle for one user: every record they own,
// decrypted.
type Export struct {
	UserID     id.UserID
	ExportedAt time.Time
	Records    []DecryptedRecord
}
