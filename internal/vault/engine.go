package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"hushmcp/internal/credential"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
)

// Both suites share the same geometry, so records are stored and validated
// uniformly regardless of algorithm.
const (
	// KeySize is the byte length of every vault key, master and derived.
	KeySize = 32
	// NonceSize is the byte length of the per-record nonce.
	NonceSize = 12
	// TagSize is the byte length of the authentication tag.
	TagSize = 16
)

// hkdfContext labels the key derivation so vault keys can never collide with
// keys another subsystem might derive from the same master secret.
const hkdfContext = "hushmcp.vault.v1"

// Encrypt seals plaintext under the default suite, aes-256-gcm.
func Encrypt(plaintext, key []byte, meta Metadata) (VaultRecord, error) {
	return EncryptWith(AlgorithmAESGCM, plaintext, key, meta)
}

// EncryptWith seals plaintext under the given suite with a fresh random
// nonce. The ciphertext and authentication tag are kept separate in the
// record.
//
// Errors: CodeInvalidInput for an unknown algorithm or a key that is not
// KeySize bytes, CodeInternal if the platform entropy source fails.
func EncryptWith(algorithm Algorithm, plaintext, key []byte, meta Metadata) (VaultRecord, error) {
	aead, err := newAEAD(algorithm, key)
	if err != nil {
		return VaultRecord{}, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return VaultRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate nonce")
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - TagSize
	return VaultRecord{
		Ciphertext: sealed[:split:split],
		Nonce:      nonce,
		Tag:        sealed[split:],
		Algorithm:  algorithm,
		Metadata:   meta,
	}, nil
}

// Decrypt opens a sealed record and returns the plaintext.
//
// Errors: CodeInvalidInput for an unknown algorithm or wrong-length key,
// CodeIntegrityCheckFailed for everything else. Wrong key, flipped bits,
// truncation, and mangled nonce or tag lengths are deliberately
// indistinguishable to the caller.
func Decrypt(record VaultRecord, key []byte) ([]byte, error) {
	aead, err := newAEAD(record.Algorithm, key)
	if err != nil {
		return nil, err
	}
	if len(record.Nonce) != NonceSize || len(record.Tag) != TagSize {
		return nil, integrityErr()
	}
	sealed := make([]byte, 0, len(record.Ciphertext)+TagSize)
	sealed = append(sealed, record.Ciphertext...)
	sealed = append(sealed, record.Tag...)
	plaintext, err := aead.Open(nil, record.Nonce, sealed, nil)
	if err != nil {
		return nil, integrityErr()
	}
	return plaintext, nil
}

// DeriveKey expands the master vault key into the record key for one
// (user, scope) pair via HKDF-SHA256. Records sealed for different users or
// scopes never share a key, so a record relabeled to another scope simply
// fails to decrypt.
//
// Errors: CodeInvalidInput if the master key is not KeySize bytes,
// CodeInternal if expansion fails.
func DeriveKey(master []byte, userID id.UserID, scope id.ConsentScope) ([]byte, error) {
	if len(master) != KeySize {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "master vault key must be %d bytes", KeySize)
	}
	info := credential.JoinFields(hkdfContext, userID.String(), scope.String())
	reader := hkdf.New(sha256.New, master, nil, info)
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "derive vault key")
	}
	return key, nil
}

// newAEAD vets algorithm and key before constructing the cipher. The
// algorithm is checked first so a malformed record is reported as invalid
// input rather than an integrity failure, and before the key is touched at
// all.
func newAEAD(algorithm Algorithm, key []byte) (cipher.AEAD, error) {
	if !algorithm.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown vault algorithm %q", algorithm.String())
	}
	if len(key) != KeySize {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "vault key must be %d bytes", KeySize)
	}
	if algorithm == AlgorithmChaCha20Poly1305 {
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "init chacha20-poly1305")
		}
		return aead, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "init aes-256-gcm")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "init aes-256-gcm")
	}
	return aead, nil
}

func integrityErr() error {
	return dErrors.New(dErrors.CodeIntegrityCheckFailed, "vault record failed integrity check")
}
