// Package encryption encrypts store.access_token at rest, the opaque
// platform credential spec.md §3 requires kept "encrypted at rest". The
// store repository encrypts it on every write and decrypts it on every
// read, so domain.Store.AccessToken is plaintext above that boundary.
//
// The envelope shape — a version tag, a nonce, and an AEAD ciphertext
// bound to the attribute name via additional authenticated data — is
// the same one theory-cloud-TableTheory's encryption.Service uses for
// its DynamoDB attribute encryption. That service wraps AWS KMS to
// generate a per-record data key; this one is keyed directly from a
// fixed key loaded out of config, since this repo has no KMS
// dependency to call and spec.md names no cloud provider. The AES-GCM
// core and the AAD-binding trick are carried over unchanged.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
)

const envelopeVersionV1 = 1

// Service encrypts and decrypts opaque secrets with AES-256-GCM under a
// single key supplied at construction.
type Service struct {
	gcm  cipher.AEAD
	rand io.Reader
}

// NewService builds a Service from a 32-byte AES-256 key.
func NewService(key []byte) (*Service, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher init failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("aes-gcm init failed: %w", err)
	}
	return &Service{gcm: gcm, rand: rand.Reader}, nil
}

// Encrypt seals plaintext into a base64 envelope: version || nonce ||
// ciphertext. field is bound as additional authenticated data so an
// envelope encrypted for one field can't be swapped in for another.
func (s *Service) Encrypt(field, plaintext string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("encryption service is nil")
	}
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(s.rand, nonce); err != nil {
		return "", fmt.Errorf("nonce generation failed: %w", err)
	}

	ct := s.gcm.Seal(nil, nonce, []byte(plaintext), aadFor(field))

	envelope := make([]byte, 0, 1+len(nonce)+len(ct))
	envelope = append(envelope, envelopeVersionV1)
	envelope = append(envelope, nonce...)
	envelope = append(envelope, ct...)
	return base64.StdEncoding.EncodeToString(envelope), nil
}

// Decrypt opens an envelope produced by Encrypt for the same field.
func (s *Service) Decrypt(field, envelope string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("encryption service is nil")
	}
	if envelope == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", fmt.Errorf("malformed envelope: %w", err)
	}
	nonceSize := s.gcm.NonceSize()
	if len(raw) < 1+nonceSize {
		return "", fmt.Errorf("envelope too short")
	}
	if raw[0] != envelopeVersionV1 {
		return "", fmt.Errorf("unsupported envelope version %d", raw[0])
	}

	nonce := raw[1 : 1+nonceSize]
	ct := raw[1+nonceSize:]

	plaintext, err := s.gcm.Open(nil, nonce, ct, aadFor(field))
	if err != nil {
		return "", fmt.Errorf("aes-gcm decrypt failed: %w", err)
	}
	return string(plaintext), nil
}

func aadFor(field string) []byte {
	b := make([]byte, 4+len(field))
	binary.BigEndian.PutUint32(b, envelopeVersionV1)
	copy(b[4:], field)
	return b
}
