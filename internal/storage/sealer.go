package storage

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySealer encrypts wallet keys with XChaCha20-Poly1305 before they are stored.
type KeySealer struct {
	key []byte
}

// NewKeySealer takes a 32 byte key.
func NewKeySealer(key []byte) (*KeySealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("seal key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &KeySealer{key: append([]byte(nil), key...)}, nil
}

// Seal returns nonce || ciphertext. aad binds the blob to its owner (e.g. the address).
func (s *KeySealer) Seal(key *ecdsa.PrivateKey, aad []byte) ([]byte, error) {
	if key == nil {
		return nil, errors.New("nil key")
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+gethcrypto.DigestLength+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, gethcrypto.FromECDSA(key), aad), nil
}

// Open reverses Seal.
func (s *KeySealer) Open(sealed, aad []byte) (*ecdsa.PrivateKey, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, errors.New("sealed key too short")
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	raw, err := aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, fmt.Errorf("open sealed key: %w", err)
	}
	return gethcrypto.ToECDSA(raw)
}
