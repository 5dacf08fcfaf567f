package kvstore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sealed decorates a Store with XChaCha20-Poly1305 encryption. Values are
// sealed with a random nonce before they reach the inner store, so backends
// only ever see opaque bytes. A value that fails to open (wrong key, bit rot,
// manual edits) reads back as ErrNotFound.
type Sealed struct {
	inner Store
	aead  cipher.AEAD
}

// NewSealed wraps inner with encryption. The key must be exactly
// chacha20poly1305.KeySize (32) bytes.
func NewSealed(inner Store, key []byte) (*Sealed, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.Errorf("sealed store key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "create cipher")
	}
	return &Sealed{inner: inner, aead: aead}, nil
}

// Get reads and opens the value under key. Any decryption failure is
// reported as ErrNotFound: encrypted state is a cache of user intent, not a
// system of record, and a lost value must never crash the checkout flow.
func (s *Sealed) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < s.aead.NonceSize() {
		return nil, ErrNotFound
	}

	nonce, ct := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ct, []byte(key))
	if err != nil {
		return nil, ErrNotFound
	}
	return plain, nil
}

// Set seals value with a fresh random nonce and stores nonce||ciphertext.
// The key participates as additional data, so a value copied under another
// key fails to open.
func (s *Sealed) Set(ctx context.Context, key string, value []byte) error {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "generate nonce")
	}
	sealed := s.aead.Seal(nonce, nonce, value, []byte(key))
	return s.inner.Set(ctx, key, sealed)
}

// Remove deletes the value under key.
func (s *Sealed) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}
