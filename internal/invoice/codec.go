// Package invoice encodes the server-issued invoice reference for safe
// embedding in the post-checkout success URL.
//
// The reference is encrypted so customers cannot enumerate invoice codes by
// editing the URL, then made path-safe by swapping the two base64 characters
// that break URL routing ('/' and '+') for placeholder tokens. Decode is the
// exact reverse and never fails loud: a garbled URL yields an empty
// reference, which callers render as "reference lost".
package invoice

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/go-faster/errors"
)

// Placeholder tokens for URL-unsafe base64 characters. Tildes are unreserved
// in URL paths and never appear in base64 output, so replacement is
// unambiguous.
const (
	slashToken = "~s~"
	plusToken  = "~p~"
)

var (
	encodeReplacer = strings.NewReplacer("/", slashToken, "+", plusToken)
	decodeReplacer = strings.NewReplacer(slashToken, "/", plusToken, "+")
)

// Codec encrypts and decrypts invoice references with a shared symmetric
// key. The key comes from configuration, never from source.
type Codec struct {
	aead cipher.AEAD
}

// New creates a Codec. The key must be 16, 24, or 32 bytes (AES-128/192/256).
func New(key []byte) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "create cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "create GCM")
	}
	return &Codec{aead: aead}, nil
}

// Encode encrypts plain and returns a URL-path-safe token.
func (c *Codec) Encode(plain string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "generate nonce")
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return encodeReplacer.Replace(base64.RawStdEncoding.EncodeToString(sealed)), nil
}

// Decode reverses Encode. On any failure it returns ""; callers treat an
// empty reference as lost, never as an error to propagate.
func (c *Codec) Decode(token string) string {
	raw, err := base64.RawStdEncoding.DecodeString(decodeReplacer.Replace(token))
	if err != nil {
		return ""
	}
	if len(raw) < c.aead.NonceSize() {
		return ""
	}

	nonce, ct := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return ""
	}
	return string(plain)
}
