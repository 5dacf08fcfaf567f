// Package kvstore provides the persistence port for cross-reload checkout
// state: an opaque key/value store with JSON-coded values, encrypted at rest.
//
// Callers must tolerate missing data. Every read path that encounters an
// absent, corrupt, or tampered value reports ErrNotFound so the caller can
// fall back to a zero value instead of failing the request.
package kvstore

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// ErrNotFound is returned when a key is absent or its stored value cannot be
// recovered (corrupt ciphertext, invalid JSON, truncated file).
var ErrNotFound = errors.New("kvstore: not found")

// Store is the raw byte-oriented persistence port.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// GetJSON reads key from s and unmarshals it into v. Absent keys and values
// that are not valid JSON both report ErrNotFound; the caller decides the
// default.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if !jx.Valid(raw) {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ErrNotFound
	}
	return nil
}

// SetJSON marshals v and writes it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal value")
	}
	return s.Set(ctx, key, raw)
}
