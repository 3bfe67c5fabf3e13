// Package kv is a small key-value layer with hierarchical keys. Keys are
// string slices such as ["emb", "all-minilm", "<sha256>"] joined with ':'.
//
// The Badger store persists to disk (or memory) and backs both the local
// vector index and the embedding cache. Memory is a map-backed store for
// tests.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

const separator = ":"

// Key is a hierarchical path. Segments must not contain ':'.
type Key []string

func (k Key) String() string { return strings.Join(k, separator) }

func (k Key) bytes() []byte { return []byte(k.String()) }

// prefixBytes returns the encoded prefix with a trailing separator so that
// ["doc"] does not match "docs:...".
func (k Key) prefixBytes() []byte {
	if len(k) == 0 {
		return nil
	}
	return []byte(k.String() + separator)
}

func parseKey(b []byte) Key {
	return Key(strings.Split(string(b), separator))
}

// Entry is a key-value pair.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the key-value contract used by the index and the cache.
type Store interface {
	// Get returns ErrNotFound if the key is absent.
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error

	// List yields entries under prefix in lexicographic key order.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet writes all entries or none.
	BatchSet(ctx context.Context, entries []Entry) error

	// DeletePrefix removes every key under prefix.
	DeletePrefix(ctx context.Context, prefix Key) error

	Close() error
}
