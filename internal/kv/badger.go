package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is a Store backed by BadgerDB v4.
type Badger struct {
	db *badger.DB
}

// BadgerOptions configures the Badger store.
type BadgerOptions struct {
	// Dir is required unless InMemory is set.
	Dir      string
	InMemory bool
	Logger   *slog.Logger
}

// OpenBadger opens (or creates) a Badger store.
func OpenBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("kv: Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(slogAdapter{logger.With("component", "badger")})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("kv: open badger at %q: %w", opts.Dir, err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(_ context.Context, key Key) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key.bytes())
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

func (b *Badger) Set(_ context.Context, key Key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key.bytes(), value)
	})
}

func (b *Badger) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := prefix.prefixBytes()
	return func(yield func(Entry, error) bool) {
		err := b.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = p
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(p); it.ValidForPrefix(p); it.Next() {
				item := it.Item()
				val, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				if !yield(Entry{Key: parseKey(item.KeyCopy(nil)), Value: val}, nil) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(Entry{}, err)
		}
	}
}

// BatchSet writes entries in a single transaction so a failure leaves no
// partial batch behind.
func (b *Badger) BatchSet(_ context.Context, entries []Entry) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			if err := txn.Set(e.Key.bytes(), e.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Badger) DeletePrefix(_ context.Context, prefix Key) error {
	p := prefix.prefixBytes()
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = p
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// slogAdapter routes badger logs to slog, dropping info and debug chatter.
type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Errorf(f string, v ...any)   { a.l.Error(fmt.Sprintf(f, v...)) }
func (a slogAdapter) Warningf(f string, v ...any) { a.l.Warn(fmt.Sprintf(f, v...)) }
func (a slogAdapter) Infof(string, ...any)        {}
func (a slogAdapter) Debugf(string, ...any)       {}
