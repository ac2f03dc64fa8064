package badger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/tailored-agentic-units/memstore/memory"
)

// Keys are laid out as v/<hex key>/<zero-padded seq>, so a prefix scan yields
// every key's versions in history order.
var versionPrefix = []byte("v/")

func versionKey(key string, seq int) []byte {
	return fmt.Appendf(nil, "v/%s/%020d", hex.EncodeToString([]byte(key)), seq)
}

func parseVersionKey(raw []byte) (string, bool) {
	rest := bytes.TrimPrefix(raw, versionPrefix)
	i := bytes.IndexByte(rest, '/')
	if i < 0 {
		return "", false
	}
	key, err := hex.DecodeString(string(rest[:i]))
	if err != nil {
		return "", false
	}
	return string(key), true
}

// Journal is a memory.Journal backed by BadgerDB.
type Journal struct {
	db *DB
}

// NewJournal creates a Journal over db. Closing the journal closes db.
func NewJournal(db *DB) *Journal {
	return &Journal{db: db}
}

// OpenJournal opens a database from cfg and wraps it in a Journal.
func OpenJournal(cfg Config) (*Journal, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return NewJournal(db), nil
}

func (j *Journal) Append(ctx context.Context, key string, seq int, v memory.Version) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", memory.ErrJournalAppend, key, err)
	}

	err = j.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(versionKey(key, seq), data)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", memory.ErrJournalAppend, key, err)
	}
	return nil
}

func (j *Journal) Replay(ctx context.Context, fn func(key string, v memory.Version) error) error {
	return j.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = versionPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			key, ok := parseVersionKey(item.Key())
			if !ok {
				continue
			}

			var v memory.Version
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			})
			if err != nil {
				return fmt.Errorf("%w: %s: %v", memory.ErrJournalReplay, key, err)
			}

			if err := fn(key, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *Journal) Close() error {
	return j.db.Close()
}

var _ memory.Journal = (*Journal)(nil)
