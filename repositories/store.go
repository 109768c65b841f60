// Package repositories is the Store Adapter: every durable read and write goes
// through a badger transaction opened by Store.Update or Store.View.
package repositories

import (
	"context"
	"errors"
	"log/slog"

	apperrors "wallet-chat/errors"

	"github.com/dgraph-io/badger/v4"
)

// Store wraps the badger database. Transactions are serializable snapshots:
// when two read-write transactions touch the same keys, the second to commit
// fails and the caller sees errors.ErrConcurrentUpdate.
type Store struct {
	db  *badger.DB
	log *slog.Logger
}

func NewStore(db *badger.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log}
}

// Tx is a handle on a single badger transaction. It must not escape the callback.
type Tx struct {
	txn *badger.Txn
}

// Update runs fn in a read-write transaction. Nothing is committed when fn fails.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(&Tx{txn: txn})
	})
	return s.classify(err)
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		return fn(&Tx{txn: txn})
	})
	return s.classify(err)
}

func (s *Store) classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrConflict):
		s.log.Debug("Transaction conflict", "error", err)
		return apperrors.ErrConcurrentUpdate
	case apperrors.IsClassified(err),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		s.log.Error("Store failure", "error", err)
		return apperrors.StoreFailure(err)
	}
}
