// Package gormstore implements the storage contracts on top of gorm. It runs
// against Postgres in production and SQLite in tests.
package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirdesai22/padel-score/internal/storage"
	"gorm.io/gorm"
)

// Store is a gorm-backed storage.Store. A Store created by InTx is bound to
// the open transaction.
type Store struct {
	db     *gorm.DB
	outbox bool
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithOutbox makes every match mutation enqueue an outbox row in the same
// transaction, for the search sync worker.
func WithOutbox() Option {
	return func(s *Store) { s.outbox = true }
}

// New wraps an open gorm handle. The schema must already be migrated.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) InTx(ctx context.Context, fn func(tx storage.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, outbox: s.outbox, now: s.now})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
