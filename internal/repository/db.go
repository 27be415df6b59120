package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"toolcatalog/internal/domain"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// txAbortError is a transaction Postgres aborted in favour of a concurrent one
type txAbortError struct {
	cause error
}

func (e *txAbortError) Error() string {
	return domain.ErrConcurrentWrite.Error() + ": " + e.cause.Error()
}

func (e *txAbortError) Unwrap() []error {
	return []error{domain.ErrConcurrentWrite, domain.ErrConflict, e.cause}
}

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repositories groups the repositories bound to one connection or transaction
type Repositories struct {
	Products   ProductRepository
	Categories CategoryRepository
}

// NewRepositories binds all repositories to db
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Products:   NewProductRepository(db),
		Categories: NewCategoryRepository(db),
	}
}

// Transactor runs a unit of work inside a single database transaction
type Transactor interface {
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}

type sqlTransactor struct {
	db *sql.DB
}

// NewTransactor creates a Transactor over db
func NewTransactor(db *sql.DB) Transactor {
	return &sqlTransactor{db: db}
}

// WithinTx commits when fn returns nil and rolls back otherwise. Deadlock and
// serialization aborts are reported as domain.ErrConcurrentWrite.
func (t *sqlTransactor) WithinTx(ctx context.Context, fn func(repos Repositories) error) error {
	err := t.run(ctx, fn)
	if isTransactionAbort(err) {
		return &txAbortError{cause: err}
	}
	return err
}

func (t *sqlTransactor) run(ctx context.Context, fn func(repos Repositories) error) (txErr error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if txErr != nil {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				txErr = errors.Join(txErr, fmt.Errorf("failed to rollback transaction: %w", err))
			}
			return
		}
		if err := tx.Commit(); err != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", err)
		}
	}()

	return fn(NewRepositories(tx))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isTransactionAbort(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.DeadlockDetected || pgErr.Code == pgerrcode.SerializationFailure
}
