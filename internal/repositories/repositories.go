package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/tidx/internal/models"
	"github.com/desertthunder/tidx/internal/shared"
)

// dbtx is the query surface shared by [sql.DB] and [sql.Tx].
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements [models.LocalStore] and [models.Transactor] on top of SQLite.
type Store struct {
	*PlaylistRepository
	*SongRepository
	*LinkRepository
	db *sql.DB
}

// NewStore creates a Store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		PlaylistRepository: &PlaylistRepository{q: db},
		SongRepository:     &SongRepository{q: db},
		LinkRepository:     &LinkRepository{q: db},
		db:                 db,
	}
}

// RunInTx runs fn against a transaction-scoped store, committing when fn returns nil.
func (s *Store) RunInTx(ctx context.Context, fn func(models.LocalStore) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", shared.ErrLocalWrite, err)
	}
	defer tx.Rollback()

	scoped := &Store{
		PlaylistRepository: &PlaylistRepository{q: tx},
		SongRepository:     &SongRepository{q: tx},
		LinkRepository:     &LinkRepository{q: tx},
	}
	if err := fn(scoped); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", shared.ErrLocalWrite, err)
	}
	return nil
}

// CompactLinks renumbers links inside a transaction when the store is not already scoped to one.
func (s *Store) CompactLinks(ctx context.Context, playlistID int64) error {
	if s.db == nil {
		return s.LinkRepository.CompactLinks(ctx, playlistID)
	}
	return s.RunInTx(ctx, func(ls models.LocalStore) error {
		return ls.(*Store).LinkRepository.CompactLinks(ctx, playlistID)
	})
}

// notFound wraps sql.ErrNoRows as [shared.ErrNotFound] and other failures as plain query errors.
func notFound(err error, what string, key any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, key, shared.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func writeFailed(action string, err error) error {
	return fmt.Errorf("%w: failed to %s: %v", shared.ErrLocalWrite, action, err)
}

var _ models.LocalStore = (*Store)(nil)
var _ models.Transactor = (*Store)(nil)
