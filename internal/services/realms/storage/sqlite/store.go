// Package sqlite provides the SQLite-backed realm tree store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	apperrors "github.com/louisbranch/realmtree/internal/platform/errors"
	"github.com/louisbranch/realmtree/internal/platform/id"
	sqlitemigrate "github.com/louisbranch/realmtree/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/realmtree/internal/platform/timeouts"
	"github.com/louisbranch/realmtree/internal/services/realms/domain"
	"github.com/louisbranch/realmtree/internal/services/realms/storage"
	"github.com/louisbranch/realmtree/internal/services/realms/storage/sqlite/migrations"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store persists the realm tree, hosted content and the reindex queue.
type Store struct {
	sqlDB    *sql.DB
	keys     *id.Allocator
	observer storage.Observer
}

// Option configures a Store.
type Option func(*Store)

// WithKeySecret keys the identifier permutation. Changing the secret of an
// existing database makes new keys collide with old ones.
func WithKeySecret(secret string) Option {
	return func(s *Store) {
		s.keys = id.NewAllocator(secret)
	}
}

// WithObserver reports committed propagation and enqueue counts.
func WithObserver(observer storage.Observer) Option {
	return func(s *Store) {
		s.observer = observer
	}
}

// Open opens a SQLite realm store and applies embedded migrations.
//
// Write transactions start with BEGIN IMMEDIATE so two mutations touching the
// same subtree serialize instead of interleaving.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		cleanPath, timeouts.StoreBusy.Milliseconds())
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	store := &Store{sqlDB: sqlDB, keys: id.NewAllocator("")}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// DB exposes the underlying handle for maintenance tooling.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// tx is one write transaction plus the counts it reports after commit.
type tx struct {
	*sql.Tx
	enqueued   map[domain.ItemKind]int
	propagated []int
}

// NextSequence advances the per-kind key sequence inside the transaction.
func (t *tx) NextSequence(ctx context.Context, kind id.Kind) (uint64, error) {
	var next int64
	err := t.QueryRowContext(ctx, `
INSERT INTO key_sequences (kind, last_value) VALUES (?, 1)
ON CONFLICT(kind) DO UPDATE SET last_value = last_value + 1
RETURNING last_value`, string(kind)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("advance key sequence: %w", err)
	}
	return uint64(next), nil
}

// inTx runs fn inside one write transaction and maps driver failures onto
// domain error codes.
func (s *Store) inTx(ctx context.Context, op string, fn func(*tx) error) error {
	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return classifyError(op, fmt.Errorf("begin: %w", err))
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	t := &tx{Tx: sqlTx, enqueued: map[domain.ItemKind]int{}}
	if err := fn(t); err != nil {
		return classifyError(op, err)
	}
	if err := sqlTx.Commit(); err != nil {
		return classifyError(op, fmt.Errorf("commit: %w", err))
	}
	s.report(t)
	return nil
}

func (s *Store) report(t *tx) {
	if s.observer == nil {
		return
	}
	for _, nodes := range t.propagated {
		s.observer.ObservePropagation(nodes)
	}
	for kind, count := range t.enqueued {
		if count > 0 {
			s.observer.ObserveEnqueued(kind, count)
		}
	}
}

func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	message := strings.ToLower(err.Error())
	switch {
	case isSQLiteBusyError(err):
		return apperrors.Wrap(apperrors.CodeRetriableConflict, op+": concurrent write in progress", err)
	case strings.Contains(message, "derived field violation"):
		return apperrors.Wrap(apperrors.CodeRealmDerivedFieldViolation, op+": full_path written outside path propagation", err)
	case strings.Contains(message, "root realm is immutable"):
		return apperrors.Wrap(apperrors.CodeRealmRootImmutable, op+": root realm is immutable", err)
	case isConstraintError(err) && strings.Contains(message, "realms.full_path"):
		return apperrors.Wrap(apperrors.CodeRealmUniqueConflict, op+": duplicate full path", err)
	case isConstraintError(err) && strings.Contains(message, "realms.parent, realms.path_segment"):
		return apperrors.Wrap(apperrors.CodeRealmPathTaken, op+": sibling already uses segment", err)
	case isForeignKeyError(err):
		return apperrors.Wrap(apperrors.CodeContentInvalidReference, op+": reference to missing record", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func isForeignKeyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

func isSQLiteBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

func nullKey(key *id.Key) any {
	if key == nil {
		return nil
	}
	return int64(*key)
}

func keyPtr(value sql.NullInt64) *id.Key {
	if !value.Valid {
		return nil
	}
	key := id.Key(value.Int64)
	return &key
}

func nullString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func keyArgs(keys []id.Key) []any {
	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = int64(key)
	}
	return args
}

var (
	_ storage.Store = (*Store)(nil)
	_ id.Sequencer  = (*tx)(nil)
	_ queryer       = (*sql.DB)(nil)
	_ queryer       = (*sql.Tx)(nil)
)
