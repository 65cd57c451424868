package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/rexliu/popd/pkg/core"
	"github.com/rexliu/popd/pkg/storage"
)

// Store owns the SQLite database for a profile.
type Store struct {
	db   *sql.DB
	path string
	unit string
}

// Path returns the underlying SQLite file path.
func (s *Store) Path() string {
	return s.path
}

// Open initializes a SQLite database at path. unit names the row holding the
// collection; empty selects storage.DefaultUnit.
func Open(path, unit string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if unit == "" {
		unit = storage.DefaultUnit
	}
	return &Store{db: db, path: path, unit: unit}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Init ensures pragmas and schema are configured.
func (s *Store) Init(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("nil store")
	}
	if err := s.applySchema(ctx); err != nil {
		return err
	}
	// One connection keeps the per-connection pragmas in force and serializes
	// writers, so a stale save reports a conflict instead of SQLITE_BUSY.
	s.db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode = DELETE;",
		"PRAGMA synchronous = FULL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, stmt := range pragmas {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	return nil
}

//go:embed migrations/*.sql
var migrations embed.FS

func (s *Store) applySchema(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SchemaVersion reports the latest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return 0, err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}

// Load returns the stored collection and its version.
func (s *Store) Load(ctx context.Context) (core.Collection, storage.Version, error) {
	var (
		value   string
		version int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT value, version FROM options WHERE name = ?`, s.unit).Scan(&value, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Collection{}, 0, nil
	}
	if err != nil {
		return nil, 0, core.StorageError("load", err)
	}
	var popups core.Collection
	if err := json.Unmarshal([]byte(value), &popups); err != nil {
		return nil, 0, core.StorageError("decode", err)
	}
	if popups == nil {
		popups = core.Collection{}
	}
	return popups, storage.Version(version), nil
}

// Save writes the collection when the stored version still equals expected.
func (s *Store) Save(ctx context.Context, popups core.Collection, expected storage.Version) (storage.Version, error) {
	if popups == nil {
		popups = core.Collection{}
	}
	payload, err := json.Marshal(popups)
	if err != nil {
		return 0, core.StorageError("encode", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, core.StorageError("begin", err)
	}
	next := expected + 1
	now := time.Now().UnixMilli()
	var res sql.Result
	if expected == 0 {
		res, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO options(name, value, version, updated_at) VALUES(?,?,?,?)`,
			s.unit, string(payload), int64(next), now)
	} else {
		res, err = tx.ExecContext(ctx, `UPDATE options SET value = ?, version = ?, updated_at = ? WHERE name = ? AND version = ?`,
			string(payload), int64(next), now, s.unit, int64(expected))
	}
	if err != nil {
		tx.Rollback()
		return 0, core.StorageError("save", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return 0, core.StorageError("save", err)
	}
	if count == 0 {
		current, verr := s.currentVersion(ctx, tx)
		tx.Rollback()
		if verr != nil {
			return 0, core.StorageError("save", verr)
		}
		return 0, &core.ConflictError{Expected: int64(expected), Current: current}
	}
	if err := tx.Commit(); err != nil {
		return 0, core.StorageError("commit", err)
	}
	return next, nil
}

func (s *Store) currentVersion(ctx context.Context, tx *sql.Tx) (int64, error) {
	var version int64
	err := tx.QueryRowContext(ctx, `SELECT version FROM options WHERE name = ?`, s.unit).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return version, err
}

var _ storage.Store = (*Store)(nil)
