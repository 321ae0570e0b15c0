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
	"regexp"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/lexcheck/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.RecordStore = (*Store)(nil)

// fieldName restricts filter and order keys to plain top-level JSON fields.
var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a SQLite-backed record store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.lexcheck/data/records.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".lexcheck", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "records.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns the record at path.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	collection, id, ok := driven.SplitPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: bad record path %q", domain.ErrInvalidInput, path)
	}
	data, err := getData(ctx, s.db, collection, id)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// BatchSet writes every record in a single transaction.
func (s *Store) BatchSet(ctx context.Context, writes []driven.RecordWrite) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, w := range writes {
		collection, id, ok := driven.SplitPath(w.Path)
		if !ok {
			return fmt.Errorf("%w: bad record path %q", domain.ErrInvalidInput, w.Path)
		}

		data := w.Data
		if w.Merge {
			base, err := getData(ctx, tx, collection, id)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if data, err = driven.MergeJSON(base, data); err != nil {
				return fmt.Errorf("merge %s: %w", w.Path, err)
			}
		} else if !json.Valid(data) {
			return fmt.Errorf("%w: record %s is not valid JSON", domain.ErrInvalidInput, w.Path)
		}

		query, args, err := sq.Insert("records").
			Columns("collection", "id", "data").
			Values(collection, id, string(data)).
			Suffix("ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP").
			ToSql()
		if err != nil {
			return fmt.Errorf("building insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("writing %s: %w", w.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Query returns the records of one collection matching all filters.
func (s *Store) Query(ctx context.Context, q driven.RecordQuery) ([]driven.Record, error) {
	query, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var records []driven.Record
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, driven.Record{Path: q.Collection + "/" + id, Data: []byte(data)})
	}
	return records, rows.Err()
}

// Delete removes the records at paths in a single transaction.
func (s *Store) Delete(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range paths {
		collection, id, ok := driven.SplitPath(p)
		if !ok {
			return fmt.Errorf("%w: bad record path %q", domain.ErrInvalidInput, p)
		}
		query, args, err := sq.Delete("records").
			Where(sq.Eq{"collection": collection, "id": id}).
			ToSql()
		if err != nil {
			return fmt.Errorf("building delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("deleting %s: %w", p, err)
		}
	}
	return tx.Commit()
}

// buildQuery translates a record query into SQL.
func buildQuery(q driven.RecordQuery) (string, []any, error) {
	builder := sq.Select("id", "data").
		From("records").
		Where(sq.Eq{"collection": q.Collection})

	keys := make([]string, 0, len(q.Equals))
	for k := range q.Equals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fieldName.MatchString(k) {
			return "", nil, fmt.Errorf("%w: bad filter field %q", domain.ErrInvalidInput, k)
		}
		builder = builder.Where(sq.Expr("json_extract(data, ?) = ?", "$."+k, sqlValue(q.Equals[k])))
	}

	switch {
	case q.OrderBy == "":
		builder = builder.OrderBy("rowid")
	case !fieldName.MatchString(q.OrderBy):
		return "", nil, fmt.Errorf("%w: bad order field %q", domain.ErrInvalidInput, q.OrderBy)
	default:
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		builder = builder.OrderBy(fmt.Sprintf("json_extract(data, '$.%s') %s", q.OrderBy, dir), "rowid")
	}

	if q.Limit > 0 {
		builder = builder.Limit(uint64(q.Limit))
	}
	return builder.ToSql()
}

// sqlValue maps a filter value onto what json_extract returns for it.
func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getData(ctx context.Context, db queryRower, collection, id string) ([]byte, error) {
	query, args, err := sq.Select("data").
		From("records").
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	var data string
	err = db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", collection, id, err)
	}
	return []byte(data), nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_records.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}
