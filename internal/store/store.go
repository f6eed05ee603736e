package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jverhagen/fotomemo/internal/model"
)

// Verify at compile time that Store implements the contracts.
var (
	_ FileStore  = (*Store)(nil)
	_ Slots      = (*Store)(nil)
	_ Repository = (*Store)(nil)
)

// Store provides data access to the SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// currentSchemaVersion is bumped whenever the schema changes.
// Add a new migration function in the migrations slice below.
const currentSchemaVersion = 2

func (s *Store) migrate() error {
	// Ensure the schema_version table exists.
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		// Fresh database: initialize to version 0.
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// migrations is an ordered list of migration functions.
	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: initial schema
		s.migrateV2, // v1 → v2: add taken_at column
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}

	return nil
}

// migrateV1 creates the initial schema (v0 → v1).
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		id            TEXT PRIMARY KEY,
		buffer        BLOB NOT NULL,
		mime_type     TEXT NOT NULL,
		title         TEXT NOT NULL,
		custom_name   TEXT NOT NULL,
		file_type     TEXT NOT NULL,
		size          TEXT NOT NULL,
		date_modified TEXT NOT NULL,
		category      TEXT NOT NULL DEFAULT '',
		notes         TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_files_category ON files(category);

	CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// migrateV2 adds the taken_at column (v1 → v2).
func (s *Store) migrateV2() error {
	_, err := s.db.Exec(`ALTER TABLE files ADD COLUMN taken_at TEXT NOT NULL DEFAULT ''`)
	return err
}

// ---------------------------------------------------------------------------
// Files
// ---------------------------------------------------------------------------

const metaColumns = `id, title, custom_name, file_type, size, date_modified, taken_at, category, notes`

// UpsertMany merges a batch of freshly scanned files into the store.
// For records that already exist the stored category, custom name and notes
// win over the incoming defaults, so a rescan never resets prior sorting
// work. Each record is read-then-written in its own transaction; a failure
// on one record does not block the rest of the batch.
func (s *Store) UpsertMany(ctx context.Context, files []StoredFile) (UpsertResult, error) {
	var res UpsertResult
	var errs []error

	for _, f := range files {
		inserted, err := s.upsertOne(ctx, f)
		if err != nil {
			errs = append(errs, fmt.Errorf("upsert %s: %w", f.ID, err))
			continue
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	return res, errors.Join(errs...)
}

func (s *Store) upsertOne(ctx context.Context, f StoredFile) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var customName, category, notes string
	err = tx.QueryRowContext(ctx,
		`SELECT custom_name, category, notes FROM files WHERE id = ?`, f.ID,
	).Scan(&customName, &category, &notes)
	switch {
	case err == nil:
		// Existing record: user-assigned metadata is preserved.
		f.Meta.CustomName = customName
		f.Meta.Category = category
		f.Meta.Notes = notes
	case errors.Is(err, sql.ErrNoRows):
		inserted = true
	default:
		return false, err
	}

	// ON CONFLICT DO UPDATE keeps the existing row (and its rowid), so a
	// rescan never changes the load order of items already in the list.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO files (id, buffer, mime_type, title, custom_name, file_type, size, date_modified, taken_at, category, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			buffer = excluded.buffer,
			mime_type = excluded.mime_type,
			title = excluded.title,
			custom_name = excluded.custom_name,
			file_type = excluded.file_type,
			size = excluded.size,
			date_modified = excluded.date_modified,
			taken_at = excluded.taken_at,
			category = excluded.category,
			notes = excluded.notes`,
		f.ID, f.Buffer, f.MimeType, f.Meta.Title, f.Meta.CustomName, f.Meta.Type,
		f.Meta.Size, f.Meta.DateModified, f.Meta.TakenAt, f.Meta.Category, f.Meta.Notes,
	)
	if err != nil {
		return false, err
	}
	return inserted, tx.Commit()
}

// UpdateMetadata merges the non-nil patch fields into an existing record.
// A missing id is a silent no-op. The update is a single statement, so it
// is atomic for that record.
func (s *Store) UpdateMetadata(ctx context.Context, id string, patch model.MetaPatch) error {
	var sets []string
	var args []interface{}

	if patch.CustomName != nil {
		sets = append(sets, "custom_name = ?")
		args = append(args, *patch.CustomName)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *patch.Category)
	}
	if patch.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *patch.Notes)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE files SET %s WHERE id = ?`, strings.Join(sets, ", "))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// DeleteMany removes the records for the given ids. Missing ids are
// ignored, not an error.
func (s *Store) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`DELETE FROM files WHERE id IN (%s)`, strings.Join(placeholders, ","))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LoadAll returns the metadata of every stored record, in insertion order.
func (s *Store) LoadAll(ctx context.Context) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+metaColumns+` FROM files ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.Title, &it.CustomName, &it.Type, &it.Size,
			&it.DateModified, &it.TakenAt, &it.Category, &it.Notes); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// LoadBlob returns the raw bytes and MIME type for one record.
func (s *Store) LoadBlob(ctx context.Context, id string) ([]byte, string, error) {
	var buf []byte
	var mimeType string
	err := s.db.QueryRowContext(ctx,
		`SELECT buffer, mime_type FROM files WHERE id = ?`, id,
	).Scan(&buf, &mimeType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("blob %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, "", err
	}
	return buf, mimeType, nil
}

// ---------------------------------------------------------------------------
// Slots
// ---------------------------------------------------------------------------

// GetSlot returns the value stored under key, or "" when the slot is unset.
func (s *Store) GetSlot(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetSlot stores value under key, replacing any previous value.
func (s *Store) SetSlot(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// DeleteSlot removes the slot. Missing keys are ignored.
func (s *Store) DeleteSlot(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}
