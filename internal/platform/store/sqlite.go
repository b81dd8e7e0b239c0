package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver

	"github.com/dontdude/goconv/internal/domain"
)

// SQLiteStore persists artifacts in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

var _ domain.ArtifactStore = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, (5 * time.Second).Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	// One writer keeps AUTOINCREMENT ids and WAL checkpoints simple.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_name TEXT NOT NULL,
		content BLOB NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_file_name ON artifacts(file_name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PersistArtifact inserts the file and returns its row id.
func (s *SQLiteStore) PersistArtifact(ctx context.Context, data []byte, filename string) (domain.ArtifactID, error) {
	if data == nil {
		data = []byte{}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (file_name, content, created_at) VALUES (?, ?, ?)`,
		filename, data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrArtifactPersist, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrArtifactPersist, err)
	}
	return domain.ArtifactID(id), nil
}

// Artifact loads one file by id.
func (s *SQLiteStore) Artifact(ctx context.Context, id domain.ArtifactID) (domain.Artifact, error) {
	a := domain.Artifact{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT file_name, content FROM artifacts WHERE id = ?`, int64(id)).
		Scan(&a.Filename, &a.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Artifact{}, domain.ErrArtifactNotFound
	}
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("load artifact %d: %w", id, err)
	}
	return a, nil
}

// Search matches term anywhere in the file name, ignoring case.
func (s *SQLiteStore) Search(ctx context.Context, term string) ([]domain.ArtifactInfo, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name FROM artifacts WHERE lower(file_name) LIKE ? ESCAPE '\' ORDER BY id`, pattern)
	if err != nil {
		return nil, fmt.Errorf("search artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []domain.ArtifactInfo{}
	for rows.Next() {
		var info domain.ArtifactInfo
		var id int64
		if err := rows.Scan(&id, &info.Filename); err != nil {
			return nil, err
		}
		info.ID = domain.ArtifactID(id)
		results = append(results, info)
	}
	return results, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
