package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"dailycast/internal/config"
)

// Store manages pipeline persistence backed by two SQLite databases: the
// search index of discovered headlines and the content records that move
// through the stages.
type Store struct {
	indexDB     *sql.DB
	contentDB   *sql.DB
	indexPath   string
	contentPath string
}

// Open initializes or connects to both databases and verifies their schemas.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	indexDB, err := openDatabase(cfg.Paths.IndexDB)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	contentDB, err := openDatabase(cfg.Paths.ContentDB)
	if err != nil {
		_ = indexDB.Close()
		return nil, fmt.Errorf("open content db: %w", err)
	}

	store := &Store{
		indexDB:     indexDB,
		contentDB:   contentDB,
		indexPath:   cfg.Paths.IndexDB,
		contentPath: cfg.Paths.ContentDB,
	}

	ctx := context.Background()
	if err := initSchema(ctx, indexDB, indexSchemaSQL, "index"); err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := initSchema(ctx, contentDB, contentSchemaSQL, "content"); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func openDatabase(path string) (*sql.DB, error) {
	// Pragmas go in the DSN so the driver applies them to every pooled
	// connection; a plain Exec would configure only the connection it
	// happens to run on, leaving concurrent writers without a busy timeout.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite db %s: %w", path, err)
	}
	return db, nil
}

// Close closes both database connections.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.indexDB != nil {
		if err := s.indexDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close index db: %w", err))
		}
	}
	if s.contentDB != nil {
		if err := s.contentDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close content db: %w", err))
		}
	}
	return errors.Join(errs...)
}

// IndexPath returns the filesystem path of the search index database.
func (s *Store) IndexPath() string { return s.indexPath }

// ContentPath returns the filesystem path of the content database.
func (s *Store) ContentPath() string { return s.contentPath }

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
