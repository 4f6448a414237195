package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const indexColumns = "id, topic, title, url, real_url, source, feed_date, published_date, inserted_at"

// UpsertIndexEntry records a discovered headline. Re-inserting an entry with
// the same topic, resolved URL, and publication date is a no-op; the return
// value reports whether a new row was created.
func (s *Store) UpsertIndexEntry(ctx context.Context, entry *IndexEntry) (bool, error) {
	if entry == nil {
		return false, errors.New("entry is nil")
	}
	now := time.Now().UTC()
	res, err := s.indexDB.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO search_index (
            topic, title, url, real_url, source, feed_date, published_date, inserted_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Topic,
		entry.Title,
		entry.URL,
		entry.RealURL,
		nullableString(entry.Source),
		nullableString(entry.FeedDate),
		entry.PublishedDate,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("insert index entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		if id, idErr := res.LastInsertId(); idErr == nil {
			entry.ID = id
		}
		entry.InsertedAt = now
	}
	return affected > 0, nil
}

// EntriesByDate returns all index entries for a publication date in
// insertion order.
func (s *Store) EntriesByDate(ctx context.Context, date string) ([]*IndexEntry, error) {
	rows, err := s.indexDB.QueryContext(
		ctx,
		`SELECT `+indexColumns+` FROM search_index WHERE published_date = ? ORDER BY inserted_at, id`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query index by date: %w", err)
	}
	defer rows.Close()

	var entries []*IndexEntry
	for rows.Next() {
		entry, err := scanIndexEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// TopicsFor returns the distinct topics associated with a resolved URL on a
// publication date, in first-seen order.
func (s *Store) TopicsFor(ctx context.Context, realURL, date string) ([]string, error) {
	rows, err := s.indexDB.QueryContext(
		ctx,
		`SELECT DISTINCT topic FROM search_index
         WHERE real_url = ? AND published_date = ?
         ORDER BY id`,
		realURL,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

// IndexCountByDate returns the number of index entries for a date.
func (s *Store) IndexCountByDate(ctx context.Context, date string) (int, error) {
	var count int
	err := s.indexDB.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM search_index WHERE published_date = ?`,
		date,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count index entries: %w", err)
	}
	return count, nil
}

// DeleteIndexOlderThan removes index entries whose publication date precedes
// the cutoff date (exclusive).
func (s *Store) DeleteIndexOlderThan(ctx context.Context, cutoffDate string) (int64, error) {
	res, err := s.indexDB.ExecContext(
		ctx,
		`DELETE FROM search_index WHERE published_date < ?`,
		cutoffDate,
	)
	if err != nil {
		return 0, fmt.Errorf("delete old index entries: %w", err)
	}
	return res.RowsAffected()
}

// DeleteIndexByDate removes all index entries for one publication date.
func (s *Store) DeleteIndexByDate(ctx context.Context, date string) (int64, error) {
	res, err := s.indexDB.ExecContext(
		ctx,
		`DELETE FROM search_index WHERE published_date = ?`,
		date,
	)
	if err != nil {
		return 0, fmt.Errorf("delete index entries for date: %w", err)
	}
	return res.RowsAffected()
}

func scanIndexEntry(scanner interface{ Scan(dest ...any) error }) (*IndexEntry, error) {
	var (
		id          int64
		topic       string
		title       string
		url         string
		realURL     string
		source      sql.NullString
		feedDate    sql.NullString
		published   string
		insertedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &topic, &title, &url, &realURL, &source, &feedDate, &published, &insertedRaw); err != nil {
		return nil, err
	}
	entry := &IndexEntry{
		ID:            id,
		Topic:         topic,
		Title:         title,
		URL:           url,
		RealURL:       realURL,
		Source:        source.String,
		FeedDate:      feedDate.String,
		PublishedDate: published,
	}
	if inserted, err := parseTimeString(insertedRaw.String); err == nil {
		entry.InsertedAt = inserted
	}
	return entry, nil
}
