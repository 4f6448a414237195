package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// MarkPurgeable flags content records whose publication date precedes the
// cutoff (exclusive) as eligible for deletion. Flagging is a separate step
// from deletion so an interrupted cleanup can resume without re-scanning.
func (s *Store) MarkPurgeable(ctx context.Context, cutoffDate string) (int64, error) {
	res, err := s.contentDB.ExecContext(
		ctx,
		`UPDATE content_records
         SET purgeable = 1, updated_at = ?
         WHERE published_date < ? AND purgeable = 0`,
		time.Now().UTC().Format(time.RFC3339Nano),
		cutoffDate,
	)
	if err != nil {
		return 0, fmt.Errorf("mark purgeable: %w", err)
	}
	return res.RowsAffected()
}

// MarkPurgeableByDate flags every content record for a single publication
// date, regardless of age.
func (s *Store) MarkPurgeableByDate(ctx context.Context, date string) (int64, error) {
	res, err := s.contentDB.ExecContext(
		ctx,
		`UPDATE content_records
         SET purgeable = 1, updated_at = ?
         WHERE published_date = ? AND purgeable = 0`,
		time.Now().UTC().Format(time.RFC3339Nano),
		date,
	)
	if err != nil {
		return 0, fmt.Errorf("mark purgeable by date: %w", err)
	}
	return res.RowsAffected()
}

// PurgeableContent returns every record flagged for deletion.
func (s *Store) PurgeableContent(ctx context.Context) ([]*ContentRecord, error) {
	rows, err := s.contentDB.QueryContext(
		ctx,
		`SELECT `+contentColumns+` FROM content_records WHERE purgeable = 1 ORDER BY published_date, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query purgeable content: %w", err)
	}
	defer rows.Close()

	var records []*ContentRecord
	for rows.Next() {
		record, err := scanContentRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeleteContent removes a single content record. Callers delete the record's
// audio file first so a crash leaves a dangling row, never a dangling file
// reference.
func (s *Store) DeleteContent(ctx context.Context, id int64) (bool, error) {
	res, err := s.contentDB.ExecContext(ctx, `DELETE FROM content_records WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete content record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ContentDates returns the distinct publication dates present in the content
// database, newest first.
func (s *Store) ContentDates(ctx context.Context) ([]string, error) {
	rows, err := s.contentDB.QueryContext(
		ctx,
		`SELECT DISTINCT published_date FROM content_records ORDER BY published_date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query content dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, err
		}
		dates = append(dates, date)
	}
	return dates, rows.Err()
}

// StatsByDate aggregates pipeline state for one publication date.
func (s *Store) StatsByDate(ctx context.Context, date string) (DateStats, error) {
	stats := DateStats{Date: date, ByStatus: make(map[Status]int)}

	indexCount, err := s.IndexCountByDate(ctx, date)
	if err != nil {
		return stats, err
	}
	stats.IndexCount = indexCount

	rows, err := s.contentDB.QueryContext(
		ctx,
		`SELECT status, COUNT(1) FROM content_records WHERE published_date = ? GROUP BY status`,
		date,
	)
	if err != nil {
		return stats, fmt.Errorf("content stats by date: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	topicRows, err := s.indexDB.QueryContext(
		ctx,
		`SELECT DISTINCT topic FROM search_index WHERE published_date = ? ORDER BY topic`,
		date,
	)
	if err != nil {
		return stats, fmt.Errorf("topic stats by date: %w", err)
	}
	defer topicRows.Close()
	for topicRows.Next() {
		var topic string
		if err := topicRows.Scan(&topic); err != nil {
			return stats, err
		}
		stats.Topics = append(stats.Topics, topic)
	}
	return stats, topicRows.Err()
}

// Overview aggregates totals across both databases plus per-date breakdowns
// for every date still present in the content database.
func (s *Store) Overview(ctx context.Context) (Stats, error) {
	stats := Stats{ByStatus: make(map[Status]int)}

	if err := s.indexDB.QueryRowContext(ctx, `SELECT COUNT(1) FROM search_index`).Scan(&stats.IndexTotal); err != nil {
		return stats, fmt.Errorf("count index total: %w", err)
	}
	if err := s.contentDB.QueryRowContext(ctx, `SELECT COUNT(1) FROM content_records`).Scan(&stats.ContentTotal); err != nil {
		return stats, fmt.Errorf("count content total: %w", err)
	}

	rows, err := s.contentDB.QueryContext(ctx, `SELECT status, COUNT(1) FROM content_records GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("content status totals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	dates, err := s.ContentDates(ctx)
	if err != nil {
		return stats, err
	}
	for _, date := range dates {
		dateStats, err := s.StatsByDate(ctx, date)
		if err != nil {
			return stats, err
		}
		stats.ByDate = append(stats.ByDate, dateStats)
	}
	return stats, nil
}

// Maintenance runs integrity checks and compacts both databases.
func (s *Store) Maintenance(ctx context.Context) error {
	targets := []struct {
		label string
		db    *sql.DB
	}{
		{"index", s.indexDB},
		{"content", s.contentDB},
	}
	for _, target := range targets {
		var result string
		if err := target.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
			return fmt.Errorf("%s integrity check: %w", target.label, err)
		}
		if !strings.EqualFold(result, "ok") {
			return fmt.Errorf("%s database failed integrity check: %s", target.label, result)
		}
		if _, err := target.db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("vacuum %s database: %w", target.label, err)
		}
	}
	return nil
}
