package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const contentColumns = "id, real_url, title, topic, source, published_date, status, clean_text, summary_text, audio_path, failure_stage, failure_reason, purgeable, inserted_at, updated_at, summarized_at"

// UpsertContentRecord ensures a content record exists for a resolved URL.
// When a record already exists it is returned untouched: discovery never
// clobbers downstream progress.
func (s *Store) UpsertContentRecord(ctx context.Context, record *ContentRecord) (*ContentRecord, bool, error) {
	if record == nil {
		return nil, false, errors.New("record is nil")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	status := record.Status
	if status == "" {
		status = StatusDiscovered
	}

	res, err := s.contentDB.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO content_records (
            real_url, title, topic, source, published_date, status,
            purgeable, inserted_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		record.RealURL,
		record.Title,
		record.Topic,
		nullableString(record.Source),
		record.PublishedDate,
		status,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert content record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	existing, err := s.ContentByRealURL(ctx, record.RealURL)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("content record for %q missing after insert", record.RealURL)
	}
	return existing, affected > 0, nil
}

// ContentByID fetches a content record by identifier.
func (s *Store) ContentByID(ctx context.Context, id int64) (*ContentRecord, error) {
	row := s.contentDB.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content_records WHERE id = ?`, id)
	record, err := scanContentRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content record: %w", err)
	}
	return record, nil
}

// ContentByRealURL fetches a content record by its resolved URL.
func (s *Store) ContentByRealURL(ctx context.Context, realURL string) (*ContentRecord, error) {
	row := s.contentDB.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content_records WHERE real_url = ?`, realURL)
	record, err := scanContentRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content record by url: %w", err)
	}
	return record, nil
}

// ContentByDateAndStatus returns records for a publication date in one or
// more statuses, ordered by insertion time then identifier.
func (s *Store) ContentByDateAndStatus(ctx context.Context, date string, statuses ...Status) ([]*ContentRecord, error) {
	query := `SELECT ` + contentColumns + ` FROM content_records WHERE published_date = ?`
	args := []any{date}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` AND status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY inserted_at, id`

	rows, err := s.contentDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query content by date and status: %w", err)
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

// FieldUpdates carries the stage outputs persisted alongside a status
// transition. Nil fields are left untouched.
type FieldUpdates struct {
	CleanText    *string
	SummaryText  *string
	AudioPath    *string
	SummarizedAt *time.Time
}

// AdvanceStatus moves a record from one status to the next via compare-and-set.
// If the record is no longer in the expected status, ErrConflict is returned
// and no fields change. A missing record returns ErrNotFound.
func (s *Store) AdvanceStatus(ctx context.Context, id int64, from, to Status, updates FieldUpdates) error {
	setClauses := []string{"status = ?", "updated_at = ?"}
	args := []any{to, time.Now().UTC().Format(time.RFC3339Nano)}

	if updates.CleanText != nil {
		setClauses = append(setClauses, "clean_text = ?")
		args = append(args, *updates.CleanText)
	}
	if updates.SummaryText != nil {
		setClauses = append(setClauses, "summary_text = ?")
		args = append(args, *updates.SummaryText)
	}
	if updates.AudioPath != nil {
		setClauses = append(setClauses, "audio_path = ?")
		args = append(args, *updates.AudioPath)
	}
	if updates.SummarizedAt != nil {
		setClauses = append(setClauses, "summarized_at = ?")
		args = append(args, updates.SummarizedAt.UTC().Format(time.RFC3339Nano))
	}
	args = append(args, id, from)

	res, err := s.contentDB.ExecContext(
		ctx,
		`UPDATE content_records SET `+strings.Join(setClauses, ", ")+` WHERE id = ? AND status = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("advance status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	record, err := s.ContentByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("advance record %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("advance record %d from %s to %s, found %s: %w", id, from, to, record.Status, ErrConflict)
}

// MarkFailed records a stage failure for a record. The record keeps any
// outputs accumulated so far.
func (s *Store) MarkFailed(ctx context.Context, id int64, stage, reason string) error {
	res, err := s.contentDB.ExecContext(
		ctx,
		`UPDATE content_records
         SET status = ?, failure_stage = ?, failure_reason = ?, updated_at = ?
         WHERE id = ?`,
		StatusFailed,
		stage,
		reason,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark record %d failed: %w", id, ErrNotFound)
	}
	return nil
}

// RequeueFailed resets records that failed at the given stage back to that
// stage's input status, clearing the failure fields so the stage can try
// them again on a later run. Outputs from earlier stages are kept.
func (s *Store) RequeueFailed(ctx context.Context, date, stage string, to Status) (int64, error) {
	res, err := s.contentDB.ExecContext(
		ctx,
		`UPDATE content_records
         SET status = ?, failure_stage = NULL, failure_reason = NULL, updated_at = ?
         WHERE published_date = ? AND status = ? AND failure_stage = ?`,
		to,
		time.Now().UTC().Format(time.RFC3339Nano),
		date,
		StatusFailed,
		stage,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue failed records: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func scanContentRecord(scanner interface{ Scan(dest ...any) error }) (*ContentRecord, error) {
	var (
		id            int64
		realURL       string
		title         string
		topic         string
		source        sql.NullString
		published     string
		statusStr     string
		cleanText     sql.NullString
		summaryText   sql.NullString
		audioPath     sql.NullString
		failureStage  sql.NullString
		failureReason sql.NullString
		purgeable     sql.NullInt64
		insertedRaw   sql.NullString
		updatedRaw    sql.NullString
		summarizedRaw sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&realURL,
		&title,
		&topic,
		&source,
		&published,
		&statusStr,
		&cleanText,
		&summaryText,
		&audioPath,
		&failureStage,
		&failureReason,
		&purgeable,
		&insertedRaw,
		&updatedRaw,
		&summarizedRaw,
	); err != nil {
		return nil, err
	}

	record := &ContentRecord{
		ID:            id,
		RealURL:       realURL,
		Title:         title,
		Topic:         topic,
		Source:        source.String,
		PublishedDate: published,
		Status:        Status(statusStr),
		CleanText:     cleanText.String,
		SummaryText:   summaryText.String,
		AudioPath:     audioPath.String,
		FailureStage:  failureStage.String,
		FailureReason: failureReason.String,
	}
	if purgeable.Valid {
		record.Purgeable = purgeable.Int64 != 0
	}
	if inserted, err := parseTimeString(insertedRaw.String); err == nil {
		record.InsertedAt = inserted
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	if summarizedRaw.Valid {
		if summarized, err := parseTimeString(summarizedRaw.String); err == nil {
			record.SummarizedAt = &summarized
		}
	}
	return record, nil
}
