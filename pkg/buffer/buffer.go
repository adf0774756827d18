/*
 * Copyright 2025 SmartPark Systems.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package buffer is the durable store for events that failed immediate
// delivery. A record exists in the buffer if and only if it has not yet been
// acknowledged by the collector; records are deleted only after a confirmed
// delivery (or on unrecoverable payload corruption, which is a logged
// data-loss path).
package buffer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/smartpark/parkedge/pkg/logger"
	"github.com/smartpark/parkedge/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS event_buffer (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	retry_count INTEGER DEFAULT 0,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
)`

// Store is the SQLite-backed delivery buffer. The processing path appends on
// delivery failure while the replay loop reads and deletes batches; a single
// mutex serializes both so the two schedules never interleave into an
// inconsistent state.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	logger zerolog.Logger
}

// New opens (creating if needed) the buffer database at path.
func New(path string, log logger.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open buffer database: %w", err)
	}

	// database/sql pooling would undermine the single-writer model.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buffer schema: %w", err)
	}

	l := log.WithComponent("buffer")
	l.Info().Str("path", path).Msg("Buffer database initialized")

	return &Store{db: db, logger: l}, nil
}

// Append inserts one record at the tail of the buffer.
func (s *Store) Append(ctx context.Context, eventType, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event_buffer (event_type, payload, timestamp) VALUES (?, ?, ?)`,
		eventType, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to buffer record: %w", err)
	}

	return nil
}

// PeekBatch returns up to limit of the oldest records by insertion id,
// without removing them.
func (s *Store) PeekBatch(ctx context.Context, limit int) ([]models.BufferedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_type, payload, timestamp, retry_count, created_at
		 FROM event_buffer ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read buffer batch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.BufferedRecord

	for rows.Next() {
		var (
			rec                  models.BufferedRecord
			timestamp, createdAt string
		)

		if err := rows.Scan(&rec.ID, &rec.EventType, &rec.Payload, &timestamp, &rec.RetryCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan buffered record: %w", err)
		}

		rec.Timestamp = parseStoredTime(timestamp)
		rec.CreatedAt = parseStoredTime(createdAt)

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate buffer batch: %w", err)
	}

	return records, nil
}

// Delete removes exactly the given records in one transaction. Replay calls
// this only after the collector acknowledged the batch those ids came from.
func (s *Store) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin buffer delete: %w", err)
	}

	query, args := inClause(`DELETE FROM event_buffer WHERE id IN (%s)`, ids)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete buffered records: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit buffer delete: %w", err)
	}

	return nil
}

// IncrementRetry bumps the retry counter on the given records after a failed
// replay attempt.
func (s *Store) IncrementRetry(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query, args := inClause(`UPDATE event_buffer SET retry_count = retry_count + 1 WHERE id IN (%s)`, ids)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to increment retry counts: %w", err)
	}

	return nil
}

// DeleteExhausted drops records whose retry count reached maxRetries and
// returns how many were dropped. maxRetries <= 0 means retry forever.
func (s *Store) DeleteExhausted(ctx context.Context, maxRetries int) (int64, error) {
	if maxRetries <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM event_buffer WHERE retry_count >= ?`, maxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to drop exhausted records: %w", err)
	}

	dropped, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count dropped records: %w", err)
	}

	if dropped > 0 {
		s.logger.Warn().Int64("dropped", dropped).Int("max_retries", maxRetries).
			Msg("Dropped buffered records after retry cutoff")
	}

	return dropped, nil
}

// Depth counts the persisted records on demand.
func (s *Store) Depth(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var depth int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_buffer`).Scan(&depth); err != nil {
		return 0, fmt.Errorf("failed to count buffered records: %w", err)
	}

	return depth, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Close()
}

func inClause(format string, ids []int64) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))

	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	return fmt.Sprintf(format, strings.Join(placeholders, ",")), args
}

func parseStoredTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}

	if t, err := time.Parse("2006-01-02 15:04:05", value); err == nil {
		return t
	}

	return time.Time{}
}
