package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNotFound is returned when no payload matches.
var ErrNotFound = errors.New("payload not found")

// StorePayload gzips and stores payload. It returns the new row id, or 0 when
// an identical payload (same sha256) is already archived.
func (s *Store) StorePayload(ctx context.Context, runID *int64, op, endpoint string, payload []byte) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return 0, fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256(payload)

	var run sql.NullInt64
	if runID != nil {
		run = sql.NullInt64{Int64: *runID, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO raw_payloads (fetch_run_id, fetched_at, op, endpoint, payload_compressed, payload_hash, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(payload_hash) DO NOTHING
	`, run, formatTime(time.Now()), op, endpoint, buf.Bytes(), hex.EncodeToString(hash[:]), len(payload))
	if err != nil {
		return 0, fmt.Errorf("insert raw payload: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return 0, err
	}
	return res.LastInsertId()
}

// Payload returns the decompressed payload with the given id.
func (s *Store) Payload(ctx context.Context, id int64) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload_compressed FROM raw_payloads WHERE id = ?`, id).Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payload %d: %w", id, err)
	}
	return gunzip(compressed)
}

// LatestPayload returns the most recently archived payload for endpoint.
func (s *Store) LatestPayload(ctx context.Context, endpoint string) ([]byte, time.Time, error) {
	var (
		compressed []byte
		fetched    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT payload_compressed, fetched_at FROM raw_payloads
		WHERE endpoint = ?
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`, endpoint).Scan(&compressed, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query latest payload: %w", err)
	}
	at, err := parseTime(fetched)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse fetched_at %q: %w", fetched, err)
	}
	body, err := gunzip(compressed)
	return body, at, err
}

func gunzip(b []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()
	return io.ReadAll(gz)
}

// Stats describes archive storage.
type Stats struct {
	Payloads        int              `json:"payloads"`
	CompressedBytes int64            `json:"compressedBytes"`
	RawBytes        int64            `json:"rawBytes"`
	Runs            int              `json:"runs"`
	FailedRuns      int              `json:"failedRuns"`
	Oldest          time.Time        `json:"oldest"`
	Newest          time.Time        `json:"newest"`
	CountByOp       map[string]int   `json:"countByOp"`
	SizeByOp        map[string]int64 `json:"sizeByOp"`
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{CountByOp: map[string]int{}, SizeByOp: map[string]int64{}}

	var oldest, newest sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(LENGTH(payload_compressed)), 0), COALESCE(SUM(size_bytes), 0),
			MIN(fetched_at), MAX(fetched_at)
		FROM raw_payloads
	`).Scan(&st.Payloads, &st.CompressedBytes, &st.RawBytes, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("query payload stats: %w", err)
	}
	if oldest.Valid {
		st.Oldest, _ = parseTime(oldest.String)
	}
	if newest.Valid {
		st.Newest, _ = parseTime(newest.String)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END), 0) FROM fetch_runs
	`).Scan(&st.Runs, &st.FailedRuns)
	if err != nil {
		return nil, fmt.Errorf("query run stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT op, COUNT(*), SUM(LENGTH(payload_compressed)) FROM raw_payloads GROUP BY op
	`)
	if err != nil {
		return nil, fmt.Errorf("query payloads by op: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			op    string
			count int
			size  int64
		)
		if err := rows.Scan(&op, &count, &size); err != nil {
			return nil, err
		}
		st.CountByOp[op] = count
		st.SizeByOp[op] = size
	}
	return st, rows.Err()
}

// Cleanup deletes payloads and runs older than before. It returns the number
// of payloads removed.
func (s *Store) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	cutoff := formatTime(before)
	res, err := s.db.ExecContext(ctx, `DELETE FROM raw_payloads WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete payloads: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM fetch_runs WHERE started_at < ?
		AND id NOT IN (SELECT fetch_run_id FROM raw_payloads WHERE fetch_run_id IS NOT NULL)
	`, cutoff); err != nil {
		return n, fmt.Errorf("delete runs: %w", err)
	}
	return n, nil
}
