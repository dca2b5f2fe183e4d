package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// FetchRun is one audited call to the analysis service.
type FetchRun struct {
	ID           int64
	StartedAt    time.Time
	Op           string
	Endpoint     string
	RequestID    string
	HTTPStatus   int
	SizeBytes    int64
	Duration     time.Duration
	Success      bool
	ErrorMessage string
}

func (s *Store) InsertFetchRun(ctx context.Context, r FetchRun) (int64, error) {
	var errMsg sql.NullString
	if r.ErrorMessage != "" {
		errMsg = sql.NullString{String: r.ErrorMessage, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO fetch_runs
		(started_at, op, endpoint, request_id, http_status, response_size_bytes, duration_ms, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, formatTime(r.StartedAt), r.Op, r.Endpoint, r.RequestID, r.HTTPStatus, r.SizeBytes,
		r.Duration.Milliseconds(), r.Success, errMsg)
	if err != nil {
		return 0, fmt.Errorf("insert fetch run: %w", err)
	}
	return res.LastInsertId()
}

// OpSummary aggregates fetch runs for one operation.
type OpSummary struct {
	Op            string
	TotalRuns     int
	SuccessRuns   int
	FailedRuns    int
	AvgDurationMS float64
	Bytes         int64
}

// Summary aggregates runs started after since, grouped by operation.
func (s *Store) Summary(ctx context.Context, since time.Time) ([]OpSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT op,
			COUNT(*),
			SUM(CASE WHEN success THEN 1 ELSE 0 END),
			SUM(CASE WHEN success THEN 0 ELSE 1 END),
			COALESCE(AVG(duration_ms), 0),
			COALESCE(SUM(response_size_bytes), 0)
		FROM fetch_runs
		WHERE started_at >= ?
		GROUP BY op
		ORDER BY op
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("query run summary: %w", err)
	}
	defer rows.Close()

	var out []OpSummary
	for rows.Next() {
		var o OpSummary
		if err := rows.Scan(&o.Op, &o.TotalRuns, &o.SuccessRuns, &o.FailedRuns, &o.AvgDurationMS, &o.Bytes); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// RecentErrors returns the latest failed runs, newest first.
func (s *Store) RecentErrors(ctx context.Context, limit int) ([]FetchRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, op, endpoint, COALESCE(request_id, ''), COALESCE(http_status, 0),
			COALESCE(response_size_bytes, 0), COALESCE(duration_ms, 0), success, COALESCE(error_message, '')
		FROM fetch_runs
		WHERE success = FALSE
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent errors: %w", err)
	}
	defer rows.Close()

	var out []FetchRun
	for rows.Next() {
		var (
			r       FetchRun
			started string
			durMS   int64
		)
		if err := rows.Scan(&r.ID, &started, &r.Op, &r.Endpoint, &r.RequestID, &r.HTTPStatus,
			&r.SizeBytes, &durMS, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", started, err)
		}
		r.Duration = time.Duration(durMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}
