// Package archive keeps an audit trail of analysis service calls and a
// deduplicated copy of every payload received, in sqlite.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/casa-dashboard/inaddash/internal/gateway"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) the archive database at path and migrates it.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	s := New(db)
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordCall stores the call as a fetch run and, for successful calls with a
// body, the payload. Failures are logged and never reach the caller.
func (s *Store) RecordCall(ctx context.Context, c gateway.Call) {
	run := FetchRun{
		StartedAt:  c.StartedAt,
		Op:         c.Op,
		Endpoint:   c.Endpoint,
		RequestID:  c.RequestID,
		HTTPStatus: c.Status,
		SizeBytes:  int64(len(c.Body)),
		Duration:   c.Duration,
		Success:    c.Err == nil && c.Status >= 200 && c.Status < 300,
	}
	if c.Err != nil {
		run.ErrorMessage = c.Err.Error()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	id, err := s.InsertFetchRun(ctx, run)
	if err != nil {
		log.Printf("archive: record %s: %v", c.Op, err)
		return
	}
	if !run.Success || len(c.Body) == 0 {
		return
	}
	if _, err := s.StorePayload(ctx, &id, c.Op, c.Endpoint, c.Body); err != nil {
		log.Printf("archive: store payload for %s: %v", c.Op, err)
	}
}

var _ gateway.Recorder = (*Store)(nil)
