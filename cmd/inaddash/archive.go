package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casa-dashboard/inaddash/internal/archive"
)

type ArchiveStatsCmd struct {
	Since   time.Duration `help:"Summarize calls from this far back." default:"24h"`
	Errors  int           `help:"Number of recent failures to list." default:"10"`
	Cleanup time.Duration `help:"Delete runs and payloads older than this (0 keeps everything)." default:"0"`
}

func (c *ArchiveStatsCmd) Run(g *Globals) error {
	s, err := g.settings()
	if err != nil {
		return err
	}
	if s.ArchivePath == "" {
		return errors.New("no archive configured (--archive)")
	}
	arch, err := archive.Open(s.ArchivePath)
	if err != nil {
		return err
	}
	defer arch.Close()
	ctx := context.Background()

	if c.Cleanup > 0 {
		n, err := arch.Cleanup(ctx, time.Now().Add(-c.Cleanup))
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d rows older than %s\n\n", n, c.Cleanup)
	}

	stats, err := arch.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Archive: %s\n", s.ArchivePath)
	fmt.Printf("Runs:     %d (%d failed)\n", stats.Runs, stats.FailedRuns)
	fmt.Printf("Payloads: %d (%d bytes compressed, %d raw)\n", stats.Payloads, stats.CompressedBytes, stats.RawBytes)
	if !stats.Oldest.IsZero() {
		fmt.Printf("Range:    %s to %s\n", stats.Oldest.Format(time.RFC3339), stats.Newest.Format(time.RFC3339))
	}

	summary, err := arch.Summary(ctx, time.Now().Add(-c.Since))
	if err != nil {
		return err
	}
	fmt.Printf("\nLast %s:\n", c.Since)
	for _, op := range summary {
		fmt.Printf("  %-18s %4d runs  %4d ok  %4d failed  %7.1f ms avg  %8d bytes\n",
			op.Op, op.TotalRuns, op.SuccessRuns, op.FailedRuns, op.AvgDurationMS, op.Bytes)
	}

	failures, err := arch.RecentErrors(ctx, c.Errors)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		fmt.Println("\nRecent failures:")
		for _, f := range failures {
			fmt.Printf("  %s  %-18s %3d  %s\n", f.StartedAt.Format(time.RFC3339), f.Op, f.HTTPStatus, f.ErrorMessage)
		}
	}
	return nil
}
