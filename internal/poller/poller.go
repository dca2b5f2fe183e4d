// Package poller keeps a live-mode dashboard in step with the analysis
// service by refreshing on a fixed interval.
package poller

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/casa-dashboard/inaddash/internal/metrics"
	"github.com/casa-dashboard/inaddash/internal/models"
	"github.com/casa-dashboard/inaddash/internal/state"
)

// Target is the part of the state store the poller drives.
type Target interface {
	Mode() models.Mode
	Snapshot() state.State
	Bootstrap(ctx context.Context) error
	RefreshAnalysis(ctx context.Context) (*models.AnalysisSnapshot, error)
	RefreshHistoric(ctx context.Context) (*models.HistoricSnapshot, error)
	RefreshSystemic(ctx context.Context) (*models.SystemicCaseSet, error)
}

type Poller struct {
	target   Target
	interval time.Duration
}

func New(target Target, interval time.Duration) *Poller {
	return &Poller{target: target, interval: interval}
}

// Run refreshes every interval until ctx is done. It returns immediately in
// static mode or when the interval is not positive.
func (p *Poller) Run(ctx context.Context) {
	if p.target.Mode() != models.ModeLive || p.interval <= 0 {
		return
	}
	log.Printf("poller: refreshing every %s", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("poller: shutting down")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick performs one refresh. Without a catalog it retries the bootstrap;
// otherwise it re-runs the current analysis and any multi-semester views
// already on screen. Refreshes never touch the error shown to the user.
func (p *Poller) Tick(ctx context.Context) {
	st := p.target.Snapshot()
	if st.Loading {
		metrics.RefreshesTotal.WithLabelValues("skipped").Inc()
		return
	}

	if !st.DataReady {
		if err := p.target.Bootstrap(ctx); err != nil {
			p.fail("bootstrap", err)
			return
		}
		metrics.RefreshesTotal.WithLabelValues("ok").Inc()
		return
	}

	var errs []error
	if st.CurrentSemester != "" {
		if _, err := p.target.RefreshAnalysis(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if st.Historic != nil {
		if _, err := p.target.RefreshHistoric(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if st.Systemic != nil {
		if _, err := p.target.RefreshSystemic(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		p.fail("refresh", err)
		return
	}
	metrics.RefreshesTotal.WithLabelValues("ok").Inc()
}

func (p *Poller) fail(what string, err error) {
	if errors.Is(err, state.ErrSuperseded) {
		metrics.RefreshesTotal.WithLabelValues("superseded").Inc()
		return
	}
	metrics.RefreshesTotal.WithLabelValues("error").Inc()
	log.Printf("poller: %s: %v", what, err)
}
