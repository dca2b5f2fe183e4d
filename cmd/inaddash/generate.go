package main

import (
	"errors"
	"log"
	"time"

	"github.com/casa-dashboard/inaddash/internal/config"
	"github.com/casa-dashboard/inaddash/internal/models"
	"github.com/casa-dashboard/inaddash/internal/snapshot"
)

type GenerateCmd struct {
	Out string `help:"Output root; files are written to <out>/analysis." default:"public" type:"path"`
}

func (c *GenerateCmd) Run(g *Globals) error {
	s, err := g.settings()
	if err != nil {
		return err
	}
	if config.ResolveMode(s) != models.ModeLive {
		return errors.New("generate needs an analysis service (--backend)")
	}
	ctx, cancel := signalContext()
	defer cancel()

	arch, err := openArchive(s)
	if err != nil {
		return err
	}
	if arch != nil {
		defer arch.Close()
	}

	w, err := snapshot.NewWriter(c.Out)
	if err != nil {
		return err
	}
	start := time.Now()
	res, err := snapshot.Generate(ctx, newGateway(s, arch), w, start)
	if err != nil {
		return err
	}
	log.Printf("generated %d analyses into %s in %s (failed: %d, systemic: %v)",
		len(res.Analyzed), w.Dir(), time.Since(start).Round(time.Millisecond), len(res.Failed), res.Systemic)
	if len(res.Analyzed) == 0 && len(res.Index.Semesters) > 0 {
		return errors.New("no semester could be analyzed")
	}
	return nil
}
