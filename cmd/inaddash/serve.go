package main

import (
	"log"

	"github.com/casa-dashboard/inaddash/internal/api"
	"github.com/casa-dashboard/inaddash/internal/briefing"
	"github.com/casa-dashboard/inaddash/internal/config"
	"github.com/casa-dashboard/inaddash/internal/models"
	"github.com/casa-dashboard/inaddash/internal/poller"
	"github.com/casa-dashboard/inaddash/internal/state"
)

type ServeCmd struct {
	Port   string `help:"HTTP server port." default:"8080" env:"INAD_PORT"`
	NoPoll bool   `name:"no-poll" help:"Disable periodic refresh in live mode."`
}

func (c *ServeCmd) Run(g *Globals) error {
	s, err := g.settings()
	if err != nil {
		return err
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

	opts := state.Options{
		Mode:                config.ResolveMode(s),
		AutoAnalyzeOnUpload: s.AutoAnalyzeOnUpload,
	}
	if opts.Mode == models.ModeStatic {
		reader, closeFn, err := openSnapshots(ctx, s)
		if err != nil {
			return err
		}
		defer closeFn()
		opts.Static = reader
	} else {
		opts.Gateway = newGateway(s, arch)
	}
	log.Printf("starting in %s mode", opts.Mode)

	store := state.New(opts)
	if err := store.Bootstrap(ctx); err != nil {
		log.Printf("bootstrap: %v", err)
	}

	var briefer *briefing.Briefer
	if b, err := briefing.New(s.OpenAIKey, s.OpenAIModel); err != nil {
		log.Printf("briefing: %v", err)
	} else {
		briefer = b
	}

	if !c.NoPoll {
		go poller.New(store, s.RefreshInterval).Run(ctx)
	} else {
		log.Println("polling disabled (--no-poll)")
	}

	server := api.NewServer(store, api.Options{
		Port:    c.Port,
		Locale:  s.Locale,
		CardTTL: s.CardTTL,
		Archive: arch,
		Briefer: briefer,
	})
	err = server.Run(ctx)
	store.Wait()
	return err
}
