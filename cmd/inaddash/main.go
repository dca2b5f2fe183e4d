package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	"google.golang.org/api/option"

	"github.com/casa-dashboard/inaddash/internal/archive"
	"github.com/casa-dashboard/inaddash/internal/config"
	"github.com/casa-dashboard/inaddash/internal/gateway"
	"github.com/casa-dashboard/inaddash/internal/snapshot"
)

// Globals are the flags shared by every command. Non-empty values override
// the TOML settings file.
type Globals struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file'"`

	Config    string  `help:"TOML settings file." default:"inaddash.toml" env:"INAD_CONFIG" type:"path"`
	Backend   string  `help:"Analysis service URL. Empty runs in static mode." env:"INAD_BACKEND_URL"`
	PublicURL string  `name:"public-url" help:"URL the dashboard is served from." env:"INAD_PUBLIC_URL"`
	Snapshots string  `help:"Snapshot location (directory, http(s)://, ftp://, gs://)." env:"INAD_SNAPSHOT_LOCATION"`
	Locale    string  `help:"Default locale (en, de, fr)." env:"INAD_LOCALE"`
	Archive   string  `help:"SQLite archive of analysis service calls." env:"INAD_ARCHIVE_PATH"`
	Rate      float64 `help:"Max analysis service requests per second." env:"INAD_REQUEST_RATE"`
	OpenAIKey string  `name:"openai-key" help:"OpenAI API key for briefings." env:"OPENAI_API_KEY"`
}

type CLI struct {
	Globals

	Serve        ServeCmd        `cmd:"" default:"1" help:"Run the dashboard server."`
	Generate     GenerateCmd     `cmd:"" help:"Write a static snapshot tree from the analysis service."`
	Export       ExportCmd       `cmd:"" help:"Export a semester's route table as CSV or PDF."`
	ArchiveStats ArchiveStatsCmd `cmd:"" name:"archive-stats" help:"Show analysis service call archive statistics."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("inaddash"),
		kong.Description("INAD airline risk dashboard."),
		kong.UsageOnError(),
	)
	if err := kctx.Run(&cli.Globals); err != nil {
		log.Fatalf("%s: %v", kctx.Command(), err)
	}
}

// settings loads the TOML file and applies flag overrides.
func (g *Globals) settings() (config.Settings, error) {
	s, err := config.Load(g.Config)
	if err != nil {
		return s, err
	}
	if g.Backend != "" {
		s.BackendURL = g.Backend
	}
	if g.PublicURL != "" {
		s.PublicURL = g.PublicURL
	}
	if g.Snapshots != "" {
		s.SnapshotLocation = g.Snapshots
	}
	if g.Locale != "" {
		s.Locale = g.Locale
	}
	if g.Archive != "" {
		s.ArchivePath = g.Archive
	}
	if g.Rate > 0 {
		s.RequestRate = g.Rate
	}
	s.OpenAIKey = g.OpenAIKey
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// openArchive returns nil when no archive path is configured.
func openArchive(s config.Settings) (*archive.Store, error) {
	if s.ArchivePath == "" {
		return nil, nil
	}
	arch, err := archive.Open(s.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	log.Printf("archive: recording calls to %s", s.ArchivePath)
	return arch, nil
}

func newGateway(s config.Settings, arch *archive.Store) *gateway.Client {
	opts := []gateway.Option{
		gateway.WithRateLimit(s.RequestRate, 5),
	}
	if arch != nil {
		opts = append(opts, gateway.WithRecorder(arch))
	}
	return gateway.New(s.BackendURL, opts...)
}

func openSnapshots(ctx context.Context, s config.Settings) (*snapshot.Reader, func(), error) {
	var gcsOpts []option.ClientOption
	if s.GCSAnonymous {
		gcsOpts = append(gcsOpts, option.WithoutAuthentication())
	}
	src, err := snapshot.Open(ctx, s.SnapshotLocation, gcsOpts...)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {}
	if c, ok := src.(io.Closer); ok {
		closeFn = func() { c.Close() }
	}
	log.Printf("snapshot: reading from %s", src)
	return snapshot.NewReader(src), closeFn, nil
}
