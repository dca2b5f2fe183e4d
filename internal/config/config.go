package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/casa-dashboard/inaddash/internal/models"
)

// Settings holds everything the dashboard process needs at startup.
type Settings struct {
	// BackendURL is the analysis service root. Empty means static mode.
	BackendURL string `toml:"backend_url"`
	// PublicURL is where the dashboard itself is served from.
	PublicURL string `toml:"public_url"`
	// StaticHosts lists host suffixes that never have a backend next to them.
	StaticHosts []string `toml:"static_hosts"`
	// SnapshotLocation is the root of the pre-generated analysis tree.
	SnapshotLocation string `toml:"snapshot_location"`
	GCSAnonymous     bool   `toml:"gcs_anonymous"`

	Locale      string  `toml:"locale"`
	ArchivePath string  `toml:"archive_path"`
	RequestRate float64 `toml:"request_rate"`

	AutoAnalyzeOnUpload bool          `toml:"auto_analyze_on_upload"`
	RefreshInterval     time.Duration `toml:"refresh_interval"`
	CardTTL             time.Duration `toml:"card_ttl"`

	OpenAIKey   string `toml:"-"`
	OpenAIModel string `toml:"openai_model"`
}

// Defaults returns Settings populated with built-in defaults.
func Defaults() Settings {
	return Settings{
		StaticHosts:      []string{"github.io"},
		SnapshotLocation: "public",
		Locale:           "en",
		RequestRate:      10,
		CardTTL:          10 * time.Minute,
		OpenAIModel:      "gpt-4o-mini",
	}
}

// Load reads a TOML file over the defaults. A missing file is not an error.
func Load(path string) (Settings, error) {
	s := Defaults()
	if path == "" {
		return s, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return s, fmt.Errorf("decode %s: %w", path, err)
	}
	return s, nil
}

// Validate checks that the settings are internally consistent.
func (s Settings) Validate() error {
	if s.BackendURL != "" {
		u, err := url.Parse(s.BackendURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("backend url %q: must be an absolute http(s) url", s.BackendURL)
		}
	}
	if ResolveMode(s) == models.ModeStatic && s.SnapshotLocation == "" {
		return fmt.Errorf("static mode needs a snapshot location")
	}
	if s.RequestRate < 0 {
		return fmt.Errorf("request rate must be >= 0, got %g", s.RequestRate)
	}
	if s.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval must be >= 0, got %s", s.RefreshInterval)
	}
	return nil
}

// ResolveMode decides once whether the dashboard runs against the live
// analysis service or against static snapshots.
func ResolveMode(s Settings) models.Mode {
	if strings.TrimSpace(s.BackendURL) == "" {
		return models.ModeStatic
	}
	if s.PublicURL == "" {
		return models.ModeLive
	}
	u, err := url.Parse(s.PublicURL)
	if err != nil {
		return models.ModeLive
	}
	host := strings.ToLower(u.Hostname())
	for _, suffix := range s.StaticHosts {
		suffix = strings.ToLower(strings.TrimPrefix(suffix, "."))
		if suffix == "" {
			continue
		}
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return models.ModeStatic
		}
	}
	return models.ModeLive
}
