// Package i18n holds the English, German and French dashboard labels.
package i18n

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/casa-dashboard/inaddash/internal/models"
)

//go:embed *.toml
var files embed.FS

// Fallback is used when a locale or key is missing.
const Fallback = "en"

// Dictionary maps locale -> key -> label.
type Dictionary struct {
	labels map[string]map[string]string
}

// Load parses the embedded dictionaries.
func Load() (*Dictionary, error) {
	entries, err := files.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read dictionaries: %w", err)
	}
	d := &Dictionary{labels: make(map[string]map[string]string)}
	for _, e := range entries {
		locale := strings.TrimSuffix(e.Name(), ".toml")
		data, err := files.ReadFile(e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		m := map[string]string{}
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Name(), err)
		}
		d.labels[locale] = m
	}
	if _, ok := d.labels[Fallback]; !ok {
		return nil, fmt.Errorf("missing %s dictionary", Fallback)
	}
	return d, nil
}

// MustLoad is Load for package initialisation; the dictionaries are compiled
// in so failure is a build defect.
func MustLoad() *Dictionary {
	d, err := Load()
	if err != nil {
		panic(err)
	}
	return d
}

// Normalize reduces a locale such as "de-CH" to a supported base locale.
func (d *Dictionary) Normalize(locale string) string {
	base := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(base, "-_"); i >= 0 {
		base = base[:i]
	}
	if _, ok := d.labels[base]; ok {
		return base
	}
	return Fallback
}

// T looks key up in locale, then English, then returns the key itself.
func (d *Dictionary) T(locale, key string) string {
	if v, ok := d.labels[d.Normalize(locale)][key]; ok {
		return v
	}
	if v, ok := d.labels[Fallback][key]; ok {
		return v
	}
	return key
}

func (d *Dictionary) Locales() []string {
	out := make([]string, 0, len(d.labels))
	for l := range d.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Labels returns the full label set for locale with English filling gaps.
func (d *Dictionary) Labels(locale string) map[string]string {
	out := make(map[string]string, len(d.labels[Fallback]))
	for k, v := range d.labels[Fallback] {
		out[k] = v
	}
	for k, v := range d.labels[d.Normalize(locale)] {
		out[k] = v
	}
	return out
}

// PriorityLabel is the localized name of a priority class.
func (d *Dictionary) PriorityLabel(locale string, p models.Priority) string {
	return d.T(locale, p.TranslationKey())
}
