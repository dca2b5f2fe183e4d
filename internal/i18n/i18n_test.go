package i18n

import (
	"reflect"
	"testing"

	"github.com/casa-dashboard/inaddash/internal/models"
)

func TestLoad(t *testing.T) {
	d, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := d.Locales(); !reflect.DeepEqual(got, []string{"de", "en", "fr"}) {
		t.Errorf("Locales = %v", got)
	}
}

func TestT(t *testing.T) {
	d := MustLoad()
	tests := []struct {
		locale, key, want string
	}{
		{"en", "lastStop", "Last Stop"},
		{"de", "lastStop", "Letzter Stopp"},
		{"de-CH", "close", "Schliessen"},
		{"FR", "switzerland", "Suisse"},
		{"fr", "destination", "Destination"},
		{"it", "origin", "Origin"},
		{"de", "noSuchKey", "noSuchKey"},
	}
	for _, tt := range tests {
		if got := d.T(tt.locale, tt.key); got != tt.want {
			t.Errorf("T(%q, %q) = %q, want %q", tt.locale, tt.key, got, tt.want)
		}
	}
}

func TestLabels_FillsFromEnglish(t *testing.T) {
	d := MustLoad()
	fr := d.Labels("fr")
	en := d.Labels("en")
	if len(fr) != len(en) {
		t.Errorf("fr labels = %d, en labels = %d", len(fr), len(en))
	}
	if fr["destination"] != "Destination" || fr["pageTitle"] != "Tableau de bord d'analyse INAD" {
		t.Errorf("unexpected fr labels: %q / %q", fr["destination"], fr["pageTitle"])
	}
}

func TestPriorityLabel(t *testing.T) {
	d := MustLoad()
	if got := d.PriorityLabel("de", models.PriorityWatch); got != "Beobachtungsliste" {
		t.Errorf("got %q", got)
	}
	if got := d.PriorityLabel("en", models.PriorityUnreliable); got != "Unreliable" {
		t.Errorf("got %q", got)
	}
}
