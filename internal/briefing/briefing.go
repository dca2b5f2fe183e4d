// Package briefing produces a short narrative summary of a semester's
// analysis using OpenAI's chat API.
package briefing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/casa-dashboard/inaddash/internal/models"
	"github.com/casa-dashboard/inaddash/internal/table"
	"github.com/casa-dashboard/inaddash/internal/views"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("briefing disabled: no OpenAI API key")

const systemPrompt = `You write short briefings for border control analysts about airline routes
that bring inadmissible passengers (INAD) to Switzerland. Use plain language, at most
three short paragraphs, no bullet lists. Do not speculate beyond the figures given.`

// Briefer generates and caches semester briefings.
type Briefer struct {
	client openai.Client
	model  string

	mu    sync.Mutex
	cache map[string]string
}

// New creates a Briefer. Extra request options are passed to the client.
func New(apiKey, model string, opts ...option.RequestOption) (*Briefer, error) {
	if apiKey == "" {
		return nil, ErrDisabled
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Briefer{
		client: openai.NewClient(opts...),
		model:  model,
		cache:  make(map[string]string),
	}, nil
}

func cacheKey(a *models.AnalysisSnapshot, locale string) string {
	return fmt.Sprintf("%s|%s|%.6f|%d|%s", a.Semester, a.GeneratedAt, a.Threshold, a.Summary.TotalInad, locale)
}

// Summarize returns the briefing for a, generating it on first request.
func (b *Briefer) Summarize(ctx context.Context, a *models.AnalysisSnapshot, locale string) (string, error) {
	if a == nil {
		return "", errors.New("no analysis loaded")
	}
	key := cacheKey(a, locale)
	b.mu.Lock()
	if text, ok := b.cache[key]; ok {
		b.mu.Unlock()
		return text, nil
	}
	b.mu.Unlock()

	log.Printf("briefing: generating for %s (%s)", a.Semester, locale)
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(a, locale)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate briefing: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no briefing returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty briefing returned")
	}

	b.mu.Lock()
	b.cache[key] = text
	b.mu.Unlock()
	return text, nil
}

var languages = map[string]string{"en": "English", "de": "German", "fr": "French"}

// BuildPrompt lists the figures the briefing may draw on.
func BuildPrompt(a *models.AnalysisSnapshot, locale string) string {
	v := views.Derive(a)
	params := views.AnalysisParameters(a)

	var sb strings.Builder
	lang, ok := languages[locale]
	if !ok {
		lang = "English"
	}
	fmt.Fprintf(&sb, "Write the briefing in %s.\n\n", lang)
	fmt.Fprintf(&sb, "Period: %s\n", params.Period)
	fmt.Fprintf(&sb, "Total INAD: %d\n", v.Summary.TotalInad)
	for _, bk := range v.Histogram {
		fmt.Fprintf(&sb, "%s routes: %d\n", bk.Name, bk.Value)
	}
	fmt.Fprintf(&sb, "Density threshold: %.4f (%s)\n", v.Threshold, params.ThresholdMethod)

	top := views.TopRoutesByDensity(v.Routes, 5)
	if len(top) > 0 {
		sb.WriteString("\nHighest density flagged routes:\n")
		for _, r := range top {
			fmt.Fprintf(&sb, "- %s via %s", r.Airline, r.LastStop)
			if r.OriginCity != "" {
				fmt.Fprintf(&sb, " (%s)", r.OriginCity)
			}
			fmt.Fprintf(&sb, ": %d INAD, density %s, %s\n", r.Inad, table.FormatDensity(r.Density), r.Priority.Label())
		}
	}
	airlines := views.AirlineStats(v.Routes)
	if len(airlines) > 5 {
		airlines = airlines[:5]
	}
	if len(airlines) > 0 {
		sb.WriteString("\nAirlines by INAD:\n")
		for _, s := range airlines {
			fmt.Fprintf(&sb, "- %s: %d INAD over %d routes, worst %s\n", s.Airline, s.Inad, s.Routes, s.WorstPriority.Label())
		}
	}
	return sb.String()
}
