package table

import (
	"sync"

	"golang.org/x/text/language"

	"github.com/casa-dashboard/inaddash/internal/models"
)

// Engine memoizes the last table result. Repeated calls with the same route
// slice and state return the same Page without re-filtering.
type Engine struct {
	tag language.Tag

	mu     sync.Mutex
	head   *models.Route
	length int
	state  State
	valid  bool
	page   Page
}

// NewEngine returns an engine collating strings for locale (e.g. "de").
// Unparseable locales fall back to English.
func NewEngine(locale string) *Engine {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Engine{tag: tag}
}

func (e *Engine) View(routes []models.Route, s State) Page {
	var head *models.Route
	if len(routes) > 0 {
		head = &routes[0]
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.valid && e.head == head && e.length == len(routes) && e.state == s {
		return e.page
	}
	out := applyWith(routes, s, e.tag)
	e.page = Page{
		Routes:    out,
		Count:     len(out),
		Total:     len(routes),
		State:     s,
		NoResults: len(out) == 0,
	}
	e.head, e.length, e.state, e.valid = head, len(routes), s, true
	return e.page
}
