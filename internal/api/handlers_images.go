package api

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/casa-dashboard/inaddash/internal/charts"
	"github.com/casa-dashboard/inaddash/internal/imagegen"
	"github.com/casa-dashboard/inaddash/internal/metrics"
	"github.com/casa-dashboard/inaddash/internal/views"
)

// servePNG renders through the image cache. Payload pointers are replaced
// on every state change, so their addresses make stable cache keys.
func (s *Server) servePNG(w http.ResponseWriter, kind, key string, render func() ([]byte, error)) {
	data, hit, err := s.images.GetOrRender(kind+"|"+key, render)
	if err != nil {
		if errors.Is(err, charts.ErrNoData) {
			writeJSON(w, http.StatusNotFound, errorBody{Detail: err.Error()})
			return
		}
		log.Printf("api: render %s: %v", kind, err)
		writeError(w, err)
		return
	}
	cache := "miss"
	if hit {
		cache = "hit"
	}
	metrics.RendersTotal.WithLabelValues(kind, cache).Inc()

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(data)
}

func (s *Server) handleHistogramChart(w http.ResponseWriter, r *http.Request) {
	v, a := s.currentViews()
	loc := s.requestLocale(r)
	s.servePNG(w, "histogram", fmt.Sprintf("%p|%s", a, loc), func() ([]byte, error) {
		var buf bytes.Buffer
		if err := charts.Histogram(&buf, s.dict.T(loc, "priorityDistribution"), v.Histogram); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

func (s *Server) handleTrendChart(w http.ResponseWriter, r *http.Request) {
	h := s.dash.Snapshot().Historic
	loc := s.requestLocale(r)
	s.servePNG(w, "trend", fmt.Sprintf("%p|%s", h, loc), func() ([]byte, error) {
		var buf bytes.Buffer
		if err := charts.Trend(&buf, s.dict.T(loc, "trend"), views.TrendChart(h)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	v, a := s.currentViews()
	loc := s.requestLocale(r)
	s.servePNG(w, "card", fmt.Sprintf("%p|%s", a, loc), func() ([]byte, error) {
		card := imagegen.CardFromViews(v, s.dict.T(loc, "pageTitle"), views.AnalysisParameters(a).Period)
		return imagegen.GenerateCard(card)
	})
}
