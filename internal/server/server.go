// Package server exposes the dashboard over HTTP as JSON and CSV.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"bookstats/internal/dashboard"
	"bookstats/internal/report"
	"bookstats/internal/state"
)

// Server holds dependencies for HTTP handlers
type Server struct {
	svc    *dashboard.Service
	router *chi.Mux
	logger *zap.Logger
}

// New creates a server with all routes configured
func New(svc *dashboard.Service, logger *zap.Logger) *Server {
	s := &Server{
		svc:    svc,
		router: chi.NewRouter(),
		logger: logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/weeks", s.handleWeeks)
		r.Get("/records", s.handleRecords)
		r.Get("/records.csv", s.handleRecordsCSV)
		r.Get("/stats", s.handleStats)
		r.Get("/charts/top", s.handleTop)
		r.Get("/series", s.handleSeries)
		r.Get("/trend", s.handleTrend)
		r.Get("/trend.csv", s.handleTrendCSV)
		r.Get("/heatmap", s.handleHeatmap)
		r.Post("/reload", s.handleReload)
	})
}

// requestLogger logs every request with zap
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *Server) handleWeeks(w http.ResponseWriter, r *http.Request) {
	weeks, err := s.svc.Weeks(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	problems := s.svc.Problems()
	msgs := make([]string, len(problems))
	for i, p := range problems {
		msgs[i] = p.Error()
	}
	s.success(w, map[string]any{
		"weeks":    weekDTOs(weeks),
		"problems": msgs,
	})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.View(r.Context(), state.FromQuery(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, viewDTO(v, true))
}

func (s *Server) handleRecordsCSV(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.View(r.Context(), state.FromQuery(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.ExportFileName))
	if err := report.WriteRecordsCSV(w, v.Rows, v.HasCollana); err != nil {
		s.logger.Error("Failed to write CSV export", zap.Error(err))
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.View(r.Context(), state.FromQuery(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, viewDTO(v, false))
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	tops, err := s.svc.Top(r.Context(), state.FromQuery(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, TopDTO{
		Titles:     rankedDTOs(tops.Titles),
		Authors:    rankedDTOs(tops.Authors),
		Publishers: rankedDTOs(tops.Publishers),
	})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	series, err := s.svc.Series(r.Context(), state.FromQuery(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, seriesDTO(series))
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.Trend(r.Context(), state.FromQuery(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, map[string]any{
		"focus_publisher": s.svc.FocusPublisher(),
		"rows":            trendDTOs(rows),
	})
}

func (s *Server) handleTrendCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.Trend(r.Context(), state.FromQuery(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="trend.csv"`)
	if err := report.WriteTrendCSV(w, rows); err != nil {
		s.logger.Error("Failed to write trend CSV", zap.Error(err))
	}
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	h, err := s.svc.Heatmap(r.Context(), state.FromQuery(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, heatmapDTO(h))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.svc.Invalidate()
	weeks, err := s.svc.Weeks(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("Dataset reloaded on request", zap.Int("weeks", len(weeks)))
	s.success(w, map[string]any{"weeks": weekDTOs(weeks)})
}
