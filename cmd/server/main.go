package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "modernc.org/sqlite"
)

type apiServer struct {
	db       *sql.DB
	provider string
	logger   *slog.Logger
}

type seriesPoint struct {
	Resolution string  `json:"resolution"`
	Timestamp  string  `json:"timestamp"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		run(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: server run [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "options:")
	fmt.Fprintln(os.Stderr, "  -addr      listen address (default: :8080)")
	fmt.Fprintln(os.Stderr, "  -db        sqlite database path (default: gridline.db)")
	fmt.Fprintln(os.Stderr, "  -provider  provider id (default: entsoe)")
}

func run(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "listen address")
	dbPath := fs.String("db", "gridline.db", "sqlite database path")
	provider := fs.String("provider", "entsoe", "provider id")
	fs.Parse(args)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := &apiServer{db: db, provider: *provider, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", srv.handleHealth)
	r.Get("/api/v1/areas", srv.handleAreas)
	r.Get("/api/v1/series/{area}/{kind}", srv.handleSeries)

	logger.Info("server listening", "addr", *addr, "db", *dbPath)
	if err := http.ListenAndServe(*addr, r); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *apiServer) handleAreas(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT DISTINCT area FROM energy_samples WHERE provider = ? ORDER BY area
	`, s.provider)
	if err != nil {
		s.logger.Error("areas query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	areas := make([]string, 0)
	for rows.Next() {
		var area string
		if err := rows.Scan(&area); err != nil {
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		areas = append(areas, area)
	}
	if err := rows.Err(); err != nil {
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"areas": areas})
}

func (s *apiServer) handleSeries(w http.ResponseWriter, r *http.Request) {
	area := chi.URLParam(r, "area")
	kind := chi.URLParam(r, "kind")
	if area == "" || kind == "" {
		http.Error(w, "area and kind required", http.StatusBadRequest)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT resolution, ts, value, unit FROM energy_samples
		WHERE provider = ? AND area = ? AND kind = ?
		ORDER BY ts
	`, s.provider, area, kind)
	if err != nil {
		s.logger.Error("series query failed", "area", area, "kind", kind, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	points := make([]seriesPoint, 0)
	for rows.Next() {
		var point seriesPoint
		if err := rows.Scan(&point.Resolution, &point.Timestamp, &point.Value, &point.Unit); err != nil {
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if len(points) == 0 {
		http.Error(w, "no samples", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]any{"area": area, "kind": kind, "points": points})
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}
