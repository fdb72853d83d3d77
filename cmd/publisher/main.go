package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"gridline/internal/model"
)

type metaFile struct {
	GeneratedAt string `json:"generated_at"`
}

type latestFile struct {
	GeneratedAt string        `json:"generated_at"`
	Rows        []latestEntry `json:"rows"`
}

type latestEntry struct {
	Area       string  `json:"area"`
	Kind       string  `json:"kind"`
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
	case "build":
		build(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: publisher build [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "options:")
	fmt.Fprintln(os.Stderr, "  -out       output directory (default: site/data)")
	fmt.Fprintln(os.Stderr, "  -db        sqlite database path (default: gridline.db)")
	fmt.Fprintln(os.Stderr, "  -provider  provider id (default: entsoe)")
	fmt.Fprintln(os.Stderr, "  -kind      series kind (default: day_ahead_price)")
}

func build(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	outDir := fs.String("out", "site/data", "output directory")
	dbPath := fs.String("db", "gridline.db", "sqlite database path")
	provider := fs.String("provider", "entsoe", "provider id")
	kind := fs.String("kind", string(model.KindDayAheadPrice), "series kind")
	fs.Parse(args)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "failed to create output dir:", err)
		os.Exit(1)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := writeJSON(filepath.Join(*outDir, "meta.json"), metaFile{GeneratedAt: now}); err != nil {
		fmt.Fprintln(os.Stderr, "failed to write meta.json:", err)
		os.Exit(1)
	}

	rows, err := loadLatest(*dbPath, *provider, *kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load samples:", err)
		os.Exit(1)
	}

	if err := writeJSON(filepath.Join(*outDir, "latest.json"), latestFile{GeneratedAt: now, Rows: rows}); err != nil {
		fmt.Fprintln(os.Stderr, "failed to write latest.json:", err)
		os.Exit(1)
	}

	fmt.Printf("publisher build complete (out=%s rows=%d)\n", *outDir, len(rows))
}

func loadLatest(dbPath, provider, kind string) ([]latestEntry, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT s.area, s.kind, s.resolution, s.ts, s.value, s.unit
		FROM energy_samples s
		JOIN (
			SELECT area, MAX(ts) AS max_ts
			FROM energy_samples
			WHERE provider = ? AND kind = ?
			GROUP BY area
		) latest ON s.area = latest.area AND s.ts = latest.max_ts
		WHERE s.provider = ? AND s.kind = ?
		ORDER BY s.area
	`, provider, kind, provider, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]latestEntry, 0)
	for rows.Next() {
		var entry latestEntry
		if err := rows.Scan(&entry.Area, &entry.Kind, &entry.Resolution, &entry.Timestamp, &entry.Value, &entry.Unit); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func writeJSON(path string, value any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
