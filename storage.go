package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// ResultsStore is an optional sink that mirrors the final benchmark result
// into a libsql database after the report files are written.
type ResultsStore struct {
	URL string
}

func NewResultsStore(spec ResultsDBSpec) *ResultsStore {
	url := spec.URL
	if url == "" {
		return nil
	}
	if spec.AuthToken != "" && !strings.Contains(url, "authToken=") {
		separator := "?"
		if strings.Contains(url, "?") {
			separator = "&"
		}
		url = url + separator + "authToken=" + spec.AuthToken
	}
	return &ResultsStore{URL: url}
}

func (s *ResultsStore) init(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS parameters (
			benchmark TEXT,
			name TEXT,
			value,
			PRIMARY KEY (benchmark, name)
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			benchmark TEXT,
			backend TEXT,
			run_index INTEGER,
			ok BOOL,
			exit_code INTEGER,
			wall_seconds REAL,
			primary_metric REAL,
			error TEXT,
			PRIMARY KEY (benchmark, backend, run_index)
		)`,
		`CREATE TABLE IF NOT EXISTS measurements (
			benchmark TEXT,
			backend TEXT,
			measurement TEXT,
			statistic TEXT,
			value REAL,
			PRIMARY KEY (benchmark, backend, measurement, statistic)
		)`,
	}
	for _, statement := range statements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return err
		}
	}
	return nil
}

// Upload inserts the configuration snapshot, every run record, and the
// per-backend summary statistics under the given benchmark identifier.
func (s *ResultsStore) Upload(ctx context.Context, id string, result *BenchmarkResult) error {
	db, err := sql.Open("libsql", s.URL)
	if err != nil {
		return fmt.Errorf("failed to open results db: %w", err)
	}
	defer db.Close()

	if err := s.init(ctx, db); err != nil {
		return fmt.Errorf("failed to initialize results db: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	bench := result.Benchmark
	parameters := []any{
		"time", bench.TimestampUTC.Format(time.RFC3339),
		"benchmark_name", bench.BenchmarkName,
		"hardware", bench.Hardware,
		"model_name", bench.ModelName,
		"model_path", bench.ModelPath,
		"runs", bench.Runs,
		"warmup_runs", bench.WarmupRuns,
		"timeout_seconds", bench.TimeoutSeconds,
		"metric_key", bench.Metric.Key,
		"metric_unit", bench.Metric.Unit,
		"metric_direction", bench.Metric.Direction,
		"strict", bench.Strict,
	}
	for i := 0; i+1 < len(parameters); i += 2 {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO parameters VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
			id, parameters[i], parameters[i+1],
		)
		if err != nil {
			return err
		}
	}

	for i := range result.Results {
		entry := &result.Results[i]
		for _, run := range entry.Runs {
			var metric any
			if run.PrimaryMetric != nil {
				metric = *run.PrimaryMetric
			}
			_, err = tx.ExecContext(ctx,
				"INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING",
				id, entry.Name, run.RunIndex, run.OK, run.ExitCode, run.WallSeconds, metric, run.Error,
			)
			if err != nil {
				return err
			}
		}
		series := map[string]*Stats{
			"primary_metric": entry.Summary.PrimaryMetric,
			"wall_seconds":   entry.Summary.WallSeconds,
		}
		for key, stats := range entry.Summary.AuxMetrics {
			series[key] = stats
		}
		for measurement, stats := range series {
			if stats == nil {
				continue
			}
			statistics := []struct {
				name  string
				value float64
			}{
				{"mean", stats.Mean},
				{"median", stats.Median},
				{"min", stats.Min},
				{"max", stats.Max},
				{"p95", stats.P95},
				{"stdev", stats.Stdev},
			}
			for _, statistic := range statistics {
				_, err = tx.ExecContext(ctx,
					"INSERT INTO measurements VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING",
					id, entry.Name, measurement, statistic.name, statistic.value,
				)
				if err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit()
}
