// Command backtest trains the next-hour temperature model offline on a CSV
// export and reports its test-split scores. It uses the same CSV adapter and
// training code as the dashboard, so the numbers match what a CSV import
// followed by a forecast run would show.
//
// Usage:
//
//	go run ./cmd/backtest -csv data/bandung_hourly.csv -trees 100 -seed 42
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/couchcryptid/weather-dashboard-service/internal/forecast"
)

func main() {
	csvPath := flag.String("csv", "", "path to an hourly weather CSV")
	minRecords := flag.Int("min-records", forecast.DefaultMinRecords, "minimum history required to train")
	trees := flag.Int("trees", 100, "trees in the residual forest")
	seed := flag.Uint64("seed", 42, "bootstrap seed")
	asJSON := flag.Bool("json", false, "print the outcome as JSON")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := forecast.Config{
		MinRecords: *minRecords,
		Model:      forecast.ModelConfig{Trees: *trees, Seed: *seed},
	}
	os.Exit(run(*csvPath, cfg, *asJSON, os.Stdout, os.Stderr))
}

func run(path string, cfg forecast.Config, asJSON bool, stdout, stderr io.Writer) int {
	records, err := loadRecords(path, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}

	start := time.Now()
	out, err := forecast.Train(records, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: train: %v (kind %s)\n", err, domain.KindOf(err))
		return 1
	}
	elapsed := time.Since(start)

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(stderr, "FATAL: encode: %v\n", err)
			return 1
		}
		return 0
	}

	first, last := records[0], records[len(records)-1]
	fmt.Fprintln(stdout, "=== Forecast Backtest ===")
	fmt.Fprintf(stdout, "Records:    %d (%s .. %s)\n", len(records),
		first.Timestamp.Format(time.RFC3339), last.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(stdout, "Split:      %d train / %d test rows\n", out.TrainRows, out.TestRows)
	fmt.Fprintf(stdout, "MAE:        %.3f °C\n", out.Scores.MAE)
	fmt.Fprintf(stdout, "RMSE:       %.3f °C\n", out.Scores.RMSE)
	fmt.Fprintf(stdout, "R²:         %.2f%%\n", out.Scores.R2Percent)
	fmt.Fprintf(stdout, "Prediction: %.2f °C at %s\n", out.Prediction.Temperature, out.Prediction.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(stdout, "Trained in: %s\n", elapsed.Round(time.Millisecond))
	return 0
}

// loadRecords parses the CSV, drops rows the import pipeline would drop and
// orders the rest the way the store returns training history: ascending by
// timestamp, stable for ties.
func loadRecords(path string, stderr io.Writer) ([]domain.WeatherRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := domain.ParseCSV(f)
	if err != nil {
		return nil, err
	}
	records = slices.DeleteFunc(records, func(r domain.WeatherRecord) bool {
		if r.Finite() {
			return false
		}
		fmt.Fprintf(stderr, "WARN: dropping %s: non-finite measurement\n", r)
		return true
	})
	slices.SortStableFunc(records, func(a, b domain.WeatherRecord) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return records, nil
}
