// Command genmock writes a synthetic hourly weather CSV for demos and tests.
// The columns use the agency export names (date, temp_avg, rh_avg, ...) so
// the file exercises the CSV adapter's header synonyms, and the output is
// parsed back through that adapter before the command reports success.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/bandung_hourly.csv -hours 720
package main

import (
	"bytes"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// endDate is where the generated series ends, so repeated runs produce the
// same file.
var endDate = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

var header = []string{"date", "temp_avg", "rh_avg", "surface_pressure", "ws", "rr"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the CSV")
	hours := flag.Int("hours", 720, "number of hourly rows")
	seed := flag.Uint64("seed", 7, "noise seed")
	flag.Parse()

	if *out == "" || *hours < 1 {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	clock := clockwork.NewFakeClockAt(endDate)

	var buf bytes.Buffer
	if err := generate(&buf, clock, *hours, *seed); err != nil {
		return err
	}

	records, err := domain.ParseCSV(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("generated file does not parse: %w", err)
	}
	if len(records) != *hours {
		return fmt.Errorf("round trip: wrote %d rows, parsed %d", *hours, len(records))
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(*out, buf.Bytes(), 0o600); err != nil {
		return err
	}

	printStats(records)
	log.Printf("wrote %s", *out)
	return nil
}

// generate writes hours rows ending one hour before clock.Now(). Temperature
// follows a diurnal cycle peaking mid-afternoon; rain falls in occasional
// afternoon showers.
func generate(w io.Writer, clock clockwork.Clock, hours int, seed uint64) error {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	start := clock.Now().Add(-time.Duration(hours) * time.Hour)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range hours {
		ts := start.Add(time.Duration(i) * time.Hour)
		phase := 2 * math.Pi * float64(ts.Hour()-15) / 24
		temp := 23 + 5*math.Cos(phase) + rng.NormFloat64()*0.4
		humidity := math.Min(100, math.Max(30, 78-12*math.Cos(phase)+rng.NormFloat64()*3))
		pressure := 1010 + 1.5*math.Sin(2*math.Pi*float64(i)/12) + rng.NormFloat64()*0.3
		wind := math.Max(0, 2.5+1.5*math.Cos(phase)+rng.NormFloat64()*0.5)
		var rain float64
		if ts.Hour() >= 13 && ts.Hour() <= 18 && rng.Float64() < 0.15 {
			rain = rng.ExpFloat64() * 3
		}

		row := []string{
			ts.Format("2006-01-02 15:04"),
			formatFloat(temp),
			formatFloat(humidity),
			formatFloat(pressure),
			formatFloat(wind),
			formatFloat(rain),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func printStats(records []domain.WeatherRecord) {
	minT, maxT, sumT := math.Inf(1), math.Inf(-1), 0.0
	var rainy int
	for _, r := range records {
		minT = math.Min(minT, r.Temperature)
		maxT = math.Max(maxT, r.Temperature)
		sumT += r.Temperature
		if r.Rainfall > 0 {
			rainy++
		}
	}
	fmt.Println("=== Generated series ===")
	fmt.Printf("Rows: %d (%s .. %s)\n", len(records),
		records[0].Timestamp.Format(time.RFC3339), records[len(records)-1].Timestamp.Format(time.RFC3339))
	fmt.Printf("Temperature: min %.1f, max %.1f, mean %.2f\n", minT, maxT, sumT/float64(len(records)))
	fmt.Printf("Rainy hours: %d\n", rainy)
}
