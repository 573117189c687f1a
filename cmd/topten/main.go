// Command topten fetches the world earthquake feed once and prints the
// strongest earthquakes of the last year.
//
// Usage:
//
//	go run ./cmd/topten -username demo
//	go run ./cmd/topten -order filter-sort-truncate -json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/adrian-cg/earthquakes/internal/adapter/geonames"
	"github.com/adrian-cg/earthquakes/internal/adapter/memview"
	"github.com/adrian-cg/earthquakes/internal/domain"
	"github.com/adrian-cg/earthquakes/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("topten", flag.ContinueOnError)
	username := fs.String("username", "demo", "GeoNames account name")
	baseURL := fs.String("base-url", geonames.DefaultBaseURL, "earthquakesJSON endpoint")
	maxRows := fs.Int("max-rows", 500, "records requested from the world feed")
	size := fs.Int("size", 10, "number of earthquakes to keep")
	orderName := fs.String("order", domain.OrderFilterTruncateSort.String(), "filter-truncate-sort or filter-sort-truncate")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	order, err := domain.ParseTopTenOrder(*orderName)
	if err != nil {
		return err
	}
	if *size < 1 || *maxRows < 1 {
		return fmt.Errorf("-size and -max-rows must be positive")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client := geonames.NewClient(geonames.Options{
		BaseURL:  *baseURL,
		Username: *username,
		Timeout:  *timeout,
	}, observability.NewMetricsWithRegistry(prometheus.NewRegistry()), logger)

	quakes, err := client.FetchEarthquakes(ctx, domain.WorldBounds, *maxRows)
	if err != nil {
		return fmt.Errorf("fetch world earthquakes: %w", err)
	}
	top := domain.TopTen(quakes, domain.Now(), *size, order)

	tables := memview.NewTables()
	tables.RenderRows(domain.TableTopTen, top)
	rows := tables.Rows(domain.TableTopTen)

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	return printTable(stdout, rows)
}

func printTable(w io.Writer, rows []memview.Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDATE\tMAGNITUDE\tLAT\tLNG")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%s\t%s\n", r.Rank, r.Date, r.Magnitude, coord(r.Lat), coord(r.Lng))
	}
	return tw.Flush()
}

func coord(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}
