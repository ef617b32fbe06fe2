// Command validate checks an input dataset before a siting run: the three
// tables load with their required columns, preparation yields consistent
// per-city demand, the coordinate table covers enough of that demand, and the
// configured facility count is feasible.
//
// It reads the same environment as cmd/siting (a .env file is honored).
//
// Usage:
//
//	CUSTOMERS_PATH=data/mock/olist_customers_dataset.csv \
//	ORDERS_PATH=data/mock/olist_orders_dataset.csv \
//	PAYMENTS_PATH=data/mock/olist_order_payments_dataset.csv \
//	COORDINATES_PATH=data/mock/coordinates.yaml \
//	  go run ./cmd/validate -min-coverage 0.95
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"

	"github.com/couchcryptid/demand-siting/internal/config"
	"github.com/couchcryptid/demand-siting/internal/domain"
	"github.com/couchcryptid/demand-siting/internal/pipeline"
	"github.com/couchcryptid/demand-siting/internal/siting"
	"github.com/joho/godotenv"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	minCoverage := flag.Float64("min-coverage", 0.95, "smallest share of demand value that must have coordinates")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "FATAL: read .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config: %v\n", err)
		os.Exit(1)
	}

	if code := run(cfg, *minCoverage); code != 0 {
		os.Exit(code)
	}
}

func run(cfg *config.Config, minCoverage float64) int {
	fmt.Println("=== Demand Siting Input Validation ===")
	fmt.Printf("Region: %s\n\n", cfg.Region)

	loader := pipeline.FileLoader{
		CustomersPath: cfg.CustomersPath,
		OrdersPath:    cfg.OrdersPath,
		PaymentsPath:  cfg.PaymentsPath,
		Delimiter:     cfg.Delimiter,
	}
	in, err := loader.Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load tables: %v\n", err)
		return 1
	}
	coords, err := config.LoadCoordinates(cfg.CoordinatesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load coordinates: %v\n", err)
		return 1
	}

	sources, demand, stats := validateSources(in, cfg.Region)
	phases := []*phase{sources, validateDemand(in, demand, stats, cfg.Region)}

	coverage, geocoded := validateCoverage(demand, coords, cfg.Region, minCoverage)
	phases = append(phases, coverage, validateFeasibility(geocoded, cfg.Siting))

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d customers, %d orders, %d payments; %d orders joined into %d cities\n",
		len(in.Customers.Rows), len(in.Orders.Rows), len(in.Payments.Rows), stats.JoinedRows, stats.Cities)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: tabular sources ──

func validateSources(in domain.Inputs, region string) (*phase, []domain.DemandRecord, domain.PrepStats) {
	p := &phase{name: "Tabular sources"}
	for _, t := range []domain.Table{in.Customers, in.Orders, in.Payments} {
		if len(t.Rows) == 0 {
			p.errorf("%s: no data rows", t.Name)
		}
	}

	demand, stats, err := domain.PrepareDemand(in, region)
	if err != nil {
		p.errorf("%v", err)
		return p, nil, stats
	}
	for _, s := range []struct {
		name  string
		stats domain.SourceStats
	}{
		{"customers", stats.Customers},
		{"orders", stats.Orders},
		{"payments", stats.Payments},
	} {
		if s.stats.Read > 0 && s.stats.Kept == 0 {
			p.errorf("%s: all %d rows dropped during cleaning", s.name, s.stats.Read)
		}
		fmt.Printf("%-10s read=%d missing=%d duplicates=%d invalid=%d kept=%d\n",
			s.name, s.stats.Read, s.stats.Missing, s.stats.Duplicates, s.stats.Invalid, s.stats.Kept)
	}
	return p, demand, stats
}

// ── Phase 2: demand consistency ──

func validateDemand(in domain.Inputs, demand []domain.DemandRecord, stats domain.PrepStats, region string) *phase {
	p := &phase{name: "Demand aggregation"}
	if len(demand) == 0 {
		p.errorf("no demand for region %s", region)
		return p
	}

	var orders int
	var value float64
	seen := make(map[string]struct{}, len(demand))
	for i, d := range demand {
		if _, dup := seen[d.City]; dup {
			p.errorf("city %q aggregated twice", d.City)
		}
		seen[d.City] = struct{}{}
		if domain.NormalizeCity(d.City) != d.City {
			p.errorf("city %q is not normalized", d.City)
		}
		if i > 0 && demand[i-1].City > d.City {
			p.errorf("cities out of order at %q", d.City)
		}
		if d.OrderCount < 1 {
			p.errorf("%s: order count %d", d.City, d.OrderCount)
		}
		orders += d.OrderCount
		value += d.TotalValue
	}
	if orders != stats.JoinedRows {
		p.errorf("order counts sum to %d, joined %d", orders, stats.JoinedRows)
	}

	// Recompute the joined value from the cleaned tables.
	customers, _, _ := domain.ParseCustomers(in.Customers)
	ords, _, _ := domain.ParseOrders(in.Orders)
	payments, _, _ := domain.ParsePayments(in.Payments)
	lines, _ := domain.JoinOrders(ords, domain.FilterRegion(customers, region), domain.SumPayments(payments))
	var want float64
	for _, l := range lines {
		want += l.Value
	}
	if math.Abs(want-value) > 1e-6*math.Max(1, want) {
		p.errorf("demand value %.2f does not match joined payments %.2f", value, want)
	}
	return p
}

// ── Phase 3: geocoding coverage ──

func validateCoverage(demand []domain.DemandRecord, coords domain.CoordinateTable, region string, minCoverage float64) (*phase, []domain.GeocodedDemand) {
	p := &phase{name: "Geocoding coverage"}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	geocoded, warning, err := domain.GeocodeDemand(context.Background(), demand, coords, nil, region, domain.PolicyDrop, quiet)
	if err != nil {
		p.errorf("%v", err)
		return p, nil
	}

	var total float64
	for _, d := range demand {
		total += d.TotalValue
	}
	covered := 1.0
	if total > 0 {
		covered = domain.TotalValue(geocoded) / total
	}
	fmt.Printf("coverage   %.1f%% of demand value (%d of %d cities)\n", covered*100, len(geocoded), len(demand))

	if covered < minCoverage {
		p.errorf("coverage %.3f below minimum %.3f", covered, minCoverage)
		if warning != nil {
			for _, c := range warning.Cities {
				p.errorf("no coordinates for %s (%d orders, %.2f)", c.City, c.OrderCount, c.TotalValue)
			}
		}
	}
	return p, geocoded
}

// ── Phase 4: siting feasibility ──

func validateFeasibility(geocoded []domain.GeocodedDemand, params siting.Params) *phase {
	p := &phase{name: fmt.Sprintf("Siting feasibility (K=%d)", params.K)}
	if err := params.Validate(geocoded); err != nil {
		p.errorf("%v", err)
	}
	return p
}
