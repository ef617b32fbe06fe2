// Command genmock writes a deterministic synthetic Olist-style dataset
// (customers, orders, payments) plus a coordinates YAML, then runs the real
// preparation step over it and prints the numbers tests assert on.
//
// The data deliberately includes accented and mixed-case city names, NULL
// cells, duplicate rows, orders paid in several installments, out-of-region
// customers and one city with no coordinates.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -customers 400 -seed 7
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/demand-siting/internal/adapter/tabular"
	"github.com/couchcryptid/demand-siting/internal/config"
	"github.com/couchcryptid/demand-siting/internal/domain"
	"github.com/google/uuid"
)

var (
	baseDate = time.Date(2018, time.January, 1, 0, 0, 0, 0, time.UTC)

	// namespace for deterministic SHA-1 ids.
	namespace = uuid.MustParse("6f1c1a52-3a53-4d1e-9a4c-4f1d3cc0c0de")
)

type city struct {
	name   string // as written in the raw data
	state  string
	weight int // relative share of customers
	lat    float64
	lon    float64
	noGeo  bool // left out of the coordinates file
}

var cities = []city{
	{name: "sao paulo", state: "SP", weight: 40, lat: -23.55052, lon: -46.633308},
	{name: "São Paulo", state: "SP", weight: 10, lat: -23.55052, lon: -46.633308},
	{name: "CAMPINAS", state: "SP", weight: 8, lat: -22.909938, lon: -47.062633},
	{name: "guarulhos", state: "SP", weight: 7, lat: -23.4538, lon: -46.5333},
	{name: "santos", state: "SP", weight: 5, lat: -23.960833, lon: -46.333889},
	{name: "Ribeirão Preto", state: "SP", weight: 4, lat: -21.1775, lon: -47.8103},
	{name: "sorocaba", state: "SP", weight: 4, lat: -23.5015, lon: -47.4526},
	{name: "são josé dos campos", state: "SP", weight: 4, lat: -23.1791, lon: -45.8872},
	{name: "bauru", state: "SP", weight: 2, lat: -22.3246, lon: -49.0871},
	{name: "embu-guaçu", state: "SP", weight: 1, noGeo: true},
	{name: "rio de janeiro", state: "RJ", weight: 12, lat: -22.9068, lon: -43.1729},
	{name: "belo horizonte", state: "MG", weight: 6, lat: -19.9167, lon: -43.9345},
}

var paymentTypes = []string{"credit_card", "boleto", "voucher", "debit_card"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "data/mock", "output directory")
	customers := flag.Int("customers", 400, "number of distinct customers")
	seed := flag.Uint64("seed", 7, "random seed")
	flag.Parse()

	if *customers < 1 {
		return fmt.Errorf("-customers must be positive, got %d", *customers)
	}

	rng := rand.New(rand.NewPCG(*seed, 0x5eed))
	ds := generate(rng, *customers)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	files := []struct {
		name string
		rows [][]string
	}{
		{"olist_customers_dataset.csv", ds.customers},
		{"olist_orders_dataset.csv", ds.orders},
		{"olist_order_payments_dataset.csv", ds.payments},
	}
	for _, f := range files {
		path := filepath.Join(*outDir, f.name)
		if err := writeCSV(path, f.rows); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
		log.Printf("wrote %s (%d rows)", path, len(f.rows)-1)
	}

	coordsPath := filepath.Join(*outDir, "coordinates.yaml")
	if err := writeCoordinates(coordsPath); err != nil {
		return fmt.Errorf("writing coordinates: %w", err)
	}
	log.Printf("wrote %s", coordsPath)

	return printStats(*outDir)
}

type dataset struct {
	customers [][]string
	orders    [][]string
	payments  [][]string
}

func generate(rng *rand.Rand, n int) dataset {
	ds := dataset{
		customers: [][]string{{"customer_id", "customer_unique_id", "customer_zip_code_prefix", "customer_city", "customer_state"}},
		orders:    [][]string{{"order_id", "customer_id", "order_status", "order_purchase_timestamp"}},
		payments:  [][]string{{"order_id", "payment_sequential", "payment_type", "payment_installments", "payment_value"}},
	}

	var total int
	for _, c := range cities {
		total += c.weight
	}

	for i := range n {
		c := pickCity(rng, total)
		customerID := id("customer", i)
		cityCell := c.name
		switch {
		case i%97 == 13:
			cityCell = "NULL"
		case i%61 == 5:
			cityCell = ""
		}
		row := []string{customerID, id("unique", i), fmt.Sprintf("%05d", rng.IntN(99999)), cityCell, c.state}
		ds.customers = append(ds.customers, row)
		if i%50 == 0 {
			ds.customers = append(ds.customers, row)
		}

		for o := range 1 + rng.IntN(3) {
			orderID := id("order", i*10+o)
			placed := baseDate.Add(time.Duration(rng.IntN(365*24)) * time.Hour)
			ds.orders = append(ds.orders, []string{orderID, customerID, "delivered", placed.Format(time.DateTime)})

			if rng.IntN(20) == 0 {
				continue // unpaid
			}
			installments := 1
			if rng.IntN(4) == 0 {
				installments = 2 + rng.IntN(2)
			}
			for seq := 1; seq <= installments; seq++ {
				value := strconv.FormatFloat(10+rng.Float64()*490, 'f', 2, 64)
				if rng.IntN(150) == 0 {
					value = "n/a"
				}
				ds.payments = append(ds.payments, []string{
					orderID,
					strconv.Itoa(seq),
					paymentTypes[rng.IntN(len(paymentTypes))],
					strconv.Itoa(installments),
					value,
				})
			}
		}
	}
	return ds
}

func pickCity(rng *rand.Rand, total int) city {
	r := rng.IntN(total)
	for _, c := range cities {
		if r < c.weight {
			return c
		}
		r -= c.weight
	}
	return cities[len(cities)-1]
}

func id(kind string, n int) string {
	return uuid.NewSHA1(namespace, []byte(kind+"-"+strconv.Itoa(n))).String()
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeCoordinates(path string) error {
	raw := make(map[string]domain.GeoPoint, len(cities))
	for _, c := range cities {
		if c.noGeo || c.state != "SP" {
			continue
		}
		raw[domain.NormalizeCity(c.name)] = domain.GeoPoint{Lat: c.lat, Lon: c.lon}
	}
	table, err := domain.NewCoordinateTable(raw)
	if err != nil {
		return err
	}
	data, err := config.MarshalCoordinates(table)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// printStats runs preparation over the generated files.
func printStats(dir string) error {
	var in domain.Inputs
	for _, src := range []struct {
		name string
		dst  *domain.Table
	}{
		{"olist_customers_dataset.csv", &in.Customers},
		{"olist_orders_dataset.csv", &in.Orders},
		{"olist_order_payments_dataset.csv", &in.Payments},
	} {
		t, err := tabular.Open(filepath.Join(dir, src.name), ',')
		if err != nil {
			return err
		}
		*src.dst = t
	}

	demand, stats, err := domain.PrepareDemand(in, "SP")
	if err != nil {
		return err
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Customers: read=%d missing=%d duplicates=%d kept=%d\n",
		stats.Customers.Read, stats.Customers.Missing, stats.Customers.Duplicates, stats.Customers.Kept)
	fmt.Printf("Orders: read=%d kept=%d\n", stats.Orders.Read, stats.Orders.Kept)
	fmt.Printf("Payments: read=%d missing=%d invalid=%d kept=%d\n",
		stats.Payments.Read, stats.Payments.Missing, stats.Payments.Invalid, stats.Payments.Kept)
	fmt.Printf("Customers in SP: %d\n", stats.CustomersInRegion)
	fmt.Printf("Joined orders: %d (unmatched=%d unpaid=%d)\n", stats.JoinedRows, stats.UnmatchedOrders, stats.UnpaidOrders)
	fmt.Printf("Cities: %d\n", stats.Cities)
	for _, d := range demand {
		fmt.Printf("  %-22s orders=%-4d value=%.2f\n", d.City, d.OrderCount, d.TotalValue)
	}
	return nil
}
