package domain

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Required columns per source.
var (
	CustomerFields = []string{"customer_id", "customer_city", "customer_state"}
	OrderFields    = []string{"order_id", "customer_id"}
	PaymentFields  = []string{"order_id", "payment_value"}
)

// nullTokens are cell values read as missing, on top of the empty string.
// They match the sentinels common CSV exporters write for NULL.
var nullTokens = map[string]struct{}{
	"na": {}, "n/a": {}, "nan": {}, "null": {}, "none": {}, "#n/a": {},
}

// Inputs bundles the three raw tables.
type Inputs struct {
	Customers Table
	Orders    Table
	Payments  Table
}

// PrepareDemand validates, cleans, joins and aggregates the raw tables into a
// per-city demand table for region. Records are sorted by city.
func PrepareDemand(in Inputs, region string) ([]DemandRecord, PrepStats, error) {
	var stats PrepStats

	customers, cs, err := ParseCustomers(in.Customers)
	if err != nil {
		return nil, stats, err
	}
	stats.Customers = cs

	orders, ordStats, err := ParseOrders(in.Orders)
	if err != nil {
		return nil, stats, err
	}
	stats.Orders = ordStats

	payments, ps, err := ParsePayments(in.Payments)
	if err != nil {
		return nil, stats, err
	}
	stats.Payments = ps

	regional := FilterRegion(customers, region)
	stats.CustomersInRegion = len(regional)

	sums := SumPayments(payments)
	stats.PaidOrders = len(sums)

	rows, js := JoinOrders(orders, regional, sums)
	stats.UnmatchedOrders = js.Unmatched
	stats.UnpaidOrders = js.Unpaid
	stats.JoinedRows = len(rows)

	demand := AggregateByCity(rows)
	stats.Cities = len(demand)
	return demand, stats, nil
}

// ParseCustomers cleans the customers table and normalizes city names.
func ParseCustomers(t Table) ([]Customer, SourceStats, error) {
	rows, idx, stats, err := cleanTable(t, "customers", CustomerFields)
	if err != nil {
		return nil, stats, err
	}

	out := make([]Customer, 0, len(rows))
	for _, row := range rows {
		city := NormalizeCity(row[idx[1]])
		if city == "" {
			stats.Missing++
			continue
		}
		out = append(out, Customer{
			ID:    strings.TrimSpace(row[idx[0]]),
			City:  city,
			State: NormalizeRegion(row[idx[2]]),
		})
	}
	stats.Kept = len(out)
	return out, stats, nil
}

// ParseOrders cleans the orders table.
func ParseOrders(t Table) ([]Order, SourceStats, error) {
	rows, idx, stats, err := cleanTable(t, "orders", OrderFields)
	if err != nil {
		return nil, stats, err
	}

	out := make([]Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, Order{
			ID:         strings.TrimSpace(row[idx[0]]),
			CustomerID: strings.TrimSpace(row[idx[1]]),
		})
	}
	stats.Kept = len(out)
	return out, stats, nil
}

// ParsePayments cleans the payments table. A payment_value that is not a
// finite, non-negative number counts as invalid and drops the row.
func ParsePayments(t Table) ([]Payment, SourceStats, error) {
	rows, idx, stats, err := cleanTable(t, "payments", PaymentFields)
	if err != nil {
		return nil, stats, err
	}

	out := make([]Payment, 0, len(rows))
	for _, row := range rows {
		v, ok := parseAmount(row[idx[1]])
		if !ok {
			stats.Invalid++
			continue
		}
		out = append(out, Payment{OrderID: strings.TrimSpace(row[idx[0]]), Value: v})
	}
	stats.Kept = len(out)
	return out, stats, nil
}

// FilterRegion keeps customers whose state matches region.
func FilterRegion(customers []Customer, region string) []Customer {
	region = NormalizeRegion(region)
	out := make([]Customer, 0, len(customers))
	for _, c := range customers {
		if c.State == region {
			out = append(out, c)
		}
	}
	return out
}

// SumPayments collapses payment rows to one summed payment per order id,
// sorted by order id. Applying it to its own output returns the same values.
func SumPayments(payments []Payment) []Payment {
	sums := make(map[string]float64, len(payments))
	for _, p := range payments {
		sums[p.OrderID] += p.Value
	}

	out := make([]Payment, 0, len(sums))
	for id, v := range sums {
		out = append(out, Payment{OrderID: id, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

// OrderLine is one order joined to its customer and summed payment.
type OrderLine struct {
	OrderID string
	City    string
	Value   float64
}

// JoinStats counts orders dropped by the inner joins.
type JoinStats struct {
	Unmatched int // no customer in the filtered customer set
	Unpaid    int // no payment rows
}

// JoinOrders inner-joins orders to customers by customer id and to summed
// payments by order id. Every matching pair yields a line; orders without a
// match on either side are counted and skipped.
func JoinOrders(orders []Order, customers []Customer, sums []Payment) ([]OrderLine, JoinStats) {
	byCustomer := make(map[string][]int, len(customers))
	for i, c := range customers {
		byCustomer[c.ID] = append(byCustomer[c.ID], i)
	}
	paid := make(map[string]float64, len(sums))
	for _, p := range sums {
		paid[p.OrderID] = p.Value
	}

	var stats JoinStats
	out := make([]OrderLine, 0, len(orders))
	for _, o := range orders {
		matches, ok := byCustomer[o.CustomerID]
		if !ok {
			stats.Unmatched++
			continue
		}
		value, ok := paid[o.ID]
		if !ok {
			stats.Unpaid++
			continue
		}
		for _, ci := range matches {
			out = append(out, OrderLine{OrderID: o.ID, City: customers[ci].City, Value: value})
		}
	}
	return out, stats
}

// AggregateByCity counts lines and sums values per city, sorted by city.
func AggregateByCity(lines []OrderLine) []DemandRecord {
	byCity := make(map[string]*DemandRecord)
	for _, l := range lines {
		rec, ok := byCity[l.City]
		if !ok {
			rec = &DemandRecord{City: l.City}
			byCity[l.City] = rec
		}
		rec.OrderCount++
		rec.TotalValue += l.Value
	}

	out := make([]DemandRecord, 0, len(byCity))
	for _, rec := range byCity {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].City < out[j].City })
	return out
}

// cleanTable resolves required columns, then drops rows with a missing
// required value and exact duplicate rows, in that order.
func cleanTable(t Table, source string, fields []string) ([][]string, []int, SourceStats, error) {
	stats := SourceStats{Read: len(t.Rows)}

	idx, err := requireColumns(t, source, fields)
	if err != nil {
		return nil, nil, stats, err
	}

	seen := make(map[string]struct{}, len(t.Rows))
	out := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if hasMissing(row, idx) {
			stats.Missing++
			continue
		}
		key := strings.Join(row, "\x1f")
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out, idx, stats, nil
}

// requireColumns returns the header position of each field, or a SchemaError
// for the first one absent.
func requireColumns(t Table, source string, fields []string) ([]int, error) {
	pos := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, ok := pos[h]; !ok {
			pos[h] = i
		}
	}

	idx := make([]int, len(fields))
	for i, f := range fields {
		p, ok := pos[f]
		if !ok {
			return nil, &SchemaError{Source: source, Field: f}
		}
		idx[i] = p
	}
	return idx, nil
}

func hasMissing(row []string, idx []int) bool {
	for _, i := range idx {
		if i >= len(row) || isNull(row[i]) {
			return true
		}
	}
	return false
}

func isNull(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	_, ok := nullTokens[strings.ToLower(s)]
	return ok
}

// parseAmount parses a monetary value, rejecting NaN, infinities and
// negatives.
func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
