package domain

// Table is a raw tabular input: a header row plus data rows of equal width.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Customer is a cleaned customer row.
type Customer struct {
	ID    string
	City  string // normalized
	State string // trimmed, upper-cased
}

// Order is a cleaned order row.
type Order struct {
	ID         string
	CustomerID string
}

// Payment is a cleaned payment row. An order may have several.
type Payment struct {
	OrderID string
	Value   float64
}

// DemandRecord is the aggregated demand of one city.
type DemandRecord struct {
	City       string  `json:"city"`
	OrderCount int     `json:"order_count"`
	TotalValue float64 `json:"total_value"`
}

// GeoPoint is a WGS-84 latitude/longitude coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Valid reports whether the point lies within latitude/longitude bounds.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// GeocodedDemand is a DemandRecord joined with the city's coordinates.
type GeocodedDemand struct {
	DemandRecord
	Location GeoPoint `json:"location"`
}

// FacilityCandidate is a proposed distribution-center location and the demand
// it would serve.
type FacilityCandidate struct {
	ID                 string   `json:"id"`   // S2 cell token of Location
	Rank               int      `json:"rank"` // 1-based output position
	Location           GeoPoint `json:"location"`
	AssignedWeightMass float64  `json:"assigned_weight_mass"`
	AssignedOrders     int      `json:"assigned_orders"`
	Cities             []string `json:"cities"`
}

// SourceStats counts what happened to the rows of one input table.
type SourceStats struct {
	Read       int `json:"read"`
	Missing    int `json:"missing"`    // dropped: empty required field
	Duplicates int `json:"duplicates"` // dropped: exact duplicate row
	Invalid    int `json:"invalid"`    // dropped: unparseable number
	Kept       int `json:"kept"`
}

// PrepStats summarizes a data preparation run.
type PrepStats struct {
	Customers SourceStats `json:"customers"`
	Orders    SourceStats `json:"orders"`
	Payments  SourceStats `json:"payments"`

	CustomersInRegion int `json:"customers_in_region"`
	PaidOrders        int `json:"paid_orders"`      // distinct order ids with payments
	UnmatchedOrders   int `json:"unmatched_orders"` // orders without a regional customer
	UnpaidOrders      int `json:"unpaid_orders"`    // regional orders without payments
	JoinedRows        int `json:"joined_rows"`
	Cities            int `json:"cities"`
}

// TotalValue sums the demand value of records.
func TotalValue(records []GeocodedDemand) float64 {
	var sum float64
	for _, r := range records {
		sum += r.TotalValue
	}
	return sum
}
