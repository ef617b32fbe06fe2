package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/demand-siting/internal/adapter/tabular"
	"github.com/couchcryptid/demand-siting/internal/domain"
)

// FileLoader implements Loader over CSV or .xlsx files.
type FileLoader struct {
	CustomersPath string
	OrdersPath    string
	PaymentsPath  string
	Delimiter     rune
}

func (l FileLoader) Load(ctx context.Context) (domain.Inputs, error) {
	var in domain.Inputs
	sources := []struct {
		path string
		dst  *domain.Table
	}{
		{l.CustomersPath, &in.Customers},
		{l.OrdersPath, &in.Orders},
		{l.PaymentsPath, &in.Payments},
	}
	for _, s := range sources {
		if err := ctx.Err(); err != nil {
			return domain.Inputs{}, err
		}
		t, err := tabular.Open(s.path, l.Delimiter)
		if err != nil {
			return domain.Inputs{}, err
		}
		*s.dst = t
	}
	return in, nil
}

// TableGeocoder implements DemandGeocoder with a static coordinate table and
// an optional fallback geocoder.
type TableGeocoder struct {
	table    domain.CoordinateTable
	fallback domain.Geocoder
	region   string
	policy   domain.ExclusionPolicy
	logger   *slog.Logger
}

// NewTableGeocoder creates a TableGeocoder. Pass a nil fallback to rely on the
// table alone.
func NewTableGeocoder(table domain.CoordinateTable, fallback domain.Geocoder, region string, policy domain.ExclusionPolicy, logger *slog.Logger) *TableGeocoder {
	return &TableGeocoder{
		table:    table,
		fallback: fallback,
		region:   domain.NormalizeRegion(region),
		policy:   policy,
		logger:   logger,
	}
}

func (g *TableGeocoder) Geocode(ctx context.Context, demand []domain.DemandRecord) ([]domain.GeocodedDemand, *domain.DataLossWarning, error) {
	return domain.GeocodeDemand(ctx, demand, g.table, g.fallback, g.region, g.policy, g.logger)
}
