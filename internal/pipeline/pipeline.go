package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/demand-siting/internal/domain"
	"github.com/couchcryptid/demand-siting/internal/observability"
	"github.com/couchcryptid/demand-siting/internal/siting"
	"github.com/google/uuid"
)

// Loader reads the customers, orders and payments tables.
type Loader interface {
	Load(ctx context.Context) (domain.Inputs, error)
}

// DemandGeocoder attaches coordinates to demand and reports what it dropped.
type DemandGeocoder interface {
	Geocode(ctx context.Context, demand []domain.DemandRecord) ([]domain.GeocodedDemand, *domain.DataLossWarning, error)
}

// Siter proposes facility locations for geocoded demand.
type Siter interface {
	Site(demand []domain.GeocodedDemand) (siting.Result, error)
}

// ArtifactWriter persists the rendered map and chart.
type ArtifactWriter interface {
	WriteArtifacts(demand []domain.GeocodedDemand, facilities []domain.FacilityCandidate) ([]string, error)
}

// Publisher sends facility candidates downstream.
type Publisher interface {
	Publish(ctx context.Context, runID string, generatedAt time.Time, facilities []domain.FacilityCandidate) error
}

// Stages wires a Pipeline. Artifacts and Publisher are optional.
type Stages struct {
	Loader    Loader
	Geocoder  DemandGeocoder
	Siter     Siter
	Artifacts ArtifactWriter
	Publisher Publisher
	Region    string
}

// Result is everything one run produced.
type Result struct {
	RunID       string                     `json:"run_id"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Region      string                     `json:"region"`
	Demand      []domain.GeocodedDemand    `json:"demand"`
	Facilities  []domain.FacilityCandidate `json:"facilities"`
	Assignments map[string]string          `json:"assignments"` // city → facility id
	Warning     *domain.DataLossWarning    `json:"warning,omitempty"`
	Prep        domain.PrepStats           `json:"prep"`
	Diagnostics siting.Diagnostics         `json:"diagnostics"`
	Artifacts   []string                   `json:"artifacts,omitempty"`
}

// Pipeline runs load → prepare → geocode → site → render → publish once per
// Run call and keeps the last successful Result.
type Pipeline struct {
	stages  Stages
	logger  *slog.Logger
	metrics *observability.Metrics

	mu   sync.RWMutex
	last *Result
}

// New creates a Pipeline with the given stages and observability.
func New(stages Stages, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	stages.Region = domain.NormalizeRegion(stages.Region)
	return &Pipeline{stages: stages, logger: logger, metrics: metrics}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if _, ok := p.Latest(); !ok {
		return errors.New("no successful siting run yet")
	}
	return nil
}

// Latest returns the last successful Result. Callers must not modify it.
func (p *Pipeline) Latest() (*Result, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.last != nil
}

// Run executes every stage once. Any error aborts the run; nothing is
// rendered or published unless siting succeeded.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:       uuid.NewString(),
		GeneratedAt: domain.Now().UTC(),
		Region:      p.stages.Region,
	}
	logger := p.logger.With("run_id", res.RunID)
	logger.Info("siting run started", "region", res.Region)

	if err := p.run(ctx, res, logger); err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		logger.Error("siting run failed", "error", err)
		return nil, err
	}

	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.metrics.LastRunSuccess.Set(float64(res.GeneratedAt.Unix()))

	p.mu.Lock()
	p.last = res
	p.mu.Unlock()

	logger.Info("siting run complete",
		"cities", len(res.Demand),
		"facilities", len(res.Facilities),
		"artifacts", res.Artifacts,
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, res *Result, logger *slog.Logger) error {
	var inputs domain.Inputs
	if err := p.stage(ctx, "load", func() (err error) {
		inputs, err = p.stages.Loader.Load(ctx)
		return err
	}); err != nil {
		return err
	}

	var demand []domain.DemandRecord
	if err := p.stage(ctx, "prepare", func() (err error) {
		demand, res.Prep, err = domain.PrepareDemand(inputs, res.Region)
		return err
	}); err != nil {
		return err
	}
	p.recordPrep(res.Prep)
	logger.Info("demand prepared",
		"joined_rows", res.Prep.JoinedRows,
		"cities", res.Prep.Cities,
		"unmatched_orders", res.Prep.UnmatchedOrders,
		"unpaid_orders", res.Prep.UnpaidOrders,
	)

	if err := p.stage(ctx, "geocode", func() (err error) {
		res.Demand, res.Warning, err = p.stages.Geocoder.Geocode(ctx, demand)
		return err
	}); err != nil {
		return err
	}
	p.recordExclusions(res.Warning)
	p.metrics.DemandCities.Set(float64(len(res.Demand)))

	var sited siting.Result
	if err := p.stage(ctx, "site", func() (err error) {
		sited, err = p.stages.Siter.Site(res.Demand)
		return err
	}); err != nil {
		return err
	}
	res.Facilities = sited.Facilities
	res.Assignments = make(map[string]string, len(res.Demand))
	for i, fi := range sited.Assignments {
		res.Assignments[res.Demand[i].City] = res.Facilities[fi].ID
	}
	res.Diagnostics = sited.Diagnostics
	p.metrics.FacilitiesSited.Set(float64(len(res.Facilities)))
	p.metrics.ClusterInertia.Set(sited.Diagnostics.Inertia)
	p.metrics.ClusterIteration.Set(float64(sited.Diagnostics.Iterations))

	if p.stages.Artifacts != nil {
		if err := p.stage(ctx, "render", func() (err error) {
			res.Artifacts, err = p.stages.Artifacts.WriteArtifacts(res.Demand, res.Facilities)
			return err
		}); err != nil {
			return err
		}
	}

	if p.stages.Publisher != nil {
		if err := p.stage(ctx, "publish", func() error {
			return p.stages.Publisher.Publish(ctx, res.RunID, res.GeneratedAt, res.Facilities)
		}); err != nil {
			return err
		}
		p.metrics.MessagesProduced.Add(float64(len(res.Facilities)))
	}
	return nil
}

// stage times fn and wraps its error with the stage name. A cancelled
// context stops the run before the stage starts.
func (p *Pipeline) stage(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	start := time.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (p *Pipeline) recordPrep(stats domain.PrepStats) {
	sources := []struct {
		name  string
		stats domain.SourceStats
	}{
		{"customers", stats.Customers},
		{"orders", stats.Orders},
		{"payments", stats.Payments},
	}
	for _, s := range sources {
		p.metrics.RowsRead.WithLabelValues(s.name).Add(float64(s.stats.Read))
		p.metrics.RowsDropped.WithLabelValues(s.name, "missing").Add(float64(s.stats.Missing))
		p.metrics.RowsDropped.WithLabelValues(s.name, "duplicate").Add(float64(s.stats.Duplicates))
		p.metrics.RowsDropped.WithLabelValues(s.name, "invalid").Add(float64(s.stats.Invalid))
	}
}

func (p *Pipeline) recordExclusions(w *domain.DataLossWarning) {
	if w == nil {
		p.metrics.ExcludedCities.Set(0)
		p.metrics.ExcludedValue.Set(0)
		return
	}
	p.metrics.ExcludedCities.Set(float64(len(w.Cities)))
	p.metrics.ExcludedValue.Set(w.Value)
}
