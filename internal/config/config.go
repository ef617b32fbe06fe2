package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/demand-siting/internal/adapter/tabular"
	"github.com/couchcryptid/demand-siting/internal/domain"
	"github.com/couchcryptid/demand-siting/internal/siting"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	CustomersPath string `validate:"required"`
	OrdersPath    string `validate:"required"`
	PaymentsPath  string `validate:"required"`
	Delimiter     rune

	Region          string `validate:"required,alpha"`
	CoordinatesPath string
	MissingPolicy   domain.ExclusionPolicy `validate:"oneof=drop warn fail"`

	Siting siting.Params

	OutputDir   string `validate:"required"`
	MapFile     string `validate:"required"`
	ChartFile   string `validate:"required"`
	GeoJSONFile string
	MapZoom     int `validate:"min=1,max=18"`

	Serve           bool
	HTTPAddr        string `validate:"required"`
	LogLevel        string `validate:"oneof=debug info warn error"`
	LogFormat       string `validate:"oneof=json text"`
	ShutdownTimeout time.Duration

	// Mapbox geocoding fallback for cities missing from the coordinate table.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration `validate:"gt=0"`
	MapboxCacheSize int           `validate:"gt=0"`

	// Kafka publication is enabled when KafkaBrokers is non-empty.
	KafkaBrokers   []string
	KafkaSinkTopic string `validate:"required_with=KafkaBrokers"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s"))
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	delimiter, err := tabular.ParseDelimiter(os.Getenv("CSV_DELIMITER"))
	if err != nil {
		return nil, fmt.Errorf("invalid CSV_DELIMITER: %w", err)
	}

	policy, err := domain.ParseExclusionPolicy(sharedcfg.EnvOrDefault("GEOCODE_MISSING_POLICY", string(domain.PolicyWarn)))
	if err != nil {
		return nil, fmt.Errorf("invalid GEOCODE_MISSING_POLICY: %w", err)
	}

	params, err := loadSitingParams()
	if err != nil {
		return nil, err
	}

	zoom, err := envInt("MAP_ZOOM", 7)
	if err != nil {
		return nil, err
	}
	cacheSize, err := envInt("MAPBOX_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	serve, err := envBool("SERVE", false)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled, err := envBool("MAPBOX_ENABLED", mapboxToken != "")
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); strings.TrimSpace(v) != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		CustomersPath:   sharedcfg.EnvOrDefault("CUSTOMERS_PATH", "data/olist_customers_dataset.csv"),
		OrdersPath:      sharedcfg.EnvOrDefault("ORDERS_PATH", "data/olist_orders_dataset.csv"),
		PaymentsPath:    sharedcfg.EnvOrDefault("PAYMENTS_PATH", "data/olist_order_payments_dataset.csv"),
		Delimiter:       delimiter,
		Region:          domain.NormalizeRegion(sharedcfg.EnvOrDefault("TARGET_REGION", "SP")),
		CoordinatesPath: os.Getenv("COORDINATES_PATH"),
		MissingPolicy:   policy,
		Siting:          params,

		OutputDir:   sharedcfg.EnvOrDefault("OUTPUT_DIR", "out"),
		MapFile:     sharedcfg.EnvOrDefault("MAP_FILE", "mapa_centros_distribuicao.html"),
		ChartFile:   sharedcfg.EnvOrDefault("CHART_FILE", "valor_por_cidade.html"),
		GeoJSONFile: os.Getenv("GEOJSON_FILE"),
		MapZoom:     zoom,

		Serve:           serve,
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json")),
		ShutdownTimeout: shutdownTimeout,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: cacheSize,

		KafkaBrokers:   brokers,
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "facility-candidates"),
	}

	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, describe(err)
	}

	return cfg, nil
}

// loadSitingParams reads the clustering settings. Range checks that depend on
// the demand (K against distinct cities) happen in siting.Params.Validate.
func loadSitingParams() (siting.Params, error) {
	p := siting.DefaultParams()
	var err error

	if p.K, err = envInt("FACILITY_COUNT", p.K); err != nil {
		return p, err
	}
	if p.MaxIterations, err = envInt("CLUSTER_MAX_ITERATIONS", p.MaxIterations); err != nil {
		return p, err
	}
	if p.Restarts, err = envInt("CLUSTER_RESTARTS", p.Restarts); err != nil {
		return p, err
	}
	if p.Tolerance, err = envFloat("CLUSTER_TOLERANCE", p.Tolerance); err != nil {
		return p, err
	}
	if p.ReplicationScale, err = envFloat("REPLICATION_SCALE", p.ReplicationScale); err != nil {
		return p, err
	}
	if v := os.Getenv("CLUSTER_SEED"); v != "" {
		if p.Seed, err = strconv.ParseUint(v, 10, 64); err != nil {
			return p, fmt.Errorf("invalid CLUSTER_SEED %q: %w", v, err)
		}
	}
	if p.Weighting, err = siting.ParseWeighting(sharedcfg.EnvOrDefault("CLUSTER_WEIGHTING", string(p.Weighting))); err != nil {
		return p, fmt.Errorf("invalid CLUSTER_WEIGHTING: %w", err)
	}

	if p.K < 1 {
		return p, fmt.Errorf("invalid FACILITY_COUNT %d: must be at least 1", p.K)
	}
	if p.MaxIterations < 1 {
		return p, fmt.Errorf("invalid CLUSTER_MAX_ITERATIONS %d: must be at least 1", p.MaxIterations)
	}
	if p.Restarts < 1 {
		return p, fmt.Errorf("invalid CLUSTER_RESTARTS %d: must be at least 1", p.Restarts)
	}
	if p.Tolerance < 0 {
		return p, fmt.Errorf("invalid CLUSTER_TOLERANCE %g: must be non-negative", p.Tolerance)
	}
	if !(p.ReplicationScale > 0 && p.ReplicationScale <= siting.MaxReplicationScale) {
		return p, fmt.Errorf("invalid REPLICATION_SCALE %g: must be in (0, %g]", p.ReplicationScale, float64(siting.MaxReplicationScale))
	}
	return p, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

// envNames maps struct fields to the variables that set them, so validation
// errors point at something the operator can change.
var envNames = map[string]string{
	"CustomersPath":   "CUSTOMERS_PATH",
	"OrdersPath":      "ORDERS_PATH",
	"PaymentsPath":    "PAYMENTS_PATH",
	"Region":          "TARGET_REGION",
	"MissingPolicy":   "GEOCODE_MISSING_POLICY",
	"OutputDir":       "OUTPUT_DIR",
	"MapFile":         "MAP_FILE",
	"ChartFile":       "CHART_FILE",
	"MapZoom":         "MAP_ZOOM",
	"HTTPAddr":        "HTTP_ADDR",
	"LogLevel":        "LOG_LEVEL",
	"LogFormat":       "LOG_FORMAT",
	"MapboxTimeout":   "MAPBOX_TIMEOUT",
	"MapboxCacheSize": "MAPBOX_CACHE_SIZE",
	"KafkaSinkTopic":  "KAFKA_SINK_TOPIC",
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	name, ok := envNames[fe.Field()]
	if !ok {
		name = fe.Field()
	}
	return fmt.Errorf("invalid %s %q: fails %s", name, fmt.Sprint(fe.Value()), fe.Tag())
}
