//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/demand-siting/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, 10*time.Second, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "guarulhos", "SP")
	require.NoError(t, err)

	assert.InDelta(t, -23.45, result.Lat, 0.2, "lat should be near Guarulhos")
	assert.InDelta(t, -46.53, result.Lon, 0.2, "lon should be near Guarulhos")
	assert.Contains(t, result.FormattedAddress, "Guarulhos")
	assert.Greater(t, result.Confidence, 0.5)
}

func TestSmoke_ForwardGeocode_AccentStripped(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "sao jose dos campos", "SP")
	require.NoError(t, err)
	assert.InDelta(t, -23.18, result.Lat, 0.2)
}

func TestSmoke_ForwardGeocode_Nonsense(t *testing.T) {
	c := smokeClient(t)

	// Mapbox's fuzzy matching may still return results for nonsense queries,
	// so only check that the client handles the response.
	_, err := c.ForwardGeocode(context.Background(), "xyznonexistent99", "SP")
	require.NoError(t, err)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	cached := NewCachedGeocoder(smokeClient(t), 10, observability.NewMetricsForTesting())

	r1, err := cached.ForwardGeocode(context.Background(), "campinas", "SP")
	require.NoError(t, err)
	assert.Contains(t, r1.FormattedAddress, "Campinas")

	r2, err := cached.ForwardGeocode(context.Background(), "campinas", "SP")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}
