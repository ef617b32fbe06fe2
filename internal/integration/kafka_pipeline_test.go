//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/demand-siting/internal/adapter/kafka"
	"github.com/couchcryptid/demand-siting/internal/config"
	"github.com/couchcryptid/demand-siting/internal/domain"
	"github.com/couchcryptid/demand-siting/internal/observability"
	"github.com/couchcryptid/demand-siting/internal/pipeline"
	"github.com/couchcryptid/demand-siting/internal/siting"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSinkTopic = "test-facilities"

// publishedFacility holds a deserialized message read from the sink topic.
type publishedFacility struct {
	Message kafka.FacilityMessage
	Key     string
	Headers map[string]string
}

// readFacility reads a single message from the sink consumer and deserializes it.
func readFacility(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedFacility {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var fm kafka.FacilityMessage
	require.NoError(t, json.Unmarshal(msg.Value, &fm), "unmarshal sink message")

	return publishedFacility{Message: fm, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestKafkaWriter verifies a published facility round-trips through Kafka with
// its key and headers intact.
func TestKafkaWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaSinkTopic: testSinkTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	generatedAt := time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)
	facility := domain.FacilityCandidate{
		ID:                 "94ce59c",
		Rank:               1,
		Location:           domain.GeoPoint{Lat: -23.4, Lon: -46.7},
		AssignedWeightMass: 1250.5,
		AssignedOrders:     11,
		Cities:             []string{"campinas", "sao paulo"},
	}
	require.NoError(t, writer.Publish(ctx, "run-1", generatedAt, []domain.FacilityCandidate{facility}))

	got := readFacility(ctx, t, newConsumer(t, broker))
	assert.Equal(t, "94ce59c", got.Key)
	assert.Equal(t, "run-1", got.Headers["run_id"])
	assert.Equal(t, "1", got.Headers["rank"])
	assert.Equal(t, "run-1", got.Message.RunID)
	assert.True(t, generatedAt.Equal(got.Message.GeneratedAt))
	assert.Equal(t, facility, got.Message.FacilityCandidate)
}

// TestPipelinePublishes runs a full siting pass against in-memory tables and
// checks every facility reaches the topic, in rank order.
func TestPipelinePublishes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaSinkTopic: testSinkTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	params := siting.DefaultParams()
	params.K = 2

	p := pipeline.New(pipeline.Stages{
		Loader:    staticLoader{},
		Geocoder:  pipeline.NewTableGeocoder(domain.DefaultCoordinates(), nil, "SP", domain.PolicyWarn, discardLogger()),
		Siter:     siting.New(params, discardLogger()),
		Publisher: writer,
		Region:    "SP",
	}, discardLogger(), observability.NewMetricsForTesting())

	res, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, res.Facilities, 2)

	consumer := newConsumer(t, broker)
	for i := range res.Facilities {
		got := readFacility(ctx, t, consumer)
		assert.Equal(t, res.Facilities[i].ID, got.Key)
		assert.Equal(t, strconv.Itoa(i+1), got.Headers["rank"])
		assert.Equal(t, res.RunID, got.Headers["run_id"])
		assert.InDelta(t, res.Facilities[i].AssignedWeightMass, got.Message.AssignedWeightMass, 1e-9)
	}
}

type staticLoader struct{}

func (staticLoader) Load(context.Context) (domain.Inputs, error) {
	return domain.Inputs{
		Customers: domain.Table{Name: "customers", Header: domain.CustomerFields, Rows: [][]string{
			{"c1", "São Paulo", "SP"},
			{"c2", "Campinas", "SP"},
			{"c3", "Ribeirão Preto", "SP"},
			{"c4", "Santos", "SP"},
		}},
		Orders: domain.Table{Name: "orders", Header: domain.OrderFields, Rows: [][]string{
			{"o1", "c1"}, {"o2", "c2"}, {"o3", "c3"}, {"o4", "c4"}, {"o5", "c1"},
		}},
		Payments: domain.Table{Name: "payments", Header: domain.PaymentFields, Rows: [][]string{
			{"o1", "420"}, {"o2", "180"}, {"o3", "95.5"}, {"o4", "60"}, {"o5", "33"},
		}},
	}, nil
}
