//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/adrian-cg/earthquakes/internal/adapter/geonames"
	"github.com/adrian-cg/earthquakes/internal/adapter/kafka"
	"github.com/adrian-cg/earthquakes/internal/adapter/memview"
	"github.com/adrian-cg/earthquakes/internal/config"
	"github.com/adrian-cg/earthquakes/internal/coordinator"
	"github.com/adrian-cg/earthquakes/internal/domain"
	"github.com/adrian-cg/earthquakes/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testDisplayTopic = "test-displays"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("quake-map-test"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type displayMessage struct {
	Display domain.Display
	Key     string
	Headers map[string]string
}

func readDisplay(ctx context.Context, t *testing.T, consumer *kafkago.Reader) displayMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from display topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var d domain.Display
	require.NoError(t, json.Unmarshal(msg.Value, &d), "unmarshal display message")
	return displayMessage{Display: d, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testDisplayTopic,
		GroupID:     fmt.Sprintf("test-displays-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestWriterPublish verifies a display round-trips through Kafka with its key and headers.
func TestWriterPublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testDisplayTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaDisplayTopic: testDisplayTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	lat, lng := 38.322, 142.369
	displayedAt := time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)
	require.NoError(t, writer.Publish(ctx, domain.Display{
		Kind:        domain.DisplayTopTen,
		Bounds:      domain.WorldBounds,
		Quakes:      []domain.Quake{{DateTime: displayedAt.AddDate(0, -1, 0), Magnitude: 8.8, Lat: &lat, Lng: &lng, EQID: "c0001xgp"}},
		DisplayedAt: displayedAt,
	}))

	dm := readDisplay(ctx, t, newConsumer(t, broker))
	assert.Equal(t, "top_ten", dm.Key)
	assert.Equal(t, "top_ten", dm.Headers["display_kind"])
	assert.Equal(t, displayedAt.Format(time.RFC3339), dm.Headers["displayed_at"])
	assert.Equal(t, domain.WorldBounds, dm.Display.Bounds)
	require.Len(t, dm.Display.Quakes, 1)
	assert.Equal(t, "c0001xgp", dm.Display.Quakes[0].EQID)
}

// TestCoordinatorPublishesDisplays wires the GeoNames client (against a local
// fake), the in-memory view, the coordinator and the Kafka writer, and checks
// that both the world top ten and a place search reach the display topic.
func TestCoordinatorPublishesDisplays(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testDisplayTopic)

	recent := time.Now().UTC().AddDate(0, -1, 0).Format("2006-01-02 15:04:05")
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("maxRows") == "500" {
			fmt.Fprintf(w, `{"earthquakes":[
				{"datetime":%q,"depth":10,"lng":142.4,"src":"us","eqid":"world1","magnitude":7.1,"lat":38.3},
				{"datetime":"2011-03-11 04:46:23","depth":24.4,"lng":142.369,"src":"us","eqid":"old","magnitude":8.8,"lat":38.322}
			]}`, recent)
			return
		}
		fmt.Fprintf(w, `{"earthquakes":[
			{"datetime":%q,"depth":5,"lng":-100.3,"src":"us","eqid":"local1","magnitude":4.2,"lat":25.7},
			{"datetime":%q,"depth":7,"lng":-100.2,"src":"us","eqid":"local2","magnitude":4.9,"lat":25.6}
		]}`, recent, recent)
	}))
	t.Cleanup(geo.Close)

	metrics := observability.NewMetricsForTesting()
	client := geonames.NewClient(geonames.Options{BaseURL: geo.URL, Username: "test", Timeout: 5 * time.Second}, metrics, discardLogger())

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaDisplayTopic: testDisplayTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	opts := coordinator.DefaultOptions()
	view := memview.NewView(opts.InitialCenter, opts.InitialZoom)
	c := coordinator.New(client, view.Map, view.Tables, view.Notices, writer, discardLogger(), metrics, opts)

	runCtx, runCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(runCtx) }()

	require.Eventually(t, func() bool { return c.CheckReadiness(ctx) == nil }, 30*time.Second, 50*time.Millisecond)

	vp := domain.BoundingBox{North: 26.0, South: 25.4, East: -100.0, West: -100.6}
	require.NoError(t, c.Dispatch(ctx, coordinator.PlaceSelected{Place: domain.Place{Name: "Monterrey", Viewport: &vp}}))

	consumer := newConsumer(t, broker)
	byKind := map[string]displayMessage{}
	for len(byKind) < 2 {
		dm := readDisplay(ctx, t, consumer)
		byKind[dm.Key] = dm
	}

	runCancel()
	require.NoError(t, <-errCh)

	top := byKind[domain.DisplayTopTen].Display
	require.Len(t, top.Quakes, 1, "records older than a year are filtered out")
	assert.Equal(t, "world1", top.Quakes[0].EQID)

	search := byKind[domain.DisplaySearch].Display
	assert.Equal(t, vp, search.Bounds)
	require.Len(t, search.Quakes, 2)
	assert.Equal(t, "local2", search.Quakes[0].EQID, "strongest first")

	snap := view.Snapshot()
	require.Len(t, snap.Results, 2)
	assert.Len(t, snap.Map.Markers, 2)
	assert.Empty(t, snap.Notices)
}
