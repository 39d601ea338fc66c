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
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/hazard-alert-feed/internal/adapter/httpfetch"
	"github.com/couchcryptid/hazard-alert-feed/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-alert-feed/internal/adapter/sqlite"
	"github.com/couchcryptid/hazard-alert-feed/internal/config"
	"github.com/couchcryptid/hazard-alert-feed/internal/domain"
	"github.com/couchcryptid/hazard-alert-feed/internal/observability"
	"github.com/couchcryptid/hazard-alert-feed/internal/pipeline"
	"github.com/couchcryptid/hazard-alert-feed/internal/source"
)

const testAlertTopic = "test-alerts"

var pollTime = time.Date(2024, time.May, 12, 0, 0, 0, 0, time.UTC)

// publishedMessage holds a deserialized message read from the alert topic.
type publishedMessage struct {
	Alert   domain.Alert
	Key     string
	Headers map[string]string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("hazard-alerts-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
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

	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testAlertTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// readPublished reads a single message from the alert topic and deserializes it.
func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from alert topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var alert domain.Alert
	require.NoError(t, json.Unmarshal(msg.Value, &alert), "unmarshal alert message")

	return publishedMessage{Alert: alert, Key: string(msg.Key), Headers: headers}
}

// agencyServer serves one fixture per agency feed plus the tsunami bulletin.
func agencyServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("GET /volcano", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"vName": "Kilauea", "vnum": "332010", "alertLevel": "WATCH",
			"alertDate": "2024-05-10 18:30:00", "noticeUrl": "https://volcanoes.usgs.gov/notice/1",
			"noticeSynopsis": "Eruption paused"},
			{"vName": "Mauna Loa", "vnum": "332020", "alertLevel": "NORMAL", "alertDate": "2024-05-10 10:00:00"}]`)
	})
	mux.HandleFunc("GET /tsunami.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>PTWC Events</title>
  <updated>2024-05-11T09:00:00Z</updated>
  <entry>
    <id>urn:uuid:hw-1</id>
    <title>Watch for Hawaii</title>
    <updated>2024-05-11T09:00:00Z</updated>
    <link rel="related" title="Bulletin" type="text/plain" href="%s/bulletins/WEHW40.txt"/>
    <summary>See bulletin</summary>
  </entry>
</feed>`, srv.URL)
	})
	mux.HandleFunc("GET /bulletins/WEHW40.txt", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "WEHW40 PHEB 110900\nNWS PACIFIC TSUNAMI WARNING CENTER HONOLULU HI\n\n...A TSUNAMI WATCH IS IN EFFECT FOR THE STATE OF HAWAII...\n")
	})
	mux.HandleFunc("GET /swpc.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"issue_datetime": "2024-05-11 00:00:00.000",
			"message": "WATCH: Geomagnetic Storm Category G4 Predicted\r\nHighest Storm Level Predicted by Day:\r\nMay 11:  G4   May 12:  G3"}]`)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// TestKafkaWriter verifies that kafka.Writer publishes alerts with the expected
// key, headers, and JSON value.
func TestKafkaWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testAlertTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaAlertTopic: testAlertTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	alert := domain.Alert{
		Title:         "Volcano Watch for Kilauea",
		Source:        source.USGSVolcanoName,
		Type:          domain.TypeVolcano,
		Level:         domain.LevelWatch,
		UniqueID:      "332010",
		PublishedDate: time.Date(2024, time.May, 10, 18, 30, 0, 0, time.UTC),
	}
	require.NoError(t, writer.LoadBatch(ctx, []domain.Alert{alert}))

	pm := readPublished(ctx, t, newConsumer(t, broker))
	assert.Equal(t, "332010", pm.Key)
	assert.Equal(t, source.USGSVolcanoName, pm.Headers["source"])
	assert.Equal(t, "Watch", pm.Headers["level"])
	assert.Equal(t, "2024-05-10T18:30:00Z", pm.Headers["published_at"])
	assert.Equal(t, alert, pm.Alert)
}

// TestPipelineEndToEnd polls fixture agency feeds over HTTP, publishes to a
// real broker, and checks that a second cycle publishes nothing new.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testAlertTopic)
	agencies := agencyServer(t)

	cfg := &config.Config{
		KafkaBrokers:         []string{broker},
		KafkaAlertTopic:      testAlertTopic,
		PollInterval:         time.Minute,
		PollLookback:         72 * time.Hour,
		SourceTimeout:        10 * time.Second,
		MaxConcurrentSources: 3,
		FollowUpConcurrency:  2,
		Sources: []config.SourceConfig{
			{Name: source.KeyUSGSVolcano, Endpoint: agencies.URL + "/volcano"},
			{Name: source.KeyPTWCTsunami, Endpoint: agencies.URL + "/tsunami.xml"},
			{Name: source.KeySWPCGeomagnetic, Endpoint: agencies.URL + "/swpc.json"},
		},
	}

	metrics := observability.NewMetricsForTesting()
	client := httpfetch.NewClient(5*time.Second, 0, "hazard-alert-feed-test", metrics, discardLogger())
	sources, err := pipeline.BuildSources(cfg, client, httpfetch.NewCachedFetcher(client, 16, metrics), discardLogger())
	require.NoError(t, err)

	checkpoints, err := sqlite.Open(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = checkpoints.Close() })

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	opts := pipeline.OptionsFromConfig(cfg)
	opts.Clock = clockwork.NewFakeClockAt(pollTime)
	p := pipeline.New(sources, writer, checkpoints, discardLogger(), metrics, opts)

	require.NoError(t, p.RunOnce(ctx))

	consumer := newConsumer(t, broker)
	received := make([]publishedMessage, 0, 3)
	for len(received) < 3 {
		received = append(received, readPublished(ctx, t, consumer))
	}

	// Newest first across all sources.
	assert.Equal(t, "Tsunami Watch for Hawaii", received[0].Alert.Title)
	assert.Equal(t, "urn:uuid:hw-1", received[0].Key)
	assert.Equal(t, "Geomagnetic Storm Category G4 Predicted", received[1].Alert.Title)
	require.NotNil(t, received[1].Alert.ExpirationDate)
	assert.Equal(t, time.Date(2024, time.May, 12, 23, 59, 59, 0, time.UTC), *received[1].Alert.ExpirationDate)
	assert.Equal(t, "Volcano Watch for Kilauea", received[2].Alert.Title)

	for _, pm := range received {
		assert.Equal(t, "Watch", pm.Headers["level"])
		_, err := time.Parse(time.RFC3339, pm.Headers["published_at"])
		assert.NoError(t, err, "invalid published_at header")
	}

	cp, ok, err := checkpoints.Since(ctx, source.KeyPTWCTsunami)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.May, 11, 9, 0, 0, 0, time.UTC), cp)

	// The feeds are unchanged, so the second cycle publishes nothing.
	require.NoError(t, p.RunOnce(ctx))
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no further alerts on the topic")
	require.NoError(t, p.CheckReadiness(ctx))
}

// TestPipelineSourceFailureIsolated verifies that an agency returning errors
// does not stop alerts from the healthy ones.
func TestPipelineSourceFailureIsolated(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testAlertTopic)
	agencies := agencyServer(t)

	cfg := &config.Config{
		KafkaBrokers:         []string{broker},
		KafkaAlertTopic:      testAlertTopic,
		PollLookback:         72 * time.Hour,
		SourceTimeout:        10 * time.Second,
		MaxConcurrentSources: 2,
		Sources: []config.SourceConfig{
			{Name: source.KeyUSGSVolcano, Endpoint: agencies.URL + "/volcano"},
			{Name: source.KeyNTWCTsunami, Endpoint: agencies.URL + "/missing.xml"},
		},
	}

	metrics := observability.NewMetricsForTesting()
	client := httpfetch.NewClient(5*time.Second, 0, "hazard-alert-feed-test", metrics, discardLogger())
	sources, err := pipeline.BuildSources(cfg, client, nil, discardLogger())
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	opts := pipeline.OptionsFromConfig(cfg)
	opts.Clock = clockwork.NewFakeClockAt(pollTime)
	p := pipeline.New(sources, writer, nil, discardLogger(), metrics, opts)

	require.NoError(t, p.RunOnce(ctx))

	pm := readPublished(ctx, t, newConsumer(t, broker))
	assert.Equal(t, "Volcano Watch for Kilauea", pm.Alert.Title)

	status := p.Status()
	require.Len(t, status, 2)
	assert.Equal(t, observability.OutcomeSuccess, status[0].Outcome)
	assert.Equal(t, observability.OutcomeNetworkError, status[1].Outcome)
}
