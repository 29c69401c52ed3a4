package kafka_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaTc "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/loomworks/loom/pkg/channels/kafka"
	"github.com/loomworks/loom/pkg/eventbus"
	"github.com/loomworks/loom/pkg/events"
)

var (
	kafkaContainer *kafkaTc.KafkaContainer
	brokers        string
	logger         *slog.Logger
)

func TestMain(m *testing.M) {
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx := context.Background()

	var err error

	kafkaContainer, err = kafkaTc.Run(ctx, "confluentinc/confluent-local:7.7.0", testcontainers.WithEnv(map[string]string{
		"KAFKA_CREATE_TOPICS": "true",
	}))
	if err != nil {
		panic("Failed to start Kafka container: " + err.Error())
	}

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	if err != nil {
		panic("Failed to get Kafka brokers: " + err.Error())
	}

	brokers = kafkaBrokers[0]

	createTopic(brokers)

	code := m.Run()

	if err := kafkaContainer.Terminate(ctx); err != nil {
		panic("Failed to terminate Kafka container: " + err.Error())
	}

	os.Exit(code)
}

func createTopic(brokers string) {
	config := sarama.NewConfig()

	admin, err := sarama.NewClusterAdmin([]string{brokers}, config)
	if err != nil {
		panic("Failed to create Kafka admin: " + err.Error())
	}

	defer func() {
		if err := admin.Close(); err != nil {
			panic("Failed to close Kafka admin: " + err.Error())
		}
	}()

	err = admin.CreateTopic(events.Topic, &sarama.TopicDetail{
		NumPartitions:     1,
		ReplicationFactor: 1,
	}, false)
	if err != nil {
		panic("Failed to create topic: " + err.Error())
	}
}

func TestCreateChannel_MissingBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	_, _, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "loom-test")
	require.Error(t, err)
}

func TestCreateChannel_PublishAndSubscribe(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", brokers)

	pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "loom-test")
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	defer func() {
		err := bus.Close()
		assert.NoError(t, err)
	}()

	received := make(chan any, 1)
	err = bus.Handle(events.ExecutionStartedEvent, func(ctx context.Context, event any) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// Give the consumer group time to join before producing.
	time.Sleep(2 * time.Second)

	sent := events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, "wf-1"),
		ExecutionID: "ex-1",
		SessionID:   "sess-1",
		Input:       map[string]any{"text": "the quarterly report"},
	}

	require.NoError(t, bus.Publish(ctx, "wf-1", sent))

	select {
	case event := <-received:
		started, ok := event.(*events.ExecutionStarted)
		require.True(t, ok)
		assert.Equal(t, "ex-1", started.ExecutionID)
		assert.Equal(t, "sess-1", started.SessionID)
		assert.Equal(t, "the quarterly report", started.Input["text"])
	case <-time.After(10 * time.Second):
		t.Fatal("Did not receive event within timeout")
	}
}

func TestCreateChannel_GenerateID(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", brokers)

	pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "loom-test")
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	defer func() {
		err := bus.Close()
		assert.NoError(t, err)
	}()

	id1 := bus.GenerateID()
	id2 := bus.GenerateID()

	assert.NotEmpty(t, id1)
	assert.NotEmpty(t, id2)
	assert.NotEqual(t, id1, id2)
}
