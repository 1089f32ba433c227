package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"campuswatt/internal/config"
	"campuswatt/internal/models"
	"campuswatt/internal/store"
)

const writeTimeout = 10 * time.Second

// Stats counts what happened to the messages the ingestor has seen.
type Stats struct {
	Received uint64
	Stored   uint64
	Dropped  uint64
}

// Ingestor subscribes to the node topic and persists every valid reading.
// A malformed payload, a failed validation, or a failed write drops that
// one message and the loop keeps going; nothing a node publishes can take
// the ingestor down.
type Ingestor struct {
	client mqtt.Client
	store  store.Store
	topic  string
	log    *slog.Logger

	received atomic.Uint64
	stored   atomic.Uint64
	dropped  atomic.Uint64
}

// New builds an Ingestor connected to nothing yet; call Start to connect
// and subscribe.
func New(cfg config.Config, st store.Store, logger *slog.Logger) *Ingestor {
	i := &Ingestor{
		store: st,
		topic: cfg.MQTTTopic,
		log:   logger,
	}
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBrokerHost, cfg.MQTTBrokerPort)).
		SetClientID("power-ingestor-" + uuid.NewString()).
		SetOnConnectHandler(i.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", "err", err)
		})
	i.client = mqtt.NewClient(opts)
	return i
}

// Start connects to the broker. The subscription happens in the on-connect
// handler so it is re-established after every reconnect.
func (i *Ingestor) Start() error {
	if token := i.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to mqtt broker: %w", token.Error())
	}
	return nil
}

func (i *Ingestor) onConnect(c mqtt.Client) {
	i.log.Info("connected to mqtt broker")
	if token := c.Subscribe(i.topic, 0, i.handleMessage); token.Wait() && token.Error() != nil {
		i.log.Error("mqtt subscribe failed", "topic", i.topic, "err", token.Error())
		return
	}
	i.log.Info("subscribed to topic", "topic", i.topic)
}

// handleMessage processes one message: decode, validate, write. Paho
// invokes it sequentially per connection, so messages are handled one at
// a time in arrival order.
func (i *Ingestor) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	i.received.Add(1)

	reading, err := models.DecodeReading(msg.Payload())
	if err != nil {
		i.dropped.Add(1)
		i.log.Warn("dropping message", "topic", msg.Topic(), "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := i.store.WriteReading(ctx, reading); err != nil {
		i.dropped.Add(1)
		i.log.Error("failed to write reading", "node_id", reading.NodeID, "err", err)
		return
	}
	i.stored.Add(1)
	i.log.Debug("stored reading", "node_id", reading.NodeID, "timestamp", reading.Timestamp)
}

// Stats returns a snapshot of the message counters.
func (i *Ingestor) Stats() Stats {
	return Stats{
		Received: i.received.Load(),
		Stored:   i.stored.Load(),
		Dropped:  i.dropped.Load(),
	}
}

// Close finishes the in-flight handler and disconnects from the broker.
func (i *Ingestor) Close() {
	i.client.Disconnect(250)
	s := i.Stats()
	i.log.Info("ingestor stopped", "received", s.Received, "stored", s.Stored, "dropped", s.Dropped)
}
