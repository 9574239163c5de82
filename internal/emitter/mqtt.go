package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned when the broker connection is down.
var ErrNotConnected = errors.New("mqtt not connected")

// MQTT publish timing.
const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// MQTTConfig configures the broker relay.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
}

// MQTT relays readings to a broker. Publishing never waits on the network: an in-flight publish
// is checked in the background and failures are counted.
type MQTT struct {
	cfg    MQTTConfig
	client mqtt.Client

	mu        sync.RWMutex
	connected bool

	published atomic.Uint64
	failed    atomic.Uint64
}

// NewMQTT creates a relay. Call Connect before emitting.
func NewMQTT(cfg MQTTConfig) *MQTT {
	return &MQTT{cfg: cfg}
}

// newMQTTWithClient wires an existing client, used by tests.
func newMQTTWithClient(cfg MQTTConfig, client mqtt.Client, connected bool) *MQTT {
	return &MQTT{cfg: cfg, client: client, connected: connected}
}

// Connect dials the broker with automatic reconnection.
func (e *MQTT) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.cfg.Broker)
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		log.Info().Str("broker", e.cfg.Broker).Str("client_id", e.cfg.ClientID).Msg("mqtt connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		log.Warn().Err(err).Str("broker", e.cfg.Broker).Msg("mqtt connection lost, reconnecting")
	}

	e.client = mqtt.NewClient(opts)
	token := e.client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(connectTimeout):
		return fmt.Errorf("mqtt connect to %s: timeout", e.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", e.cfg.Broker, err)
	}
	e.setConnected(true)
	return nil
}

func (e *MQTT) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTT) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

// Emit publishes r as JSON on the configured topic.
func (e *MQTT) Emit(ctx context.Context, r Reading) error {
	if e.client == nil || !e.isConnected() {
		e.failed.Add(1)
		return ErrNotConnected
	}
	payload, err := json.Marshal(r)
	if err != nil {
		e.failed.Add(1)
		return fmt.Errorf("marshal reading: %w", err)
	}

	token := e.client.Publish(e.cfg.Topic, e.cfg.QoS, false, payload)
	select {
	case <-token.Done():
		return e.settle(token)
	default:
	}

	go func() {
		if !token.WaitTimeout(publishTimeout) {
			e.failed.Add(1)
			log.Warn().Str("topic", e.cfg.Topic).Msg("mqtt publish timed out")
			return
		}
		if err := e.settle(token); err != nil {
			log.Warn().Err(err).Str("topic", e.cfg.Topic).Msg("mqtt publish failed")
		}
	}()
	return nil
}

func (e *MQTT) settle(token mqtt.Token) error {
	if err := token.Error(); err != nil {
		e.failed.Add(1)
		return fmt.Errorf("mqtt publish: %w", err)
	}
	e.published.Add(1)
	return nil
}

// Stats returns the number of confirmed and failed publishes.
func (e *MQTT) Stats() (published, failed uint64) {
	return e.published.Load(), e.failed.Load()
}

// Disconnect closes the broker connection.
func (e *MQTT) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		log.Info().Msg("mqtt disconnected")
	}
	e.setConnected(false)
}
