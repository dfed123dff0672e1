package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/phrazzld/vidscribe/internal/events"
)

// MQTTOptions configures MQTTPublisher.
type MQTTOptions struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	// PublishTimeout bounds the wait for the broker's acknowledgement.
	PublishTimeout time.Duration
}

// MQTTPublisher implements events.EventEmitter by publishing JSON events to
// {TopicPrefix}/{kind}/{resourceId}.
type MQTTPublisher struct {
	conn      mqtt.Client
	opts      MQTTOptions
	connected atomic.Bool
	logger    *slog.Logger
}

var _ events.EventEmitter = (*MQTTPublisher)(nil)

// ConnectMQTT connects to the broker and returns a publisher. The client
// reconnects on its own after a lost connection.
func ConnectMQTT(opts MQTTOptions, logger *slog.Logger) (*MQTTPublisher, error) {
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	p := &MQTTPublisher{
		opts:   opts,
		logger: logger.With("component", "mqtt_publisher"),
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	p.conn = mqtt.NewClient(clientOpts)
	token := p.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return p, nil
}

// Topic returns the topic an event is published to.
func (p *MQTTPublisher) Topic(event *events.ResourceEvent) string {
	return fmt.Sprintf("%s/%s/%s", p.opts.TopicPrefix, event.Kind, event.ResourceID)
}

// EmitEvent implements events.EventEmitter.
func (p *MQTTPublisher) EmitEvent(ctx context.Context, event *events.ResourceEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	token := p.conn.Publish(p.Topic(event), p.opts.QoS, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.opts.PublishTimeout):
		return fmt.Errorf("mqtt publish to %s timed out", p.Topic(event))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", p.Topic(event), err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *MQTTPublisher) IsConnected() bool {
	return p.connected.Load()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.logger.Info("disconnecting mqtt client")
	p.conn.Disconnect(1000)
}

func (p *MQTTPublisher) onConnect(_ mqtt.Client) {
	p.connected.Store(true)
	p.logger.Info("mqtt connected", "broker", p.opts.BrokerURL)
}

func (p *MQTTPublisher) onConnectionLost(_ mqtt.Client, err error) {
	p.connected.Store(false)
	p.logger.Warn("mqtt connection lost, will auto-reconnect", "error", err)
}
