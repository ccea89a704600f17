// Package mqtt publishes companion telemetry over an MQTT broker.
package mqtt

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/repsense/internal/domain/telemetry"
	"github.com/okian/repsense/pkg/logger"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultConnectTimeout = 5 * time.Second
	disconnectQuiesceMS   = 250
)

// Client is the subset of the paho client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher implements telemetry.Publisher on top of an MQTT client.
type Publisher struct {
	client   Client
	topic    string
	qos      byte
	retained bool
	closed   atomic.Bool
	logger   logger.Logger
}

var _ telemetry.Publisher = (*Publisher)(nil)

// Option configures a Publisher.
type Option func(*Publisher)

// WithQoS sets the publish quality of service (0, 1 or 2).
func WithQoS(qos byte) Option {
	return func(p *Publisher) {
		if qos <= 2 {
			p.qos = qos
		}
	}
}

// WithRetained marks published payloads as retained so late subscribers get
// the latest summary.
func WithRetained(r bool) Option {
	return func(p *Publisher) { p.retained = r }
}

// WithLogger sets the publisher logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// New wraps an already connected client.
func New(client Client, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		client: client,
		topic:  topic,
		logger: logger.Get().Named("mqtt"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dial connects to broker and returns a publisher for topic.
func Dial(ctx context.Context, broker, clientID, topic string, opts ...Option) (*Publisher, error) {
	if broker == "" {
		return nil, ErrNoBroker
	}
	co := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(defaultConnectTimeout)

	client := paho.NewClient(co)
	token := client.Connect()
	if err := wait(ctx, token, defaultConnectTimeout); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, broker, err)
	}

	p := New(client, topic, opts...)
	p.logger.Info(ctx, "connected to broker",
		logger.String("broker", broker),
		logger.String("topic", topic),
	)
	return p, nil
}

// Publish encodes payload and sends it to the configured topic. It returns
// when the broker acknowledges (per QoS) or ctx ends.
func (p *Publisher) Publish(ctx context.Context, payload telemetry.Payload) error {
	if p.closed.Load() {
		return ErrClosed
	}
	data, err := payload.Encode()
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}
	token := p.client.Publish(p.topic, p.qos, p.retained, data)
	return wait(ctx, token, 0)
}

// Close disconnects the client; further publishes fail with ErrClosed.
func (p *Publisher) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.client.Disconnect(disconnectQuiesceMS)
}

func wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-deadline:
		return ErrPublishTimeout
	}
}
