// Package mqtt ingests sensor telemetry published by boards to an MQTT broker.
//
// Messages are JSON objects {"secret", "local_temp", "local_humid"} with an
// optional RFC 3339 "timestamp"; each one is stored like a sensor form post.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	service "github.com/okian/wearsense/internal/app"
	"github.com/okian/wearsense/internal/domain/apperr"
	"github.com/okian/wearsense/internal/domain/types"
	"github.com/okian/wearsense/pkg/logger"
	"github.com/okian/wearsense/pkg/metrics"
)

const (
	defaultQoS            = 1
	defaultConnectTimeout = 30 * time.Second
	subscribeTimeout      = 10 * time.Second
	messageTimeout        = 10 * time.Second
	disconnectQuiesceMS   = 250
)

// SensorIngester stores sensor readings.
type SensorIngester interface {
	IngestSensor(ctx context.Context, in service.SensorInput) (types.SensorView, error)
}

// Subscriber consumes sensor messages from one topic.
type Subscriber struct {
	mu sync.Mutex

	broker         string
	topic          string
	clientID       string
	qos            byte
	connectTimeout time.Duration

	ingester SensorIngester
	client   paho.Client
	baseCtx  context.Context
	logger   logger.Logger
}

// Option applies a configuration option to the Subscriber.
type Option func(*Subscriber)

// WithQoS sets the subscription quality of service (0, 1 or 2).
func WithQoS(qos byte) Option {
	return func(s *Subscriber) {
		if qos <= 2 {
			s.qos = qos
		}
	}
}

// WithConnectTimeout bounds the initial broker connection.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *Subscriber) {
		if d > 0 {
			s.connectTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the subscriber.
func WithLogger(l logger.Logger) Option {
	return func(s *Subscriber) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSubscriber creates a subscriber for topic on broker.
func NewSubscriber(broker, topic, clientID string, ingester SensorIngester, opts ...Option) *Subscriber {
	s := &Subscriber{
		broker:         broker,
		topic:          topic,
		clientID:       clientID,
		qos:            defaultQoS,
		connectTimeout: defaultConnectTimeout,
		ingester:       ingester,
		baseCtx:        context.Background(),
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("mqtt")
	return s
}

// clientOptions builds the paho options. The subscription is made in the
// connect handler so it survives automatic reconnects.
func (s *Subscriber) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(s.broker)
	opts.SetClientID(s.clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)
	return opts
}

// Start connects to the broker and subscribes.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}
	s.baseCtx = context.WithoutCancel(ctx)
	client := paho.NewClient(s.clientOptions())

	token := client.Connect()
	if !token.WaitTimeout(s.connectTimeout) {
		client.Disconnect(0)
		return fmt.Errorf("%w: %s", ErrConnectTimeout, s.broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", s.broker, err)
	}
	s.client = client
	s.logger.Info(ctx, "mqtt subscriber started",
		logger.String("broker", s.broker),
		logger.String("topic", s.topic),
	)
	return nil
}

// Stop disconnects from the broker.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return
	}
	s.client.Disconnect(disconnectQuiesceMS)
	s.client = nil
	s.logger.Info(context.Background(), "mqtt subscriber stopped")
}

func (s *Subscriber) onConnect(c paho.Client) {
	token := c.Subscribe(s.topic, s.qos, s.onMessage)
	if !token.WaitTimeout(subscribeTimeout) {
		s.logger.Error(s.baseCtx, "mqtt subscribe failed", logger.Error(ErrSubscribeTimeout))
		return
	}
	if err := token.Error(); err != nil {
		s.logger.Error(s.baseCtx, "mqtt subscribe failed", logger.Error(err))
		return
	}
	s.logger.Debug(s.baseCtx, "mqtt subscribed", logger.String("topic", s.topic))
}

func (s *Subscriber) onConnectionLost(_ paho.Client, err error) {
	metrics.RecordErrorByComponent("mqtt", "connection_lost")
	s.logger.Warn(s.baseCtx, "mqtt connection lost", logger.Error(err))
}

func (s *Subscriber) onMessage(_ paho.Client, m paho.Message) {
	ctx, cancel := context.WithTimeout(s.baseCtx, messageTimeout)
	defer cancel()
	if err := s.Handle(ctx, m.Payload()); err != nil {
		s.logger.Warn(ctx, "sensor message dropped",
			logger.String("topic", m.Topic()),
			logger.Error(err),
		)
	}
}

type sensorMessage struct {
	Secret     string    `json:"secret"`
	LocalTemp  *float64  `json:"local_temp"`
	LocalHumid *float64  `json:"local_humid"`
	Timestamp  time.Time `json:"timestamp"`
}

// Handle decodes and stores one message payload.
func (s *Subscriber) Handle(ctx context.Context, payload []byte) error {
	var msg sensorMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		metrics.RecordMQTTMessage("invalid")
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	_, err := s.ingester.IngestSensor(ctx, service.SensorInput{
		Secret:      msg.Secret,
		Temperature: msg.LocalTemp,
		Humidity:    msg.LocalHumid,
		Timestamp:   msg.Timestamp,
	})
	switch {
	case err == nil:
		metrics.RecordMQTTMessage("ok")
		return nil
	case errors.Is(err, apperr.ErrMissingRequiredData), errors.Is(err, apperr.ErrInvalidSecret):
		metrics.RecordMQTTMessage("rejected")
	default:
		metrics.RecordMQTTMessage("failed")
	}
	return err
}
