package pushstream

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	crerr "github.com/cockroachdb/errors"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/riskibarqy/live-match/internal/platform/logging"
)

const qosAtLeastOnce byte = 1

type Config struct {
	Broker       string
	Username     string
	Password     string
	Topic        string
	ClientID     string
	ConnectTries uint
}

// Handler receives each translated batch. It runs on the mqtt router goroutine,
// so batches for a topic are handled in arrival order.
type Handler func(ctx context.Context, batch Batch)

// Consumer subscribes to the provider's live topic and hands batches to a Handler.
type Consumer struct {
	cfg     Config
	handler Handler
	logger  *logging.Logger
	now     func() time.Time

	client  mqtt.Client
	baseCtx context.Context
	dropped atomic.Int64
}

func NewConsumer(cfg Config, handler Handler, logger *logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("live-match-%d", time.Now().UnixNano())
	}
	if cfg.ConnectTries == 0 {
		cfg.ConnectTries = 5
	}
	return &Consumer{
		cfg:     cfg,
		handler: handler,
		logger:  logger.Named("pushstream"),
		now:     time.Now,
		baseCtx: context.Background(),
	}
}

// Start connects, retrying with exponential backoff, and subscribes. The
// subscription is renewed on every reconnect.
func (c *Consumer) Start(ctx context.Context) error {
	c.baseCtx = context.WithoutCancel(ctx)

	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.Broker).
		SetClientID(c.cfg.ClientID).
		SetUsername(c.cfg.Username).
		SetPassword(c.cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(10 * time.Second).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			c.logger.Warn("mqtt connection lost", "broker", c.cfg.Broker, "error", err)
		})
	c.client = mqtt.NewClient(opts)

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		token := c.client.Connect()
		token.Wait()
		return struct{}{}, token.Error()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.cfg.ConnectTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.WarnContext(ctx, "mqtt connect failed, retrying", "broker", c.cfg.Broker, "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		return crerr.Wrapf(err, "connect mqtt broker=%s", c.cfg.Broker)
	}
	return nil
}

func (c *Consumer) Stop() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

func (c *Consumer) Connected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Dropped counts payloads that were rejected whole or in part.
func (c *Consumer) Dropped() int64 {
	return c.dropped.Load()
}

func (c *Consumer) onConnect(client mqtt.Client) {
	token := client.Subscribe(c.cfg.Topic, qosAtLeastOnce, func(_ mqtt.Client, msg mqtt.Message) {
		c.HandlePayload(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		c.logger.Error("mqtt subscribe failed", "topic", c.cfg.Topic, "error", err)
		return
	}
	c.logger.Info("mqtt subscribed", "broker", c.cfg.Broker, "topic", c.cfg.Topic)
}

// HandlePayload decodes one raw message and dispatches its batches.
func (c *Consumer) HandlePayload(topic string, payload []byte) {
	batches, err := Decode(payload, c.now().Unix())
	if err != nil {
		c.dropped.Add(1)
		c.logger.Warn("dropping undecodable live message", "topic", topic, "bytes", len(payload), "kept", len(batches), "error", err)
	}
	for _, batch := range batches {
		c.handler(c.baseCtx, batch)
	}
}
