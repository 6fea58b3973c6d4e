// Package mqttlight drives lights through an MQTT bridge that accepts
// zigbee2mqtt-style JSON set commands.
package mqttlight

import (
	"context"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

const disconnectQuiesce = 250 // ms

// Publisher is the part of an MQTT connection the sink needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// ClientConfig describes how to reach the broker.
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Client is a paho connection used as a Publisher.
type Client struct {
	client pahomqtt.Client
	cfg    ClientConfig
	logger *slog.Logger
}

var _ Publisher = (*Client)(nil)

// NewClient builds a client. Connect must be called before publishing.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.ClientID == "" {
		cfg.ClientID = "spectrum-lights-" + uuid.NewString()
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(pahomqtt.Client) {
		logger.Info("connected to mqtt broker", slog.String("broker", cfg.Broker))
	}
	opts.OnConnectionLost = func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", slog.Any("error", err))
	}

	return &Client{
		client: pahomqtt.NewClient(opts),
		cfg:    cfg,
		logger: logger,
	}
}

// Connect waits for the broker connection or for ctx to end.
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("connecting to mqtt broker", slog.String("broker", c.cfg.Broker), slog.String("client_id", c.cfg.ClientID))
	return waitToken(ctx, c.client.Connect(), "failed to connect to mqtt broker")
}

func (c *Client) Disconnect() {
	c.client.Disconnect(disconnectQuiesce)
}

func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	token := c.client.Publish(topic, c.cfg.QoS, false, payload)
	if err := waitToken(ctx, token, "failed to publish to "+topic); err != nil {
		return err
	}
	c.logger.Debug("published", slog.String("topic", topic), slog.Int("size", len(payload)))
	return nil
}

func waitToken(ctx context.Context, token pahomqtt.Token, msg string) error {
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return eris.Wrap(err, msg)
		}
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), msg)
	}
}
