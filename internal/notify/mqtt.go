package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// Publisher is the subset of the paho client used here.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Client publishes events to {Topic}/{project}/{stage}.
type Client struct {
	conn      Publisher
	topic     string
	connected atomic.Bool
	published atomic.Int64
	failed    atomic.Int64
	log       zerolog.Logger
}

type Options struct {
	BrokerURL string
	ClientID  string
	Topic     string
	Username  string
	Password  string
	Log       zerolog.Logger
}

// Connect dials the broker and returns once the connection is up.
func Connect(opts Options) (*Client, error) {
	c := &Client{
		topic: strings.TrimRight(opts.Topic, "/"),
		log:   opts.Log.With().Str("component", "mqtt").Logger(),
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	conn := mqtt.NewClient(clientOpts)
	token := conn.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", opts.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", opts.BrokerURL, err)
	}
	c.conn = conn
	return c, nil
}

// NewClient wraps an existing publisher, e.g. a test double.
func NewClient(conn Publisher, topic string, log zerolog.Logger) *Client {
	c := &Client{conn: conn, topic: strings.TrimRight(topic, "/"), log: log}
	c.connected.Store(true)
	return c
}

func (c *Client) onConnect(mqtt.Client) {
	c.connected.Store(true)
	c.log.Info().Str("topic", c.topic).Msg("mqtt connected")
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

// Topic returns the topic an event is published to.
func (c *Client) Topic(ev Event) string {
	return c.topic + "/" + topicSegment(ev.Project) + "/" + ev.Stage
}

// Publish sends ev with QoS 1. Failures are logged and counted.
func (c *Client) Publish(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		c.failed.Add(1)
		c.log.Error().Err(err).Msg("marshal event")
		return
	}
	token := c.conn.Publish(c.Topic(ev), 1, false, payload)
	wait := publishTimeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < wait {
		wait = time.Until(dl)
	}
	if !token.WaitTimeout(wait) {
		c.failed.Add(1)
		c.log.Warn().Str("topic", c.Topic(ev)).Msg("mqtt publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		c.failed.Add(1)
		c.log.Warn().Err(err).Str("topic", c.Topic(ev)).Msg("mqtt publish failed")
		return
	}
	c.published.Add(1)
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Stats returns the number of published and failed events.
func (c *Client) Stats() (published, failed int64) {
	return c.published.Load(), c.failed.Load()
}

func (c *Client) Close() {
	c.log.Info().Int64("published", c.published.Load()).Int64("failed", c.failed.Load()).Msg("disconnecting mqtt client")
	c.conn.Disconnect(1000)
}

// topicSegment strips characters that are wildcards or separators in MQTT
// topic names.
func topicSegment(s string) string {
	r := strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_")
	if s = r.Replace(s); s == "" {
		return "_"
	}
	return s
}
