// Package notify publishes pipeline progress events.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/openeduvoice/slidevoice/internal/config"
)

// Event kinds.
const (
	KindSlide = "slide"
	KindStage = "stage"
)

// Event is one progress message. Slide is -1 for stage-level events.
type Event struct {
	Kind      string         `json:"kind"`
	Project   string         `json:"project"`
	Stage     string         `json:"stage"`
	Slide     int            `json:"slide"`
	Status    string         `json:"status"`
	Error     string         `json:"error,omitempty"`
	Counts    map[string]int `json:"counts,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Notifier delivers progress events. Publish must not block the pipeline
// for long; delivery failures are logged, not returned to stage logic.
type Notifier interface {
	Publish(ctx context.Context, ev Event)
	Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
func (Nop) Close()                         {}

// New returns an MQTT notifier when a broker is configured and Nop
// otherwise. A broker that cannot be reached is logged and replaced by Nop
// so progress reporting never blocks a run.
func New(cfg *config.Config, log zerolog.Logger) Notifier {
	if cfg.MQTTBrokerURL == "" {
		return Nop{}
	}
	c, err := Connect(Options{
		BrokerURL: cfg.MQTTBrokerURL,
		ClientID:  cfg.MQTTClientID,
		Topic:     cfg.MQTTTopic,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
		Log:       log,
	})
	if err != nil {
		log.Warn().Err(err).Str("broker", cfg.MQTTBrokerURL).Msg("mqtt unavailable, progress events disabled")
		return Nop{}
	}
	return c
}
