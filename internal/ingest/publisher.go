// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package ingest

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/goccy/go-json"

	"github.com/tomtom215/chainwatch/internal/models"
)

// AlertTopic is the subject emitted alerts are published on.
const AlertTopic = "alerts.matched"

// AlertPublisher publishes emitted alerts to NATS for external
// subscribers. It implements the emitter's Publisher contract.
type AlertPublisher struct {
	publisher message.Publisher
}

// NewAlertPublisher creates a JetStream-backed alert publisher.
func NewAlertPublisher(url string, logger watermill.LoggerAdapter) (*AlertPublisher, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("alert publisher reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create alert publisher: %w", err)
	}

	return &AlertPublisher{publisher: pub}, nil
}

// PublishAlert implements emitter.Publisher.
func (p *AlertPublisher) PublishAlert(alert *models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	msg := message.NewMessage(alert.ID, payload)
	msg.Metadata.Set("profile_id", alert.ProfileID)
	msg.Metadata.Set("killmail_id", fmt.Sprintf("%d", alert.KillmailID))

	return p.publisher.Publish(AlertTopic, msg)
}

// Name implements emitter.Publisher.
func (p *AlertPublisher) Name() string { return "nats" }

// Close shuts the underlying publisher down.
func (p *AlertPublisher) Close() error {
	return p.publisher.Close()
}
