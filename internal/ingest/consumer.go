// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/chainwatch/internal/dispatch"
	"github.com/tomtom215/chainwatch/internal/logging"
	"github.com/tomtom215/chainwatch/internal/models"
	"github.com/tomtom215/chainwatch/internal/topology"
)

// KillmailTopic is the subject the upstream feed publishes on.
const KillmailTopic = "killmails.validated"

// TopologyDeltaTopic is the subject the mapping service pushes incremental
// chain updates on, between full refreshes.
const TopologyDeltaTopic = "topology.deltas"

// Dispatcher is the orchestrator surface the consumer needs.
type Dispatcher interface {
	HandleEvent(ctx context.Context, km *models.Killmail) dispatch.Summary
}

// ChainCache is the topology surface delta messages are folded into.
type ChainCache interface {
	ApplyDelta(delta topology.Delta)
}

// topologyDeltaMsg is the wire envelope for pushed chain updates.
type topologyDeltaMsg struct {
	MapID string         `json:"map_id"`
	Delta topology.Delta `json:"delta"`
}

// ConsumerConfig configures the killmail consumer.
type ConsumerConfig struct {
	// URL of the NATS server.
	URL string

	// DurableName names the JetStream durable consumer so redeploys
	// resume from the last acknowledged killmail. Default: "chainwatch".
	DurableName string

	// CloseTimeout bounds graceful shutdown. Default: 30s.
	CloseTimeout time.Duration

	// RetryMaxRetries bounds redelivery attempts for transient handler
	// failures. Default: 3.
	RetryMaxRetries int

	// MapID filters pushed topology deltas; deltas for other maps are
	// dropped. Empty accepts all.
	MapID string
}

// DefaultConsumerConfig returns production defaults.
func DefaultConsumerConfig(url string) ConsumerConfig {
	return ConsumerConfig{
		URL:             url,
		DurableName:     "chainwatch",
		CloseTimeout:    30 * time.Second,
		RetryMaxRetries: 3,
	}
}

// Consumer runs a Watermill router that feeds killmails from JetStream
// into the dispatch orchestrator in arrival order.
type Consumer struct {
	router     *message.Router
	subscriber message.Subscriber
	dispatcher Dispatcher
	cache      ChainCache
	mapID      string
}

// NewConsumer builds the consumer and its router. cache may be nil, in
// which case topology delta messages are not subscribed.
func NewConsumer(cfg ConsumerConfig, dispatcher Dispatcher, cache ChainCache, logger watermill.LoggerAdapter) (*Consumer, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	if cfg.DurableName == "" {
		cfg.DurableName = "chainwatch"
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 30 * time.Second
	}
	if cfg.RetryMaxRetries <= 0 {
		cfg.RetryMaxRetries = 3
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:            cfg.URL,
		AckWaitTimeout: 30 * time.Second,
		CloseTimeout:   cfg.CloseTimeout,
		NatsOptions: []natsgo.Option{
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(-1),
			natsgo.ReconnectWait(time.Second),
		},
		Unmarshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			DurablePrefix: cfg.DurableName,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create killmail subscriber: %w", err)
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	router.AddMiddleware(middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
		Multiplier:      2.0,
		Logger:          logger,
	}.Middleware)

	c := &Consumer{router: router, subscriber: sub, dispatcher: dispatcher, cache: cache, mapID: cfg.MapID}
	router.AddNoPublisherHandler("killmail_dispatch", KillmailTopic, sub, c.handle)
	if cache != nil {
		router.AddNoPublisherHandler("topology_delta", TopologyDeltaTopic, sub, c.handleDelta)
	}
	return c, nil
}

// handle processes one killmail message. Malformed payloads are acked and
// dropped; the upstream pipeline owns validation and a bad record must
// not wedge the stream.
func (c *Consumer) handle(msg *message.Message) error {
	km, err := models.ParseKillmail(msg.Payload)
	if err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("failed to parse killmail, dropping")
		return nil
	}

	summary := c.dispatcher.HandleEvent(msg.Context(), km)
	if summary.Timeouts > 0 {
		logging.Warn().
			Int64("killmail_id", km.ID).
			Int("timeouts", summary.Timeouts).
			Msg("dispatch deadline exceeded for killmail")
	}
	return nil
}

// handleDelta folds a pushed topology update into the cache. Deltas for
// other maps, or malformed payloads, are acked and dropped.
func (c *Consumer) handleDelta(msg *message.Message) error {
	var ev topologyDeltaMsg
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("failed to parse topology delta, dropping")
		return nil
	}
	if c.mapID != "" && ev.MapID != c.mapID {
		return nil
	}
	c.cache.ApplyDelta(ev.Delta)
	return nil
}

// Serve runs the router until the context is canceled. It implements
// suture.Service.
func (c *Consumer) Serve(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Close shuts down the router and subscriber.
func (c *Consumer) Close() error {
	if err := c.router.Close(); err != nil {
		return err
	}
	return c.subscriber.Close()
}
