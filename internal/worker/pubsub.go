package worker

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/metamapa/mapgateway/internal/incident"
	"github.com/metamapa/mapgateway/internal/metrics"
)

// ChangeHandler refreshes whatever an incident change affects and reports
// how many sessions were refreshed.
type ChangeHandler interface {
	HandleChange(ctx context.Context, change incident.Change) (int, error)
}

// ChangeGate reports whether incident changes should trigger refreshes.
type ChangeGate interface {
	RefreshOnIncidentChange(ctx context.Context) bool
}

// PubSubHandler consumes incident-change notifications.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	handler          ChangeHandler
	gate             ChangeGate
	metrics          *metrics.Metrics
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID              string
	SubscriptionName       string
	MaxOutstandingMessages int
	MaxExtension           time.Duration
	Handler                ChangeHandler
	Gate                   ChangeGate
	Metrics                *metrics.Metrics
	Logger                 zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	subscriber.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	if subscriber.ReceiveSettings.MaxOutstandingMessages <= 0 {
		subscriber.ReceiveSettings.MaxOutstandingMessages = DefaultMaxOutstandingMessages
	}
	subscriber.ReceiveSettings.MaxExtension = cfg.MaxExtension
	if subscriber.ReceiveSettings.MaxExtension <= 0 {
		subscriber.ReceiveSettings.MaxExtension = DefaultMaxExtension
	}

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		handler:          cfg.Handler,
		gate:             cfg.Gate,
		metrics:          cfg.Metrics,
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx is canceled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting incident change subscriber")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	if h.process(ctx, logger, msg.Data) {
		msg.Ack()
		return
	}
	msg.Nack()
}

// process handles one payload and reports whether it should be acked.
func (h *PubSubHandler) process(ctx context.Context, logger zerolog.Logger, data []byte) bool {
	startTime := time.Now()

	change, err := incident.ParseChange(data)
	if err != nil {
		// Redelivery would fail the same way.
		logger.Warn().Err(err).Msg("dropping malformed incident change")
		return true
	}

	logger = logger.With().
		Str("incident_id", change.ID).
		Str("kind", string(change.Kind)).
		Logger()

	if h.gate != nil && !h.gate.RefreshOnIncidentChange(ctx) {
		logger.Debug().Msg("incident change refresh disabled")
		h.metrics.ObserveIncidentChange(string(change.Kind), 0)
		return true
	}

	refreshed, err := h.handler.HandleChange(ctx, change)
	if err != nil {
		logger.Error().Err(err).Msg("incident change handling failed")
		return false
	}

	h.metrics.ObserveIncidentChange(string(change.Kind), refreshed)
	logger.Info().
		Int("sessions_refreshed", refreshed).
		Dur("duration", time.Since(startTime)).
		Msg("incident change handled")

	return true
}
