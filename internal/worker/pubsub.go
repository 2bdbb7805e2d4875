package worker

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubHandler feeds Pub/Sub messages to a Dispatcher.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	// Full walks are long; one at a time per worker.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = time.Hour

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if h.Handle(ctx, msg.ID, msg.Data) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// Handle processes one payload and reports whether it should be acked.
// Payloads that can never succeed are acked so they are not redelivered.
func (h *PubSubHandler) Handle(ctx context.Context, id string, data []byte) bool {
	logger := h.logger.With().Str("message_id", id).Logger()

	msg, err := ParseMessage(data)
	if err != nil {
		logger.Error().Err(err).Msg("dropping malformed message")
		return true
	}

	logger = logger.With().Str("job_type", msg.JobType).Logger()
	start := time.Now()
	if err := h.dispatcher.Dispatch(ctx, msg); err != nil {
		if Permanent(err) {
			logger.Warn().Err(err).Msg("dropping unprocessable job")
			return true
		}
		logger.Error().Err(err).Msg("job failed")
		return false
	}

	logger.Info().Dur("duration", time.Since(start)).Msg("job completed successfully")
	return true
}

// NewHandler wraps a Dispatcher without a Pub/Sub client, for push delivery
// and tests.
func NewHandler(d *Dispatcher, logger zerolog.Logger) *PubSubHandler {
	return &PubSubHandler{dispatcher: d, logger: logger}
}
