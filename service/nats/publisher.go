package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/mcphub/service/metrics"
	"github.com/brojonat/mcphub/service/wallet"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher publishes marketplace events to NATS.
type Publisher interface {
	// PublishListingEvent publishes to "events.listings.{collection}".
	PublishListingEvent(ctx context.Context, event *ListingEvent) error

	// PublishWalletEvent publishes to "events.wallet.{kind}".
	PublishWalletEvent(ctx context.Context, event *WalletEvent) error

	// Close closes the connection to NATS.
	Close() error
}

var (
	_ Publisher       = (*JetStreamPublisher)(nil)
	_ wallet.Notifier = (*JetStreamPublisher)(nil)
)

// JetStreamPublisher publishes events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

const (
	// StreamName is the name of the JetStream stream for marketplace events.
	StreamName = "MCPHUB_EVENTS"

	// SubjectPrefix prefixes every event subject.
	SubjectPrefix = "events."

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = "events.>"

	// StreamRetention is how long messages are retained.
	StreamRetention = 7 * 24 * time.Hour
)

// Connect dials NATS with the reconnect settings every component shares.
func Connect(natsURL, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := Connect(natsURL, "mcphub-publisher")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			p.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)

	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Marketplace listing and wallet events",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	p.logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

func (p *JetStreamPublisher) publish(ctx context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	start := time.Now()
	_, err = p.js.Publish(ctx, subject, data)
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordNATSPublish(subject, status, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug("published event", "subject", subject)
	return nil
}

// PublishListingEvent implements Publisher.
func (p *JetStreamPublisher) PublishListingEvent(ctx context.Context, event *ListingEvent) error {
	return p.publish(ctx, ListingSubject(event.Collection), event)
}

// PublishWalletEvent implements Publisher.
func (p *JetStreamPublisher) PublishWalletEvent(ctx context.Context, event *WalletEvent) error {
	return p.publish(ctx, WalletSubject(event.Kind), event)
}

// Notify implements wallet.Notifier so wallet feedback reaches subscribers.
func (p *JetStreamPublisher) Notify(ctx context.Context, n wallet.Notification) {
	if err := p.PublishWalletEvent(ctx, FromNotification(n)); err != nil {
		p.logger.WarnContext(ctx, "failed to publish wallet notification",
			"kind", n.Kind,
			"error", err,
		)
	}
}

// WalletStorage returns wallet state storage backed by a KV bucket on the
// publisher's connection.
func (p *JetStreamPublisher) WalletStorage(ctx context.Context, bucket string) (*KVStorage, error) {
	return NewKVStorage(ctx, p.js, bucket)
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
