package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

var _ Reviewer = (*Client)(nil)

// Client is the production Reviewer backed by a Temporal cluster.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c, err := dial(host, namespace, logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

func dial(host, namespace string, logger *slog.Logger) (client.Client, error) {
	logger.Info("connecting to temporal", "host", host, "namespace", namespace)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}
	return c, nil
}

// StartReview implements Reviewer.
func (c *Client) StartReview(ctx context.Context, collection, listingID string) (string, error) {
	id := ReviewWorkflowID(collection, listingID)

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: c.taskQueue,
		Memo: map[string]any{
			"collection": collection,
			"listing_id": listingID,
			"created_by": "mcphub",
		},
	}, ListingReviewWorkflow, ReviewInput{
		Collection: collection,
		ListingID:  listingID,
	})
	if err != nil {
		c.logger.Error("failed to start review workflow",
			"collection", collection,
			"listing_id", listingID,
			"error", err,
		)
		return "", fmt.Errorf("failed to start review %q: %w", id, err)
	}

	c.logger.Info("review workflow started",
		"collection", collection,
		"listing_id", listingID,
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return run.GetID(), nil
}

// SubmitDecision implements Reviewer.
func (c *Client) SubmitDecision(ctx context.Context, collection, listingID string, decision ReviewDecision) error {
	id := ReviewWorkflowID(collection, listingID)

	err := c.client.SignalWorkflow(ctx, id, "", ReviewDecisionSignal, decision)
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("failed to signal review %q: %w", id, err)
	}

	c.logger.Info("review decision submitted",
		"workflow_id", id,
		"status", decision.Status,
		"reviewer", decision.Reviewer,
	)
	return nil
}

// SDKClient returns the underlying Temporal SDK client.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...any) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...any) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...any) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...any) {
	l.logger.Error(msg, keyvals...)
}
