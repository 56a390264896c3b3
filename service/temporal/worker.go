package temporal

import (
	"fmt"
	"log/slog"

	"github.com/brojonat/mcphub/service/db"
	"github.com/brojonat/mcphub/service/metrics"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

const defaultWorkerConcurrency = 10

// WorkerConfig configures the review worker.
type WorkerConfig struct {
	TemporalHost      string
	TemporalNamespace string
	TaskQueue         string
	// Concurrency caps concurrent activity and workflow task executions.
	Concurrency int

	Store     db.ListingStore
	Publisher PublisherInterface // optional
	Metrics   *metrics.Metrics   // optional
	Logger    *slog.Logger
}

// Worker runs listing reviews from one task queue.
type Worker struct {
	client client.Client
	worker worker.Worker
	logger *slog.Logger
}

// RegisterReview registers the review workflow and its activities.
func RegisterReview(r worker.Registry, a *Activities) {
	r.RegisterWorkflow(ListingReviewWorkflow)
	r.RegisterActivity(a.SetListingStatus)
	r.RegisterActivity(a.PublishReviewEvent)
}

// NewWorker connects to Temporal and prepares a worker for cfg.TaskQueue.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("review worker needs a listing store")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultWorkerConcurrency
	}
	logger := cfg.Logger.With("component", "review_worker")

	c, err := dial(cfg.TemporalHost, cfg.TemporalNamespace, logger)
	if err != nil {
		return nil, err
	}

	w := worker.New(c, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.Concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.Concurrency,
	})
	RegisterReview(w, NewActivities(cfg.Store, cfg.Publisher, cfg.Metrics, logger))

	logger.Info("review worker ready",
		"task_queue", cfg.TaskQueue,
		"concurrency", cfg.Concurrency,
		"publishes_events", cfg.Publisher != nil,
	)
	return &Worker{client: c, worker: w, logger: logger}, nil
}

// Run processes reviews until stop is closed or receives a value, then
// closes the Temporal connection.
func (w *Worker) Run(stop <-chan any) error {
	defer w.client.Close()

	if err := w.worker.Run(stop); err != nil {
		w.logger.Error("review worker stopped with error", "error", err)
		return fmt.Errorf("review worker stopped: %w", err)
	}
	w.logger.Info("review worker stopped")
	return nil
}
