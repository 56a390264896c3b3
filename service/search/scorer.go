package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brojonat/mcphub/service/metrics"
)

// ErrInferenceUnavailable is returned when the relevance model cannot be used.
var ErrInferenceUnavailable = errors.New("inference service unavailable")

// Scorer rates how relevant an item is to a query. Higher is better.
type Scorer interface {
	Score(ctx context.Context, query string, item Item) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, query string, item Item) (float64, error)

// Score implements Scorer.
func (f ScorerFunc) Score(ctx context.Context, query string, item Item) (float64, error) {
	return f(ctx, query, item)
}

// DefaultInferenceURL is a hosted sentence-similarity model.
const DefaultInferenceURL = "https://api-inference.huggingface.co/models/sentence-transformers/all-MiniLM-L6-v2"

// InferenceScorer scores items with a hosted sentence-similarity model.
type InferenceScorer struct {
	url        string
	apiKey     string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewInferenceScorer creates a scorer. With an empty url or apiKey every
// call returns ErrInferenceUnavailable.
func NewInferenceScorer(url, apiKey string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *InferenceScorer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InferenceScorer{
		url:        url,
		apiKey:     apiKey,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

type similarityRequest struct {
	Inputs similarityInputs `json:"inputs"`
}

type similarityInputs struct {
	SourceSentence string   `json:"source_sentence"`
	Sentences      []string `json:"sentences"`
}

// Score implements Scorer.
func (s *InferenceScorer) Score(ctx context.Context, query string, item Item) (float64, error) {
	if s.url == "" || s.apiKey == "" {
		return 0, ErrInferenceUnavailable
	}

	start := time.Now()
	score, err := s.score(ctx, query, item)
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordInferenceCall(status, time.Since(start).Seconds())
	return score, err
}

func (s *InferenceScorer) score(ctx context.Context, query string, item Item) (float64, error) {
	body, err := json.Marshal(similarityRequest{
		Inputs: similarityInputs{
			SourceSentence: query,
			Sentences:      []string{itemText(item)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInferenceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.WarnContext(ctx, "inference request failed",
			"status", resp.StatusCode,
			"body", string(msg),
		)
		return 0, fmt.Errorf("%w: status %d", ErrInferenceUnavailable, resp.StatusCode)
	}

	var scores []float64
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return 0, fmt.Errorf("failed to decode scores: %w", err)
	}
	if len(scores) == 0 {
		return 0, fmt.Errorf("inference returned no scores")
	}
	return scores[0], nil
}

func itemText(item Item) string {
	parts := []string{item.Title, item.Description}
	if len(item.Tags) > 0 {
		parts = append(parts, strings.Join(item.Tags, ", "))
	}
	return strings.Join(parts, ". ")
}
