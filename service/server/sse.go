package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brojonat/mcphub/service/metrics"
	natspkg "github.com/brojonat/mcphub/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const sseKeepalive = 10 * time.Second

// SSEPublisher streams marketplace events from JetStream to SSE clients.
type SSEPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewSSEPublisher creates a new SSE publisher that subscribes to NATS internally.
func NewSSEPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*SSEPublisher, error) {
	nc, err := natspkg.Connect(natsURL, "mcphub-sse-publisher")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	logger.Info("SSE publisher initialized", "nats_url", natsURL)

	return &SSEPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}, nil
}

// Close closes the NATS connection.
func (p *SSEPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("SSE publisher closed")
	}
	return nil
}

// sseFilterSubject maps the topic query parameter to a stream filter.
func sseFilterSubject(topic string) (string, error) {
	switch strings.ToLower(topic) {
	case "", "all":
		return natspkg.StreamSubjects, nil
	case "listings":
		return natspkg.SubjectPrefix + "listings.>", nil
	case "wallet":
		return natspkg.SubjectPrefix + "wallet.>", nil
	default:
		return "", errorf("invalid topic: must be 'all', 'listings' or 'wallet'")
	}
}

// sseEventName names the SSE event for a NATS subject.
func sseEventName(subject string) string {
	switch {
	case strings.HasPrefix(subject, natspkg.SubjectPrefix+"listings."):
		return "listing"
	case strings.HasPrefix(subject, natspkg.SubjectPrefix+"wallet."):
		return "wallet"
	default:
		return "event"
	}
}

// writeSSE writes one event frame and flushes it.
func writeSSE(w io.Writer, event string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// handleStreamEvents handles SSE streaming of listing and wallet events.
// GET /api/v1/stream/events?topic=all|listings|wallet
func handleStreamEvents(publisher *SSEPublisher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		topic := r.URL.Query().Get("topic")
		subject, err := sseFilterSubject(topic)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		publisher.metrics.RecordSSEConnectionChange(1)
		defer publisher.metrics.RecordSSEConnectionChange(-1)

		logger.DebugContext(r.Context(), "SSE client connected",
			"subject", subject,
			"remote_addr", r.RemoteAddr,
		)

		// Ephemeral consumer, removed by the server once the connection goes away.
		cons, err := publisher.js.CreateOrUpdateConsumer(r.Context(), natspkg.StreamName, jetstream.ConsumerConfig{
			FilterSubject:     subject,
			AckPolicy:         jetstream.AckExplicitPolicy,
			DeliverPolicy:     jetstream.DeliverNewPolicy,
			InactiveThreshold: time.Minute,
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to create consumer", "subject", subject, "error", err)
			writeSSE(w, "error", []byte(`{"error":"failed to subscribe"}`))
			return
		}

		msgChan := make(chan jetstream.Msg, 10)
		doneChan := make(chan struct{})

		go func() {
			defer close(doneChan)
			cc, err := cons.Consume(func(msg jetstream.Msg) {
				select {
				case msgChan <- msg:
				case <-r.Context().Done():
				}
			})
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to start consuming messages", "error", err)
				return
			}
			<-r.Context().Done()
			cc.Stop()
		}()

		connected, _ := json.Marshal(map[string]string{"subject": subject})
		writeSSE(w, "connected", connected)

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				if flusher, ok := w.(http.Flusher); ok {
					flusher.Flush()
				}

			case msg := <-msgChan:
				if !json.Valid(msg.Data()) {
					logger.WarnContext(r.Context(), "dropping malformed event", "subject", msg.Subject())
					msg.Ack()
					continue
				}
				name := sseEventName(msg.Subject())
				writeSSE(w, name, msg.Data())
				msg.Ack()
				publisher.metrics.RecordSSEEventSent(name)

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "SSE client disconnected",
					"subject", subject,
					"remote_addr", r.RemoteAddr,
				)
				return

			case <-doneChan:
				return
			}
		}
	})
}
