package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Subscription is one delivery target for a set of event types.
type Subscription struct {
	Endpoint string
	Secret   string
	// Types filters delivery; empty means all types.
	Types []Type
}

func (s Subscription) wants(t Type) bool {
	if len(s.Types) == 0 {
		return true
	}
	for _, want := range s.Types {
		if want == t {
			return true
		}
	}
	return false
}

// Queue buffers events and delivers them to subscribers in the background.
type Queue struct {
	client     *http.Client
	backoff    Backoff
	maxRetries int
	log        *slog.Logger

	mu   sync.RWMutex
	subs []Subscription

	events chan Event
	wg     sync.WaitGroup
	once   sync.Once
	done   chan struct{}
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithHTTPClient overrides the delivery client.
func WithHTTPClient(c *http.Client) QueueOption {
	return func(q *Queue) {
		if c != nil {
			q.client = c
		}
	}
}

// WithBackoff overrides the retry delay strategy.
func WithBackoff(b Backoff) QueueOption {
	return func(q *Queue) {
		if b != nil {
			q.backoff = b
		}
	}
}

// WithMaxRetries sets delivery attempts beyond the first.
func WithMaxRetries(n int) QueueOption {
	return func(q *Queue) {
		if n >= 0 {
			q.maxRetries = n
		}
	}
}

// WithQueueLogger attaches a structured logger.
func WithQueueLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) {
		if l != nil {
			q.log = l
		}
	}
}

// NewQueue creates a queue with the given buffer size and starts workers
// delivering from it.
func NewQueue(buffer, workers int, opts ...QueueOption) *Queue {
	if buffer <= 0 {
		buffer = 256
	}
	if workers <= 0 {
		workers = 2
	}

	q := &Queue{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		backoff:    ExponentialBackoff{InitialInterval: 500 * time.Millisecond, JitterFactor: 0.2},
		maxRetries: 3,
		log:        slog.Default(),
		events:     make(chan Event, buffer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Subscribe registers a delivery endpoint.
func (q *Queue) Subscribe(sub Subscription) error {
	parsed, err := url.Parse(sub.Endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ErrInvalidEndpoint
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subs = append(q.subs, sub)
	return nil
}

// Publish enqueues an event without blocking. When the buffer is full or the
// queue is closed the event is dropped with a log entry; the pipeline never
// waits on delivery.
func (q *Queue) Publish(event Event) {
	select {
	case <-q.done:
		q.log.Warn("event dropped, queue closed", slog.String("type", string(event.Type)))
		return
	default:
	}

	select {
	case q.events <- event:
	default:
		q.log.Warn("event dropped, queue full",
			slog.String("type", string(event.Type)),
			slog.String("tenant_id", event.TenantID),
		)
	}
}

// Close stops accepting events, drains the buffer, and waits for workers.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
		q.wg.Wait()
	})
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case event := <-q.events:
			q.dispatch(event)
		case <-q.done:
			// Drain whatever is already buffered, then exit.
			for {
				select {
				case event := <-q.events:
					q.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) dispatch(event Event) {
	q.mu.RLock()
	subs := make([]Subscription, len(q.subs))
	copy(subs, q.subs)
	q.mu.RUnlock()

	for _, sub := range subs {
		if !sub.wants(event.Type) {
			continue
		}
		if err := q.deliver(context.Background(), sub, event); err != nil {
			q.log.Error("event delivery failed",
				slog.String("endpoint", sub.Endpoint),
				slog.String("event_id", event.ID),
				slog.Any("error", err),
			)
		}
	}
}

// deliver posts the event with signature headers, retrying with backoff.
func (q *Queue) deliver(ctx context.Context, sub Subscription, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= q.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(q.backoff.NextInterval(attempt)):
			}
		}
		if lastErr = q.post(ctx, sub, event, payload); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrDeliveryFailed, q.maxRetries+1, lastErr)
}

func (q *Queue) post(ctx context.Context, sub Subscription, event Event, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventID, event.ID)

	if sub.Secret != "" {
		ts := time.Now().Unix()
		sig, err := SignPayload(sub.Secret, payload, ts)
		if err != nil {
			return err
		}
		req.Header.Set(HeaderSignature, sig)
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}
