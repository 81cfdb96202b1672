package events_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filekit/pkg/events"
)

func TestQueue_DeliversSignedEvent(t *testing.T) {
	t.Parallel()

	const secret = "webhook-secret"

	type received struct {
		body      []byte
		signature string
		timestamp string
		eventID   string
	}
	got := make(chan received, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{
			body:      body,
			signature: r.Header.Get(events.HeaderSignature),
			timestamp: r.Header.Get(events.HeaderTimestamp),
			eventID:   r.Header.Get(events.HeaderEventID),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	q := events.NewQueue(16, 1)
	defer q.Close()

	require.NoError(t, q.Subscribe(events.Subscription{Endpoint: srv.URL, Secret: secret}))

	event := events.NewEvent(events.TypeFileUploaded, "tenant-a", map[string]any{"file_id": "f1"})
	q.Publish(event)

	select {
	case r := <-got:
		assert.Equal(t, event.ID, r.eventID)
		require.NoError(t, events.VerifySignature(secret, r.body, r.signature, r.timestamp, time.Minute))
		assert.Contains(t, string(r.body), `"file.uploaded"`)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestQueue_RetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	q := events.NewQueue(16, 1,
		events.WithMaxRetries(5),
		events.WithBackoff(events.ExponentialBackoff{InitialInterval: time.Millisecond}),
	)
	defer q.Close()

	require.NoError(t, q.Subscribe(events.Subscription{Endpoint: srv.URL}))
	q.Publish(events.NewEvent(events.TypeFileDeleted, "t", nil))

	require.Eventually(t, func() bool {
		return calls.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueue_TypeFilter(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var types []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		types = append(types, string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	q := events.NewQueue(16, 1)
	require.NoError(t, q.Subscribe(events.Subscription{
		Endpoint: srv.URL,
		Types:    []events.Type{events.TypeFileInfected},
	}))

	q.Publish(events.NewEvent(events.TypeFileUploaded, "t", nil))
	q.Publish(events.NewEvent(events.TypeFileInfected, "t", nil))
	q.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, types, 1)
	assert.Contains(t, types[0], "file.infected")
}

func TestQueue_PublishNeverBlocks(t *testing.T) {
	t.Parallel()

	// No subscribers and a tiny buffer: publishing must still return.
	q := events.NewQueue(1, 1)
	for i := 0; i < 100; i++ {
		q.Publish(events.NewEvent(events.TypeQuotaAlert, "t", nil))
	}
	q.Close()

	// Publishing after close drops silently.
	q.Publish(events.NewEvent(events.TypeQuotaAlert, "t", nil))
}

func TestSubscribe_InvalidEndpoint(t *testing.T) {
	t.Parallel()

	q := events.NewQueue(1, 1)
	defer q.Close()

	assert.ErrorIs(t, q.Subscribe(events.Subscription{Endpoint: "not-a-url"}), events.ErrInvalidEndpoint)
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"hello":"world"}`)
	ts := time.Now().Unix()

	sig, err := events.SignPayload("secret", payload, ts)
	require.NoError(t, err)

	tsStr := strconv.FormatInt(ts, 10)
	staleStr := strconv.FormatInt(ts-3600, 10)

	assert.NoError(t, events.VerifySignature("secret", payload, sig, tsStr, time.Minute))
	assert.ErrorIs(t, events.VerifySignature("secret", payload, "bad", tsStr, time.Minute), events.ErrInvalidSignature)
	assert.ErrorIs(t, events.VerifySignature("other", payload, sig, tsStr, time.Minute), events.ErrInvalidSignature)
	assert.ErrorIs(t, events.VerifySignature("secret", payload, sig, staleStr, time.Minute), events.ErrInvalidSignature)
	assert.ErrorIs(t, events.VerifySignature("", payload, sig, tsStr, time.Minute), events.ErrMissingSecret)
}
