package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogops/imageingest/internal/ingest"
)

func fastConfig() Config {
	return Config{
		Timeout:        2 * time.Second,
		MaxBytes:       1 << 20,
		MaxAttempts:    3,
		BackoffInitial: time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
	}
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprint(w, "jpeg-payload")
	}))
	defer srv.Close()

	f := New(fastConfig())
	result, err := f.Fetch(context.Background(), srv.URL+"/a.jpg")
	require.NoError(t, err)

	assert.Equal(t, "jpeg-payload", string(result.Body))
	assert.Equal(t, "image/jpeg", result.ContentType)
	assert.Equal(t, http.StatusOK, result.StatusCode)
}

func TestFetchPermanentFailureDoesNotRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(fastConfig())
	_, err := f.Fetch(context.Background(), srv.URL+"/missing.jpg")

	var fetchErr *ingest.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.Status)
	assert.False(t, fetchErr.Transient)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "recovered")
	}))
	defer srv.Close()

	f := New(fastConfig())
	result, err := f.Fetch(context.Background(), srv.URL+"/flaky.jpg")
	require.NoError(t, err)

	assert.Equal(t, "recovered", string(result.Body))
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchExhaustsRetriesOn429(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := New(fastConfig())
	_, err := f.Fetch(context.Background(), srv.URL+"/limited.jpg")

	var fetchErr *ingest.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, fetchErr.Transient)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchRejectsDeclaredOversizedPayload(t *testing.T) {
	payload := strings.Repeat("x", 2048)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		fmt.Fprint(w, payload)
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.MaxBytes = 1024
	f := New(cfg)
	_, err := f.Fetch(context.Background(), srv.URL+"/big.jpg")

	var tooLarge *ingest.PayloadTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, int64(1024), tooLarge.Limit)
}

func TestFetchRejectsChunkedOversizedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher := w.(http.Flusher)
		chunk := strings.Repeat("y", 512)
		for i := 0; i < 8; i++ {
			fmt.Fprint(w, chunk)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.MaxBytes = 1024
	f := New(cfg)
	_, err := f.Fetch(context.Background(), srv.URL+"/stream.jpg")

	var tooLarge *ingest.PayloadTooLargeError
	require.ErrorAs(t, err, &tooLarge)
}

func TestFetchCanceledContext(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	f := New(fastConfig())
	_, err := f.Fetch(ctx, srv.URL+"/slow.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canceled")
}

func TestFetchRejectsBadURLs(t *testing.T) {
	f := New(fastConfig())

	for _, raw := range []string{"ftp://a.example/x.jpg", "not-a-url", "https://"} {
		_, err := f.Fetch(context.Background(), raw)
		var fetchErr *ingest.FetchError
		require.ErrorAs(t, err, &fetchErr, "url %q", raw)
		assert.False(t, fetchErr.Transient)
	}
}

func TestRetryPolicyBackoffBounds(t *testing.T) {
	p := NewRetryPolicy(3, 100*time.Millisecond, time.Second)

	for attempt := 0; attempt < 5; attempt++ {
		d := p.Backoff(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestRetryPolicyShouldRetry(t *testing.T) {
	p := NewRetryPolicy(3, time.Millisecond, time.Millisecond)

	transient := &ingest.FetchError{Transient: true}
	permanent := &ingest.FetchError{Transient: false}

	assert.False(t, p.ShouldRetry(nil, 1))
	assert.True(t, p.ShouldRetry(transient, 1))
	assert.False(t, p.ShouldRetry(permanent, 1))
	assert.False(t, p.ShouldRetry(transient, 3))
	assert.False(t, p.ShouldRetry(context.Canceled, 1))
}
