package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	return Options{
		RequestsPerSecond: 1000,
		Burst:             1000,
		BackoffBase:       time.Millisecond,
	}
}

func TestGetTextReturnsBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	defer ts.Close()

	c, err := New(fastOptions())
	require.NoError(t, err)

	body, err := c.GetText(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "hello", body)
	assert.Equal(t, int64(5), c.Bytes())
}

func TestStatusErrorCarriesURLAndCode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	c, err := New(fastOptions())
	require.NoError(t, err)

	_, err = c.GetBytes(context.Background(), ts.URL+"/cover.png")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.Contains(t, err.Error(), "/cover.png")
}

func TestBounceEscalationEventuallyFatal(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	opts := fastOptions()
	opts.MaxBounces = 2
	c, err := New(opts)
	require.NoError(t, err)

	_, err = c.GetText(context.Background(), ts.URL)
	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
	// escalations 1..MaxBounces+1 each retried once, then the fatal check
	assert.Equal(t, int32(4), hits.Load())
	assert.Equal(t, uint32(0), c.bounce.Load())
}

func TestBounceResetsOnFirstNon429(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	c, err := New(fastOptions())
	require.NoError(t, err)

	body, err := c.GetText(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, uint32(0), c.bounce.Load())
}

func TestHostBucketsAreIndependent(t *testing.T) {
	h := newHostLimiters(2, 1)
	a := h.get("a.example")
	b := h.get("b.example")
	assert.NotSame(t, a, b)
	assert.Same(t, a, h.get("a.example"))
}

func TestSecondRequestToSameHostWaits(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer ts.Close()

	c, err := New(Options{RequestsPerSecond: 20, Burst: 1, BackoffBase: time.Millisecond})
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Now()
	_, err = c.GetText(ctx, ts.URL)
	require.NoError(t, err)
	_, err = c.GetText(ctx, ts.URL)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
