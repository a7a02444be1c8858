package embed

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspiro/internal/cache"
)

func TestHashIsDeterministicAndUnitNorm(t *testing.T) {
	h := NewHash(32)
	a, err := h.Embed(context.Background(), "Coffee at the office")
	require.NoError(t, err)
	b, _ := h.Embed(context.Background(), "coffee at the OFFICE")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
	var ss float64
	for _, x := range a {
		ss += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(ss), 1e-9)

	z, err := h.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 32), z)
}

type countingEmbedder struct {
	Embedder
	calls int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.Embedder.Embed(ctx, text)
}

func TestCachedHitsStore(t *testing.T) {
	inner := &countingEmbedder{Embedder: NewHash(16)}
	c := &Cached{Inner: inner, Store: cache.NewMemory(), TTL: time.Hour, Namespace: "hash"}
	ctx := context.Background()

	first, err := c.Embed(ctx, "hello world")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "hello world")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&inner.calls))

	_, _ = c.Embed(ctx, "other text")
	assert.EqualValues(t, 2, atomic.LoadInt32(&inner.calls))
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}

func TestCachedFallsThroughOnCacheErrors(t *testing.T) {
	c := &Cached{Inner: NewHash(8), Store: brokenCache{}}
	v, err := c.Embed(context.Background(), "still works")
	require.NoError(t, err)
	assert.Len(t, v, 8)
}

func TestHTTPEmbedderAcceptsBatchOrSingle(t *testing.T) {
	batch := true
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		assert.Equal(t, "hi", in["inputs"])
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		if batch {
			_ = json.NewEncoder(w).Encode([][]float64{{1, 2, 3}})
			return
		}
		_ = json.NewEncoder(w).Encode([]float64{4, 5, 6})
	}))
	defer ts.Close()

	h := NewHTTP(ts.URL, "tok", 3, time.Second)
	v, err := h.Embed(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, v)

	batch = false
	v, err = h.Embed(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5, 6}, v)
}

func TestHTTPEmbedderWrongDim(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]float64{1})
	}))
	defer ts.Close()
	_, err := NewHTTP(ts.URL, "", 3, time.Second).Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestHTTPEmbedderBreakerOpensAfterFailures(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()
	h := NewHTTP(ts.URL, "", 3, time.Second)
	for i := 0; i < 5; i++ {
		_, err := h.Embed(context.Background(), "x")
		assert.Error(t, err)
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}
