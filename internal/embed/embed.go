// Package embed turns caption text into fixed-length dense vectors.
package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"inspiro/internal/logging"
	"inspiro/internal/metrics"
	"inspiro/internal/util"
)

// Embedder maps text to a vector of length Dim.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dim() int
}

// Cache stores opaque byte values by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Hash is a deterministic feature-hashing embedder. It needs no model files
// and is used offline and in tests.
type Hash struct {
	N int
}

func NewHash(dim int) *Hash { return &Hash{N: dim} }

func (h *Hash) Dim() int { return h.N }

func (h *Hash) Embed(_ context.Context, text string) ([]float64, error) {
	if h.N <= 0 {
		return nil, errors.New("hash embedder has no dimensions")
	}
	v := make([]float64, h.N)
	for _, tok := range util.Tokenize(text) {
		f := fnv.New64a()
		_, _ = f.Write([]byte(tok))
		sum := f.Sum64()
		sign := 1.0
		if sum&1 == 1 {
			sign = -1
		}
		v[(sum>>1)%uint64(h.N)] += sign
	}
	Normalize(v)
	return v, nil
}

// Normalize scales v to unit L2 norm in place. A zero vector is left as is.
func Normalize(v []float64) {
	var ss float64
	for _, x := range v {
		ss += x * x
	}
	if ss == 0 {
		return
	}
	n := math.Sqrt(ss)
	for i := range v {
		v[i] /= n
	}
}

// Cached memoizes an Embedder's vectors in a Cache. Cache failures are
// logged and fall through to the inner embedder.
type Cached struct {
	Inner Embedder
	Store Cache
	TTL   time.Duration
	// Namespace separates vectors from different models.
	Namespace string
}

func (c *Cached) Dim() int { return c.Inner.Dim() }

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("emb:%s:%d:%s", c.Namespace, c.Inner.Dim(), hex.EncodeToString(sum[:]))
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float64, error) {
	k := c.key(text)
	b, ok, err := c.Store.Get(ctx, k)
	if err != nil {
		logging.Warn("embed_cache_get_error", map[string]any{"error": err.Error()})
	}
	if ok && len(b) == 8*c.Inner.Dim() {
		metrics.EmbedCache.WithLabelValues("hit").Inc()
		return decodeF64(b), nil
	}
	metrics.EmbedCache.WithLabelValues("miss").Inc()
	v, err := c.Inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.Store.Set(ctx, k, encodeF64(v), c.TTL); err != nil {
		logging.Warn("embed_cache_set_error", map[string]any{"error": err.Error()})
	}
	return v, nil
}

func encodeF64(v []float64) []byte {
	b := make([]byte, 8*len(v))
	for i := range v {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(v[i]))
	}
	return b
}

func decodeF64(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return v
}
