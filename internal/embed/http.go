package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"inspiro/internal/logging"
)

// HTTP calls a remote feature-extraction endpoint that accepts
// {"inputs": text} and answers with one vector, or a batch of one.
type HTTP struct {
	Endpoint string
	Token    string
	N        int
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

func NewHTTP(endpoint, token string, dim int, timeout time.Duration) *HTTP {
	return &HTTP{
		Endpoint: endpoint,
		Token:    token,
		N:        dim,
		client:   &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "embedder",
			Interval: time.Minute,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn("breaker_state_change", map[string]any{"name": name, "from": from.String(), "to": to.String()})
			},
		}),
	}
}

func (h *HTTP) Dim() int { return h.N }

func (h *HTTP) Embed(ctx context.Context, text string) ([]float64, error) {
	out, err := h.breaker.Execute(func() (interface{}, error) {
		return h.post(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	v := out.([]float64)
	if len(v) != h.N {
		return nil, fmt.Errorf("embedder returned %d dims, want %d", len(v), h.N)
	}
	return v, nil
}

func (h *HTTP) post(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("embedder status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	var batch [][]float64
	if err := json.Unmarshal(raw, &batch); err == nil && len(batch) == 1 {
		return batch[0], nil
	}
	var single []float64
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return single, nil
}
