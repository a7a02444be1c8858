package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"inspiro/internal/logging"
)

// Valkey is a byte cache backed by a Valkey (Redis protocol) server.
type Valkey struct {
	client valkey.Client
	prefix string
}

// NewValkey connects to addr and pings it.
func NewValkey(ctx context.Context, addr, password, prefix string) (*Valkey, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:      []string{addr},
		Password:         password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	})
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Do(pctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}
	logging.Info("valkey_connected", map[string]any{"addr": addr})
	return &Valkey{client: client, prefix: prefix}, nil
}

func (v *Valkey) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := v.client.Do(ctx, v.client.B().Get().Key(v.prefix+key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (v *Valkey) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	cmd := v.client.B().Set().Key(v.prefix + key).Value(valkey.BinaryString(val))
	if ttl > 0 {
		return v.client.Do(ctx, cmd.ExSeconds(int64(ttl/time.Second)).Build()).Error()
	}
	return v.client.Do(ctx, cmd.Build()).Error()
}

func (v *Valkey) Close() error {
	v.client.Close()
	return nil
}
