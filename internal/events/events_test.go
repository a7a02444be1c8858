package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspiro/internal/model"
)

type fakeProducer struct {
	msgs    []*kafka.Message
	err     error
	flushed bool
	closed  bool
}

func (f *fakeProducer) Produce(msg *kafka.Message, _ chan kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeProducer) Flush(int) int { f.flushed = true; return 0 }
func (f *fakeProducer) Close()        { f.closed = true }

func TestPostChangedWritesKeyedEvent(t *testing.T) {
	fp := &fakeProducer{}
	k := NewWithProducer(fp, "inspiro.posts")
	at := time.Date(2024, 12, 15, 18, 30, 0, 0, time.UTC)
	k.now = func() time.Time { return at }

	k.PostChanged(context.Background(), model.ScheduledPost{ID: "p1", Caption: "hi", Status: model.StatusFailed, Error: "boom"})
	require.Len(t, fp.msgs, 1)
	msg := fp.msgs[0]
	assert.Equal(t, "p1", string(msg.Key))
	assert.Equal(t, "inspiro.posts", *msg.TopicPartition.Topic)

	var ev PostEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, "post.failed", ev.Type)
	assert.True(t, ev.At.Equal(at))
	assert.Equal(t, "boom", ev.Post.Error)

	require.NoError(t, k.Close())
	assert.True(t, fp.flushed)
	assert.True(t, fp.closed)
}

func TestPostChangedSwallowsProduceErrors(t *testing.T) {
	fp := &fakeProducer{err: errors.New("queue full")}
	NewWithProducer(fp, "t").PostChanged(context.Background(), model.ScheduledPost{ID: "p1", Status: model.StatusPosted})
	assert.Empty(t, fp.msgs)
}

func TestEventType(t *testing.T) {
	assert.Equal(t, "post.posted", EventType(model.StatusPosted))
	assert.Equal(t, "post.failed", EventType(model.StatusFailed))
	assert.Equal(t, "post.pending", EventType(model.StatusPending))
}
