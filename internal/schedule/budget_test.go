package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspiro/internal/model"
)

func posted(at time.Time) model.ScheduledPost {
	return model.ScheduledPost{ID: at.String(), Status: model.StatusPosted, ScheduledAt: at, PostedAt: &at}
}

func TestBudgetAllow(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	b := Budget{MaxPerHour: 2, MaxPerDay: 3}
	assert.True(t, b.Allow(nil, now))

	posts := []model.ScheduledPost{posted(now), posted(now.Add(5 * time.Minute))}
	assert.False(t, b.Allow(posts, now.Add(10*time.Minute)), "hourly budget")

	posts = append(posts, posted(now.Add(65*time.Minute)))
	assert.False(t, b.Allow(posts, now.Add(70*time.Minute)), "daily budget")
	assert.True(t, b.Allow(posts, now.Add(24*time.Hour)), "next day")

	pending := model.ScheduledPost{ID: "p", Status: model.StatusPending, ScheduledAt: now}
	assert.True(t, Budget{MaxPerHour: 1}.Allow([]model.ScheduledPost{pending}, now))
	assert.True(t, Budget{}.Allow(posts, now))
}

func TestCheckAndPostDefersOverBudget(t *testing.T) {
	pub := &fakePublisher{}
	s, c, _, _ := newService(t, pub)
	s.budget = Budget{MaxPerHour: 1}
	ctx := context.Background()
	for _, caption := range []string{"one", "two"} {
		_, err := s.Schedule(ctx, caption, c.t.Add(time.Second))
		require.NoError(t, err)
	}

	c.t = c.t.Add(time.Minute)
	changed, err := s.CheckAndPost(ctx)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, "one", changed[0].Caption)

	posts, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, posts[1].Status)

	c.t = c.t.Add(time.Hour)
	changed, err = s.CheckAndPost(ctx)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, "two", changed[0].Caption)
	assert.Equal(t, []string{"one", "two"}, pub.calls)
}
