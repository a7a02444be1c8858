package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCaption(t *testing.T) {
	got, err := ValidateCaption("  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = ValidateCaption(" \n\t ")
	assert.True(t, errors.Is(err, ErrEmptyCaption))

	_, err = ValidateCaption(string([]byte{0xff, 0xfe}))
	assert.True(t, errors.Is(err, ErrInvalidCaption))
}

func TestPostTransitionsAreTerminal(t *testing.T) {
	now := time.Date(2024, 12, 15, 18, 30, 0, 0, time.UTC)
	p := ScheduledPost{ID: "a", Caption: "c", ScheduledAt: now, Status: StatusPending}
	assert.True(t, p.Due(now))
	assert.False(t, p.Due(now.Add(-time.Second)))

	require.NoError(t, p.MarkPosted("123_456", now))
	assert.Equal(t, StatusPosted, p.Status)
	assert.Equal(t, "123_456", p.ExternalID)
	require.NotNil(t, p.PostedAt)
	assert.False(t, p.Due(now))

	assert.True(t, errors.Is(p.MarkFailed("late"), ErrNotPending))
	assert.True(t, errors.Is(p.MarkPosted("x", now), ErrNotPending))

	q := ScheduledPost{ID: "b", Status: StatusPending}
	require.NoError(t, q.MarkFailed("boom"))
	assert.Equal(t, StatusFailed, q.Status)
	assert.Equal(t, "boom", q.Error)
}

func TestPostValidate(t *testing.T) {
	ok := ScheduledPost{ID: "a", Caption: "c", ScheduledAt: time.Now(), Status: StatusPending}
	assert.NoError(t, ok.Validate())
	bad := ok
	bad.Status = "Queued"
	assert.Error(t, bad.Validate())
	bad = ok
	bad.ScheduledAt = time.Time{}
	assert.Error(t, bad.Validate())
}

func TestClassifyAuthenticitySpamOverrides(t *testing.T) {
	a := ClassifyAuthenticity("Click here www.deals.com", "Real", 0.01)
	assert.Equal(t, "Spam", a.Label)
	assert.Equal(t, 65, a.Spam)
	assert.Contains(t, a.Reason, "URL/link detected")
}

func TestClassifyAuthenticityReal(t *testing.T) {
	a := ClassifyAuthenticity("Just a regular day at the office, had coffee and worked.", "Real", 0.02)
	assert.Equal(t, "Real", a.Label)
	assert.Equal(t, 98, a.Real)
	assert.Equal(t, 0, a.Fake)
	assert.Equal(t, 2, a.Spam)
	assert.Contains(t, a.Reason, "Natural, human-like language flow")
}

func TestClassifyAuthenticityFake(t *testing.T) {
	a := ClassifyAuthenticity("Amazing results!! Unbelievable!!", "Fake/Spam", 0.9)
	assert.Equal(t, "Fake", a.Label)
	assert.Equal(t, 90, a.Fake)
	assert.Equal(t, 0, a.Real)
	assert.Equal(t, 10, a.Spam)
	assert.Contains(t, a.Reason, "Excessive punctuation")
}

func TestEmotionReason(t *testing.T) {
	assert.Contains(t, EmotionReason("JOY"), "Positive tone")
	assert.Equal(t, "Emotional tone detected from text analysis", EmotionReason("disgust"))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(-1))
	assert.Equal(t, 100, Percent(2))
	assert.Equal(t, 42, Percent(0.429))
}
