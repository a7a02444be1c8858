package predict

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspiro/internal/embed"
	"inspiro/internal/nn"
	"inspiro/internal/nn/nntest"
)

const dim = 16

type countingEmbedder struct {
	embed.Embedder
	calls int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.Embedder.Embed(ctx, text)
}

type fakeEmotion struct {
	scores map[string]float64
	err    error
	got    string
}

func (f *fakeEmotion) Classify(_ context.Context, text string) (map[string]float64, error) {
	f.got = text
	return f.scores, f.err
}

type memLog struct {
	mu   sync.Mutex
	recs []Record
}

func (m *memLog) LogPrediction(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, r)
	return nil
}

func newService(t *testing.T, opts Options) (*Service, *countingEmbedder) {
	t.Helper()
	reg, err := nn.LoadRegistry(nntest.WriteRegistry(t, dim), nn.LoadOptions{})
	require.NoError(t, err)
	emb := &countingEmbedder{Embedder: embed.NewHash(dim)}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return New(reg, emb, opts), emb
}

func TestReady(t *testing.T) {
	s, _ := newService(t, Options{})
	assert.NoError(t, s.Ready())

	assert.ErrorIs(t, New(nil, embed.NewHash(dim), Options{}).Ready(), ErrModelsNotLoaded)

	reg, err := nn.LoadRegistry(nntest.WriteRegistry(t, dim), nn.LoadOptions{})
	require.NoError(t, err)
	assert.ErrorIs(t, New(reg, embed.NewHash(dim+1), Options{}).Ready(), nn.ErrWidth)
}

func TestStatusEndToEnd(t *testing.T) {
	s, _ := newService(t, Options{})
	ctx := context.Background()

	promo := s.Status(ctx, "This product is amazing! Buy now and get 50% discount!")
	require.Empty(t, promo.Error)
	assert.Equal(t, LabelFake, promo.Label)
	assert.GreaterOrEqual(t, promo.Score, 0.5)

	office := s.Status(ctx, "Just a regular day at the office, had coffee and worked.")
	require.Empty(t, office.Error)
	assert.Equal(t, LabelReal, office.Label)
	assert.Less(t, office.Score, 0.5)
	assert.InDelta(t, nntest.BaseStatusProb, office.Raw, 1e-9)
	assert.Equal(t, nntest.StatusVersion, office.Model)
	assert.Equal(t, 0.0, office.Features["total_engagement"])
}

func TestStatusScoreBoundsAndConfidence(t *testing.T) {
	s, _ := newService(t, Options{})
	for _, c := range []string{"", "a", "!!!!!!!!", "http://x.co www", "😀😀😀 ok", "NORMAL TEXT."} {
		r := s.Status(context.Background(), c)
		require.Empty(t, r.Error, c)
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		assert.Equal(t, r.Score >= 0.5, r.Label == LabelFake, c)
		assert.InDelta(t, math.Min(1, math.Abs(r.Score-0.5)*2), r.Confidence, 1e-12)
	}
}

func TestStatusWithoutModelsIsErrorTagged(t *testing.T) {
	s := New(nil, nil, Options{})
	r := s.Status(context.Background(), "hello")
	assert.Equal(t, ErrModelsNotLoaded.Error(), r.Error)
	assert.Empty(t, r.Label)
}

type failingEmbedder struct{}

func (failingEmbedder) Dim() int { return dim }
func (failingEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("embedder down")
}

func TestStatusEmbedderFailureIsErrorTagged(t *testing.T) {
	reg, err := nn.LoadRegistry(nntest.WriteRegistry(t, dim), nn.LoadOptions{})
	require.NoError(t, err)
	s := New(reg, failingEmbedder{}, Options{})
	assert.Contains(t, s.Status(context.Background(), "x").Error, "embedder down")
	assert.Contains(t, s.ReachAt(context.Background(), "x", time.Now()).Error, "embedder down")
	_, err = s.BestTimes(context.Background(), "x", 0)
	assert.Error(t, err)
}

func TestStatusTruncatesLongCaptions(t *testing.T) {
	log := &memLog{}
	s, _ := newService(t, Options{MaxCaptionLength: 10, Log: log})
	r := s.Status(context.Background(), "abcdefghijklmnopqrstuvwxyz")
	require.Empty(t, r.Error)
	require.Len(t, log.recs, 1)
	assert.Equal(t, "abcdefghij", log.recs[0].Caption)
	assert.Len(t, log.recs[0].Row, dim+len(nntest.StatusStyle))
}

func TestEmotionNormalizesKnownLabels(t *testing.T) {
	fe := &fakeEmotion{scores: map[string]float64{"joy": 0.5, "anger": 0.1, "love": 0.4}}
	s, _ := newService(t, Options{Emotion: fe, EmotionMaxLength: 5})
	r := s.Emotion(context.Background(), "so happy today")

	assert.Equal(t, "so ha", fe.got)
	assert.Equal(t, EmotionOK, r.Status)
	assert.Equal(t, "joy", r.Label)
	assert.InDelta(t, 0.5/0.6, r.Confidence, 1e-9)
	assert.Len(t, r.Scores, 6)
	var sum float64
	for _, v := range r.Scores {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	for i := 1; i < len(r.Ranked); i++ {
		assert.GreaterOrEqual(t, r.Ranked[i-1].Score, r.Ranked[i].Score)
	}
	assert.Equal(t, r.Label, r.Ranked[0].Label)
}

func TestEmotionFallback(t *testing.T) {
	s, _ := newService(t, Options{Emotion: &fakeEmotion{err: errors.New("onnx crashed")}})
	r := s.Emotion(context.Background(), "whatever")
	assert.Equal(t, EmotionFallback, r.Status)
	assert.Equal(t, "neutral", r.Label)
	assert.InDelta(t, 0.4, r.Confidence, 1e-12)
	assert.Contains(t, r.Note, "onnx crashed")
	assert.Empty(t, r.Error)

	s, _ = newService(t, Options{EmotionLoadErr: errors.New("model dir missing")})
	r = s.Emotion(context.Background(), "whatever")
	assert.Equal(t, EmotionFallback, r.Status)
	assert.Contains(t, r.Note, "model dir missing")

	s, _ = newService(t, Options{Emotion: &fakeEmotion{scores: map[string]float64{"love": 1}}})
	assert.Equal(t, EmotionFallback, s.Emotion(context.Background(), "x").Status)
}

func TestReachAt(t *testing.T) {
	s, _ := newService(t, Options{})
	monday6 := time.Date(2024, 12, 16, 6, 0, 0, 0, time.UTC)
	r := s.ReachAt(context.Background(), "Sunrise coffee #morning", monday6)
	require.Empty(t, r.Error)
	assert.Equal(t, LabelHighReach, r.Label)
	assert.InDelta(t, 0.40, r.Threshold, 1e-12)
	assert.Equal(t, 6.0, r.Features["hour"])
	assert.Equal(t, 0.0, r.Features["dow"])

	evening := time.Date(2024, 12, 16, 18, 0, 0, 0, time.UTC)
	r = s.ReachAt(context.Background(), "Sunrise coffee", evening)
	require.Empty(t, r.Error)
	assert.Equal(t, LabelLowReach, r.Label)
	assert.Less(t, r.Probability, 0.40)
}

func TestReachDefaultsToNowInLocation(t *testing.T) {
	loc := time.FixedZone("EAT", 3*3600)
	now := time.Date(2024, 12, 14, 7, 0, 0, 0, time.UTC)
	s, _ := newService(t, Options{Location: loc, Now: func() time.Time { return now }})
	r := s.Reach(context.Background(), "weekend plans")
	require.Empty(t, r.Error)
	assert.Equal(t, 10.0, r.Features["hour"])
	assert.Equal(t, 1.0, r.Features["is_weekend"])
}

func TestBestTimesEmbedsOnceAndIsDeterministic(t *testing.T) {
	s, emb := newService(t, Options{})
	ctx := context.Background()
	a, err := s.BestTimes(ctx, "Sunrise coffee #morning", 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&emb.calls))
	b, err := s.BestTimes(ctx, "Sunrise coffee #morning", 2)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	require.Len(t, a, 24)
	for h, hs := range a {
		assert.Equal(t, h, hs.Hour)
		assert.Equal(t, FormatHour(h), hs.Display)
	}
	top := TopHours(a, 3)
	require.Len(t, top, 3)
	assert.Equal(t, 6, top[0].Hour)
	assert.Equal(t, "6:00 AM", top[0].Display)
}

func TestBestTimesMatchesReachAt(t *testing.T) {
	s, _ := newService(t, Options{})
	ctx := context.Background()
	hours, err := s.BestTimes(ctx, "Lunch break #food", 4)
	require.NoError(t, err)
	friday := time.Date(2024, 12, 20, 13, 0, 0, 0, time.UTC)
	r := s.ReachAt(ctx, "Lunch break #food", friday)
	require.Empty(t, r.Error)
	assert.InDelta(t, r.Probability, hours[13].Probability, 1e-12)
}

// failOnRow errors for one exact feature tail and delegates otherwise.
type failOnRow struct {
	nn.Classifier
	tail []float64
}

func (f failOnRow) Score(x []float64) (float64, error) {
	if len(x) >= len(f.tail) && slices.Equal(x[len(x)-len(f.tail):], f.tail) {
		return 0, errors.New("tree walk failed")
	}
	return f.Classifier.Score(x)
}

func TestBestTimesScoresFailedHourAsZero(t *testing.T) {
	s, _ := newService(t, Options{})
	caption := "Sunrise coffee #morning"
	rm := s.reg.Reach
	num, err := nn.NewCaptionStats(caption).Reach(7, 2).Select(rm.NumCols)
	require.NoError(t, err)
	tail, err := rm.Scaler.Transform(num)
	require.NoError(t, err)
	rm.Classifier = failOnRow{Classifier: rm.Classifier, tail: tail}

	hours, err := s.BestTimes(context.Background(), caption, 2)
	require.NoError(t, err)
	require.Len(t, hours, 24)
	for h, hs := range hours {
		assert.Equal(t, h, hs.Hour)
		if h == 7 {
			assert.Zero(t, hs.Probability)
			continue
		}
		assert.Greater(t, hs.Probability, 0.0, "hour %d", h)
	}
}

func TestBestTimesRejectsBadDay(t *testing.T) {
	s, _ := newService(t, Options{})
	_, err := s.BestTimes(context.Background(), "x", 7)
	assert.Error(t, err)
}

func TestFormatHour(t *testing.T) {
	assert.Equal(t, "12:00 AM", FormatHour(0))
	assert.Equal(t, "1:00 AM", FormatHour(1))
	assert.Equal(t, "11:00 AM", FormatHour(11))
	assert.Equal(t, "12:00 PM", FormatHour(12))
	assert.Equal(t, "1:00 PM", FormatHour(13))
	assert.Equal(t, "11:00 PM", FormatHour(23))
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("Wednesday")
	require.NoError(t, err)
	assert.Equal(t, 2, d)
	d, err = ParseDay("sun")
	require.NoError(t, err)
	assert.Equal(t, 6, d)
	_, err = ParseDay("mo")
	assert.Error(t, err)
	assert.Equal(t, "Saturday", DayName(5))
}
