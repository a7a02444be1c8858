package main

import (
	"context"
	"errors"
	"fmt"

	"inspiro/internal/cache"
	"inspiro/internal/config"
	"inspiro/internal/embed"
	"inspiro/internal/events"
	"inspiro/internal/fbclient"
	"inspiro/internal/hf"
	"inspiro/internal/logging"
	"inspiro/internal/nn"
	"inspiro/internal/predict"
	"inspiro/internal/schedule"
	"inspiro/internal/store/dynamo"
	"inspiro/internal/store/jsonfile"
	"inspiro/internal/store/sqlitevec"
)

// runtime owns everything opened for one command and closes it in reverse.
type runtime struct {
	closers []func() error
	session *hf.Session
	db      *sqlitevec.DB
}

func (r *runtime) onClose(f func() error) { r.closers = append(r.closers, f) }

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			logging.Warn("close_error", map[string]any{"error": err.Error()})
		}
	}
}

func (r *runtime) hugot() (*hf.Session, error) {
	if r.session != nil {
		return r.session, nil
	}
	s, err := hf.NewSession()
	if err != nil {
		return nil, err
	}
	r.session = s
	r.onClose(s.Close)
	return s, nil
}

func (r *runtime) sqlite(c config.Config) (*sqlitevec.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := sqlitevec.Open(c.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	r.db = db
	r.onClose(db.Close)
	return db, nil
}

func (r *runtime) embedder(ctx context.Context, c config.Config) (embed.Embedder, error) {
	ec := c.Embedder
	var inner embed.Embedder
	switch ec.Provider {
	case "hash":
		inner = embed.NewHash(ec.Dim)
	case "http":
		if ec.Endpoint == "" {
			return nil, errors.New("embedder.endpoint is required for the http provider")
		}
		inner = embed.NewHTTP(ec.Endpoint, ec.Token, ec.Dim, ec.Timeout)
	case "hugot", "":
		s, err := r.hugot()
		if err != nil {
			return nil, err
		}
		e, err := hf.NewEmbedder(s, ec.ModelPath, ec.Dim)
		if err != nil {
			return nil, err
		}
		inner = e
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", ec.Provider)
	}
	var store embed.Cache
	switch ec.Cache.Provider {
	case "valkey":
		vc, err := cache.NewValkey(ctx, ec.Cache.Address, ec.Cache.Password, "inspiro:")
		if err != nil {
			logging.Warn("embed_cache_fallback", map[string]any{"provider": "memory", "error": err.Error()})
			store = cache.NewMemory()
			break
		}
		r.onClose(vc.Close)
		store = vc
	case "memory":
		store = cache.NewMemory()
	default:
		return inner, nil
	}
	return &embed.Cached{Inner: inner, Store: store, TTL: ec.Cache.TTL, Namespace: ec.Provider + ":" + ec.ModelPath}, nil
}

func (r *runtime) emotion(c config.Config) (predict.EmotionModel, error) {
	if c.Emotion.Provider != "hugot" {
		return nil, fmt.Errorf("emotion provider %q disabled", c.Emotion.Provider)
	}
	s, err := r.hugot()
	if err != nil {
		return nil, err
	}
	return hf.NewEmotionClassifier(s, c.Emotion.ModelPath)
}

// predictor builds the prediction service. Model load failures are logged
// and leave the service not ready rather than failing the command.
func (r *runtime) predictor(ctx context.Context, c config.Config) *predict.Service {
	reg, err := nn.LoadRegistry(c.Models.Dir, nn.LoadOptions{
		TrustedStatusMember: c.Models.TrustedStatusMember,
		DefaultCalibration:  nn.Calibration{Center: c.Models.StatusCenter, Spread: c.Models.StatusSpread},
	})
	if err != nil {
		logging.Error("registry_load_failed", map[string]any{"dir": c.Models.Dir, "error": err.Error()})
		reg = nil
	}
	emb, err := r.embedder(ctx, c)
	if err != nil {
		logging.Error("embedder_load_failed", map[string]any{"provider": c.Embedder.Provider, "error": err.Error()})
		emb = nil
	}
	emo, emoErr := r.emotion(c)
	if emoErr != nil {
		logging.Warn("emotion_model_unavailable", map[string]any{"error": emoErr.Error()})
		emo = nil
	}
	opts := predict.Options{
		Location:         c.Models.Location(),
		MaxCaptionLength: c.Models.MaxCaptionLength,
		EmotionMaxLength: c.Emotion.MaxLength,
		Emotion:          emo,
		EmotionLoadErr:   emoErr,
	}
	if c.Storage.TrackPredictions {
		db, err := r.sqlite(c)
		if err != nil {
			logging.Warn("prediction_log_disabled", map[string]any{"error": err.Error()})
		} else {
			opts.Log = db
		}
	}
	return predict.New(reg, emb, opts)
}

func (r *runtime) store(ctx context.Context, c config.Config) (schedule.Store, error) {
	switch c.Scheduler.Store {
	case "json", "":
		return jsonfile.New(c.Scheduler.Path), nil
	case "sqlite":
		return r.sqlite(c)
	case "dynamodb":
		return dynamo.New(ctx, c.Scheduler.DynamoTable, c.Scheduler.DynamoURL)
	}
	return nil, fmt.Errorf("unknown scheduler store %q", c.Scheduler.Store)
}

// publisher returns nil when no page credentials are configured.
func publisher(c config.Config) *fbclient.Client {
	fb := fbclient.New(c.Facebook)
	if !fb.Configured() {
		return nil
	}
	if err := fb.ValidateCredentials(); err != nil {
		logging.Warn("facebook_credentials_suspect", map[string]any{"error": err.Error()})
	}
	return fb
}

func (r *runtime) notifier(c config.Config) schedule.Notifier {
	if c.Events.KafkaBroker == "" {
		return events.Nop{}
	}
	k, err := events.NewKafka(c.Events.KafkaBroker, c.Events.Topic)
	if err != nil {
		logging.Warn("events_disabled", map[string]any{"error": err.Error()})
		return events.Nop{}
	}
	r.onClose(k.Close)
	return k
}

// scheduler wires the store, publisher and notifier into a schedule service.
func (r *runtime) scheduler(ctx context.Context, c config.Config) (*schedule.Service, *fbclient.Client, error) {
	st, err := r.store(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	fb := publisher(c)
	var pub schedule.Publisher
	if fb != nil {
		pub = fb
	}
	svc := schedule.New(st, pub, schedule.Options{
		Notifier:       r.notifier(c),
		PublishTimeout: c.Facebook.Timeout,
		Budget:         schedule.Budget{MaxPerHour: c.Scheduler.MaxPerHour, MaxPerDay: c.Scheduler.MaxPerDay},
	})
	return svc, fb, nil
}
