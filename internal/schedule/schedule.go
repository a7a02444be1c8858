// Package schedule owns the scheduled-post list: creating posts, publishing
// them when due and persisting every change.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"inspiro/internal/logging"
	"inspiro/internal/metrics"
	"inspiro/internal/model"
)

var ErrNotFound = errors.New("post not found")

// Store persists the full post list.
type Store interface {
	Load(ctx context.Context) ([]model.ScheduledPost, error)
	Save(ctx context.Context, posts []model.ScheduledPost) error
}

// Publisher sends a caption to the social platform and returns its post id.
type Publisher interface {
	Publish(ctx context.Context, message string) (string, error)
}

// Notifier is told about every terminal transition.
type Notifier interface {
	PostChanged(ctx context.Context, p model.ScheduledPost)
}

// Options configure a Service.
type Options struct {
	Notifier Notifier
	Now      func() time.Time
	// PublishTimeout bounds each publish call; zero means no extra bound.
	PublishTimeout time.Duration
	// Due posts over budget stay Pending until a later check.
	Budget Budget
}

// Service serializes access to the post list shared by API handlers and the
// background publisher.
type Service struct {
	mu      sync.Mutex
	store   Store
	pub     Publisher
	notify  Notifier
	now     func() time.Time
	timeout time.Duration
	budget  Budget
	// Transitions whose publish call returned but whose save failed. They
	// are laid over every load until a save succeeds.
	unsaved map[string]model.ScheduledPost
}

func New(store Store, pub Publisher, opts Options) *Service {
	s := &Service{
		store:   store,
		pub:     pub,
		notify:  opts.Notifier,
		now:     opts.Now,
		timeout: opts.PublishTimeout,
		budget:  opts.Budget,
		unsaved: map[string]model.ScheduledPost{},
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Schedule creates a Pending post for caption at when. Past times are
// rejected.
func (s *Service) Schedule(ctx context.Context, caption string, when time.Time) (model.ScheduledPost, error) {
	caption, err := model.ValidateCaption(caption)
	if err != nil {
		return model.ScheduledPost{}, err
	}
	now := s.now()
	if !when.After(now) {
		return model.ScheduledPost{}, model.ErrPastSchedule
	}
	p := model.ScheduledPost{
		ID:          uuid.NewString(),
		Caption:     caption,
		ScheduledAt: when,
		CreatedAt:   now,
		Status:      model.StatusPending,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	posts, err := s.load(ctx)
	if err != nil {
		return model.ScheduledPost{}, fmt.Errorf("load posts: %w", err)
	}
	posts = append(posts, p)
	if err := s.save(ctx, posts); err != nil {
		return model.ScheduledPost{}, fmt.Errorf("save posts: %w", err)
	}
	logging.Info("post_scheduled", map[string]any{"id": p.ID, "scheduled_dt": when.Format(time.RFC3339)})
	return p, nil
}

// List returns every stored post.
func (s *Service) List(ctx context.Context) ([]model.ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Delete removes the post with id.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	posts, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("load posts: %w", err)
	}
	for i, p := range posts {
		if p.ID == id {
			posts = append(posts[:i], posts[i+1:]...)
			if err := s.save(ctx, posts); err != nil {
				return fmt.Errorf("save posts: %w", err)
			}
			logging.Info("post_deleted", map[string]any{"id": id})
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// CheckAndPost publishes every due Pending post once. A publish error or
// panic marks that post Failed; nothing is retried. Posts over the publish
// budget are left Pending. The list is saved after each transition; a
// transition whose save fails is kept in memory and written before anything
// else is published, so a post is never published twice. It returns the
// posts that changed.
func (s *Service) CheckAndPost(ctx context.Context) ([]model.ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	posts, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}
	if len(s.unsaved) > 0 {
		if err := s.save(ctx, posts); err != nil {
			return nil, fmt.Errorf("flush unsaved transitions: %w", err)
		}
	}
	var changed []model.ScheduledPost
	for i := range posts {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		now := s.now()
		if !posts[i].Due(now) {
			continue
		}
		if !s.budget.Allow(posts, now) {
			logging.Info("publish_deferred", map[string]any{"id": posts[i].ID, "reason": "budget"})
			continue
		}
		id, perr := s.publish(ctx, posts[i].Caption)
		if perr != nil {
			_ = posts[i].MarkFailed(perr.Error())
			logging.Warn("scheduled_post_failed", map[string]any{"id": posts[i].ID, "error": perr.Error()})
		} else {
			_ = posts[i].MarkPosted(id, s.now())
			logging.Info("scheduled_post_published", map[string]any{"id": posts[i].ID, "post_id": id})
		}
		metrics.IncPostOutcome(string(posts[i].Status))
		s.unsaved[posts[i].ID] = posts[i]
		changed = append(changed, posts[i])
		if s.notify != nil {
			s.notify.PostChanged(ctx, posts[i])
		}
		if err := s.save(ctx, posts); err != nil {
			logging.Error("post_transition_unsaved", map[string]any{"id": posts[i].ID, "status": string(posts[i].Status), "error": err.Error()})
			return changed, fmt.Errorf("save posts: %w", err)
		}
	}
	return changed, nil
}

// load reads the stored list and lays unsaved transitions over it.
func (s *Service) load(ctx context.Context) ([]model.ScheduledPost, error) {
	posts, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(s.unsaved) == 0 {
		return posts, nil
	}
	for i := range posts {
		if p, ok := s.unsaved[posts[i].ID]; ok {
			posts[i] = p
		}
	}
	return posts, nil
}

// save persists posts. Once a save succeeds every unsaved transition is on
// disk, or was deleted from the list on purpose.
func (s *Service) save(ctx context.Context, posts []model.ScheduledPost) error {
	if err := s.store.Save(ctx, posts); err != nil {
		return err
	}
	clear(s.unsaved)
	return nil
}

func (s *Service) publish(ctx context.Context, caption string) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("publish panicked: %v", r)
		}
	}()
	if s.pub == nil {
		return "", errors.New("no publisher configured")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.pub.Publish(ctx, caption)
}

// Prune removes Posted and Failed posts scheduled before cutoff and returns
// how many were removed.
func (s *Service) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	posts, err := s.load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load posts: %w", err)
	}
	kept := posts[:0]
	for _, p := range posts {
		if p.Status != model.StatusPending && p.ScheduledAt.Before(cutoff) {
			continue
		}
		kept = append(kept, p)
	}
	removed := len(posts) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.save(ctx, kept); err != nil {
		return 0, fmt.Errorf("save posts: %w", err)
	}
	return removed, nil
}
