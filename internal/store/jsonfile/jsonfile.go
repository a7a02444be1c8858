// Package jsonfile keeps scheduled posts in a flat JSON array on disk.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"inspiro/internal/logging"
	"inspiro/internal/model"
)

// Store reads and writes the whole post list at Path.
type Store struct {
	Path string
	mu   sync.Mutex
}

func New(path string) *Store { return &Store{Path: path} }

// Load returns the stored posts. A missing file is an empty list. Records
// that fail to decode or validate are dropped with a warning.
func (s *Store) Load(ctx context.Context) ([]model.ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.ScheduledPost{}, nil
	}
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	out := make([]model.ScheduledPost, 0, len(raw))
	for i, r := range raw {
		var p model.ScheduledPost
		err := json.Unmarshal(r, &p)
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			logging.Warn("post_record_dropped", map[string]any{"path": s.Path, "index": i, "error": err.Error()})
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Save replaces the file with posts, writing to a temp file first.
func (s *Store) Save(ctx context.Context, posts []model.ScheduledPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if posts == nil {
		posts = []model.ScheduledPost{}
	}
	b, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}

func (s *Store) Close() error { return nil }
