package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrEmptyCaption   = errors.New("empty caption")
	ErrInvalidCaption = errors.New("caption is not valid UTF-8")
	ErrNotPending     = errors.New("post is not pending")
	ErrPastSchedule   = errors.New("cannot schedule post in the past")
)

// ValidateCaption trims s and rejects empty or malformed input.
func ValidateCaption(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", ErrInvalidCaption
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyCaption
	}
	return s, nil
}

// PostStatus is the lifecycle state of a scheduled post. Posted and Failed
// are terminal.
type PostStatus string

const (
	StatusPending PostStatus = "Pending"
	StatusPosted  PostStatus = "Posted"
	StatusFailed  PostStatus = "Failed"
)

func (s PostStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPosted, StatusFailed:
		return true
	}
	return false
}

// ScheduledPost is a caption queued for publication at ScheduledAt.
type ScheduledPost struct {
	ID          string     `json:"id" dynamodbav:"id"`
	Caption     string     `json:"caption" dynamodbav:"caption"`
	ScheduledAt time.Time  `json:"scheduled_dt" dynamodbav:"scheduled_dt"`
	CreatedAt   time.Time  `json:"created_at" dynamodbav:"created_at"`
	Status      PostStatus `json:"status" dynamodbav:"status"`
	PostedAt    *time.Time `json:"posted_at,omitempty" dynamodbav:"posted_at,omitempty"`
	ExternalID  string     `json:"post_id,omitempty" dynamodbav:"post_id,omitempty"`
	Error       string     `json:"error,omitempty" dynamodbav:"error,omitempty"`
}

// Due reports whether a pending post should be published at now.
func (p ScheduledPost) Due(now time.Time) bool {
	return p.Status == StatusPending && !p.ScheduledAt.After(now)
}

// MarkPosted moves a pending post to Posted.
func (p *ScheduledPost) MarkPosted(externalID string, at time.Time) error {
	if p.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrNotPending, p.ID, p.Status)
	}
	p.Status = StatusPosted
	p.ExternalID = externalID
	p.PostedAt = &at
	p.Error = ""
	return nil
}

// MarkFailed moves a pending post to Failed, keeping the cause.
func (p *ScheduledPost) MarkFailed(cause string) error {
	if p.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrNotPending, p.ID, p.Status)
	}
	p.Status = StatusFailed
	p.Error = cause
	return nil
}

// Validate checks a post loaded from storage.
func (p ScheduledPost) Validate() error {
	switch {
	case p.ID == "":
		return errors.New("missing id")
	case strings.TrimSpace(p.Caption) == "":
		return errors.New("missing caption")
	case p.ScheduledAt.IsZero():
		return errors.New("missing scheduled_dt")
	case !p.Status.Valid():
		return fmt.Errorf("unknown status %q", p.Status)
	}
	return nil
}
