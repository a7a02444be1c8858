// Package analytics summarizes the scheduled-post history.
package analytics

import (
	"sort"
	"time"

	"inspiro/internal/model"
)

// Summary aggregates posts by outcome and by scheduled hour.
type Summary struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	ByHour      map[int]int    `json:"by_hour"`
	SuccessRate float64        `json:"success_rate"`
	// Earliest Pending post, if any
	NextDue *model.ScheduledPost `json:"next_due,omitempty"`
}

// Summarize buckets posts by status and by the hour they were scheduled for,
// read in loc. SuccessRate is Posted over finished posts, 0 when none have
// finished.
func Summarize(posts []model.ScheduledPost, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}
	s := Summary{
		Total:    len(posts),
		ByStatus: map[string]int{string(model.StatusPending): 0, string(model.StatusPosted): 0, string(model.StatusFailed): 0},
		ByHour:   map[int]int{},
	}
	for i := range posts {
		p := posts[i]
		s.ByStatus[string(p.Status)]++
		s.ByHour[p.ScheduledAt.In(loc).Hour()]++
		if p.Status == model.StatusPending && (s.NextDue == nil || p.ScheduledAt.Before(s.NextDue.ScheduledAt)) {
			s.NextDue = &posts[i]
		}
	}
	finished := s.ByStatus[string(model.StatusPosted)] + s.ByStatus[string(model.StatusFailed)]
	if finished > 0 {
		s.SuccessRate = float64(s.ByStatus[string(model.StatusPosted)]) / float64(finished)
	}
	return s
}

// SortedHours returns the hours present in m in ascending order.
func SortedHours(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
