package schedule

import (
	"time"

	"inspiro/internal/model"
)

// Budget caps how many posts are published per clock hour and per day.
// Zero fields are unlimited.
type Budget struct {
	MaxPerHour int
	MaxPerDay  int
}

// Allow reports whether another post may be published at now, counting the
// Posted entries in posts whose PostedAt falls in the current hour or day.
func (b Budget) Allow(posts []model.ScheduledPost, now time.Time) bool {
	if b.MaxPerHour <= 0 && b.MaxPerDay <= 0 {
		return true
	}
	startHour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	startDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var hourCount, dayCount int
	for _, p := range posts {
		if p.Status != model.StatusPosted || p.PostedAt == nil {
			continue
		}
		at := p.PostedAt.In(now.Location())
		if !at.Before(startDay) && at.Before(startDay.AddDate(0, 0, 1)) {
			dayCount++
		}
		if !at.Before(startHour) && at.Before(startHour.Add(time.Hour)) {
			hourCount++
		}
	}
	if b.MaxPerHour > 0 && hourCount >= b.MaxPerHour {
		return false
	}
	if b.MaxPerDay > 0 && dayCount >= b.MaxPerDay {
		return false
	}
	return true
}
