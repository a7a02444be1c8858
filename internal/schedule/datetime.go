package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Non-padded verbs accept both "1" and "01".
var dateLayouts = []string{
	"2006-1-2",
	"2-1-2006",
	"1/2/2006",
	"2/1/2006",
	"2006/1/2",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

var timeLayouts = []string{
	"15:4",
	"15:4:5",
	"3:4 PM",
	"3:4:5 PM",
}

// ParseDateTime combines a date and a time of day in loc. Each part may use
// any of the supported layouts; the first layout that parses wins, so
// "03/04/2024" is read month-first.
func ParseDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if loc == nil {
		loc = time.Local
	}
	var d time.Time
	var ok bool
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, date); err == nil {
			d, ok = t, true
			break
		}
	}
	if !ok {
		return time.Time{}, fmt.Errorf("unrecognized date %q", date)
	}
	var c time.Time
	ok = false
	upper := strings.ToUpper(clock)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, upper); err == nil {
			c, ok = t, true
			break
		}
	}
	if !ok {
		return time.Time{}, fmt.Errorf("unrecognized time %q", clock)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, loc), nil
}

// ReadableFormat renders t as e.g. "Sunday, 15 Dec at 06:30 PM".
func ReadableFormat(t time.Time) string {
	return t.Format("Monday, 02 Jan at 03:04 PM")
}

// Countdown is the time left until a post is due.
type Countdown struct {
	Days    int  `json:"days"`
	Hours   int  `json:"hours"`
	Minutes int  `json:"minutes"`
	Seconds int  `json:"seconds"`
	IsDue   bool `json:"is_due"`
}

func CountdownTo(at, now time.Time) Countdown {
	d := at.Sub(now)
	if d <= 0 {
		return Countdown{IsDue: true}
	}
	total := int(d / time.Second)
	return Countdown{
		Days:    total / 86400,
		Hours:   total % 86400 / 3600,
		Minutes: total % 3600 / 60,
		Seconds: total % 60,
	}
}

// String renders the countdown as "1d 2h 3m 4s", omitting zero parts.
func (c Countdown) String() string {
	if c.IsDue {
		return "Ready to post!"
	}
	var parts []string
	for _, p := range []struct {
		n    int
		unit string
	}{{c.Days, "d"}, {c.Hours, "h"}, {c.Minutes, "m"}, {c.Seconds, "s"}} {
		if p.n > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", p.n, p.unit))
		}
	}
	if len(parts) == 0 {
		return "Now"
	}
	return strings.Join(parts, " ")
}
