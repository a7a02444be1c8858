package nn

import (
	"math"
	"time"
)

// TimeFeatures is the cyclical encoding of an hour and day of week.
type TimeFeatures struct {
	Hour      int
	Dow       int
	IsWeekend bool
	HourSin   float64
	HourCos   float64
	DowSin    float64
	DowCos    float64
}

// EncodeTime maps hour (0–23) and dow (0=Monday..6=Sunday) onto the unit
// circle so that 23:00 sits next to 00:00 and Sunday next to Monday.
func EncodeTime(hour, dow int) TimeFeatures {
	ha := 2 * math.Pi * float64(hour) / 24
	da := 2 * math.Pi * float64(dow) / 7
	return TimeFeatures{
		Hour:      hour,
		Dow:       dow,
		IsWeekend: dow == 5 || dow == 6,
		HourSin:   math.Sin(ha),
		HourCos:   math.Cos(ha),
		DowSin:    math.Sin(da),
		DowCos:    math.Cos(da),
	}
}

// Weekday returns t's day of week with Monday as 0.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// DecodeHour recovers the hour from its sine/cosine pair.
func DecodeHour(sin, cos float64) int {
	a := math.Atan2(sin, cos)
	if a < 0 {
		a += 2 * math.Pi
	}
	return int(math.Round(a*24/(2*math.Pi))) % 24
}
