package models

import (
	"fmt"
	"time"
)

// Duration returns the bucket length of a timeframe, zero if unknown
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case M1:
		return time.Minute
	case M5:
		return 5 * time.Minute
	case M15:
		return 15 * time.Minute
	case M30:
		return 30 * time.Minute
	case H1:
		return time.Hour
	case H4:
		return 4 * time.Hour
	case D1:
		return 24 * time.Hour
	}
	return 0
}

// ParseTimeframe validates a timeframe name such as "M5" or "H1"
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if tf.Duration() == 0 {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}

// UntilNextCandle returns how long until the next bucket of tf opens
func UntilNextCandle(now time.Time, tf Timeframe) time.Duration {
	d := tf.Duration()
	if d == 0 {
		return 0
	}
	return now.Truncate(d).Add(d).Sub(now)
}

// UTCDate formats t as the YYYY-MM-DD UTC date used by the daily counters
func UTCDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// CandlesPerDay estimates how many candles of tf fit in the given number of days.
// A 10% buffer is added so callers can request a little more history than needed.
func CandlesPerDay(tf Timeframe, days int) int {
	d := tf.Duration()
	if d == 0 || days <= 0 {
		return 0
	}
	perDay := int((24 * time.Hour) / d)
	if perDay < 1 {
		perDay = 1
	}
	return int(float64(perDay) * float64(days) * 1.1)
}
