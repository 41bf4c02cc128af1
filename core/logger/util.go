package logger

import (
	"strings"
	"time"
)

// Status is the value of the "status" attribute and metric label for err.
func Status(err error) string {
	if err == nil {
		return "ok"
	}
	return "fail"
}

// Took is the time since start, rounded for log output.
func Took(start time.Time) time.Duration { return RoundMS(time.Since(start)) }

// RoundMS rounds d to whole milliseconds; negative durations become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings renders at most limit values and reports whether any were left out.
func SummarizeStrings(values []string, limit int) (string, bool) {
	switch {
	case limit <= 0:
		return "", len(values) > 0
	case len(values) > limit:
		return strings.Join(values[:limit], ", "), true
	}
	return strings.Join(values, ", "), false
}
