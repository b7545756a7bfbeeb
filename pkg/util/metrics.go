package util

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
)

// RateLimiter lets an event through at most once per interval.
type RateLimiter struct {
	interval time.Duration
	last     time.Time
	// Suppressed counts events dropped since the last one allowed.
	Suppressed int
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval}
}

func (r *RateLimiter) Allow(now time.Time) bool {
	if !r.last.IsZero() && now.Sub(r.last) < r.interval {
		r.Suppressed++
		return false
	}
	r.last = now
	return true
}

// Reset clears the suppressed counter after it has been reported.
func (r *RateLimiter) Reset() {
	r.Suppressed = 0
}

// WritePoint is a shorthand used by the workers; the write API buffers and
// sends in the background.
func WritePoint(writeAPI api.WriteAPI, measurement string, tags map[string]string, fields map[string]interface{}) {
	writeAPI.WritePoint(influxdb2.NewPoint(measurement, tags, fields, time.Now()))
}
