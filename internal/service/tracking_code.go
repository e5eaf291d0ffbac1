package service

import (
	"fmt"
	"math/rand"
	"time"
)

const (
	trackingCodePrefix  = "QJ-"
	trackingSuffixBound = 1000
)

// TrackingCodeGenerator builds codes from the wall clock and a small random suffix.
// Two calls in the same millisecond can collide; the unique constraint in storage catches that.
type TrackingCodeGenerator struct {
	now  func() time.Time
	intn func(n int) int
}

// NewTrackingCodeGenerator returns a generator backed by time.Now and math/rand/v2.
func NewTrackingCodeGenerator() *TrackingCodeGenerator {
	return &TrackingCodeGenerator{now: time.Now, intn: rand.Intn}
}

// Next returns a fresh tracking code.
func (g *TrackingCodeGenerator) Next() string {
	return FormatTrackingCode(g.now(), g.intn(trackingSuffixBound))
}

// FormatTrackingCode renders QJ-<unix millis>-<suffix>.
func FormatTrackingCode(at time.Time, suffix int) string {
	return fmt.Sprintf("%s%d-%d", trackingCodePrefix, at.UnixMilli(), suffix)
}
