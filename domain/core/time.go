package core

import (
	"time"
)

// MJD epoch (1858-11-17T00:00:00 UTC)
var mjdEpoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

const secondsPerDay = 86400.0

// MJD is a Modified Julian Date
type MJD float64

// NewMJD converts a time.Time to MJD
func NewMJD(t time.Time) MJD {
	return MJD(t.UTC().Sub(mjdEpoch).Seconds() / secondsPerDay)
}

// Time returns the underlying time.Time
func (m MJD) Time() time.Time {
	return mjdEpoch.Add(time.Duration(float64(m) * secondsPerDay * float64(time.Second)))
}

// AddSeconds offsets the date by s seconds
func (m MJD) AddSeconds(s float64) MJD {
	return m + MJD(s/secondsPerDay)
}

// SecondsSince returns the seconds elapsed from ref to m
func (m MJD) SecondsSince(ref MJD) float64 {
	return float64(m-ref) * secondsPerDay
}

// DaysToSeconds converts a duration in days
func DaysToSeconds(d float64) float64 {
	return d * secondsPerDay
}
