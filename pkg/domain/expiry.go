package domain

import (
	"time"
)

type Expiry string

const (
	ExpiryNever  Expiry = "never"
	Expiry1Hour  Expiry = "1hr"
	Expiry24Hour Expiry = "24hr"
	Expiry7Days  Expiry = "7days"
	Expiry30Days Expiry = "30days"
)

var ExpiryOptions = []Expiry{ExpiryNever, Expiry1Hour, Expiry24Hour, Expiry7Days, Expiry30Days}

var expiryDurations = map[Expiry]time.Duration{
	Expiry1Hour:  time.Hour,
	Expiry24Hour: 24 * time.Hour,
	Expiry7Days:  7 * 24 * time.Hour,
	Expiry30Days: 30 * 24 * time.Hour,
}

func ValidExpiry(s string) bool {
	for _, e := range ExpiryOptions {
		if string(e) == s {
			return true
		}
	}
	return false
}

// ResolveExpiry turns a relative selection into an absolute timestamp.
// "never" and anything unrecognised yield nil.
func ResolveExpiry(sel Expiry, now time.Time) *time.Time {
	d, ok := expiryDurations[sel]
	if !ok {
		return nil
	}
	t := now.Add(d)
	return &t
}

// NotExpired is the visibility predicate shared by every read path.
func NotExpired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt == nil || expiresAt.After(now)
}

// TimeWindows maps search time presets to how far back they reach.
var TimeWindows = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}
