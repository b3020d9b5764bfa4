// Package config validates and holds the oracle's runtime-tunable
// settings: the scan interval bounds spec.md §6 defines for the
// "bgp scan-time" CLI surface, and the scan and import interval defaults.
package config

import (
	"fmt"
	"sync"
	"time"
)

// ScanIntervalMin/Max are the inclusive bounds the "bgp scan-time"
// command accepts (spec.md §6: "bgp scan-time <5-60>").
const (
	ScanIntervalMin = 5 * time.Second
	ScanIntervalMax = 60 * time.Second

	// ScanIntervalDefault is BGP_SCAN_INTERVAL_DEFAULT.
	ScanIntervalDefault = 60 * time.Second

	// ImportIntervalDefault mirrors the scan default. The import interval
	// has no bounds check: ValidateScanInterval applies to scan-time only.
	ImportIntervalDefault = 60 * time.Second
)

// ValidateScanInterval rejects an out-of-range scan-time before it
// reaches the core, per spec.md §7 ("configuration errors ... rejected
// by the command framework before reaching the core").
func ValidateScanInterval(d time.Duration) error {
	if d < ScanIntervalMin || d > ScanIntervalMax {
		return fmt.Errorf("config: scan-time %s out of range [%s, %s]", d, ScanIntervalMin, ScanIntervalMax)
	}
	return nil
}

// Scan holds the live, mutable scan-time configuration plus the
// surrounding mutex discipline the CLI's "show"/"bgp scan-time" paths
// share with whatever rearms the scan timer.
type Scan struct {
	mu       sync.Mutex
	interval time.Duration
}

// NewScan builds a Scan config at the default interval.
func NewScan() *Scan {
	return &Scan{interval: ScanIntervalDefault}
}

// Interval returns the current scan interval.
func (s *Scan) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Set validates and installs a new scan interval, returning the
// validated value for the caller to pass to Timers.Rearm.
func (s *Scan) Set(d time.Duration) (time.Duration, error) {
	if err := ValidateScanInterval(d); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	return d, nil
}

// Reset restores the default scan interval.
func (s *Scan) Reset() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = ScanIntervalDefault
	return s.interval
}

// IsDefault reports whether the current interval matches the default,
// the predicate the config writer uses to decide whether to emit
// "bgp scan-time <n>" at all (spec.md §6).
func (s *Scan) IsDefault() bool {
	return s.Interval() == ScanIntervalDefault
}

// WriteLine renders the config-writer line for this setting, or the
// empty string when the interval is still the default.
func (s *Scan) WriteLine() string {
	if s.IsDefault() {
		return ""
	}
	return fmt.Sprintf("bgp scan-time %d", int(s.Interval()/time.Second))
}
