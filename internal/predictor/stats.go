package predictor

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	at       time.Time
	duration time.Duration
	level    string
}

// StatsSnapshot aggregates recent predictions. Latencies are in microseconds.
type StatsSnapshot struct {
	Count   int            `json:"count"`
	Failed  int            `json:"failed"`
	ByLevel map[string]int `json:"by_level"`
	MinUs   int64          `json:"min_us"`
	MaxUs   int64          `json:"max_us"`
	AvgUs   float64        `json:"avg_us"`
	P50Us   float64        `json:"p50_us"`
	P95Us   float64        `json:"p95_us"`
	P99Us   float64        `json:"p99_us"`
}

// Stats keeps a rolling window of prediction outcomes.
type Stats struct {
	mu      sync.Mutex
	samples []sample
	window  time.Duration
	now     func() time.Time
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{
		samples: make([]sample, 0, 256),
		window:  window,
		now:     time.Now,
	}
}

// Record adds one outcome. An empty level marks a failed prediction.
func (s *Stats) Record(d time.Duration, level string) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, duration: d, level: level})
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	snap := StatsSnapshot{ByLevel: map[string]int{}}
	if len(s.samples) == 0 {
		return snap
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		if sm.level == "" {
			snap.Failed++
			continue
		}
		snap.ByLevel[sm.level]++
		us := sm.duration.Microseconds()
		values = append(values, us)
		sum += us
	}
	if len(values) == 0 {
		return snap
	}
	slices.Sort(values)

	snap.Count = len(values)
	snap.MinUs = values[0]
	snap.MaxUs = values[len(values)-1]
	snap.AvgUs = float64(sum) / float64(len(values))
	snap.P50Us = percentile(values, 50)
	snap.P95Us = percentile(values, 95)
	snap.P99Us = percentile(values, 99)
	return snap
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	keep := s.samples[:0]
	for _, sm := range s.samples {
		if !sm.at.Before(cutoff) {
			keep = append(keep, sm)
		}
	}
	s.samples = keep
}

// percentile interpolates linearly between the two nearest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	idx := float64(len(sorted)-1) * pct / 100
	lower := int(idx)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*(idx-float64(lower))
}
