// ABOUTME: Loudness index over segments
// ABOUTME: Nearest log-power lookup with edge clamping and bounded jitter
package grain

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
)

// ErrDegenerateIndex is returned when an index is built from no segments
var ErrDegenerateIndex = errors.New("loudness index needs at least one segment")

// Entry pairs a segment with its log-power
type Entry struct {
	SegmentIndex int
	LogPower     float64
}

// LoudnessIndex is a log-power sorted view over a segment set
type LoudnessIndex struct {
	entries []Entry
	levels  map[int]float64
	min     float64
	max     float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewLoudnessIndex sorts segments by log-power. A single segment is duplicated
// so the index always holds at least two entries.
func NewLoudnessIndex(segments []Segment, rng *rand.Rand) (*LoudnessIndex, error) {
	if len(segments) == 0 {
		return nil, ErrDegenerateIndex
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	entries := make([]Entry, 0, len(segments)+1)
	for _, s := range segments {
		entries = append(entries, Entry{SegmentIndex: s.Index, LogPower: s.LogPower()})
	}
	if len(entries) == 1 {
		entries = append(entries, entries[0])
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LogPower < entries[j].LogPower
	})

	levels := make(map[int]float64, len(entries))
	for _, e := range entries {
		levels[e.SegmentIndex] = e.LogPower
	}

	return &LoudnessIndex{
		entries: entries,
		levels:  levels,
		min:     entries[0].LogPower,
		max:     entries[len(entries)-1].LogPower,
		rng:     rng,
	}, nil
}

// Len returns the number of entries
func (x *LoudnessIndex) Len() int {
	return len(x.entries)
}

// MinLogPower returns the quietest level in the index
func (x *LoudnessIndex) MinLogPower() float64 {
	return x.min
}

// MaxLogPower returns the loudest level in the index
func (x *LoudnessIndex) MaxLogPower() float64 {
	return x.max
}

// LogPowerOf returns the level of a segment, or false if it is not indexed
func (x *LoudnessIndex) LogPowerOf(segmentIndex int) (float64, bool) {
	lp, ok := x.levels[segmentIndex]
	return lp, ok
}

// Select returns the segment whose log-power is closest to target.
//
// The jitter j is clamped to floor((N-1)/2). Targets beyond the j-th quietest
// or loudest entry snap to that entry, so adding a uniform offset in [-j, j]
// never leaves the index.
func (x *LoudnessIndex) Select(target float64, jitter int) int {
	n := len(x.entries)
	j := jitter
	if j < 0 {
		j = 0
	}
	if limit := (n - 1) / 2; j > limit {
		j = limit
	}

	low := x.entries[j].LogPower
	high := x.entries[n-1-j].LogPower

	var i int
	switch {
	case target <= low:
		i = j
	case target >= high:
		i = n - 1 - j
	default:
		i = j
		if seed := math.Floor(float64(n-1) * (target - low) / (high - low)); !math.IsNaN(seed) {
			i = int(seed)
		}
		if i < j {
			i = j
		}
		if i > n-2-j {
			i = n - 2 - j
		}
		for x.entries[i].LogPower > target {
			i--
		}
		for x.entries[i+1].LogPower <= target {
			i++
		}
		if target-x.entries[i].LogPower >= x.entries[i+1].LogPower-target {
			i++
		}
	}

	if j > 0 {
		x.mu.Lock()
		i += x.rng.IntN(2*j+1) - j
		x.mu.Unlock()
	}

	return x.entries[i].SegmentIndex
}

// uniform draws from [lo, hi) using the index generator
func (x *LoudnessIndex) uniform(lo, hi float64) float64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return lo + (hi-lo)*x.rng.Float64()
}
