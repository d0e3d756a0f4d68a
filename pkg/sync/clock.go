// ABOUTME: Shared clock estimation for players from NTP-style time exchanges
// ABOUTME: Filters offset and drift so every player reads the same shared seconds
package sync

import (
	"log"
	"sync"
	"time"
)

// Sample acceptance and filter tuning, all in microseconds unless noted
const (
	maxExchangeRTT  = 100_000
	degradedRTT     = 50_000
	maxResidual     = 50_000
	filterGain      = 0.1
	staleAfter      = 5 * time.Second
	verboseExchange = 10
)

// exchange is one time request and its reply: t1 client send, t2 server
// receive, t3 server send, t4 client receive
type exchange struct {
	t1, t2, t3, t4 int64
}

// rtt excludes the time the server held the request
func (x exchange) rtt() int64 {
	return (x.t4 - x.t1) - (x.t3 - x.t2)
}

// offset is positive when the server clock is ahead
func (x exchange) offset() int64 {
	return ((x.t2 - x.t1) + (x.t3 - x.t4)) / 2
}

// estimate models server = client + offset + drift*(client - anchor)
type estimate struct {
	offset int64
	drift  float64 // µs of server per µs of client, minus one
	anchor int64   // client µs the offset was measured at
}

func (e estimate) toServer(client int64) int64 {
	return client + e.offset + int64(e.drift*float64(client-e.anchor))
}

func (e estimate) toClient(server int64) int64 {
	return int64((float64(server) - float64(e.offset) + e.drift*float64(e.anchor)) / (1.0 + e.drift))
}

// predict is the offset the model expects at client time
func (e estimate) predict(client int64) (offset int64, elapsed float64) {
	elapsed = float64(client - e.anchor)
	return e.offset + int64(e.drift*elapsed), elapsed
}

// ClockSync turns time exchanges with the coordinating node into shared time
type ClockSync struct {
	mu          sync.RWMutex
	est         estimate
	rtt         int64
	quality     Quality
	lastSync    time.Time
	sampleCount int

	clientMicros func() int64
}

// Quality represents sync quality
type Quality int

const (
	QualityGood Quality = iota
	QualityDegraded
	QualityLost
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	}
	return "lost"
}

// NewClockSync creates an unsynced clock reading the system clock
func NewClockSync() *ClockSync {
	return &ClockSync{
		quality:      QualityLost,
		clientMicros: ClientMicros,
	}
}

// ProcessSyncResponse folds one exchange into the estimate. The first
// accepted sample sets the offset, the second sets the drift, and later ones
// nudge both by filterGain of the prediction error.
func (cs *ClockSync) ProcessSyncResponse(t1, t2, t3, t4 int64) {
	x := exchange{t1, t2, t3, t4}
	rtt := x.rtt()

	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.rtt = rtt
	cs.lastSync = time.Now()

	if rtt > maxExchangeRTT {
		log.Printf("Discarding sync sample: high RTT %dμs", rtt)
		return
	}

	switch cs.sampleCount {
	case 0:
		cs.est = estimate{offset: x.offset(), anchor: t4}
		log.Printf("Initial sync: offset=%dμs, rtt=%dμs", cs.est.offset, rtt)
	case 1:
		cs.seedDrift(x)
	default:
		if !cs.track(x) {
			return
		}
	}

	cs.sampleCount++
	cs.quality = QualityGood
	if rtt >= degradedRTT {
		cs.quality = QualityDegraded
	}
}

// seedDrift takes the drift from the first two offsets
func (cs *ClockSync) seedDrift(x exchange) {
	measured := x.offset()
	if elapsed := float64(x.t4 - cs.est.anchor); elapsed > 0 {
		cs.est.drift = float64(measured-cs.est.offset) / elapsed
		log.Printf("Drift initialized: drift=%.9f μs/μs over Δt=%.0fμs", cs.est.drift, elapsed)
	}
	cs.est.offset = measured
	cs.est.anchor = x.t4
}

// track corrects the estimate toward x, or reports false when x is unusable
func (cs *ClockSync) track(x exchange) bool {
	predicted, elapsed := cs.est.predict(x.t4)
	if elapsed <= 0 {
		log.Printf("Discarding sync sample: non-monotonic time")
		return false
	}

	// a miss this large is a clock jump or a stalled network, not drift
	residual := x.offset() - predicted
	if residual > maxResidual || residual < -maxResidual {
		log.Printf("Discarding sync sample: large residual %dμs (possible clock jump)", residual)
		return false
	}

	cs.est.offset = predicted + int64(filterGain*float64(residual))
	cs.est.drift += filterGain * float64(residual) / elapsed
	cs.est.anchor = x.t4

	if cs.sampleCount < verboseExchange {
		log.Printf("Sync #%d: offset=%dμs, drift=%.9f, residual=%dμs, rtt=%dμs",
			cs.sampleCount+1, cs.est.offset, cs.est.drift, residual, x.rtt())
	}
	return true
}

// Synced reports whether at least one sample was accepted
func (cs *ClockSync) Synced() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.sampleCount > 0
}

// GetOffset returns the current offset in microseconds
func (cs *ClockSync) GetOffset() int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.est.offset
}

// GetStats returns sync statistics
func (cs *ClockSync) GetStats() (offset, rtt int64, quality Quality) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.est.offset, cs.rtt, cs.quality
}

// CheckQuality marks the sync lost once no reply arrived for staleAfter
func (cs *ClockSync) CheckQuality() Quality {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if time.Since(cs.lastSync) > staleAfter {
		cs.quality = QualityLost
	}
	return cs.quality
}

// ServerToLocalTime converts shared microseconds to local wall clock time.
// Before the first sample both clocks are taken to agree.
func (cs *ClockSync) ServerToLocalTime(serverTime int64) time.Time {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if cs.sampleCount == 0 {
		return time.UnixMicro(serverTime)
	}
	return time.UnixMicro(cs.est.toClient(serverTime))
}

// ServerMicros returns the current time in the server's reference frame
func (cs *ClockSync) ServerMicros() int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	clientNow := cs.clientMicros()
	if cs.sampleCount == 0 {
		return clientNow
	}
	return cs.est.toServer(clientNow)
}

// Now returns the shared time in seconds
func (cs *ClockSync) Now() float64 {
	return float64(cs.ServerMicros()) / 1e6
}

// ClientMicros returns raw client Unix epoch time in microseconds.
// Only for the sync exchange itself; shared timestamps come from Now.
func ClientMicros() int64 {
	return time.Now().UnixMicro()
}

// ServerClock is the coordinating node's monotonic shared clock
type ServerClock struct {
	start time.Time
}

// NewServerClock starts a shared clock at zero
func NewServerClock() *ServerClock {
	return &ServerClock{start: time.Now()}
}

// Micros returns microseconds since the clock started
func (c *ServerClock) Micros() int64 {
	return time.Since(c.start).Microseconds()
}

// Now returns the shared time in seconds
func (c *ServerClock) Now() float64 {
	return time.Since(c.start).Seconds()
}
