// ABOUTME: Tests for drift-compensated clock synchronization
// ABOUTME: Tests RTT calculation, offset and drift tracking, and time conversion
package sync

import (
	"testing"
	"time"
)

// sample builds a symmetric exchange sent at clientSend with the given
// server offset and round trip
func sample(clientSend, offset, rtt int64) (t1, t2, t3, t4 int64) {
	t1 = clientSend
	t2 = clientSend + offset + rtt/2
	t3 = t2
	t4 = clientSend + rtt
	return
}

func fixedClock(cs *ClockSync, micros *int64) {
	cs.clientMicros = func() int64 { return *micros }
}

func TestRTTCalculation(t *testing.T) {
	// 5ms total, 0.5ms server processing
	cs := NewClockSync()
	cs.ProcessSyncResponse(1000000, 2000, 2500, 1005000)

	_, rtt, _ := cs.GetStats()
	if rtt != 4500 {
		t.Errorf("expected RTT 4500µs, got %dµs", rtt)
	}
}

func TestInitialSync(t *testing.T) {
	cs := NewClockSync()
	if cs.Synced() {
		t.Error("expected not synced initially")
	}

	cs.ProcessSyncResponse(sample(1000000, -1000000, 4000))

	if !cs.Synced() {
		t.Error("expected synced after first response")
	}
	offset, _, quality := cs.GetStats()
	if offset != -1000000 {
		t.Errorf("expected offset -1000000µs, got %d", offset)
	}
	if quality != QualityGood {
		t.Errorf("expected QualityGood, got %v", quality)
	}
}

func TestServerMicrosAndNow(t *testing.T) {
	cs := NewClockSync()
	now := int64(1004000)
	fixedClock(cs, &now)

	// before sync the client clock passes through
	if got := cs.ServerMicros(); got != now {
		t.Errorf("expected %d before sync, got %d", now, got)
	}

	cs.ProcessSyncResponse(sample(1000000, -900000, 4000))

	now = 1104000
	if got := cs.ServerMicros(); got != 204000 {
		t.Errorf("expected 204000µs, got %d", got)
	}
	if got := cs.Now(); got != 0.204 {
		t.Errorf("expected 0.204s, got %v", got)
	}
}

func TestServerToLocalTimeConversion(t *testing.T) {
	cs := NewClockSync()
	cs.ProcessSyncResponse(sample(1000000, -900000, 4000))

	local := cs.ServerToLocalTime(204000)
	if !local.Equal(time.UnixMicro(1104000)) {
		t.Errorf("expected %v, got %v", time.UnixMicro(1104000), local)
	}
}

func TestDriftTracking(t *testing.T) {
	cs := NewClockSync()
	now := int64(0)
	fixedClock(cs, &now)

	// offset grows by 100µs per second of client time
	cs.ProcessSyncResponse(sample(1000000, 0, 2000))
	cs.ProcessSyncResponse(sample(2000000, 100, 2000))

	now = 3002000
	if got := cs.ServerMicros(); got != 3002200 {
		t.Errorf("expected drift-compensated 3002200µs, got %d", got)
	}

	local := cs.ServerToLocalTime(3002200).UnixMicro()
	if diff := local - 3002000; diff < -1 || diff > 1 {
		t.Errorf("inverse conversion off by %dµs", diff)
	}
}

func TestQualityTracking(t *testing.T) {
	cs := NewClockSync()

	cs.ProcessSyncResponse(sample(1000000, -500000, 20000))
	cs.ProcessSyncResponse(sample(2000000, -500000, 20000))
	if _, _, q := cs.GetStats(); q != QualityGood {
		t.Errorf("expected QualityGood for 20ms RTT, got %v", q)
	}

	cs.ProcessSyncResponse(sample(3000000, -500000, 80000))
	if _, _, q := cs.GetStats(); q != QualityDegraded {
		t.Errorf("expected QualityDegraded for 80ms RTT, got %v", q)
	}
}

func TestQualityDegradation(t *testing.T) {
	cs := NewClockSync()
	cs.ProcessSyncResponse(sample(1000000, 0, 20000))

	if q := cs.CheckQuality(); q != QualityGood {
		t.Errorf("expected QualityGood initially, got %v", q)
	}

	cs.mu.Lock()
	cs.lastSync = time.Now().Add(-6 * time.Second)
	cs.mu.Unlock()

	if q := cs.CheckQuality(); q != QualityLost {
		t.Errorf("expected QualityLost after 6s, got %v", q)
	}
	if QualityLost.String() != "lost" {
		t.Errorf("unexpected quality name %q", QualityLost.String())
	}
}

func TestRejectedSamples(t *testing.T) {
	cs := NewClockSync()
	cs.ProcessSyncResponse(sample(1000000, 0, 20000))

	// RTT above 100ms is discarded
	cs.ProcessSyncResponse(sample(2000000, 0, 150000))
	if cs.sampleCount != 1 {
		t.Errorf("expected high RTT sample discarded, count=%d", cs.sampleCount)
	}

	cs.ProcessSyncResponse(sample(2000000, 0, 20000))
	offset := cs.GetOffset()

	// residual above 50ms looks like a clock jump
	cs.ProcessSyncResponse(sample(3000000, 80000, 20000))
	if cs.sampleCount != 2 || cs.GetOffset() != offset {
		t.Errorf("expected clock jump discarded, count=%d offset=%d", cs.sampleCount, cs.GetOffset())
	}
}

func TestServerClock(t *testing.T) {
	c := NewServerClock()
	a := c.Now()
	time.Sleep(2 * time.Millisecond)
	b := c.Now()

	if a < 0 || b <= a {
		t.Errorf("expected increasing shared time, got %v then %v", a, b)
	}
	if c.Micros() < 2000 {
		t.Errorf("expected at least 2000µs, got %d", c.Micros())
	}
}

func TestConcurrentAccess(t *testing.T) {
	cs := NewClockSync()
	cs.ProcessSyncResponse(sample(1000000, 0, 20000))

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cs.GetStats()
				cs.CheckQuality()
				cs.Now()
				cs.ServerToLocalTime(int64(j * 1000))
				cs.ProcessSyncResponse(sample(int64(2000000+j*1000), 0, 20000))
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	_, rtt, quality := cs.GetStats()
	if rtt <= 0 {
		t.Error("invalid RTT after concurrent access")
	}
	if quality == QualityLost {
		t.Error("unexpected QualityLost after concurrent access")
	}
}

func TestEstimateRoundTrip(t *testing.T) {
	e := estimate{offset: -250000, drift: 2e-5, anchor: 5000000}

	for _, client := range []int64{5000000, 6000000, 9000000} {
		back := e.toClient(e.toServer(client))
		if diff := back - client; diff < -1 || diff > 1 {
			t.Errorf("round trip of %d off by %dµs", client, diff)
		}
	}

	predicted, elapsed := e.predict(6000000)
	if elapsed != 1000000 || predicted != -249980 {
		t.Errorf("expected offset -249980 after 1s, got %d after %v", predicted, elapsed)
	}
}
