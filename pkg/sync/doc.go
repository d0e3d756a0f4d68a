// ABOUTME: Clock synchronization package
// ABOUTME: Provides NTP-style clock sync against the coordinating node
// Package sync provides the shared clock every node schedules against.
//
// The server runs a ServerClock counting from its start. Players estimate
// its offset and drift from client/time exchanges with ClockSync.
//
// Example:
//
//	clock := sync.NewClockSync()
//	clock.ProcessSyncResponse(t1, t2, t3, t4)
//	shared := clock.Now()
package sync
