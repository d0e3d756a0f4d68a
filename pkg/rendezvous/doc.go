// ABOUTME: Rendezvous package documentation
// ABOUTME: Shared-time playback with a strict too-late policy
// Package rendezvous starts audio at an agreed shared-clock instant.
//
// A start time that has already passed is never played late: Schedule
// returns ErrMissed and the sink is left untouched, so every node either
// sounds together or stays silent.
package rendezvous
