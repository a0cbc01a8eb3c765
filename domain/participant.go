// Package domain contains core concepts of the chat room.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

// Participant is a registered, currently-present display name.
// LastStatus holds the last heartbeat in milliseconds since epoch;
// the sweeper evicts participants whose LastStatus falls behind.
type Participant struct {
	Name       string
	LastStatus int64
}

// StaleAt reports whether the participant missed every heartbeat
// window up to the given cutoff (milliseconds since epoch).
func (p Participant) StaleAt(cutoff int64) bool {
	return p.LastStatus < cutoff
}
