package domain

import "time"

// User is the ephemeral per-connection state tracked by presence.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	X            float64   `json:"x"`
	Y            float64   `json:"y"`
	Drawing      bool      `json:"drawing"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	HasMoved     bool      `json:"hasMoved"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// PresenceEntry is the broadcast-worthy subset of a User.
type PresenceEntry struct {
	Username string  `json:"username"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Drawing  bool    `json:"drawing"`
}

func (u User) Presence() PresenceEntry {
	return PresenceEntry{
		Username: u.Username,
		X:        u.X,
		Y:        u.Y,
		Drawing:  u.Drawing,
	}
}

// SyncState is the bootstrap sub-protocol state of one connection.
type SyncState int

const (
	SyncStateConnected SyncState = iota
	SyncStateAwaitingInitialState
	SyncStateSynced
)

func (s SyncState) String() string {
	switch s {
	case SyncStateConnected:
		return "Connected"
	case SyncStateAwaitingInitialState:
		return "AwaitingInitialState"
	case SyncStateSynced:
		return "Synced"
	default:
		return "Unknown"
	}
}
