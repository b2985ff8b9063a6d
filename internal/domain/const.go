package domain

import "time"

const (
	DefaultMaxHistory       = 500
	DefaultUndoWindow       = 100
	DefaultMaxSegments      = 10000
	DefaultMaxChatMessages  = 50
	DefaultMaxSnapshotBytes = 8 << 20

	DefaultInactivityLimit       = 15 * time.Second
	DefaultPresenceInterval      = 50 * time.Millisecond
	DefaultSnapshotCheckInterval = 20 * time.Second
	DefaultSnapshotStaleAfter    = 45 * time.Second
	DefaultPruneInterval         = 60 * time.Second
	DefaultEvictedIDRetention    = 30 * time.Minute

	DefaultResetSchedule = "CRON_TZ=America/New_York 0 0 * * *"
)

const (
	MaxUsernameLength = 30
	MaxChatLength     = 200
	MaxStrokeIDLength = 64
	MaxColorLength    = 32
	MaxSegmentSize    = 200

	// memcached rejects items over 1 MiB by default; leave room for the key
	// and the JSON envelope around the data URL.
	MemcachedMaxSnapshotBytes = 1<<20 - 4<<10
)

// ReservedUsernames are rejected case-insensitively by setUsername.
var ReservedUsernames = []string{"system", "server", "admin", "moderator", "anonymous"}

const DefaultUsernamePrefix = "Anonymous-"
