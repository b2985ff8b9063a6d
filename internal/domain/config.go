package domain

import "time"

// CanvasConfig holds the retention and timing policy of one canvas session.
type CanvasConfig struct {
	MaxHistory            int           `yaml:"maxHistory"`
	UndoWindow            int           `yaml:"undoWindow"`
	MaxSegments           int           `yaml:"maxSegments"`
	MaxChatMessages       int           `yaml:"maxChatMessages"`
	MaxSnapshotBytes      int           `yaml:"maxSnapshotBytes"`
	InactivityLimit       time.Duration `yaml:"inactivityLimit"`
	PresenceInterval      time.Duration `yaml:"presenceInterval"`
	SnapshotCheckInterval time.Duration `yaml:"snapshotCheckInterval"`
	SnapshotStaleAfter    time.Duration `yaml:"snapshotStaleAfter"`
	PruneInterval         time.Duration `yaml:"pruneInterval"`
	EvictedIDRetention    time.Duration `yaml:"evictedIdRetention"`
	ResetSchedule         string        `yaml:"resetSchedule"` // cron spec, empty disables
}

func DefaultCanvasConfig() CanvasConfig {
	return CanvasConfig{
		MaxHistory:            DefaultMaxHistory,
		UndoWindow:            DefaultUndoWindow,
		MaxSegments:           DefaultMaxSegments,
		MaxChatMessages:       DefaultMaxChatMessages,
		MaxSnapshotBytes:      DefaultMaxSnapshotBytes,
		InactivityLimit:       DefaultInactivityLimit,
		PresenceInterval:      DefaultPresenceInterval,
		SnapshotCheckInterval: DefaultSnapshotCheckInterval,
		SnapshotStaleAfter:    DefaultSnapshotStaleAfter,
		PruneInterval:         DefaultPruneInterval,
		EvictedIDRetention:    DefaultEvictedIDRetention,
		ResetSchedule:         DefaultResetSchedule,
	}
}
