package usecase

import (
	"context"

	"github.com/totegamma/sketchroom"
	"github.com/totegamma/sketchroom/internal/domain"
)

// Broadcaster delivers outbound events to connected clients.
// Implementations must not block and must not call back into the Session.
type Broadcaster interface {
	Broadcast(event sketchroom.Event)
	BroadcastExcept(connID string, event sketchroom.Event)
	Send(connID string, event sketchroom.Event)
}

// SnapshotRepository stores the single authoritative raster of the canvas.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot domain.Snapshot) error
	Load(ctx context.Context) (domain.Snapshot, bool, error)
	Clear(ctx context.Context) error
}

// EventPublisher mirrors document-level events to an external bus.
type EventPublisher interface {
	Publish(ctx context.Context, event sketchroom.Event) error
}
