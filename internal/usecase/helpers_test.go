package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/totegamma/sketchroom"
	"github.com/totegamma/sketchroom/internal/domain"
)

// --- mocks ---

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type sentEvent struct {
	to     string // "" for broadcast
	except string
	event  sketchroom.Event
}

type recordingBroadcaster struct {
	events []sentEvent
}

func (b *recordingBroadcaster) Broadcast(event sketchroom.Event) {
	b.events = append(b.events, sentEvent{event: event})
}

func (b *recordingBroadcaster) BroadcastExcept(connID string, event sketchroom.Event) {
	b.events = append(b.events, sentEvent{except: connID, event: event})
}

func (b *recordingBroadcaster) Send(connID string, event sketchroom.Event) {
	b.events = append(b.events, sentEvent{to: connID, event: event})
}

func (b *recordingBroadcaster) ofType(t sketchroom.EventType) []sentEvent {
	var out []sentEvent
	for _, e := range b.events {
		if e.event.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (b *recordingBroadcaster) reset() {
	b.events = nil
}

type mockSnapshotRepo struct {
	snapshot *domain.Snapshot
	saves    int
	clears   int
	err      error
}

func (m *mockSnapshotRepo) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if m.err != nil {
		return m.err
	}
	m.snapshot = &snapshot
	m.saves++
	return nil
}

func (m *mockSnapshotRepo) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	if m.err != nil {
		return domain.Snapshot{}, false, m.err
	}
	if m.snapshot == nil {
		return domain.Snapshot{}, false, nil
	}
	return *m.snapshot, true, nil
}

func (m *mockSnapshotRepo) Clear(ctx context.Context) error {
	m.snapshot = nil
	m.clears++
	return nil
}

type mockPublisher struct {
	published []sketchroom.Event
}

func (m *mockPublisher) Publish(ctx context.Context, event sketchroom.Event) error {
	m.published = append(m.published, event)
	return nil
}

// --- fixtures ---

func seg() []domain.Segment {
	return []domain.Segment{{X0: 0, Y0: 0, X1: 0.5, Y1: 0.5, Color: "#000000", Size: 5}}
}

func strokeID(i int) string {
	return fmt.Sprintf("s%d", i)
}

const testImage = "data:image/webp;base64,UklGRg=="
