package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/sketchroom"
	"github.com/totegamma/sketchroom/internal/domain"
	"github.com/totegamma/sketchroom/internal/utils"
)

var tracer = otel.Tracer("session")

// Session is the whole mutable state of one shared canvas: stroke log,
// presence, snapshot and chat. One mutex serializes every inbound event and
// periodic job, and outbound events are queued while it is held so clients
// observe them in mutation order.
type Session struct {
	mu sync.Mutex

	config    domain.CanvasConfig
	store     *StrokeStore
	resolver  *Resolver
	presence  *PresenceTracker
	snapshots *SnapshotUsecase
	chat      *ChatLog

	syncStates map[string]domain.SyncState

	out       Broadcaster
	publisher EventPublisher
	now       func() time.Time
}

type SessionOption func(*Session)

func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

func WithPublisher(p EventPublisher) SessionOption {
	return func(s *Session) {
		s.publisher = p
	}
}

func NewSession(config domain.CanvasConfig, repo SnapshotRepository, out Broadcaster, opts ...SessionOption) *Session {
	s := &Session{
		config:     config,
		out:        out,
		syncStates: make(map[string]domain.SyncState),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.store = NewStrokeStore(config.MaxHistory, config.UndoWindow, config.EvictedIDRetention, s.now)
	s.resolver = NewResolver(s.store)
	s.presence = NewPresenceTracker(config.InactivityLimit, s.now)
	s.snapshots = NewSnapshotUsecase(repo, config.SnapshotStaleAfter, s.now)
	s.chat = NewChatLog(config.MaxChatMessages, s.now)
	return s
}

// Connect registers a connection and queues its bootstrap: welcome, the full
// stroke log, the snapshot when it is still current, and the chat history.
func (s *Session) Connect(ctx context.Context, connID string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.presence.Join(connID)

	s.out.Send(connID, sketchroom.NewEvent(sketchroom.EventWelcome, sketchroom.Welcome{
		ID:       connID,
		Username: user.Username,
	}))

	s.out.Send(connID, sketchroom.NewEvent(sketchroom.EventInitialHistory, s.store.Replay()))

	snapshot, ok, err := s.snapshots.Current(ctx)
	if err != nil {
		slog.WarnContext(
			ctx, "snapshot unavailable for bootstrap",
			slog.String("error", err.Error()),
			slog.String("module", "session"),
		)
	} else if ok && UsableForBootstrap(snapshot, s.store.LastMutationAt()) {
		s.out.Send(connID, sketchroom.NewEvent(sketchroom.EventCanvasState, snapshot.ImageData))
	}

	s.out.Send(connID, sketchroom.NewEvent(sketchroom.EventChatHistory, s.chat.History()))
	// Only queued so far; the first inbound event marks the connection synced.
	s.syncStates[connID] = domain.SyncStateAwaitingInitialState

	slog.InfoContext(
		ctx, "user connected",
		slog.String("conn", connID),
		slog.String("username", user.Username),
		slog.Int("strokes", s.store.Len()),
		slog.String("module", "session"),
	)

	s.broadcastPresence()
	return user
}

// Disconnect drops presence immediately. The user's strokes stay in the log.
func (s *Session) Disconnect(ctx context.Context, connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.presence.Leave(connID) {
		return
	}
	delete(s.syncStates, connID)

	slog.InfoContext(
		ctx, "user disconnected",
		slog.String("conn", connID),
		slog.String("module", "session"),
	)

	s.broadcastPresence()
}

// Handle applies one validated inbound event. A returned error means the
// event was dropped; it is never reported back to the client.
func (s *Session) Handle(ctx context.Context, connID string, in sketchroom.Inbound) error {
	ctx, span := tracer.Start(ctx, "Session.Handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("conn", connID),
		attribute.String("event", string(in.EventType())),
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.presence.Get(connID); !ok {
		span.RecordError(domain.ErrUnknownUser)
		return domain.ErrUnknownUser
	}
	s.syncStates[connID] = domain.SyncStateSynced

	var err error
	switch ev := in.(type) {
	case sketchroom.SetUsername:
		err = s.presence.SetUsername(connID, ev.Username)
		if err == nil {
			s.broadcastPresence()
		}

	case sketchroom.MouseMove:
		err = s.presence.UpdatePosition(connID, ev.X, ev.Y)

	case sketchroom.StartDrawing:
		err = s.presence.UpdatePosition(connID, ev.X, ev.Y)
		if err == nil {
			err = s.presence.SetDrawing(connID, true)
		}
		if err == nil {
			s.broadcastPresence()
		}

	case sketchroom.Draw:
		s.out.BroadcastExcept(connID, sketchroom.NewEvent(sketchroom.EventDraw, ev.Segment))
		err = s.presence.UpdatePosition(connID, ev.Segment.X1, ev.Segment.Y1)

	case sketchroom.AddStroke:
		err = s.addStroke(ctx, connID, ev)

	case sketchroom.StopDrawing:
		err = s.presence.SetDrawing(connID, false)
		if err == nil {
			s.broadcastPresence()
		}

	case sketchroom.CanvasSnapshot:
		_, err = s.snapshots.Accept(ctx, ev.DataURL)
		if err != nil && !errors.Is(err, domain.ErrInvalid) {
			slog.WarnContext(
				ctx, "failed to store canvas snapshot",
				slog.String("conn", connID),
				slog.Int("bytes", len(ev.DataURL)),
				slog.String("error", err.Error()),
				slog.String("module", "session"),
			)
		}

	case sketchroom.Undo:
		change, ok := s.resolver.Undo(connID)
		if ok {
			s.applyUndoChange(ctx, change)
		}

	case sketchroom.Redo:
		change, ok := s.resolver.Redo(connID)
		if ok {
			s.applyUndoChange(ctx, change)
		}

	case sketchroom.SendMessage:
		user, _ := s.presence.Get(connID)
		msg := s.chat.Append(user, ev.Text)
		s.emit(ctx, sketchroom.NewEvent(sketchroom.EventChatMessage, msg))

	case sketchroom.Heartbeat:

	default:
		err = domain.ValidationError{Field: "type", Reason: "unhandled event " + string(in.EventType())}
	}

	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *Session) addStroke(ctx context.Context, connID string, ev sketchroom.AddStroke) error {
	stroke, evicted, err := s.store.Append(connID, ev.ID, ev.Segments)
	if err != nil {
		return errors.Wrap(err, "Session.addStroke")
	}
	if len(evicted) > 0 {
		slog.DebugContext(
			ctx, "stroke log pruned on append",
			slog.Int("evicted", len(evicted)),
			slog.String("module", "session"),
		)
	}
	s.emitExcept(ctx, connID, sketchroom.NewEvent(sketchroom.EventNewStroke, stroke))
	return nil
}

// applyUndoChange broadcasts a visibility flip to everyone, the author
// included, and drops the cached raster since it no longer matches the log.
func (s *Session) applyUndoChange(ctx context.Context, change domain.UndoStateChange) {
	if err := s.snapshots.Invalidate(ctx); err != nil {
		slog.WarnContext(
			ctx, "failed to invalidate snapshot",
			slog.String("error", err.Error()),
			slog.String("module", "session"),
		)
	}
	s.emit(ctx, sketchroom.NewEvent(sketchroom.EventStrokeUndoStateChanged, change))
}

// BroadcastPresence emits the coalesced cursor map to every connection.
func (s *Session) BroadcastPresence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastPresence()
}

func (s *Session) broadcastPresence() {
	s.out.Broadcast(sketchroom.NewEvent(sketchroom.EventUserMouseMove, s.presence.Active()))
}

// CheckSnapshot asks the most recently active connection for a fresh raster
// when the current one is missing or stale. Unanswered requests are simply
// retried on the next check.
func (s *Session) CheckSnapshot(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	need, err := s.snapshots.NeedsRefresh(ctx, s.presence.AnyActive())
	if err != nil {
		slog.WarnContext(
			ctx, "snapshot staleness check failed",
			slog.String("error", err.Error()),
			slog.String("module", "session"),
		)
		return "", false
	}
	if !need {
		return "", false
	}

	target, ok := s.presence.MostRecentlyActive()
	if !ok {
		return "", false
	}
	s.out.Send(target, sketchroom.NewEvent(sketchroom.EventRequestCanvasSnapshot, nil))
	slog.DebugContext(
		ctx, "requested canvas snapshot",
		slog.String("conn", target),
		slog.String("module", "session"),
	)
	return target, true
}

// Prune enforces the history bound outside of appends.
func (s *Session) Prune(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := s.store.Prune()
	if len(evicted) > 0 {
		slog.InfoContext(
			ctx, "stroke log pruned",
			slog.Int("evicted", len(evicted)),
			slog.Int("remaining", s.store.Len()),
			slog.String("module", "session"),
		)
	}
	return len(evicted)
}

// Reset wipes strokes, snapshot and chat in one step and tells every client
// to clear its replica. Connections and presence survive.
func (s *Session) Reset(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Session.Reset")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Reset()
	s.chat.Reset()
	err := s.snapshots.Invalidate(ctx)
	if err != nil {
		span.RecordError(err)
	}

	s.emit(ctx, sketchroom.NewEvent(sketchroom.EventClear, nil))

	slog.InfoContext(
		ctx, "canvas cleared",
		slog.Time("at", s.now()),
		slog.String("module", "session"),
	)
	return err
}

func (s *Session) emit(ctx context.Context, event sketchroom.Event) {
	s.out.Broadcast(event)
	s.publish(ctx, event)
}

func (s *Session) emitExcept(ctx context.Context, connID string, event sketchroom.Event) {
	s.out.BroadcastExcept(connID, event)
	s.publish(ctx, event)
}

func (s *Session) publish(ctx context.Context, event sketchroom.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.WarnContext(
			ctx, "failed to mirror event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
			slog.String("module", "session"),
		)
	}
}

// History returns the current stroke log.
func (s *Session) History() []domain.Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Replay()
}

func (s *Session) Snapshot(ctx context.Context) (domain.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots.Current(ctx)
}

func (s *Session) Presence() utils.OrderedKVMap[domain.PresenceEntry] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence.Active()
}

func (s *Session) User(connID string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence.Get(connID)
}

// SyncState is the server's view of a connection's bootstrap: awaiting until
// its first inbound event, synced afterwards. Unknown ids report Connected.
func (s *Session) SyncState(connID string) domain.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncStates[connID]
}

type SessionStats struct {
	Connections int `json:"connections"`
	Strokes     int `json:"strokes"`
}

func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStats{
		Connections: s.presence.Count(),
		Strokes:     s.store.Len(),
	}
}

// UndoWindow exposes the author's undoable stroke ids, mainly for tests and
// diagnostics.
func (s *Session) UndoWindow(connID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.AuthorWindow(connID)
}
