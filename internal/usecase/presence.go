package usecase

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/totegamma/sketchroom"
	"github.com/totegamma/sketchroom/internal/domain"
	"github.com/totegamma/sketchroom/internal/utils"
)

// PresenceTracker owns the ephemeral per-connection cursor state.
type PresenceTracker struct {
	users           map[string]*domain.User
	joinOrder       map[string]int64
	nextOrder       int64
	inactivityLimit time.Duration
	now             func() time.Time
}

func NewPresenceTracker(inactivityLimit time.Duration, now func() time.Time) *PresenceTracker {
	if inactivityLimit <= 0 {
		inactivityLimit = domain.DefaultInactivityLimit
	}
	if now == nil {
		now = time.Now
	}
	return &PresenceTracker{
		users:           make(map[string]*domain.User),
		joinOrder:       make(map[string]int64),
		inactivityLimit: inactivityLimit,
		now:             now,
	}
}

func DefaultUsername() string {
	return domain.DefaultUsernamePrefix + strings.ToUpper(uuid.NewString()[:4])
}

// Join registers a connection with a random default name and no position yet.
func (p *PresenceTracker) Join(connID string) domain.User {
	now := p.now()
	u := &domain.User{
		ID:           connID,
		Username:     DefaultUsername(),
		LastActiveAt: now,
		JoinedAt:     now,
	}
	p.users[connID] = u
	p.joinOrder[connID] = p.nextOrder
	p.nextOrder++
	return *u
}

func (p *PresenceTracker) Leave(connID string) bool {
	if _, ok := p.users[connID]; !ok {
		return false
	}
	delete(p.users, connID)
	delete(p.joinOrder, connID)
	return true
}

func (p *PresenceTracker) Get(connID string) (domain.User, bool) {
	u, ok := p.users[connID]
	if !ok {
		return domain.User{}, false
	}
	return *u, true
}

func (p *PresenceTracker) Count() int {
	return len(p.users)
}

// SetUsername renames a connection. The name is trimmed and length checked
// again here so callers outside the wire decoder get the same rules.
func (p *PresenceTracker) SetUsername(connID, name string) error {
	u, ok := p.users[connID]
	if !ok {
		return domain.ErrUnknownUser
	}
	name, err := sketchroom.NormalizeUsername(name)
	if err != nil {
		return err
	}
	for _, reserved := range domain.ReservedUsernames {
		if strings.EqualFold(name, reserved) {
			return domain.ErrReservedName
		}
	}
	u.Username = name
	u.LastActiveAt = p.now()
	return nil
}

// UpdatePosition moves the cursor, clamping to the unit square.
func (p *PresenceTracker) UpdatePosition(connID string, x, y float64) error {
	u, ok := p.users[connID]
	if !ok {
		return domain.ErrUnknownUser
	}
	u.X = sketchroom.Clamp01(x)
	u.Y = sketchroom.Clamp01(y)
	u.LastActiveAt = p.now()
	u.HasMoved = true
	return nil
}

func (p *PresenceTracker) SetDrawing(connID string, drawing bool) error {
	u, ok := p.users[connID]
	if !ok {
		return domain.ErrUnknownUser
	}
	u.Drawing = drawing
	u.LastActiveAt = p.now()
	return nil
}

func (p *PresenceTracker) isActive(u *domain.User, now time.Time) bool {
	return u.HasMoved && now.Sub(u.LastActiveAt) <= p.inactivityLimit
}

// Active returns the broadcast-worthy connections, keyed by id in join order.
// Recipients filter out their own id.
func (p *PresenceTracker) Active() utils.OrderedKVMap[domain.PresenceEntry] {
	now := p.now()
	out := make(utils.OrderedKVMap[domain.PresenceEntry])
	for id, u := range p.users {
		if p.isActive(u, now) {
			out.Set(id, u.Presence(), p.joinOrder[id])
		}
	}
	return out
}

func (p *PresenceTracker) AnyActive() bool {
	now := p.now()
	for _, u := range p.users {
		if p.isActive(u, now) {
			return true
		}
	}
	return false
}

// MostRecentlyActive picks the active connection with the latest activity,
// the one most likely to hold a caught-up canvas.
func (p *PresenceTracker) MostRecentlyActive() (string, bool) {
	now := p.now()
	var (
		bestID   string
		bestTime time.Time
		found    bool
	)
	for id, u := range p.users {
		if !p.isActive(u, now) {
			continue
		}
		if !found || u.LastActiveAt.After(bestTime) || (u.LastActiveAt.Equal(bestTime) && id < bestID) {
			bestID, bestTime, found = id, u.LastActiveAt, true
		}
	}
	return bestID, found
}
