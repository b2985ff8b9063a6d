package usecase

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/sketchroom/internal/domain"
)

// StrokeStore is the authoritative ordered stroke log. Append order is arrival
// order at the server. It is not safe for concurrent use; Session serializes it.
type StrokeStore struct {
	maxHistory int
	undoWindow int

	log     []domain.Stroke
	headSeq int64            // sequence number of log[0]
	seqByID map[string]int64 // stroke id -> sequence number

	// byAuthor holds each author's most recent stroke ids, oldest first,
	// bounded to undoWindow. Active strokes always precede undone ones.
	byAuthor map[string][]string

	// evicted remembers pruned ids so a replayed addStroke cannot resurrect them.
	evicted *cache.Cache

	lastMutationAt time.Time
	now            func() time.Time
}

func NewStrokeStore(maxHistory, undoWindow int, evictedRetention time.Duration, now func() time.Time) *StrokeStore {
	if maxHistory <= 0 {
		maxHistory = domain.DefaultMaxHistory
	}
	if undoWindow <= 0 {
		undoWindow = domain.DefaultUndoWindow
	}
	if evictedRetention <= 0 {
		evictedRetention = domain.DefaultEvictedIDRetention
	}
	if now == nil {
		now = time.Now
	}
	return &StrokeStore{
		maxHistory: maxHistory,
		undoWindow: undoWindow,
		seqByID:    make(map[string]int64),
		byAuthor:   make(map[string][]string),
		evicted:    cache.New(evictedRetention, evictedRetention*2),
		now:        now,
	}
}

// Append stores a new stroke authored by authorID and prunes the log down to
// the retention bound. It returns the stored stroke and any strokes evicted.
func (s *StrokeStore) Append(authorID, id string, segments []domain.Segment) (domain.Stroke, []domain.Stroke, error) {
	if id == "" {
		return domain.Stroke{}, nil, domain.ValidationError{Field: "id", Reason: "empty"}
	}
	if len(segments) == 0 {
		return domain.Stroke{}, nil, domain.ValidationError{Field: "segments", Reason: "empty"}
	}
	if _, exists := s.seqByID[id]; exists {
		return domain.Stroke{}, nil, domain.ErrDuplicateStroke
	}
	if _, wasEvicted := s.evicted.Get(id); wasEvicted {
		return domain.Stroke{}, nil, domain.ErrDuplicateStroke
	}

	stroke := domain.Stroke{
		ID:       id,
		AuthorID: authorID,
		Segments: segments,
	}.Clone()

	s.seqByID[id] = s.headSeq + int64(len(s.log))
	s.log = append(s.log, stroke)

	// A fresh stroke ends the author's redo branch: the undone strokes stay in
	// the log (still undone) but leave the undo window.
	window := s.byAuthor[authorID][:0:0]
	for _, sid := range s.byAuthor[authorID] {
		if st, ok := s.get(sid); ok && !st.Undone {
			window = append(window, sid)
		}
	}
	window = append(window, id)
	if len(window) > s.undoWindow {
		window = window[len(window)-s.undoWindow:]
	}
	s.byAuthor[authorID] = window

	s.lastMutationAt = s.now()

	return stroke.Clone(), s.Prune(), nil
}

// Prune evicts strokes from the head until the log fits maxHistory.
// Eviction is final: evicted strokes can never be undone or redone.
func (s *StrokeStore) Prune() []domain.Stroke {
	excess := len(s.log) - s.maxHistory
	if excess <= 0 {
		return nil
	}

	evicted := make([]domain.Stroke, excess)
	copy(evicted, s.log[:excess])

	touched := make(map[string]struct{})
	for _, st := range evicted {
		delete(s.seqByID, st.ID)
		s.evicted.SetDefault(st.ID, struct{}{})
		touched[st.AuthorID] = struct{}{}
	}

	s.log = append([]domain.Stroke(nil), s.log[excess:]...)
	s.headSeq += int64(excess)

	for author := range touched {
		window := s.byAuthor[author][:0:0]
		for _, sid := range s.byAuthor[author] {
			if _, ok := s.seqByID[sid]; ok {
				window = append(window, sid)
			}
		}
		if len(window) == 0 {
			delete(s.byAuthor, author)
		} else {
			s.byAuthor[author] = window
		}
	}

	return evicted
}

// SetUndone flips a stroke's visibility. changed is false when the flag
// already had the requested value.
func (s *StrokeStore) SetUndone(id string, undone bool) (stroke domain.Stroke, changed bool, err error) {
	seq, ok := s.seqByID[id]
	if !ok {
		return domain.Stroke{}, false, domain.NotFoundError{Resource: "stroke " + id}
	}
	idx := int(seq - s.headSeq)
	if s.log[idx].Undone == undone {
		return s.log[idx].Clone(), false, nil
	}
	s.log[idx].Undone = undone
	s.lastMutationAt = s.now()
	return s.log[idx].Clone(), true, nil
}

func (s *StrokeStore) Get(id string) (domain.Stroke, bool) {
	st, ok := s.get(id)
	if !ok {
		return domain.Stroke{}, false
	}
	return st.Clone(), true
}

func (s *StrokeStore) get(id string) (domain.Stroke, bool) {
	seq, ok := s.seqByID[id]
	if !ok {
		return domain.Stroke{}, false
	}
	return s.log[seq-s.headSeq], true
}

// Replay returns the whole retained log, oldest first, with undone flags.
// A client that renders it skipping undone strokes reproduces the canvas.
func (s *StrokeStore) Replay() []domain.Stroke {
	out := make([]domain.Stroke, len(s.log))
	for i, st := range s.log {
		out[i] = st.Clone()
	}
	return out
}

// AuthorWindow returns the author's undoable stroke ids, oldest first.
func (s *StrokeStore) AuthorWindow(authorID string) []string {
	window := s.byAuthor[authorID]
	out := make([]string, len(window))
	copy(out, window)
	return out
}

func (s *StrokeStore) Len() int {
	return len(s.log)
}

// LastMutationAt is the time of the latest append or visibility flip.
func (s *StrokeStore) LastMutationAt() time.Time {
	return s.lastMutationAt
}

func (s *StrokeStore) Reset() {
	s.log = nil
	s.headSeq = 0
	s.seqByID = make(map[string]int64)
	s.byAuthor = make(map[string][]string)
	s.evicted.Flush()
	s.lastMutationAt = s.now()
}
