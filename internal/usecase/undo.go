package usecase

import (
	"github.com/totegamma/sketchroom/internal/domain"
)

// Resolver implements per-author undo/redo over the shared log. A user only
// ever toggles their own strokes, regardless of what others drew in between.
//
// Each author's window (see StrokeStore.AuthorWindow) is an active prefix
// followed by an undone suffix. Undo flips the last active stroke, redo flips
// the first undone one, so both move the same boundary and behave as a stack.
// Users cannot undo further back than their last UndoWindow strokes.
type Resolver struct {
	store *StrokeStore
}

func NewResolver(store *StrokeStore) *Resolver {
	return &Resolver{store: store}
}

// Undo hides the user's most recent visible stroke. ok is false when there is
// nothing to undo.
func (r *Resolver) Undo(userID string) (change domain.UndoStateChange, ok bool) {
	window := r.store.byAuthor[userID]
	for i := len(window) - 1; i >= 0; i-- {
		st, found := r.store.get(window[i])
		if !found || st.Undone {
			continue
		}
		return r.flip(st.ID, true)
	}
	return domain.UndoStateChange{}, false
}

// Redo restores the stroke this user undid most recently. ok is false when
// there is nothing to redo.
func (r *Resolver) Redo(userID string) (change domain.UndoStateChange, ok bool) {
	window := r.store.byAuthor[userID]
	target := ""
	for i := len(window) - 1; i >= 0; i-- {
		st, found := r.store.get(window[i])
		if !found {
			continue
		}
		if !st.Undone {
			break
		}
		target = st.ID
	}
	if target == "" {
		return domain.UndoStateChange{}, false
	}
	return r.flip(target, false)
}

func (r *Resolver) flip(id string, undone bool) (domain.UndoStateChange, bool) {
	st, changed, err := r.store.SetUndone(id, undone)
	if err != nil || !changed {
		return domain.UndoStateChange{}, false
	}
	return domain.UndoStateChange{StrokeID: st.ID, Undone: st.Undone}, true
}
