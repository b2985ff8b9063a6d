package usecase

import (
	"testing"
	"time"
)

func activeOf(store *StrokeStore, author string) []string {
	var out []string
	for _, st := range store.Replay() {
		if st.AuthorID == author && !st.Undone {
			out = append(out, st.ID)
		}
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestResolverUndoRedoLIFO(t *testing.T) {
	store, _ := newTestStore(100)
	r := NewResolver(store)

	store.Append("alice", "s1", seg())
	store.Append("alice", "s2", seg())
	store.Append("alice", "s3", seg())

	steps := [][]string{
		{"s1", "s2"},
		{"s1"},
		nil,
	}
	for i, want := range steps {
		if _, ok := r.Undo("alice"); !ok {
			t.Fatalf("undo %d found no target", i)
		}
		if got := activeOf(store, "alice"); !equalIDs(got, want) {
			t.Fatalf("after undo %d expected %v got %v", i, want, got)
		}
	}

	if _, ok := r.Undo("alice"); ok {
		t.Fatalf("undo with nothing left must be a no-op")
	}

	change, ok := r.Redo("alice")
	if !ok || change.StrokeID != "s1" || change.Undone {
		t.Fatalf("redo should restore s1, got %+v ok=%v", change, ok)
	}
	if got := activeOf(store, "alice"); !equalIDs(got, []string{"s1"}) {
		t.Fatalf("expected only s1 active got %v", got)
	}

	r.Redo("alice")
	r.Redo("alice")
	if _, ok := r.Redo("alice"); ok {
		t.Fatalf("redo with nothing left must be a no-op")
	}
	if got := activeOf(store, "alice"); !equalIDs(got, []string{"s1", "s2", "s3"}) {
		t.Fatalf("expected all active got %v", got)
	}
}

func TestResolverIsolatesAuthors(t *testing.T) {
	interleavings := [][]string{
		{"alice", "bob", "alice", "bob"},
		{"alice", "alice", "bob", "bob"},
		{"bob", "alice", "alice", "bob"},
		{"bob", "bob", "bob", "alice"},
	}

	for n, order := range interleavings {
		store, _ := newTestStore(100)
		r := NewResolver(store)
		for i, author := range order {
			store.Append(author, strokeID(i), seg())
		}
		bobBefore := activeOf(store, "bob")

		for i := 0; i < len(order)+1; i++ {
			change, ok := r.Undo("alice")
			if !ok {
				break
			}
			st, _ := store.Get(change.StrokeID)
			if st.AuthorID != "alice" {
				t.Fatalf("interleaving %d: alice undid %s by %s", n, st.ID, st.AuthorID)
			}
		}
		if got := activeOf(store, "bob"); !equalIDs(got, bobBefore) {
			t.Fatalf("interleaving %d: bob's strokes changed %v -> %v", n, bobBefore, got)
		}
		if got := activeOf(store, "alice"); len(got) != 0 {
			t.Fatalf("interleaving %d: alice still has active %v", n, got)
		}

		for i := 0; i < len(order)+1; i++ {
			change, ok := r.Redo("bob")
			if ok {
				t.Fatalf("interleaving %d: bob redid %s without undoing", n, change.StrokeID)
			}
		}
	}
}

func TestResolverUnknownUser(t *testing.T) {
	store, _ := newTestStore(10)
	r := NewResolver(store)
	store.Append("alice", "s1", seg())

	if _, ok := r.Undo("mallory"); ok {
		t.Fatalf("user without strokes must not undo")
	}
	if _, ok := r.Redo("mallory"); ok {
		t.Fatalf("user without strokes must not redo")
	}
}

func TestResolverNewStrokeEndsRedoBranch(t *testing.T) {
	store, _ := newTestStore(100)
	r := NewResolver(store)

	store.Append("alice", "s1", seg())
	store.Append("alice", "s2", seg())
	r.Undo("alice") // s2 undone
	store.Append("alice", "s3", seg())

	if _, ok := r.Redo("alice"); ok {
		t.Fatalf("redo must not resurrect s2 after a new stroke")
	}
	change, ok := r.Undo("alice")
	if !ok || change.StrokeID != "s3" {
		t.Fatalf("expected undo of s3 got %+v", change)
	}
	change, ok = r.Undo("alice")
	if !ok || change.StrokeID != "s1" {
		t.Fatalf("expected undo of s1 got %+v", change)
	}
	if st, _ := store.Get("s2"); !st.Undone {
		t.Fatalf("s2 must stay undone in the log")
	}
}

func TestResolverWindowBound(t *testing.T) {
	clock := newFakeClock()
	store := NewStrokeStore(100, 3, time.Hour, clock.Now)
	r := NewResolver(store)

	for i := 1; i <= 5; i++ {
		store.Append("alice", strokeID(i), seg())
	}
	undone := 0
	for {
		if _, ok := r.Undo("alice"); !ok {
			break
		}
		undone++
	}
	if undone != 3 {
		t.Fatalf("expected undo to reach back 3 strokes, got %d", undone)
	}
	if got := activeOf(store, "alice"); !equalIDs(got, []string{"s1", "s2"}) {
		t.Fatalf("strokes outside the window must stay active, got %v", got)
	}
}

func TestResolverPrunedStrokesUnreachable(t *testing.T) {
	store, _ := newTestStore(500)
	r := NewResolver(store)

	for i := 0; i < 100; i++ {
		store.Append("alice", strokeID(i), seg())
	}
	for i := 100; i < 600; i++ {
		store.Append("bob", strokeID(i), seg())
	}
	if store.Len() != 500 {
		t.Fatalf("expected log to stabilize at 500 got %d", store.Len())
	}
	if _, ok := r.Undo("alice"); ok {
		t.Fatalf("alice's strokes were all evicted, undo must find nothing")
	}
}
