package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/totegamma/sketchroom/internal/domain"
)

func newTestStore(max int) (*StrokeStore, *fakeClock) {
	clock := newFakeClock()
	return NewStrokeStore(max, 100, time.Hour, clock.Now), clock
}

func TestStrokeStoreAppend(t *testing.T) {
	store, clock := newTestStore(10)

	stroke, evicted, err := store.Append("alice", "s1", seg())
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if stroke.AuthorID != "alice" || stroke.Undone || stroke.ID != "s1" {
		t.Fatalf("unexpected stroke %+v", stroke)
	}
	if len(evicted) != 0 {
		t.Fatalf("unexpected eviction %v", evicted)
	}
	if store.Len() != 1 {
		t.Fatalf("expected len 1 got %d", store.Len())
	}
	if !store.LastMutationAt().Equal(clock.Now()) {
		t.Fatalf("last mutation not recorded")
	}
}

func TestStrokeStoreRejectsMalformed(t *testing.T) {
	store, _ := newTestStore(10)

	if _, _, err := store.Append("alice", "", seg()); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected validation error for empty id, got %v", err)
	}
	if _, _, err := store.Append("alice", "s1", nil); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected validation error for empty segments, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("malformed strokes must not be stored")
	}
}

func TestStrokeStoreRejectsDuplicateID(t *testing.T) {
	store, _ := newTestStore(10)

	if _, _, err := store.Append("alice", "s1", seg()); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	_, _, err := store.Append("bob", "s1", seg())
	if !errors.Is(err, domain.ErrDuplicateStroke) {
		t.Fatalf("expected duplicate error got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("duplicate must not be appended, len %d", store.Len())
	}
	if w := store.AuthorWindow("bob"); len(w) != 0 {
		t.Fatalf("duplicate must not become an undo target, window %v", w)
	}
	if got, _ := store.Get("s1"); got.AuthorID != "alice" {
		t.Fatalf("original author overwritten: %+v", got)
	}
}

func TestStrokeStorePruneBound(t *testing.T) {
	store, _ := newTestStore(5)

	total := 0
	for i := 0; i < 8; i++ {
		_, evicted, err := store.Append("alice", strokeID(i), seg())
		if err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
		total += len(evicted)
		if store.Len() > 5 {
			t.Fatalf("log exceeded cap: %d", store.Len())
		}
	}
	if total != 3 {
		t.Fatalf("expected 3 evictions got %d", total)
	}

	replay := store.Replay()
	if replay[0].ID != "s3" || replay[4].ID != "s7" {
		t.Fatalf("unexpected retained range %s..%s", replay[0].ID, replay[4].ID)
	}
	if _, ok := store.Get("s0"); ok {
		t.Fatalf("evicted stroke still reachable")
	}
	if _, _, err := store.SetUndone("s0", true); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for evicted stroke got %v", err)
	}
	for _, id := range store.AuthorWindow("alice") {
		if id == "s0" || id == "s1" || id == "s2" {
			t.Fatalf("evicted id %s left in author window", id)
		}
	}
}

func TestStrokeStoreRejectsReplayOfEvictedID(t *testing.T) {
	store, _ := newTestStore(1)

	store.Append("alice", "s1", seg())
	store.Append("alice", "s2", seg())
	if _, ok := store.Get("s1"); ok {
		t.Fatalf("s1 should be evicted")
	}

	if _, _, err := store.Append("alice", "s1", seg()); !errors.Is(err, domain.ErrDuplicateStroke) {
		t.Fatalf("expected evicted id to be rejected, got %v", err)
	}
}

func TestStrokeStoreSetUndone(t *testing.T) {
	store, _ := newTestStore(10)
	store.Append("alice", "s1", seg())

	st, changed, err := store.SetUndone("s1", true)
	if err != nil || !changed || !st.Undone {
		t.Fatalf("unexpected result %+v %v %v", st, changed, err)
	}
	_, changed, err = store.SetUndone("s1", true)
	if err != nil || changed {
		t.Fatalf("second flip to same value must be a no-op, changed=%v err=%v", changed, err)
	}
	if _, _, err := store.SetUndone("missing", true); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestStrokeStoreReplayIsACopy(t *testing.T) {
	store, _ := newTestStore(10)
	store.Append("alice", "s1", seg())

	replay := store.Replay()
	replay[0].Undone = true
	replay[0].Segments[0].Color = "#ffffff"

	got, _ := store.Get("s1")
	if got.Undone || got.Segments[0].Color != "#000000" {
		t.Fatalf("replay aliased the log: %+v", got)
	}
}

func TestStrokeStoreReset(t *testing.T) {
	store, _ := newTestStore(1)
	store.Append("alice", "s1", seg())
	store.Append("alice", "s2", seg())

	store.Reset()
	if store.Len() != 0 || len(store.AuthorWindow("alice")) != 0 {
		t.Fatalf("reset left state behind")
	}
	if _, _, err := store.Append("alice", "s1", seg()); err != nil {
		t.Fatalf("ids must be reusable after reset: %v", err)
	}
}
