package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/sketchroom"
	"github.com/totegamma/sketchroom/internal/domain"
)

type published struct {
	channel string
	message any
}

type fakePubSub struct {
	published []published
	err       error
}

func (f *fakePubSub) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.published = append(f.published, published{channel: channel, message: message})
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func (f *fakePubSub) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return nil
}

type fakeCanvas struct {
	resets int
	err    error
}

func (f *fakeCanvas) Reset(ctx context.Context) error {
	f.resets++
	return f.err
}

func TestSignalChannels(t *testing.T) {
	s := newSignalService(&fakePubSub{}, "lobby")
	assert.Equal(t, "sketchroom:lobby:events", s.EventsChannel())
	assert.Equal(t, "sketchroom:lobby:control", s.ControlChannel())
}

func TestPublishWritesEventFrame(t *testing.T) {
	rdb := &fakePubSub{}
	s := newSignalService(rdb, "main")

	event := sketchroom.NewEvent(sketchroom.EventStrokeUndoStateChanged, domain.UndoStateChange{StrokeID: "s1", Undone: true})
	require.NoError(t, s.Publish(context.Background(), event))

	require.Len(t, rdb.published, 1)
	assert.Equal(t, "sketchroom:main:events", rdb.published[0].channel)

	raw, ok := rdb.published[0].message.([]byte)
	require.True(t, ok, "message should be the encoded frame")
	assert.JSONEq(t, `{"type":"strokeUndoStateChanged","data":{"strokeId":"s1","undone":true}}`, string(raw))

	var frame sketchroom.Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, sketchroom.EventStrokeUndoStateChanged, frame.Type)
}

func TestPublishWrapsRedisError(t *testing.T) {
	rdb := &fakePubSub{err: errors.New("connection refused")}
	s := newSignalService(rdb, "main")

	err := s.Publish(context.Background(), sketchroom.NewEvent(sketchroom.EventClear, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestListenFailsWhenRedisUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := NewSignalService(rdb, "main").Listen(ctx, ControlHandler(&fakeCanvas{}))
	assert.Error(t, err)
}

func TestControlHandlerClear(t *testing.T) {
	canvas := &fakeCanvas{}
	handle := ControlHandler(canvas)

	handle(context.Background(), ControlClear)
	assert.Equal(t, 1, canvas.resets)
}

func TestControlHandlerIgnoresUnknown(t *testing.T) {
	canvas := &fakeCanvas{}
	handle := ControlHandler(canvas)

	handle(context.Background(), "explode")
	handle(context.Background(), "")
	handle(context.Background(), "CLEAR")
	assert.Zero(t, canvas.resets)
}

func TestControlHandlerSurvivesResetError(t *testing.T) {
	canvas := &fakeCanvas{err: errors.New("repo down")}
	handle := ControlHandler(canvas)

	assert.NotPanics(t, func() {
		handle(context.Background(), ControlClear)
	})
	assert.Equal(t, 1, canvas.resets)
}
