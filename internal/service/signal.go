package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/sketchroom"
)

const (
	ControlClear = "clear"
)

// pubSub is the slice of *redis.Client the service uses.
type pubSub interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// SignalService mirrors document events to redis and listens for operator
// commands on a control channel.
type SignalService struct {
	rdb     pubSub
	events  string
	control string
}

func NewSignalService(redisClient *redis.Client, canvas string) *SignalService {
	return newSignalService(redisClient, canvas)
}

func newSignalService(redisClient pubSub, canvas string) *SignalService {
	return &SignalService{
		rdb:     redisClient,
		events:  "sketchroom:" + canvas + ":events",
		control: "sketchroom:" + canvas + ":control",
	}
}

func (s *SignalService) EventsChannel() string  { return s.events }
func (s *SignalService) ControlChannel() string { return s.control }

func (s *SignalService) Publish(ctx context.Context, event sketchroom.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "SignalService.Publish: marshal failed")
	}

	err = s.rdb.Publish(ctx, s.events, jsonstr).Err()
	if err != nil {
		return errors.Wrap(err, "SignalService.Publish: publish failed")

	}

	return nil
}

// Listen blocks until ctx is done, calling handle for every control message.
func (s *SignalService) Listen(ctx context.Context, handle func(ctx context.Context, command string)) error {
	pubsub := s.rdb.Subscribe(ctx, s.control)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return errors.Wrap(err, "SignalService.Listen: subscribe failed")
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			command := strings.TrimSpace(msg.Payload)
			slog.InfoContext(
				ctx, "control command received",
				slog.String("command", command),
				slog.String("module", "signal"),
			)
			handle(ctx, command)
		}
	}
}

// Resetter is the operation the control channel can trigger.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ControlHandler dispatches control channel commands onto the canvas.
// Unknown commands are logged and ignored.
func ControlHandler(canvas Resetter) func(ctx context.Context, command string) {
	return func(ctx context.Context, command string) {
		switch command {
		case ControlClear:
			if err := canvas.Reset(ctx); err != nil {
				slog.ErrorContext(
					ctx, "control reset failed",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
			}
		default:
			slog.WarnContext(
				ctx, "unknown control command",
				slog.String("command", command),
				slog.String("module", "signal"),
			)
		}
	}
}
