package sketchroom

import (
	"encoding/json"

	"github.com/totegamma/sketchroom/internal/domain"
)

type EventType string

// inbound
const (
	EventSetUsername    EventType = "setUsername"
	EventMouseMove      EventType = "mouseMove"
	EventStartDrawing   EventType = "startDrawing"
	EventDraw           EventType = "draw"
	EventAddStroke      EventType = "addStroke"
	EventStopDrawing    EventType = "stopDrawing"
	EventCanvasSnapshot EventType = "canvasSnapshot"
	EventUndo           EventType = "undo"
	EventRedo           EventType = "redo"
	EventSendMessage    EventType = "sendMessage"
	EventHeartbeat      EventType = "h"
)

// outbound
const (
	EventWelcome                EventType = "welcome"
	EventInitialHistory         EventType = "initialHistory"
	EventCanvasState            EventType = "canvasState"
	EventChatHistory            EventType = "chatHistory"
	EventNewStroke              EventType = "newStroke"
	EventStrokeUndoStateChanged EventType = "strokeUndoStateChanged"
	EventUserMouseMove          EventType = "userMouseMove"
	EventRequestCanvasSnapshot  EventType = "requestCanvasSnapshot"
	EventClear                  EventType = "clear"
	EventChatMessage            EventType = "chatMessage"
)

// Frame is the wire envelope of every websocket message.
type Frame struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound message before encoding.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

func NewEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data}
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

type Welcome struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Inbound is a decoded and validated client event.
type Inbound interface {
	EventType() EventType
}

type SetUsername struct {
	Username string
}

type MouseMove struct {
	X, Y float64
}

type StartDrawing struct {
	X, Y float64
}

type Draw struct {
	Segment domain.Segment
}

type AddStroke struct {
	ID       string
	Segments []domain.Segment
}

type StopDrawing struct{}

type CanvasSnapshot struct {
	DataURL string
}

type Undo struct{}

type Redo struct{}

type SendMessage struct {
	Text string
}

type Heartbeat struct{}

func (SetUsername) EventType() EventType    { return EventSetUsername }
func (MouseMove) EventType() EventType      { return EventMouseMove }
func (StartDrawing) EventType() EventType   { return EventStartDrawing }
func (Draw) EventType() EventType           { return EventDraw }
func (AddStroke) EventType() EventType      { return EventAddStroke }
func (StopDrawing) EventType() EventType    { return EventStopDrawing }
func (CanvasSnapshot) EventType() EventType { return EventCanvasSnapshot }
func (Undo) EventType() EventType           { return EventUndo }
func (Redo) EventType() EventType           { return EventRedo }
func (SendMessage) EventType() EventType    { return EventSendMessage }
func (Heartbeat) EventType() EventType      { return EventHeartbeat }
