package sketchroom

import (
	"encoding/json"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/totegamma/sketchroom/internal/domain"
)

// Limits bounds the payloads accepted by Decode.
type Limits struct {
	MaxSegments      int
	MaxSnapshotBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxSegments:      domain.DefaultMaxSegments,
		MaxSnapshotBytes: domain.DefaultMaxSnapshotBytes,
	}
}

var snapshotMIMEPrefixes = []string{
	"data:image/png",
	"data:image/jpeg",
	"data:image/webp",
	"data:image/gif",
}

type pointPayload struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type segmentPayload struct {
	X0    *float64 `json:"x0"`
	Y0    *float64 `json:"y0"`
	X1    *float64 `json:"x1"`
	Y1    *float64 `json:"y1"`
	Color *string  `json:"color"`
	Size  *float64 `json:"size"`
}

type strokePayload struct {
	ID       *string          `json:"id"`
	Segments []segmentPayload `json:"segments"`
}

type messagePayload struct {
	Text *string `json:"text"`
}

// Decode parses one websocket frame into a validated Inbound event.
// Any error means the frame is malformed and must be dropped.
func Decode(raw []byte, limits Limits) (Inbound, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, errors.Wrap(domain.ValidationError{Field: "frame", Reason: "not a JSON object"}, err.Error())
	}

	switch frame.Type {
	case EventSetUsername:
		var name string
		if err := unmarshalData(frame, &name); err != nil {
			return nil, err
		}
		name, err := NormalizeUsername(name)
		if err != nil {
			return nil, err
		}
		return SetUsername{Username: name}, nil

	case EventMouseMove, EventStartDrawing:
		var p pointPayload
		if err := unmarshalData(frame, &p); err != nil {
			return nil, err
		}
		if p.X == nil || p.Y == nil {
			return nil, domain.ValidationError{Field: "position", Reason: "x and y are required"}
		}
		if !finite(*p.X) || !finite(*p.Y) {
			return nil, domain.ValidationError{Field: "position", Reason: "not a finite number"}
		}
		x, y := Clamp01(*p.X), Clamp01(*p.Y)
		if frame.Type == EventMouseMove {
			return MouseMove{X: x, Y: y}, nil
		}
		return StartDrawing{X: x, Y: y}, nil

	case EventDraw:
		var p segmentPayload
		if err := unmarshalData(frame, &p); err != nil {
			return nil, err
		}
		seg, err := p.segment()
		if err != nil {
			return nil, err
		}
		return Draw{Segment: seg}, nil

	case EventAddStroke:
		var p strokePayload
		if err := unmarshalData(frame, &p); err != nil {
			return nil, err
		}
		if p.ID == nil {
			return nil, domain.ValidationError{Field: "id", Reason: "missing"}
		}
		if err := ValidateStrokeID(*p.ID); err != nil {
			return nil, err
		}
		if len(p.Segments) == 0 {
			return nil, domain.ValidationError{Field: "segments", Reason: "empty"}
		}
		if limits.MaxSegments > 0 && len(p.Segments) > limits.MaxSegments {
			return nil, domain.ValidationError{Field: "segments", Reason: "too many segments"}
		}
		segments := make([]domain.Segment, 0, len(p.Segments))
		for _, sp := range p.Segments {
			seg, err := sp.segment()
			if err != nil {
				return nil, err
			}
			segments = append(segments, seg)
		}
		return AddStroke{ID: *p.ID, Segments: segments}, nil

	case EventStopDrawing:
		return StopDrawing{}, nil

	// older clients push their raster as canvasState; stored, never relayed
	case EventCanvasSnapshot, EventCanvasState:
		var dataURL string
		if err := unmarshalData(frame, &dataURL); err != nil {
			return nil, err
		}
		if limits.MaxSnapshotBytes > 0 && len(dataURL) > limits.MaxSnapshotBytes {
			return nil, domain.ValidationError{Field: "snapshot", Reason: "too large"}
		}
		if !IsImageDataURL(dataURL) {
			return nil, domain.ValidationError{Field: "snapshot", Reason: "not an image data URL"}
		}
		return CanvasSnapshot{DataURL: dataURL}, nil

	case EventUndo:
		return Undo{}, nil

	case EventRedo:
		return Redo{}, nil

	case EventSendMessage:
		var p messagePayload
		if err := unmarshalData(frame, &p); err != nil {
			return nil, err
		}
		if p.Text == nil {
			return nil, domain.ValidationError{Field: "text", Reason: "missing"}
		}
		text := strings.TrimSpace(*p.Text)
		if text == "" {
			return nil, domain.ValidationError{Field: "text", Reason: "empty"}
		}
		if utf8.RuneCountInString(text) > domain.MaxChatLength {
			return nil, domain.ValidationError{Field: "text", Reason: "too long"}
		}
		return SendMessage{Text: text}, nil

	case EventHeartbeat:
		return Heartbeat{}, nil

	default:
		return nil, domain.ValidationError{Field: "type", Reason: "unknown event " + string(frame.Type)}
	}
}

func unmarshalData(frame Frame, v any) error {
	if len(frame.Data) == 0 {
		return domain.ValidationError{Field: string(frame.Type), Reason: "missing data"}
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		return errors.Wrap(domain.ValidationError{Field: string(frame.Type), Reason: "wrong shape"}, err.Error())
	}
	return nil
}

func (p segmentPayload) segment() (domain.Segment, error) {
	if p.X0 == nil || p.Y0 == nil || p.X1 == nil || p.Y1 == nil || p.Color == nil || p.Size == nil {
		return domain.Segment{}, domain.ValidationError{Field: "segment", Reason: "missing field"}
	}
	for _, v := range []float64{*p.X0, *p.Y0, *p.X1, *p.Y1, *p.Size} {
		if !finite(v) {
			return domain.Segment{}, domain.ValidationError{Field: "segment", Reason: "not a finite number"}
		}
	}
	if *p.Color == "" || len(*p.Color) > domain.MaxColorLength {
		return domain.Segment{}, domain.ValidationError{Field: "color", Reason: "bad length"}
	}
	if *p.Size <= 0 || *p.Size > domain.MaxSegmentSize {
		return domain.Segment{}, domain.ValidationError{Field: "size", Reason: "out of range"}
	}
	return domain.Segment{
		X0:    Clamp01(*p.X0),
		Y0:    Clamp01(*p.Y0),
		X1:    Clamp01(*p.X1),
		Y1:    Clamp01(*p.Y1),
		Color: *p.Color,
		Size:  *p.Size,
	}, nil
}

// NormalizeUsername trims the name and enforces the length cap.
// Reserved names are checked by presence, not here.
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.ValidationError{Field: "username", Reason: "empty"}
	}
	if utf8.RuneCountInString(name) > domain.MaxUsernameLength {
		return "", domain.ValidationError{Field: "username", Reason: "too long"}
	}
	return name, nil
}

func ValidateStrokeID(id string) error {
	if id == "" {
		return domain.ValidationError{Field: "id", Reason: "empty"}
	}
	if len(id) > domain.MaxStrokeIDLength {
		return domain.ValidationError{Field: "id", Reason: "too long"}
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return domain.ValidationError{Field: "id", Reason: "contains whitespace or control characters"}
		}
	}
	return nil
}

func IsImageDataURL(s string) bool {
	for _, prefix := range snapshotMIMEPrefixes {
		if !strings.HasPrefix(s, prefix) || len(s) == len(prefix) {
			continue
		}
		next := s[len(prefix)]
		if next == ';' || next == ',' {
			return true
		}
	}
	return false
}

func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
