package domain

// Segment is one straight piece of a stroke in normalized canvas space.
// Coordinates are in [0,1]; consumers scale them by the pixel size on render.
type Segment struct {
	X0    float64 `json:"x0"`
	Y0    float64 `json:"y0"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	Color string  `json:"color"`
	Size  float64 `json:"size"`
}

// Stroke is the atomic unit of undo/redo: one pointer-down to pointer-up gesture.
// Segments never change after the stroke is stored; only Undone flips.
type Stroke struct {
	ID       string    `json:"id"`
	AuthorID string    `json:"authorId"`
	Segments []Segment `json:"segments"`
	Undone   bool      `json:"undone"`
}

// Clone returns a deep copy so callers outside the store cannot alias its log.
func (s Stroke) Clone() Stroke {
	segments := make([]Segment, len(s.Segments))
	copy(segments, s.Segments)
	s.Segments = segments
	return s
}

// UndoStateChange is broadcast whenever a stroke's visibility flips.
type UndoStateChange struct {
	StrokeID string `json:"strokeId"`
	Undone   bool   `json:"undone"`
}
