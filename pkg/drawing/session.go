package drawing

import (
	"errors"
	"math"

	"github.com/google/uuid"

	"github.com/menta2k/smoke-annotator/pkg/geometry"
	"github.com/menta2k/smoke-annotator/pkg/types"
)

var (
	ErrNotArmed          = errors.New("draw mode is not armed")
	ErrNotDrawing        = errors.New("no drawing in progress")
	ErrRectangleNotFound = errors.New("rectangle not found")
)

// State is the drawing interaction state
type State int

const (
	Idle State = iota
	DrawModeArmed
	ActivelyDrawing
)

func (s State) String() string {
	switch s {
	case DrawModeArmed:
		return "draw_mode_armed"
	case ActivelyDrawing:
		return "actively_drawing"
	default:
		return "idle"
	}
}

// DrawnRectangle is a box owned by the drawing session
type DrawnRectangle struct {
	ID             string               `json:"id"`
	XYXYN          types.NormalizedBbox `json:"xyxyn"`
	Classification types.SmokeType      `json:"classification"`
}

// Config holds drawing session settings
type Config struct {
	// MinDrawSize is the minimum width and height in image pixels for a drag to become a rectangle
	MinDrawSize float64
	UndoDepth   int
}

// DefaultConfig returns the settings used by the review UI
func DefaultConfig() Config {
	return Config{
		MinDrawSize: 10,
		UndoDepth:   DefaultUndoDepth,
	}
}

// Session is the single-owner drawing state for one image. Points passed to
// StartDrawing and UpdateDrawing are fitted-image pixels; hit-testing uses
// normalized coordinates.
type Session struct {
	config     Config
	drawMode   bool
	drawing    bool
	start      types.Point
	current    types.Point
	rectangles []DrawnRectangle
	selectedID string
	history    *History
	newID      func() string
}

// New creates a session with default configuration
func New() *Session {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a session with custom configuration
func NewWithConfig(config Config) *Session {
	return &Session{
		config:  config,
		history: NewHistory(config.UndoDepth),
		newID:   uuid.NewString,
	}
}

// State returns the current interaction state
func (s *Session) State() State {
	switch {
	case s.drawing:
		return ActivelyDrawing
	case s.drawMode:
		return DrawModeArmed
	default:
		return Idle
	}
}

// SetDrawMode arms or disarms drawing. Disarming during a drag discards the
// rectangle in progress.
func (s *Session) SetDrawMode(on bool) {
	s.drawMode = on
	if !on {
		s.drawing = false
	}
}

// StartDrawing begins a drag at point and clears the selection
func (s *Session) StartDrawing(point types.Point) error {
	if s.State() != DrawModeArmed {
		return ErrNotArmed
	}
	s.drawing = true
	s.start = point
	s.current = point
	s.selectedID = ""
	return nil
}

// UpdateDrawing moves the drag end point
func (s *Session) UpdateDrawing(point types.Point) error {
	if !s.drawing {
		return ErrNotDrawing
	}
	s.current = point
	return nil
}

// FinishDrawing commits the dragged rectangle. A drag smaller than
// MinDrawSize on either axis is dropped and reported with ok=false and a
// nil error.
func (s *Session) FinishDrawing(imageBounds types.ImageDisplayInfo, classification types.SmokeType) (DrawnRectangle, bool, error) {
	if !s.drawing {
		return DrawnRectangle{}, false, ErrNotDrawing
	}
	s.drawing = false

	w := math.Abs(s.current.X - s.start.X)
	h := math.Abs(s.current.Y - s.start.Y)
	if !(w >= s.config.MinDrawSize) || !(h >= s.config.MinDrawSize) {
		return DrawnRectangle{}, false, nil
	}
	if !(imageBounds.Width > 0) || !(imageBounds.Height > 0) {
		return DrawnRectangle{}, false, nil
	}

	p1 := types.Point{X: s.start.X / imageBounds.Width, Y: s.start.Y / imageBounds.Height}
	p2 := types.Point{X: s.current.X / imageBounds.Width, Y: s.current.Y / imageBounds.Height}

	rect := DrawnRectangle{
		ID:             s.newID(),
		XYXYN:          geometry.CreateNormalizedBboxFromPoints(p1, p2),
		Classification: classification,
	}
	s.rectangles = append(s.rectangles, rect)
	return rect, true, nil
}

// CancelDrawing drops the drag in progress without committing
func (s *Session) CancelDrawing() {
	s.drawing = false
}

// Rectangles returns a copy of the committed rectangles in creation order
func (s *Session) Rectangles() []DrawnRectangle {
	return cloneRectangles(s.rectangles)
}

// SetRectangles replaces the rectangle set, e.g. when loading saved boxes
func (s *Session) SetRectangles(rects []DrawnRectangle) {
	s.rectangles = cloneRectangles(rects)
	if _, ok := s.find(s.selectedID); !ok {
		s.selectedID = ""
	}
}

// Rectangle looks up a rectangle by id
func (s *Session) Rectangle(id string) (DrawnRectangle, bool) {
	i, ok := s.find(id)
	if !ok {
		return DrawnRectangle{}, false
	}
	return s.rectangles[i], true
}

// SelectRectangleAtPoint selects the most recently created rectangle
// containing the normalized point. A miss clears the selection.
func (s *Session) SelectRectangleAtPoint(point types.Point) (string, bool) {
	for i := len(s.rectangles) - 1; i >= 0; i-- {
		if geometry.IsPointInBbox(point, s.rectangles[i].XYXYN) {
			s.selectedID = s.rectangles[i].ID
			return s.selectedID, true
		}
	}
	s.selectedID = ""
	return "", false
}

// Select selects a rectangle by id
func (s *Session) Select(id string) error {
	if _, ok := s.find(id); !ok {
		return ErrRectangleNotFound
	}
	s.selectedID = id
	return nil
}

// ClearSelection deselects any rectangle
func (s *Session) ClearSelection() {
	s.selectedID = ""
}

// Selected returns the selected rectangle, if any
func (s *Session) Selected() (DrawnRectangle, bool) {
	return s.Rectangle(s.selectedID)
}

// DeleteRectangle removes a rectangle. Callers push an undo snapshot first.
func (s *Session) DeleteRectangle(id string) error {
	i, ok := s.find(id)
	if !ok {
		return ErrRectangleNotFound
	}
	s.rectangles = append(s.rectangles[:i:i], s.rectangles[i+1:]...)
	if s.selectedID == id {
		s.selectedID = ""
	}
	return nil
}

// DeleteSelected removes the selected rectangle
func (s *Session) DeleteSelected() error {
	if s.selectedID == "" {
		return ErrRectangleNotFound
	}
	return s.DeleteRectangle(s.selectedID)
}

// UpdateClassification changes the smoke type of a rectangle
func (s *Session) UpdateClassification(id string, classification types.SmokeType) error {
	i, ok := s.find(id)
	if !ok {
		return ErrRectangleNotFound
	}
	s.rectangles[i].Classification = classification
	return nil
}

// MoveRectangle replaces a rectangle's box
func (s *Session) MoveRectangle(id string, bbox types.NormalizedBbox) error {
	i, ok := s.find(id)
	if !ok {
		return ErrRectangleNotFound
	}
	s.rectangles[i].XYXYN = types.NewNormalizedBbox(bbox.X1, bbox.Y1, bbox.X2, bbox.Y2)
	return nil
}

// ClearRectangles removes every rectangle
func (s *Session) ClearRectangles() {
	s.rectangles = nil
	s.selectedID = ""
}

// PushUndo snapshots the current rectangle set
func (s *Session) PushUndo() {
	s.history.Push(s.rectangles)
}

// PushSnapshot stores an earlier rectangle set taken by the caller
func (s *Session) PushSnapshot(rects []DrawnRectangle) {
	s.history.Push(rects)
}

// Undo restores the latest snapshot and clears the selection
func (s *Session) Undo() bool {
	snapshot, ok := s.history.Pop()
	if !ok {
		return false
	}
	s.rectangles = snapshot
	s.selectedID = ""
	return true
}

// CanUndo reports whether a snapshot is available
func (s *Session) CanUndo() bool {
	return s.history.Len() > 0
}

// Reset discards the whole session: drag, selection, rectangles and history
func (s *Session) Reset() {
	s.drawMode = false
	s.drawing = false
	s.start = types.Point{}
	s.current = types.Point{}
	s.rectangles = nil
	s.selectedID = ""
	s.history.Clear()
}

func (s *Session) find(id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	for i, r := range s.rectangles {
		if r.ID == id {
			return i, true
		}
	}
	return 0, false
}
