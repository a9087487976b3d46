// Package drawing implements the freehand polygon state machine. It is the
// single authority on whether the editor is drawing or selecting.
package drawing

import "palitra/internal/editor/geometry"

type State int

const (
	Idle State = iota
	Drawing
)

func (s State) String() string {
	switch s {
	case Drawing:
		return "drawing"
	default:
		return "idle"
	}
}

// Machine accumulates points while Drawing. Points are empty whenever the
// machine is Idle.
type Machine struct {
	state  State
	points []geometry.Point
}

func New() *Machine {
	return &Machine{}
}

func (m *Machine) State() State {
	return m.state
}

// Active reports whether clicks are currently consumed as polygon points.
func (m *Machine) Active() bool {
	return m.state == Drawing
}

// Start enters Drawing with an empty point list. Starting again while
// drawing discards the points collected so far.
func (m *Machine) Start() {
	m.state = Drawing
	m.points = nil
}

// AddPoint appends p while Drawing; it reports whether the point was taken.
func (m *Machine) AddPoint(p geometry.Point) bool {
	if m.state != Drawing {
		return false
	}
	m.points = append(m.points, p)
	return true
}

// Completable reports whether Complete would produce a polygon.
func (m *Machine) Completable() bool {
	return m.state == Drawing && len(m.points) >= geometry.MinPolygonPoints
}

// Complete returns the collected polygon and goes back to Idle. With fewer
// than three points nothing happens and the machine keeps drawing.
func (m *Machine) Complete() ([]geometry.Point, bool) {
	if !m.Completable() {
		return nil, false
	}
	points := m.points
	m.points = nil
	m.state = Idle
	return points, true
}

// Discard abandons any in-progress polygon and returns to Idle.
func (m *Machine) Discard() {
	m.state = Idle
	m.points = nil
}

// Points returns a copy of the points collected so far.
func (m *Machine) Points() []geometry.Point {
	return geometry.Clone(m.points)
}
