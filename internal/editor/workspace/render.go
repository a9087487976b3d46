package workspace

import (
	"time"

	"palitra/internal/editor/drawing"
	"palitra/internal/editor/geometry"
	"palitra/internal/editor/region"
	"palitra/internal/editor/selection"
	"palitra/internal/editor/viewport"
)

// ============================================================
// Render surface
// ============================================================

// Frame is everything a renderer needs to draw the current state. All
// coordinates are canvas pixels.
type Frame struct {
	ID          string            `json:"id"`
	Ready       bool              `json:"ready"`
	Canvas      viewport.Size     `json:"canvas"`
	Scale       geometry.Point    `json:"scale"`
	Photo       *Photo            `json:"photo,omitempty"`
	LoadError   string            `json:"loadError,omitempty"`
	Detecting   bool              `json:"detecting"`
	DetectError string            `json:"detectError,omitempty"`
	Mode        string            `json:"mode"`
	Drawing     []float64         `json:"drawing"`
	Completable bool              `json:"completable"`
	Cursor      selection.Cursor  `json:"cursor"`
	Regions     []RegionView      `json:"regions"`
	Selection   selection.Summary `json:"selection"`
	History     int               `json:"history"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// RegionView is one region projected for drawing.
type RegionView struct {
	ID           string         `json:"id"`
	Origin       region.Origin  `json:"origin"`
	Points       []float64      `json:"points"`
	Bounds       geometry.Box   `json:"bounds"`
	Marker       geometry.Point `json:"marker"`
	Selected     bool           `json:"selected"`
	HasTexture   bool           `json:"hasTexture"`
	TextureID    string         `json:"textureId,omitempty"`
	TextureReady bool           `json:"textureReady"`
}

// Render projects the state into canvas space. Until the viewport is ready
// no region or drawing geometry is emitted.
func (w *Workspace) Render() Frame {
	w.mu.Lock()
	defer w.mu.Unlock()

	sx, sy, ready := w.fitter.Scale()
	frame := Frame{
		ID:          w.id,
		Ready:       ready,
		Canvas:      w.fitter.Size(),
		Scale:       geometry.Point{X: sx, Y: sy},
		Detecting:   w.detecting,
		DetectError: w.detectError,
		Mode:        w.machine.State().String(),
		Drawing:     []float64{},
		Completable: w.machine.Completable(),
		Cursor:      w.selection.Cursor(),
		Regions:     []RegionView{},
		Selection:   w.selection.Summary(),
		History:     w.log.Len(),
		CreatedAt:   w.createdAt,
		UpdatedAt:   w.updatedAt,
	}
	if w.photo != nil {
		photo := *w.photo
		frame.Photo = &photo
	}
	if err := w.fitter.LoadError(); err != nil {
		frame.LoadError = err.Error()
	}
	if !ready {
		return frame
	}

	if w.machine.State() == drawing.Drawing {
		frame.Drawing = geometry.Flatten(geometry.Scale(w.machine.Points(), sx, sy))
	}

	for _, r := range w.regions.All() {
		canvas := geometry.Scale(r.Geometry, sx, sy)
		view := RegionView{
			ID:         r.ID,
			Origin:     r.Origin,
			Points:     geometry.Flatten(canvas),
			Bounds:     geometry.ProjectBox(geometry.Bounds(r.Geometry), sx, sy),
			Selected:   w.selection.IsSelected(r.ID),
			HasTexture: r.HasTexture(),
			TextureID:  r.TextureID,
		}
		// detected contours are irregular, so their marker sits on the vertex mean
		if r.Origin == region.OriginDetected {
			view.Marker = geometry.Centroid(canvas)
		} else {
			view.Marker = geometry.Center(canvas)
		}
		if r.HasTexture() {
			_, view.TextureReady = w.textures[r.TextureID]
		}
		frame.Regions = append(frame.Regions, view)
	}
	return frame
}
