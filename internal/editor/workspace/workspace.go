// Package workspace is the editor's state container: one Workspace per
// project owns the regions, the selection, the drawing machine, the action
// log and the viewport. Each exported method is one event processed to
// completion; callers from several goroutines are serialised.
//
// Region geometry is stored in image-pixel space. Canvas points coming from
// the render surface are mapped to image space on entry and geometry is
// projected back to canvas space only when a Frame is rendered.
package workspace

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"palitra/internal/common/imaging"
	"palitra/internal/editor/drawing"
	"palitra/internal/editor/geometry"
	"palitra/internal/editor/history"
	"palitra/internal/editor/region"
	"palitra/internal/editor/selection"
	"palitra/internal/editor/viewport"

	"github.com/sirupsen/logrus"
)

var (
	ErrClosed  = errors.New("workspace closed")
	ErrNoPhoto = errors.New("no photo loaded")
	ErrStale   = errors.New("result belongs to a replaced photo")
)

// TextureLoader fetches texture images in the background and reports back
// through done, possibly from another goroutine.
type TextureLoader interface {
	Load(textureID string, done func(imaging.Info, error))
}

// Photo describes the loaded photograph.
type Photo struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format,omitempty"`
}

// Ticket identifies the photo a detection request was issued for.
type Ticket struct {
	Photo string
	gen   uint64
}

// ============================================================
// Workspace
// ============================================================

type Workspace struct {
	mu sync.Mutex

	id        string
	regions   *region.Collection
	machine   *drawing.Machine
	selection *selection.Controller
	log       *history.Log
	fitter    *viewport.Fitter

	photo       *Photo
	photoGen    uint64
	detecting   bool
	detectError string

	loader        TextureLoader
	textures      map[string]imaging.Info
	textureErrors map[string]string
	pending       map[string]struct{}

	closed    bool
	logger    *logrus.Entry
	createdAt time.Time
	updatedAt time.Time
	now       func() time.Time
}

type Option func(*Workspace)

func WithLogger(logger *logrus.Logger) Option {
	return func(w *Workspace) {
		w.logger = logger.WithField("component", "workspace")
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(w *Workspace) {
		w.regions = region.NewCollection(region.WithIDGenerator(fn))
	}
}

func WithPadding(padding float64) Option {
	return func(w *Workspace) {
		w.fitter = viewport.NewFitter(padding)
	}
}

func WithTextureLoader(loader TextureLoader) Option {
	return func(w *Workspace) {
		w.loader = loader
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Workspace) {
		w.now = now
	}
}

func New(id string, opts ...Option) *Workspace {
	quiet := logrus.New()
	quiet.SetLevel(logrus.WarnLevel)

	w := &Workspace{
		id:            id,
		regions:       region.NewCollection(),
		machine:       drawing.New(),
		log:           history.NewLog(),
		fitter:        viewport.NewFitter(viewport.DefaultPadding),
		textures:      make(map[string]imaging.Info),
		textureErrors: make(map[string]string),
		pending:       make(map[string]struct{}),
		logger:        quiet.WithField("component", "workspace"),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithField("project", id)
	w.selection = selection.NewController(w.regions, w.machine)
	w.createdAt = w.now()
	w.updatedAt = w.createdAt
	return w
}

func (w *Workspace) ID() string {
	return w.id
}

// event runs fn under the lock, then asks the loader for textures that
// became referenced. The loader is called unlocked since it may report back
// synchronously.
func (w *Workspace) event(fn func() bool) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	changed := fn()
	if changed {
		w.updatedAt = w.now()
	}
	missing := w.missingTextures()
	w.mu.Unlock()

	w.requestTextures(missing)
	return changed
}

// ============================================================
// Photo & viewport
// ============================================================

// LoadPhoto reads the photo's natural size. A new photo starts a fresh
// annotation: regions, selection, drawing and history are dropped. A photo
// that cannot be decoded leaves the annotation untouched and is reported
// through the returned error and the frame's load error.
func (w *Workspace) LoadPhoto(name string, data []byte) error {
	info, probeErr := imaging.Probe(data)

	err := ErrClosed
	w.event(func() bool {
		err = nil
		if probeErr != nil {
			if w.photo != nil {
				w.fitter.RecordFailure(probeErr)
			} else {
				w.fitter.ImageFailed(probeErr)
			}
			err = fmt.Errorf("load photo %q: %w", name, probeErr)
			w.logger.WithError(probeErr).WithField("photo", name).Warn("photo load failed")
			return true
		}

		w.regions.Remove(w.regions.IDs())
		w.selection.Clear()
		w.machine.Discard()
		w.log.Restore(nil)
		w.detecting = false
		w.detectError = ""

		w.photoGen++
		w.photo = &Photo{Name: name, Width: info.Width, Height: info.Height, Format: info.Format}
		w.fitter.ImageLoaded(info.Width, info.Height)
		w.logger.WithFields(logrus.Fields{
			"photo":  name,
			"width":  info.Width,
			"height": info.Height,
		}).Info("photo loaded")
		return true
	})
	return err
}

// Photo returns the loaded photo, if any.
func (w *Workspace) Photo() (Photo, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.photo == nil {
		return Photo{}, false
	}
	return *w.photo, true
}

// Resize records the container size of the render surface.
func (w *Workspace) Resize(width, height float64) viewport.Size {
	var size viewport.Size
	w.event(func() bool {
		w.fitter.Resize(width, height)
		size = w.fitter.Size()
		return true
	})
	return size
}

// ============================================================
// Drawing
// ============================================================

// StartDrawing enters drawing mode and clears the selection.
func (w *Workspace) StartDrawing() bool {
	return w.event(func() bool {
		w.machine.Start()
		w.selection.Clear()
		return true
	})
}

// StageClick adds a canvas point to the polygon in progress. Outside drawing
// mode it is ignored.
func (w *Workspace) StageClick(p geometry.Point) bool {
	return w.event(func() bool {
		return w.machine.AddPoint(w.fitter.ToImage(p))
	})
}

// CompleteDrawing commits the polygon in progress as a manual region. With
// fewer than three points nothing happens and drawing continues.
func (w *Workspace) CompleteDrawing() (region.Region, bool) {
	var created region.Region
	ok := w.event(func() bool {
		if !geometry.Valid(w.machine.Points()) {
			return false
		}
		points, done := w.machine.Complete()
		if !done {
			return false
		}
		r, added := w.regions.AddManual(points)
		if !added {
			return false
		}
		created = r
		w.logger.WithFields(logrus.Fields{"region": r.ID, "points": len(points)}).Debug("manual region added")
		return true
	})
	return created, ok
}

// Drawing reports whether the drawing machine owns clicks.
func (w *Workspace) Drawing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.Active()
}

// ============================================================
// Pointer input
// ============================================================

type Consumer string

const (
	ConsumedByNone      Consumer = "none"
	ConsumedByDrawing   Consumer = "drawing"
	ConsumedBySelection Consumer = "selection"
)

// ClickResult says which of drawing or selecting took a click.
type ClickResult struct {
	Consumer Consumer `json:"consumer"`
	RegionID string   `json:"regionId,omitempty"`
}

// Click resolves a canvas click. While drawing it always becomes a polygon
// point, even over an existing region; otherwise the topmost region under
// the pointer is toggled.
func (w *Workspace) Click(p geometry.Point) ClickResult {
	result := ClickResult{Consumer: ConsumedByNone}
	w.event(func() bool {
		imagePoint := w.fitter.ToImage(p)
		if w.machine.Active() {
			w.machine.AddPoint(imagePoint)
			result.Consumer = ConsumedByDrawing
			return true
		}
		id, hit := w.selection.HitTest(imagePoint)
		if !hit {
			return false
		}
		w.selection.Click(id)
		result = ClickResult{Consumer: ConsumedBySelection, RegionID: id}
		return true
	})
	return result
}

// RegionClick handles a click the render surface attributed to a region.
// While drawing the region does not intercept it.
func (w *Workspace) RegionClick(id string) bool {
	return w.event(func() bool {
		return w.selection.Click(id)
	})
}

func (w *Workspace) PointerEnter(id string) selection.Cursor {
	cursor := selection.CursorDefault
	w.event(func() bool {
		cursor = w.selection.PointerEnter(id)
		return false
	})
	return cursor
}

func (w *Workspace) PointerLeave() selection.Cursor {
	cursor := selection.CursorDefault
	w.event(func() bool {
		cursor = w.selection.PointerLeave()
		return false
	})
	return cursor
}

// ============================================================
// Selection
// ============================================================

// Toggle flips selection of one region. Selection changes are refused while
// drawing.
func (w *Workspace) Toggle(id string) bool {
	return w.event(func() bool {
		if w.machine.Active() {
			return false
		}
		return w.selection.Toggle(id)
	})
}

func (w *Workspace) SelectMany(ids []string) int {
	n := 0
	w.event(func() bool {
		if w.machine.Active() {
			return false
		}
		n = w.selection.SelectMany(ids)
		return n > 0
	})
	return n
}

// SelectAllDetected adds every detected region to the selection.
func (w *Workspace) SelectAllDetected() int {
	n := 0
	w.event(func() bool {
		if w.machine.Active() {
			return false
		}
		n = w.selection.SelectAllOfOrigin(region.OriginDetected)
		return n > 0
	})
	return n
}

func (w *Workspace) ClearSelection() bool {
	return w.event(func() bool {
		return w.selection.Clear()
	})
}

func (w *Workspace) Selected() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selection.Selected()
}

func (w *Workspace) Summary() selection.Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selection.Summary()
}

// ============================================================
// Region lifecycle
// ============================================================

// RemoveSelected deletes the selected regions and drops them from the
// selection in the same step.
func (w *Workspace) RemoveSelected() []string {
	var removed []string
	w.event(func() bool {
		removed = w.regions.Remove(w.selection.Selected())
		w.selection.Deselect(removed...)
		w.checkSelection()
		return len(removed) > 0
	})
	return removed
}

// ClearDetected deletes every detected region.
func (w *Workspace) ClearDetected() []string {
	var removed []string
	w.event(func() bool {
		removed = w.regions.RemoveDetected()
		w.selection.Deselect(removed...)
		w.checkSelection()
		return len(removed) > 0
	})
	return removed
}

// BeginDetection marks a detection request for the current photo.
func (w *Workspace) BeginDetection() (Ticket, error) {
	var (
		ticket Ticket
		err    error
	)
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.closed:
		err = ErrClosed
	case w.photo == nil:
		err = ErrNoPhoto
	default:
		w.detecting = true
		w.detectError = ""
		ticket = Ticket{Photo: w.photo.Name, gen: w.photoGen}
	}
	return ticket, err
}

// FinishDetection applies a detection response. Results for a photo that
// has since been replaced, or arriving after Close, are discarded. On
// failure the regions stay as they were and the reason is kept for the frame.
func (w *Workspace) FinishDetection(ticket Ticket, contours [][]geometry.Point, detectErr error) ([]string, error) {
	var added []string
	err := ErrClosed
	w.event(func() bool {
		if w.photo == nil || ticket.gen != w.photoGen {
			err = ErrStale
			w.logger.WithField("photo", ticket.Photo).Info("discarding stale detection result")
			return false
		}
		w.detecting = false
		if detectErr != nil {
			w.detectError = detectErr.Error()
			err = detectErr
			return true
		}
		var removed []string
		added, removed = w.regions.ReplaceDetected(contours)
		w.selection.Deselect(removed...)
		w.checkSelection()
		w.detectError = ""
		err = nil
		w.logger.WithFields(logrus.Fields{"added": len(added), "removed": len(removed)}).Info("detected regions replaced")
		return true
	})
	return added, err
}

func (w *Workspace) Regions() []region.Region {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.regions.All()
}

// checkSelection repairs selection ids without a region. Removal paths keep
// the selection in step, so anything found here is a bug worth logging.
func (w *Workspace) checkSelection() {
	if dangling := w.selection.Prune(); len(dangling) > 0 {
		w.logger.WithField("ids", dangling).Warn("dropped dangling selection ids")
	}
}

// ============================================================
// Textures
// ============================================================

// ApplyTexture applies textureID to the current selection.
func (w *Workspace) ApplyTexture(textureID string) bool {
	return w.event(func() bool {
		return w.log.ApplyTexture(w.regions, w.selection.Selected(), textureID)
	})
}

// ApplyTextureTo applies textureID to the listed regions.
func (w *Workspace) ApplyTextureTo(ids []string, textureID string) bool {
	return w.event(func() bool {
		return w.log.ApplyTexture(w.regions, ids, textureID)
	})
}

// ClearSelectedTextures removes textures from selected regions that have one.
func (w *Workspace) ClearSelectedTextures() bool {
	return w.event(func() bool {
		return w.log.ClearTexture(w.regions, w.selection.Selected())
	})
}

func (w *Workspace) ClearTextures(ids []string) bool {
	return w.event(func() bool {
		return w.log.ClearTexture(w.regions, ids)
	})
}

func (w *Workspace) ClearAllTextures() bool {
	return w.event(func() bool {
		return w.log.ClearAllTextures(w.regions)
	})
}

// Undo reverts the most recent texture operation.
func (w *Workspace) Undo() (history.Kind, bool) {
	var kind history.Kind
	ok := w.event(func() bool {
		entry, undone := w.log.Undo(w.regions)
		if !undone {
			return false
		}
		kind = entry.Kind()
		return true
	})
	return kind, ok
}

func (w *Workspace) HistoryLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.log.Len()
}

// TextureLoaded stores the result of a texture fetch. Results for textures
// no region uses any more, or arriving after Close, are dropped; the return
// value says whether the result was kept.
func (w *Workspace) TextureLoaded(textureID string, info imaging.Info, loadErr error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.pending, textureID)
	if w.closed || !w.regions.UsesTexture(textureID) {
		return false
	}
	if loadErr != nil {
		w.textureErrors[textureID] = loadErr.Error()
		w.logger.WithError(loadErr).WithField("texture", textureID).Warn("texture load failed")
		return true
	}
	delete(w.textureErrors, textureID)
	w.textures[textureID] = info
	return true
}

func (w *Workspace) missingTextures() []string {
	if w.loader == nil {
		return nil
	}
	var missing []string
	for _, tex := range w.regions.Textured() {
		if _, loaded := w.textures[tex]; loaded {
			continue
		}
		if _, failed := w.textureErrors[tex]; failed {
			continue
		}
		if _, inFlight := w.pending[tex]; inFlight {
			continue
		}
		w.pending[tex] = struct{}{}
		missing = append(missing, tex)
	}
	return missing
}

func (w *Workspace) requestTextures(ids []string) {
	for _, tex := range ids {
		textureID := tex
		w.loader.Load(textureID, func(info imaging.Info, err error) {
			w.TextureLoaded(textureID, info, err)
		})
	}
}

// ============================================================
// Teardown
// ============================================================

// Close stops the workspace from reacting to late completions.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.pending = make(map[string]struct{})
}

func (w *Workspace) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
