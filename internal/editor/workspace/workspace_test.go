package workspace

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"palitra/internal/common/imaging"
	"palitra/internal/editor/geometry"
	"palitra/internal/editor/history"
	"palitra/internal/editor/region"
	"palitra/internal/editor/selection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("r-%d", n)
	}
}

func pts(flat ...float64) []geometry.Point {
	return geometry.Pairs(flat)
}

// newUnitWorkspace has canvas space equal to image space (scale 1).
func newUnitWorkspace(t *testing.T, opts ...Option) *Workspace {
	t.Helper()
	opts = append([]Option{WithIDGenerator(sequentialIDs()), WithPadding(0)}, opts...)
	w := New("p-1", opts...)
	require.NoError(t, w.LoadPhoto("room.png", pngBytes(t, 400, 300)))
	w.Resize(400, 300)
	require.True(t, w.Render().Ready)
	return w
}

func draw(t *testing.T, w *Workspace, points ...geometry.Point) region.Region {
	t.Helper()
	require.True(t, w.StartDrawing())
	for _, p := range points {
		require.True(t, w.StageClick(p))
	}
	r, ok := w.CompleteDrawing()
	require.True(t, ok)
	return r
}

func detect(t *testing.T, w *Workspace, contours ...[]geometry.Point) []string {
	t.Helper()
	ticket, err := w.BeginDetection()
	require.NoError(t, err)
	added, err := w.FinishDetection(ticket, contours, nil)
	require.NoError(t, err)
	return added
}

func texture(w *Workspace, id string) string {
	for _, r := range w.Regions() {
		if r.ID == id {
			return r.TextureID
		}
	}
	return ""
}

func TestWorkspace_DrawApplyClearUndoScenario(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)

	r := draw(t, w, pts(10, 10, 50, 10, 50, 50)...)
	assert.Equal(t, region.OriginManual, r.Origin)
	assert.Equal(t, []float64{10, 10, 50, 10, 50, 50}, geometry.Flatten(r.Geometry))
	assert.False(t, w.Drawing())
	assert.Empty(t, w.Render().Drawing)

	require.True(t, w.Toggle(r.ID))
	require.True(t, w.ApplyTexture("swatch-7"))
	assert.Equal(t, "swatch-7", texture(w, r.ID))

	require.True(t, w.ClearSelectedTextures())
	assert.Equal(t, "", texture(w, r.ID))

	kind, ok := w.Undo()
	require.True(t, ok)
	assert.Equal(t, history.KindClearSome, kind)
	assert.Equal(t, "swatch-7", texture(w, r.ID))
	assert.Equal(t, 1, w.HistoryLen())
}

func TestWorkspace_CompleteWithTooFewPointsKeepsDrawing(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)

	w.StartDrawing()
	w.StageClick(geometry.Point{X: 1, Y: 1})
	w.StageClick(geometry.Point{X: 5, Y: 1})

	_, ok := w.CompleteDrawing()
	assert.False(t, ok)
	assert.True(t, w.Drawing())
	assert.Equal(t, []float64{1, 1, 5, 1}, w.Render().Drawing)
	assert.Empty(t, w.Regions())
	assert.False(t, w.Render().Completable)
}

func TestWorkspace_StageClickIgnoredWhenIdle(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)

	assert.False(t, w.StageClick(geometry.Point{X: 1, Y: 1}))
	_, ok := w.CompleteDrawing()
	assert.False(t, ok)
}

func TestWorkspace_ClickInsideRegionWhileDrawingAddsPoint(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)
	r := draw(t, w, pts(0, 0, 100, 0, 100, 100, 0, 100)...)

	w.StartDrawing()
	before := w.Selected()

	res := w.Click(geometry.Point{X: 50, Y: 50})
	assert.Equal(t, ConsumedByDrawing, res.Consumer)
	assert.Equal(t, before, w.Selected())
	assert.False(t, w.RegionClick(r.ID))
	assert.Empty(t, w.Selected())
	assert.Equal(t, []float64{50, 50}, w.Render().Drawing)
}

func TestWorkspace_ClickWhenIdleSelectsTopmost(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)
	detected := detect(t, w, pts(0, 0, 200, 0, 200, 200, 0, 200))
	manual := draw(t, w, pts(50, 50, 150, 50, 150, 150, 50, 150)...)

	res := w.Click(geometry.Point{X: 100, Y: 100})
	assert.Equal(t, ClickResult{Consumer: ConsumedBySelection, RegionID: manual.ID}, res)

	res = w.Click(geometry.Point{X: 10, Y: 10})
	assert.Equal(t, ClickResult{Consumer: ConsumedBySelection, RegionID: detected[0]}, res)
	assert.Equal(t, selection.Summary{Total: 2, Detected: 1, Manual: 1}, w.Summary())

	res = w.Click(geometry.Point{X: 390, Y: 290})
	assert.Equal(t, ConsumedByNone, res.Consumer)
}

func TestWorkspace_StartDrawingClearsSelectionAndBlocksSelecting(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)
	ids := detect(t, w, pts(0, 0, 10, 0, 10, 10), pts(20, 20, 30, 20, 30, 30))

	require.Equal(t, 2, w.SelectAllDetected())
	w.StartDrawing()
	assert.Empty(t, w.Selected())

	assert.False(t, w.Toggle(ids[0]))
	assert.Equal(t, 0, w.SelectMany(ids))
	assert.Equal(t, 0, w.SelectAllDetected())
	assert.Equal(t, selection.CursorDefault, w.PointerEnter(ids[0]))
	assert.Empty(t, w.Selected())
}

func TestWorkspace_DetectionProjectsToCanvas(t *testing.T) {
	t.Parallel()

	w := New("p-2", WithIDGenerator(sequentialIDs()), WithPadding(0))
	w.Resize(800, 600)
	require.NoError(t, w.LoadPhoto("big.png", pngBytes(t, 1600, 1200)))

	detect(t, w, pts(100, 100, 300, 100, 300, 300, 100, 300))

	frame := w.Render()
	require.True(t, frame.Ready)
	assert.InDelta(t, 800, frame.Canvas.Width, 1e-9)
	assert.InDelta(t, 600, frame.Canvas.Height, 1e-9)
	require.Len(t, frame.Regions, 1)

	want := []float64{50, 50, 150, 50, 150, 150, 50, 150}
	for i, v := range frame.Regions[0].Points {
		assert.InDelta(t, want[i], v, 1e-9)
	}
	assert.InDelta(t, 100, frame.Regions[0].Marker.X, 1e-9)
	assert.InDelta(t, 50, frame.Regions[0].Bounds.X, 1e-9)
	assert.InDelta(t, 100, frame.Regions[0].Bounds.Width, 1e-9)

	// Image-space geometry is untouched by scaling.
	assert.Equal(t, pts(100, 100, 300, 100, 300, 300, 100, 300), w.Regions()[0].Geometry)
}

func TestWorkspace_DrawnPointsAreStoredInImageSpace(t *testing.T) {
	t.Parallel()

	w := New("p-3", WithIDGenerator(sequentialIDs()), WithPadding(0))
	w.Resize(800, 600)
	require.NoError(t, w.LoadPhoto("big.png", pngBytes(t, 1600, 1200)))

	r := draw(t, w, pts(10, 10, 50, 10, 50, 50)...)
	assert.Equal(t, []float64{20, 20, 100, 20, 100, 100}, geometry.Flatten(r.Geometry))

	// Resizing keeps the polygon fixed to the photo.
	w.Resize(400, 300)
	frame := w.Render()
	assert.Equal(t, []float64{5, 5, 25, 5, 25, 25}, frame.Regions[0].Points)
	assert.Equal(t, geometry.Point{X: 15, Y: 15}, frame.Regions[0].Marker)
}

func TestWorkspace_RedetectionDropsOldDetectedFromSelection(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)
	manual := draw(t, w, pts(0, 0, 10, 0, 10, 10)...)
	old := detect(t, w, pts(20, 20, 30, 20, 30, 30))

	w.SelectMany([]string{manual.ID, old[0]})
	fresh := detect(t, w, pts(40, 40, 50, 40, 50, 50))

	assert.NotEqual(t, old[0], fresh[0])
	assert.Equal(t, []string{manual.ID}, w.Selected())
}

func TestWorkspace_DetectionFailureLeavesStateUnchanged(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)
	ids := detect(t, w, pts(0, 0, 10, 0, 10, 10))
	w.Toggle(ids[0])

	ticket, err := w.BeginDetection()
	require.NoError(t, err)
	assert.True(t, w.Render().Detecting)

	failure := errors.New("detector unreachable")
	_, err = w.FinishDetection(ticket, nil, failure)
	assert.ErrorIs(t, err, failure)

	frame := w.Render()
	assert.False(t, frame.Detecting)
	assert.Equal(t, "detector unreachable", frame.DetectError)
	assert.Len(t, w.Regions(), 1)
	assert.Equal(t, ids, w.Selected())
}

func TestWorkspace_StaleDetectionIsDiscarded(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)

	ticket, err := w.BeginDetection()
	require.NoError(t, err)
	require.NoError(t, w.LoadPhoto("other.png", pngBytes(t, 40, 30)))

	_, err = w.FinishDetection(ticket, [][]geometry.Point{pts(0, 0, 10, 0, 10, 10)}, nil)
	assert.ErrorIs(t, err, ErrStale)
	assert.Empty(t, w.Regions())
}

func TestWorkspace_DetectionNeedsPhoto(t *testing.T) {
	t.Parallel()

	_, err := New("p").BeginDetection()
	assert.ErrorIs(t, err, ErrNoPhoto)
}

func TestWorkspace_RemoveSelectedPrunesSelection(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)
	a := draw(t, w, pts(0, 0, 10, 0, 10, 10)...)
	b := draw(t, w, pts(20, 20, 30, 20, 30, 30)...)

	w.Toggle(a.ID)
	w.ApplyTexture("x")
	removed := w.RemoveSelected()

	assert.Equal(t, []string{a.ID}, removed)
	assert.Empty(t, w.Selected())
	assert.Len(t, w.Regions(), 1)
	assert.Equal(t, b.ID, w.Regions()[0].ID)

	// Undo of the apply targets a removed region and must not resurrect it.
	_, ok := w.Undo()
	assert.True(t, ok)
	assert.Len(t, w.Regions(), 1)

	c := draw(t, w, pts(40, 40, 50, 40, 50, 50)...)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestWorkspace_ClearDetectedKeepsManual(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)
	manual := draw(t, w, pts(0, 0, 10, 0, 10, 10)...)
	detect(t, w, pts(20, 20, 30, 20, 30, 30), pts(40, 40, 50, 40, 50, 50))
	w.SelectAllDetected()
	w.Toggle(manual.ID)

	assert.Len(t, w.ClearDetected(), 2)
	assert.Equal(t, []string{manual.ID}, w.Selected())
	assert.Equal(t, selection.Summary{Total: 1, Manual: 1}, w.Summary())
}

func TestWorkspace_ClearAllThenUndoScenario(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)
	a := draw(t, w, pts(0, 0, 10, 0, 10, 10)...)
	b := draw(t, w, pts(20, 20, 30, 20, 30, 30)...)
	c := draw(t, w, pts(40, 40, 50, 40, 50, 50)...)

	require.True(t, w.ApplyTextureTo([]string{a.ID, b.ID}, "x"))
	lenBefore := w.HistoryLen()

	require.True(t, w.ClearAllTextures())
	assert.False(t, w.ClearAllTextures(), "nothing left to clear")
	_, ok := w.Undo()
	require.True(t, ok)

	assert.Equal(t, "x", texture(w, a.ID))
	assert.Equal(t, "x", texture(w, b.ID))
	assert.Equal(t, "", texture(w, c.ID))
	assert.Equal(t, lenBefore, w.HistoryLen())
}

func TestWorkspace_ApplyWithoutSelectionIsNoop(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)
	draw(t, w, pts(0, 0, 10, 0, 10, 10)...)

	assert.False(t, w.ApplyTexture("x"))
	assert.False(t, w.ClearSelectedTextures())
	_, ok := w.Undo()
	assert.False(t, ok)
	assert.Equal(t, 0, w.HistoryLen())
}

func TestWorkspace_HoverCursor(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)
	r := draw(t, w, pts(0, 0, 10, 0, 10, 10)...)

	assert.Equal(t, selection.CursorPointer, w.PointerEnter(r.ID))
	assert.Equal(t, selection.CursorPointer, w.Render().Cursor)
	w.StartDrawing()
	assert.Equal(t, selection.CursorDefault, w.PointerLeave())
}

func TestWorkspace_PhotoLoadFailure(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)
	draw(t, w, pts(0, 0, 10, 0, 10, 10)...)

	err := w.LoadPhoto("broken.png", []byte("nope"))
	require.Error(t, err)
	assert.ErrorIs(t, err, imaging.ErrUnsupported)

	frame := w.Render()
	assert.NotEmpty(t, frame.LoadError)
	assert.True(t, frame.Ready)
	assert.Len(t, frame.Regions, 1, "regions survive a failed load")
	photo, ok := w.Photo()
	require.True(t, ok)
	assert.Equal(t, "room.png", photo.Name)
}

func TestWorkspace_PhotoLoadFailureKeepsTransform(t *testing.T) {
	t.Parallel()

	w := New("p-4", WithIDGenerator(sequentialIDs()), WithPadding(0))
	require.NoError(t, w.LoadPhoto("room.png", pngBytes(t, 1600, 1200)))
	w.Resize(800, 600)

	require.Error(t, w.LoadPhoto("broken.png", []byte("nope")))
	frame := w.Render()
	require.True(t, frame.Ready)
	assert.InDelta(t, 0.5, frame.Scale.X, 1e-9)

	r := draw(t, w, pts(100, 100, 200, 100, 200, 200)...)
	assert.Equal(t, []float64{200, 200, 400, 200, 400, 400}, geometry.Flatten(r.Geometry))

	res := w.Click(geometry.Point{X: 180, Y: 120})
	assert.Equal(t, ConsumedBySelection, res.Consumer)
	assert.Equal(t, []string{r.ID}, w.Selected())
}

func TestWorkspace_PhotoLoadFailureWithoutPhoto(t *testing.T) {
	t.Parallel()

	w := New("p-5", WithPadding(0))
	w.Resize(800, 600)
	require.Error(t, w.LoadPhoto("broken.png", []byte("nope")))

	frame := w.Render()
	assert.False(t, frame.Ready)
	assert.NotEmpty(t, frame.LoadError)
}

func TestWorkspace_NewPhotoStartsFresh(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)
	r := draw(t, w, pts(0, 0, 10, 0, 10, 10)...)
	w.Toggle(r.ID)
	w.ApplyTexture("x")

	require.NoError(t, w.LoadPhoto("next.png", pngBytes(t, 20, 20)))
	assert.Empty(t, w.Regions())
	assert.Empty(t, w.Selected())
	assert.Equal(t, 0, w.HistoryLen())
	photo, ok := w.Photo()
	require.True(t, ok)
	assert.Equal(t, "next.png", photo.Name)
}

// ============================================================
// Textures
// ============================================================

type fakeLoader struct {
	mu    sync.Mutex
	calls map[string]func(imaging.Info, error)
	order []string
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{calls: map[string]func(imaging.Info, error){}}
}

func (l *fakeLoader) Load(textureID string, done func(imaging.Info, error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[textureID] = done
	l.order = append(l.order, textureID)
}

func (l *fakeLoader) finish(textureID string, info imaging.Info, err error) {
	l.mu.Lock()
	done := l.calls[textureID]
	l.mu.Unlock()
	done(info, err)
}

func TestWorkspace_TextureLoadedForLiveTexture(t *testing.T) {
	t.Parallel()
	loader := newFakeLoader()
	w := newUnitWorkspace(t, WithTextureLoader(loader))
	r := draw(t, w, pts(0, 0, 10, 0, 10, 10)...)

	w.ApplyTextureTo([]string{r.ID}, "https://cdn/swatch.png")
	w.ApplyTextureTo([]string{r.ID}, "https://cdn/swatch.png")
	require.Equal(t, []string{"https://cdn/swatch.png"}, loader.order, "one request per texture")

	assert.False(t, w.Render().Regions[0].TextureReady)
	loader.finish("https://cdn/swatch.png", imaging.Info{Width: 64, Height: 64}, nil)
	assert.True(t, w.Render().Regions[0].TextureReady)
}

func TestWorkspace_StaleTextureCompletionIsDiscarded(t *testing.T) {
	t.Parallel()
	loader := newFakeLoader()
	w := newUnitWorkspace(t, WithTextureLoader(loader))
	r := draw(t, w, pts(0, 0, 10, 0, 10, 10)...)

	w.ApplyTextureTo([]string{r.ID}, "tex-a")
	w.Undo()

	assert.False(t, w.TextureLoaded("tex-a", imaging.Info{Width: 1, Height: 1}, nil))

	// Re-applying asks again since the earlier result was dropped.
	w.ApplyTextureTo([]string{r.ID}, "tex-a")
	assert.Equal(t, []string{"tex-a", "tex-a"}, loader.order)
}

func TestWorkspace_TextureFailureIsRecorded(t *testing.T) {
	t.Parallel()
	loader := newFakeLoader()
	w := newUnitWorkspace(t, WithTextureLoader(loader))
	r := draw(t, w, pts(0, 0, 10, 0, 10, 10)...)

	w.ApplyTextureTo([]string{r.ID}, "tex-b")
	loader.finish("tex-b", imaging.Info{}, errors.New("404"))
	assert.False(t, w.Render().Regions[0].TextureReady)
	assert.True(t, w.Render().Regions[0].HasTexture)
}

func TestWorkspace_CloseIgnoresLateCompletions(t *testing.T) {
	t.Parallel()
	loader := newFakeLoader()
	w := newUnitWorkspace(t, WithTextureLoader(loader))
	r := draw(t, w, pts(0, 0, 10, 0, 10, 10)...)
	w.ApplyTextureTo([]string{r.ID}, "tex-c")

	ticket, err := w.BeginDetection()
	require.NoError(t, err)

	w.Close()
	assert.True(t, w.Closed())
	assert.False(t, w.TextureLoaded("tex-c", imaging.Info{Width: 1, Height: 1}, nil))
	_, err = w.FinishDetection(ticket, [][]geometry.Point{pts(0, 0, 1, 0, 1, 1)}, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, w.StartDrawing())
	assert.ErrorIs(t, w.LoadPhoto("x.png", pngBytes(t, 2, 2)), ErrClosed)
}

// ============================================================
// Snapshot
// ============================================================

func TestWorkspace_SnapshotRestore(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)
	a := draw(t, w, pts(0, 0, 10, 0, 10, 10)...)
	ids := detect(t, w, pts(20, 20, 30, 20, 30, 30))
	w.SelectMany([]string{a.ID, ids[0]})
	w.ApplyTexture("x")
	w.ClearTextures([]string{ids[0]})

	blob, err := w.Snapshot()
	require.NoError(t, err)

	restored := New("p-1", WithIDGenerator(sequentialIDs()), WithPadding(0))
	require.NoError(t, restored.Restore(blob))
	restored.Resize(400, 300)

	assert.Equal(t, w.Regions(), restored.Regions())
	assert.Equal(t, w.Selected(), restored.Selected())
	assert.Equal(t, 2, restored.HistoryLen())
	photo, ok := restored.Photo()
	require.True(t, ok)
	assert.Equal(t, "room.png", photo.Name)
	assert.True(t, restored.Render().Ready)

	// The restored log still inverts exactly.
	restored.Undo()
	assert.Equal(t, "x", texture(restored, ids[0]))
	restored.Undo()
	assert.Equal(t, "", texture(restored, a.ID))

	// Fresh ids never collide with restored ones.
	c := draw(t, restored, pts(40, 40, 50, 40, 50, 50)...)
	assert.NotContains(t, []string{a.ID, ids[0]}, c.ID)
}

func TestWorkspace_RestoreRejectsBadBlob(t *testing.T) {
	t.Parallel()
	w := newUnitWorkspace(t)
	draw(t, w, pts(0, 0, 10, 0, 10, 10)...)

	assert.Error(t, w.Restore([]byte("{")))
	assert.Error(t, w.Restore([]byte(`{"version":99}`)))
	assert.Error(t, w.Restore([]byte(`{"version":1,"actionHistory":[{"kind":"bogus"}]}`)))
	assert.Len(t, w.Regions(), 1)
}

func TestWorkspace_FrameTimestamps(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return start.Add(time.Duration(tick) * time.Minute)
	}
	w := New("p-6", WithClock(clock), WithPadding(0))
	created := w.Render().CreatedAt
	assert.Equal(t, start.Add(time.Minute), created)
	assert.Equal(t, created, w.Render().UpdatedAt)

	require.NoError(t, w.LoadPhoto("room.png", pngBytes(t, 40, 30)))
	frame := w.Render()
	assert.Equal(t, created, frame.CreatedAt)
	assert.True(t, frame.UpdatedAt.After(created))

	before := frame.UpdatedAt
	assert.False(t, w.Toggle("missing"))
	assert.Equal(t, before, w.Render().UpdatedAt, "no change, no touch")
}
