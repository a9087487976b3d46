package workspace

import (
	"encoding/json"
	"fmt"
	"time"

	"palitra/internal/editor/history"
	"palitra/internal/editor/region"
)

// ============================================================
// Snapshot / Restore
// ============================================================

const snapshotVersion = 1

// Snapshot is the persisted form of a workspace. Textures repeats the
// per-region texture ids as the applied-texture map.
type Snapshot struct {
	Version   int               `json:"version"`
	ID        string            `json:"id"`
	Photo     *Photo            `json:"photo,omitempty"`
	Regions   []region.Region   `json:"regions"`
	Selection []string          `json:"selection"`
	Textures  map[string]string `json:"appliedTextures"`
	History   json.RawMessage   `json:"actionHistory"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Snapshot serialises regions, selection, textures and the action log.
// Drawing in progress is transient and not included.
func (w *Workspace) Snapshot() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	hist, err := history.MarshalEntries(w.log.Entries())
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}

	snap := Snapshot{
		Version:   snapshotVersion,
		ID:        w.id,
		Regions:   w.regions.All(),
		Selection: w.selection.Selected(),
		Textures:  w.regions.Textured(),
		History:   hist,
		CreatedAt: w.createdAt,
		UpdatedAt: w.updatedAt,
	}
	if w.photo != nil {
		photo := *w.photo
		snap.Photo = &photo
	}
	return json.Marshal(snap)
}

// Restore replaces the state with a snapshot. The snapshot is fully decoded
// before anything is touched, so a bad blob leaves the workspace unchanged.
func (w *Workspace) Restore(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	var entries []history.Entry
	if len(snap.History) > 0 && string(snap.History) != "null" {
		decoded, err := history.UnmarshalEntries(snap.History)
		if err != nil {
			return err
		}
		entries = decoded
	}

	err := ErrClosed
	w.event(func() bool {
		err = nil
		restored := w.regions.Restore(snap.Regions)
		for _, id := range w.regions.IDs() {
			w.regions.SetTexture(id, snap.Textures[id])
		}

		w.log.Restore(entries)
		w.regions.Reserve(w.log.ReferencedRegions()...)

		w.machine.Discard()
		w.selection.Clear()
		w.selection.SelectMany(snap.Selection)
		w.selection.PointerLeave()

		w.photoGen++
		w.photo = nil
		w.detecting = false
		w.detectError = ""
		if snap.Photo != nil {
			photo := *snap.Photo
			w.photo = &photo
			w.fitter.ImageLoaded(photo.Width, photo.Height)
		} else {
			w.fitter.ClearImage()
		}
		if !snap.CreatedAt.IsZero() {
			w.createdAt = snap.CreatedAt
		}

		if dropped := len(snap.Regions) - restored; dropped > 0 {
			w.logger.WithField("dropped", dropped).Warn("snapshot contained invalid regions")
		}
		return true
	})
	return err
}
