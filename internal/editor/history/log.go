// Package history records texture mutations so the most recent one can be
// reverted. There is no redo: undo only ever pops the tail.
package history

// TextureStore is the part of the region model the log mutates.
type TextureStore interface {
	Has(id string) bool
	Texture(id string) (string, bool)
	SetTexture(id, textureID string)
	Textured() map[string]string
}

// Log is an append-only sequence of entries, truncated from the tail by Undo.
type Log struct {
	entries []Entry
}

func NewLog() *Log {
	return &Log{}
}

// ApplyTexture sets textureID on every existing region in ids as one
// transaction. Empty input is a no-op.
func (l *Log) ApplyTexture(store TextureStore, ids []string, textureID string) bool {
	if textureID == "" {
		return false
	}
	targets := existing(store, ids)
	if len(targets) == 0 {
		return false
	}

	prior := make(map[string]string, len(targets))
	for _, id := range targets {
		tex, _ := store.Texture(id)
		prior[id] = tex
	}
	for _, id := range targets {
		store.SetTexture(id, textureID)
	}
	l.entries = append(l.entries, Apply{RegionIDs: targets, TextureID: textureID, Prior: prior})
	return true
}

// ClearTexture removes textures from the regions in ids that have one.
func (l *Log) ClearTexture(store TextureStore, ids []string) bool {
	var targets []string
	prior := make(map[string]string)
	for _, id := range existing(store, ids) {
		if tex, ok := store.Texture(id); ok {
			targets = append(targets, id)
			prior[id] = tex
		}
	}
	if len(targets) == 0 {
		return false
	}

	for _, id := range targets {
		store.SetTexture(id, "")
	}
	l.entries = append(l.entries, ClearSome{RegionIDs: targets, Prior: prior})
	return true
}

// ClearAllTextures removes every texture, remembering the full mapping.
func (l *Log) ClearAllTextures(store TextureStore) bool {
	prior := store.Textured()
	if len(prior) == 0 {
		return false
	}
	for id := range prior {
		store.SetTexture(id, "")
	}
	l.entries = append(l.entries, ClearAll{Prior: prior})
	return true
}

// Undo pops the last entry and restores the textures it recorded.
func (l *Log) Undo(store TextureStore) (Entry, bool) {
	if len(l.entries) == 0 {
		return nil, false
	}
	last := l.entries[len(l.entries)-1]
	l.entries[len(l.entries)-1] = nil
	l.entries = l.entries[:len(l.entries)-1]
	last.revert(store)
	return last, true
}

func (l *Log) Len() int {
	return len(l.entries)
}

// Entries returns the log oldest first.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Restore replaces the log with previously saved entries.
func (l *Log) Restore(entries []Entry) {
	l.entries = append([]Entry(nil), entries...)
}

// ReferencedRegions lists every region id mentioned by the log.
func (l *Log) ReferencedRegions() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range l.entries {
		for _, id := range e.Regions() {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

func existing(store TextureStore, ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if _, dup := seen[id]; dup || !store.Has(id) {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
