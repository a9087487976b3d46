package history

import (
	"encoding/json"
	"fmt"
)

// ============================================================
// Entries
// ============================================================

type Kind string

const (
	KindApply     Kind = "apply"
	KindClearSome Kind = "clear"
	KindClearAll  Kind = "clear_all"
)

// Entry is one reversible texture mutation. Prior maps each touched region
// to the texture it had before; "" means it had none.
type Entry interface {
	Kind() Kind
	Regions() []string
	revert(store TextureStore)
}

type Apply struct {
	RegionIDs []string
	TextureID string
	Prior     map[string]string
}

func (Apply) Kind() Kind { return KindApply }

func (e Apply) Regions() []string { return e.RegionIDs }

func (e Apply) revert(store TextureStore) {
	for _, id := range e.RegionIDs {
		store.SetTexture(id, e.Prior[id])
	}
}

type ClearSome struct {
	RegionIDs []string
	Prior     map[string]string
}

func (ClearSome) Kind() Kind { return KindClearSome }

func (e ClearSome) Regions() []string { return e.RegionIDs }

func (e ClearSome) revert(store TextureStore) {
	for _, id := range e.RegionIDs {
		store.SetTexture(id, e.Prior[id])
	}
}

// ClearAll records every region that was textured when it ran. Regions
// outside Prior were untextured and stay that way on revert.
type ClearAll struct {
	Prior map[string]string
}

func (ClearAll) Kind() Kind { return KindClearAll }

func (e ClearAll) Regions() []string {
	out := make([]string, 0, len(e.Prior))
	for id := range e.Prior {
		out = append(out, id)
	}
	return out
}

func (e ClearAll) revert(store TextureStore) {
	for id, tex := range e.Prior {
		store.SetTexture(id, tex)
	}
}

// ============================================================
// Codec
// ============================================================

type wireEntry struct {
	Kind      Kind              `json:"kind"`
	RegionIDs []string          `json:"regionIds,omitempty"`
	TextureID string            `json:"textureId,omitempty"`
	Prior     map[string]string `json:"priorTextureByRegion"`
}

// MarshalEntries encodes entries with a kind tag per entry.
func MarshalEntries(entries []Entry) ([]byte, error) {
	wire := make([]wireEntry, 0, len(entries))
	for _, e := range entries {
		switch v := e.(type) {
		case Apply:
			wire = append(wire, wireEntry{Kind: KindApply, RegionIDs: v.RegionIDs, TextureID: v.TextureID, Prior: v.Prior})
		case ClearSome:
			wire = append(wire, wireEntry{Kind: KindClearSome, RegionIDs: v.RegionIDs, Prior: v.Prior})
		case ClearAll:
			wire = append(wire, wireEntry{Kind: KindClearAll, Prior: v.Prior})
		default:
			return nil, fmt.Errorf("unknown entry type %T", e)
		}
	}
	return json.Marshal(wire)
}

// UnmarshalEntries decodes what MarshalEntries produced.
func UnmarshalEntries(data []byte) ([]Entry, error) {
	var wire []wireEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}

	entries := make([]Entry, 0, len(wire))
	for i, w := range wire {
		prior := w.Prior
		if prior == nil {
			prior = map[string]string{}
		}
		switch w.Kind {
		case KindApply:
			if w.TextureID == "" || len(w.RegionIDs) == 0 {
				return nil, fmt.Errorf("entry %d: apply needs regions and a texture", i)
			}
			entries = append(entries, Apply{RegionIDs: w.RegionIDs, TextureID: w.TextureID, Prior: prior})
		case KindClearSome:
			if len(w.RegionIDs) == 0 {
				return nil, fmt.Errorf("entry %d: clear needs regions", i)
			}
			entries = append(entries, ClearSome{RegionIDs: w.RegionIDs, Prior: prior})
		case KindClearAll:
			entries = append(entries, ClearAll{Prior: prior})
		default:
			return nil, fmt.Errorf("entry %d: unknown kind %q", i, w.Kind)
		}
	}
	return entries, nil
}
