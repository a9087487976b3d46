package region

import (
	"palitra/internal/editor/geometry"

	"github.com/google/uuid"
)

// ============================================================
// Region Model
// ============================================================

type Origin string

const (
	OriginManual   Origin = "manual"
	OriginDetected Origin = "detected"
)

func (o Origin) Valid() bool {
	return o == OriginManual || o == OriginDetected
}

// Region is one wall: a closed polygon in image-pixel space with an
// optional texture. An empty TextureID means no treatment is applied.
type Region struct {
	ID        string           `json:"id"`
	Origin    Origin           `json:"origin"`
	Geometry  []geometry.Point `json:"geometry"`
	TextureID string           `json:"textureId,omitempty"`
}

func (r Region) HasTexture() bool {
	return r.TextureID != ""
}

func (r Region) clone() Region {
	r.Geometry = geometry.Clone(r.Geometry)
	return r
}

// ============================================================
// Collection
// ============================================================

// Collection keeps regions in insertion order, which is also their paint
// order. Ids handed out by a collection are never handed out again.
type Collection struct {
	order []string
	byID  map[string]*Region
	used  map[string]struct{}
	newID func() string
}

type Option func(*Collection)

// WithIDGenerator replaces uuid.NewString as the id source.
func WithIDGenerator(fn func() string) Option {
	return func(c *Collection) {
		c.newID = fn
	}
}

func NewCollection(opts ...Option) *Collection {
	c := &Collection{
		byID:  make(map[string]*Region),
		used:  make(map[string]struct{}),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddManual stores a user-drawn polygon. Invalid geometry is rejected.
func (c *Collection) AddManual(points []geometry.Point) (Region, bool) {
	return c.add(OriginManual, points)
}

// ReplaceDetected drops every detected region and adds the given contours
// under fresh ids. Contours that cannot form a polygon are skipped.
func (c *Collection) ReplaceDetected(contours [][]geometry.Point) (added, removed []string) {
	removed = c.RemoveDetected()
	for _, contour := range contours {
		if r, ok := c.add(OriginDetected, contour); ok {
			added = append(added, r.ID)
		}
	}
	return added, removed
}

// RemoveDetected drops all detected regions and returns their ids.
func (c *Collection) RemoveDetected() []string {
	return c.Remove(c.OfOrigin(OriginDetected))
}

// Remove drops the listed regions and returns the ids that existed.
func (c *Collection) Remove(ids []string) []string {
	drop := make(map[string]struct{}, len(ids))
	var removed []string
	for _, id := range ids {
		if _, ok := c.byID[id]; !ok {
			continue
		}
		if _, dup := drop[id]; dup {
			continue
		}
		drop[id] = struct{}{}
		removed = append(removed, id)
		delete(c.byID, id)
	}
	if len(removed) == 0 {
		return nil
	}

	kept := c.order[:0]
	for _, id := range c.order {
		if _, gone := drop[id]; !gone {
			kept = append(kept, id)
		}
	}
	c.order = kept
	return removed
}

func (c *Collection) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

func (c *Collection) Get(id string) (Region, bool) {
	r, ok := c.byID[id]
	if !ok {
		return Region{}, false
	}
	return r.clone(), true
}

// All returns copies of every region in paint order.
func (c *Collection) All() []Region {
	out := make([]Region, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].clone())
	}
	return out
}

// IDs returns region ids in paint order.
func (c *Collection) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Collection) Len() int {
	return len(c.order)
}

// OfOrigin lists ids of one origin in paint order.
func (c *Collection) OfOrigin(origin Origin) []string {
	var out []string
	for _, id := range c.order {
		if c.byID[id].Origin == origin {
			out = append(out, id)
		}
	}
	return out
}

// OriginOf returns the origin of a region.
func (c *Collection) OriginOf(id string) (Origin, bool) {
	r, ok := c.byID[id]
	if !ok {
		return "", false
	}
	return r.Origin, true
}

// ============================================================
// Textures
// ============================================================

// Texture returns the texture applied to id; ok is false when the region
// is unknown or untextured.
func (c *Collection) Texture(id string) (string, bool) {
	r, exists := c.byID[id]
	if !exists || r.TextureID == "" {
		return "", false
	}
	return r.TextureID, true
}

// SetTexture applies textureID to id; an empty textureID clears it. Unknown
// ids are ignored.
func (c *Collection) SetTexture(id, textureID string) {
	if r, ok := c.byID[id]; ok {
		r.TextureID = textureID
	}
}

// Textured maps every textured region to its texture.
func (c *Collection) Textured() map[string]string {
	out := make(map[string]string)
	for _, id := range c.order {
		if r := c.byID[id]; r.TextureID != "" {
			out[id] = r.TextureID
		}
	}
	return out
}

// UsesTexture reports whether any region currently carries textureID.
func (c *Collection) UsesTexture(textureID string) bool {
	for _, r := range c.byID {
		if r.TextureID == textureID {
			return true
		}
	}
	return false
}

// ============================================================
// Restore
// ============================================================

// Restore replaces the contents with previously saved regions. Regions with
// invalid geometry, unknown origin or duplicate ids are skipped.
func (c *Collection) Restore(regions []Region) int {
	c.order = nil
	c.byID = make(map[string]*Region)
	for _, r := range regions {
		if r.ID == "" || !r.Origin.Valid() || !geometry.Valid(r.Geometry) {
			continue
		}
		if _, dup := c.byID[r.ID]; dup {
			continue
		}
		stored := r.clone()
		c.byID[r.ID] = &stored
		c.order = append(c.order, r.ID)
		c.used[r.ID] = struct{}{}
	}
	return len(c.order)
}

// Reserve marks ids as issued so they are never generated again.
func (c *Collection) Reserve(ids ...string) {
	for _, id := range ids {
		if id != "" {
			c.used[id] = struct{}{}
		}
	}
}

func (c *Collection) add(origin Origin, points []geometry.Point) (Region, bool) {
	if !geometry.Valid(points) {
		return Region{}, false
	}
	r := &Region{
		ID:       c.allocate(),
		Origin:   origin,
		Geometry: geometry.Clone(points),
	}
	c.byID[r.ID] = r
	c.order = append(c.order, r.ID)
	return r.clone(), true
}

func (c *Collection) allocate() string {
	for {
		id := c.newID()
		if _, taken := c.used[id]; taken || id == "" {
			continue
		}
		c.used[id] = struct{}{}
		return id
	}
}
