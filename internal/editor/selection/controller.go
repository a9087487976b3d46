package selection

import (
	"palitra/internal/editor/geometry"
	"palitra/internal/editor/region"
)

// ============================================================
// Collaborators
// ============================================================

// Regions is the read side of the region model the controller needs.
type Regions interface {
	Has(id string) bool
	IDs() []string
	Get(id string) (region.Region, bool)
	OriginOf(id string) (region.Origin, bool)
	OfOrigin(origin region.Origin) []string
}

// Mode answers whether the drawing machine currently owns clicks.
type Mode interface {
	Active() bool
}

type Cursor string

const (
	CursorDefault Cursor = "default"
	CursorPointer Cursor = "pointer"
)

// Summary counts the selection by origin.
type Summary struct {
	Total    int `json:"total"`
	Detected int `json:"detected"`
	Manual   int `json:"manual"`
}

// ============================================================
// Controller
// ============================================================

// Controller owns the selection set and arbitrates pointer input between
// selecting and drawing. Every id it holds refers to an existing region.
type Controller struct {
	regions Regions
	mode    Mode
	set     *Set
	cursor  Cursor
}

func NewController(regions Regions, mode Mode) *Controller {
	return &Controller{
		regions: regions,
		mode:    mode,
		set:     NewSet(),
		cursor:  CursorDefault,
	}
}

// Toggle flips membership of id. Unknown ids are ignored.
func (c *Controller) Toggle(id string) bool {
	if !c.regions.Has(id) {
		return false
	}
	if c.set.Has(id) {
		c.set.Remove(id)
	} else {
		c.set.Add(id)
	}
	return true
}

// SelectMany adds every known id in ids and returns how many were added.
func (c *Controller) SelectMany(ids []string) int {
	n := 0
	for _, id := range ids {
		if c.regions.Has(id) && c.set.Add(id) {
			n++
		}
	}
	return n
}

// SelectAllOfOrigin adds every region of origin to the selection, leaving
// the rest of the selection untouched.
func (c *Controller) SelectAllOfOrigin(origin region.Origin) int {
	return c.SelectMany(c.regions.OfOrigin(origin))
}

func (c *Controller) Clear() bool {
	if c.set.Len() == 0 {
		return false
	}
	c.set.Clear()
	return true
}

// Deselect drops ids from the selection; used when regions are removed.
func (c *Controller) Deselect(ids ...string) int {
	return c.set.Remove(ids...)
}

// Prune drops selected ids that no longer have a region and returns them.
func (c *Controller) Prune() []string {
	var dangling []string
	for _, id := range c.set.IDs() {
		if !c.regions.Has(id) {
			dangling = append(dangling, id)
		}
	}
	c.set.Remove(dangling...)
	return dangling
}

func (c *Controller) IsSelected(id string) bool {
	return c.set.Has(id)
}

func (c *Controller) Selected() []string {
	return c.set.IDs()
}

func (c *Controller) Summary() Summary {
	var s Summary
	for _, id := range c.set.IDs() {
		origin, ok := c.regions.OriginOf(id)
		if !ok {
			continue
		}
		s.Total++
		switch origin {
		case region.OriginDetected:
			s.Detected++
		case region.OriginManual:
			s.Manual++
		}
	}
	return s
}

// ============================================================
// Hit-testing
// ============================================================

// HitTest returns the topmost region whose polygon contains p. p must be in
// the same space as region geometry.
func (c *Controller) HitTest(p geometry.Point) (string, bool) {
	ids := c.regions.IDs()
	for i := len(ids) - 1; i >= 0; i-- {
		r, ok := c.regions.Get(ids[i])
		if ok && geometry.Contains(r.Geometry, p) {
			return r.ID, true
		}
	}
	return "", false
}

// Click handles a pointer click that landed on region id. While drawing the
// click is not consumed and the selection stays as it is.
func (c *Controller) Click(id string) bool {
	if c.mode.Active() {
		return false
	}
	return c.Toggle(id)
}

// PointerEnter shows the interactive cursor over a selectable region.
func (c *Controller) PointerEnter(id string) Cursor {
	if !c.mode.Active() && c.regions.Has(id) {
		c.cursor = CursorPointer
	}
	return c.cursor
}

// PointerLeave always resets the cursor, whatever the mode.
func (c *Controller) PointerLeave() Cursor {
	c.cursor = CursorDefault
	return c.cursor
}

func (c *Controller) Cursor() Cursor {
	return c.cursor
}
