package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ============================================================
// Wall Mask
// ============================================================

// Contour is one wall outline as a flat x,y list in mask units.
type Contour struct {
	ID     string    `json:"id"`
	Points []float64 `json:"points"`
}

// Mask is a parsed wall mask. Width and Height are the mask's user-space
// extent, zero when the document does not state one.
type Mask struct {
	Width    float64
	Height   float64
	Contours []Contour
}

// IsWall reports whether an element id marks a wall.
func IsWall(id string) bool {
	return strings.HasPrefix(id, "Wall_") || strings.HasPrefix(id, "Hui_Wall_")
}

// ParseSVG reads wall rects, paths and polygons at any depth of the document.
// Elements whose id is not a wall id are skipped; so are walls with fewer
// than three distinct corners.
func ParseSVG(r io.Reader) (Mask, error) {
	var mask Mask
	decoder := xml.NewDecoder(r)
	sawRoot := false

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Mask{}, fmt.Errorf("parse svg: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		attrs := attrMap(start.Attr)
		if !sawRoot {
			if start.Name.Local != "svg" {
				return Mask{}, fmt.Errorf("parse svg: root element is <%s>", start.Name.Local)
			}
			sawRoot = true
			mask.Width, mask.Height = extent(attrs)
			continue
		}

		id := attrs["id"]
		if !IsWall(id) {
			continue
		}

		var points []float64
		switch start.Name.Local {
		case "rect":
			points = rectPoints(attrs)
		case "path":
			path, err := ParsePath(attrs["d"])
			if err != nil {
				continue
			}
			points = path
		case "polygon":
			points = parseCoords(attrs["points"])
		default:
			continue
		}

		points = dropClosingPoint(points)
		if len(points)/2 < 3 {
			continue
		}
		mask.Contours = append(mask.Contours, Contour{ID: id, Points: points})
	}

	if !sawRoot {
		return Mask{}, fmt.Errorf("parse svg: empty document")
	}
	return mask, nil
}

// Scale multiplies every coordinate of the mask.
func (m Mask) Scale(sx, sy float64) Mask {
	out := Mask{Width: m.Width * sx, Height: m.Height * sy}
	for _, c := range m.Contours {
		pts := make([]float64, len(c.Points))
		for i, v := range c.Points {
			if i%2 == 0 {
				pts[i] = v * sx
			} else {
				pts[i] = v * sy
			}
		}
		out.Contours = append(out.Contours, Contour{ID: c.ID, Points: pts})
	}
	return out
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}

// extent prefers the viewBox size over width/height.
func extent(attrs map[string]string) (float64, float64) {
	if vb := parseCoords(attrs["viewBox"]); len(vb) == 4 && vb[2] > 0 && vb[3] > 0 {
		return vb[2], vb[3]
	}
	return length(attrs["width"]), length(attrs["height"])
}

func length(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func coordinate(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "px"), 64)
	if err != nil {
		return 0
	}
	return v
}

func rectPoints(attrs map[string]string) []float64 {
	x, y := coordinate(attrs["x"]), coordinate(attrs["y"])
	w, h := length(attrs["width"]), length(attrs["height"])
	if w <= 0 || h <= 0 {
		return nil
	}
	return []float64{x, y, x + w, y, x + w, y + h, x, y + h}
}

func dropClosingPoint(points []float64) []float64 {
	n := len(points)
	if n >= 4 && points[0] == points[n-2] && points[1] == points[n-1] {
		return points[:n-2]
	}
	return points
}
