// Package geometry holds the pure polygon helpers used by the editor core.
// Functions never panic: malformed input degrades to zero values.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ============================================================
// Primitives
// ============================================================

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned rectangle.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the box.
func (b Box) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// MinPolygonPoints is the smallest vertex count of a closed region.
const MinPolygonPoints = 3

// ============================================================
// Reductions
// ============================================================

// Bounds returns the minimal box containing all points. Fewer than two
// points yield a zero box at the origin, since regions under construction
// legitimately pass through that state.
func Bounds(points []Point) Box {
	if len(points) < 2 {
		return Box{}
	}
	xs, ys := split(points)
	minX, maxX := floats.Min(xs), floats.Max(xs)
	minY, maxY := floats.Min(ys), floats.Max(ys)
	return Box{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Center is the midpoint of Bounds.
func Center(points []Point) Point {
	return Bounds(points).Center()
}

// Centroid is the arithmetic mean of the vertices. It differs from Center
// for irregular contours and is what detected-region markers sit on.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	xs, ys := split(points)
	n := float64(len(points))
	return Point{X: floats.Sum(xs) / n, Y: floats.Sum(ys) / n}
}

// ProjectBox scales origin and size of an image-space box into canvas space.
func ProjectBox(b Box, scaleX, scaleY float64) Box {
	return Box{
		X:      b.X * scaleX,
		Y:      b.Y * scaleY,
		Width:  b.Width * scaleX,
		Height: b.Height * scaleY,
	}
}

// ============================================================
// Conversions
// ============================================================

// Flatten turns points into x0,y0,x1,y1,... as the render surface expects.
func Flatten(points []Point) []float64 {
	out := make([]float64, 0, len(points)*2)
	for _, p := range points {
		out = append(out, p.X, p.Y)
	}
	return out
}

// Pairs is the inverse of Flatten. A trailing odd coordinate is dropped.
func Pairs(flat []float64) []Point {
	out := make([]Point, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		out = append(out, Point{X: flat[i], Y: flat[i+1]})
	}
	return out
}

// Scale multiplies every point component-wise.
func Scale(points []Point, scaleX, scaleY float64) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{X: p.X * scaleX, Y: p.Y * scaleY}
	}
	return out
}

// Clone copies a point slice.
func Clone(points []Point) []Point {
	if points == nil {
		return nil
	}
	out := make([]Point, len(points))
	copy(out, points)
	return out
}

// ============================================================
// Predicates
// ============================================================

// Valid reports whether points can form a closed region: at least three
// vertices, all of them finite.
func Valid(points []Point) bool {
	if len(points) < MinPolygonPoints {
		return false
	}
	for _, p := range points {
		if !finite(p.X) || !finite(p.Y) {
			return false
		}
	}
	return true
}

// Contains reports whether p lies inside the implicitly closed polygon
// using the even-odd rule.
func Contains(polygon []Point, p Point) bool {
	n := len(polygon)
	if n < MinPolygonPoints {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := polygon[i].X, polygon[i].Y
		xj, yj := polygon[j].X, polygon[j].Y
		if (yi > p.Y) != (yj > p.Y) && p.X < (xj-xi)*(p.Y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

func split(points []Point) ([]float64, []float64) {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	return xs, ys
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
