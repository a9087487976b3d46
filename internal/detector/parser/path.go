package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ============================================================
// Path Parser
// ============================================================

var pathCommand = regexp.MustCompile(`([MmLlHhVvZz])([^MmLlHhVvZz]*)`)

// ParsePath flattens the straight-line subset of SVG path data (M, L, H, V
// and Z in both absolute and relative form) into a flat x,y list. Repeated
// coordinate pairs after M and L are treated as implicit line-tos.
func ParsePath(d string) ([]float64, error) {
	d = strings.TrimSpace(d)
	if d == "" {
		return nil, fmt.Errorf("empty path")
	}

	var points []float64
	var x, y float64

	for _, match := range pathCommand.FindAllStringSubmatch(d, -1) {
		cmd := match[1]
		coords := parseCoords(match[2])

		switch cmd {
		case "M", "L":
			for i := 0; i+1 < len(coords); i += 2 {
				x, y = coords[i], coords[i+1]
				points = append(points, x, y)
			}
		case "m", "l":
			for i := 0; i+1 < len(coords); i += 2 {
				x += coords[i]
				y += coords[i+1]
				points = append(points, x, y)
			}
		case "H":
			for _, v := range coords {
				x = v
				points = append(points, x, y)
			}
		case "h":
			for _, v := range coords {
				x += v
				points = append(points, x, y)
			}
		case "V":
			for _, v := range coords {
				y = v
				points = append(points, x, y)
			}
		case "v":
			for _, v := range coords {
				y += v
				points = append(points, x, y)
			}
		case "Z", "z":
			// closing is implicit for a contour
			if len(points) >= 2 {
				x, y = points[0], points[1]
			}
		}
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("path %q has no points", d)
	}
	return points, nil
}

func parseCoords(s string) []float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	s = strings.ReplaceAll(s, ",", " ")
	var coords []float64
	for _, part := range strings.Fields(s) {
		if val, err := strconv.ParseFloat(part, 64); err == nil {
			coords = append(coords, val)
		}
	}
	return coords
}
