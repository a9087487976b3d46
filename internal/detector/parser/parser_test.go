package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		d       string
		want    []float64
		wantErr bool
	}{
		{name: "absolute", d: "M 0 0 L 10 0 L 10 10 Z", want: []float64{0, 0, 10, 0, 10, 10}},
		{name: "relative", d: "m5,5 l10,0 l0,10 l-10,0 z", want: []float64{5, 5, 15, 5, 15, 15, 5, 15}},
		{name: "horizontal vertical", d: "M0 0 H20 V10 h-20 v-10", want: []float64{0, 0, 20, 0, 20, 10, 0, 10, 0, 0}},
		{name: "implicit lineto", d: "M0 0 10 0 10 10", want: []float64{0, 0, 10, 0, 10, 10}},
		{name: "empty", d: "  ", wantErr: true},
		{name: "only close", d: "Z", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePath(tt.d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

const wallMask = `<?xml version="1.0"?>
<svg xmlns="http://www.w3.org/2000/svg" width="400" height="300" viewBox="0 0 200 150">
  <rect id="Wall_1" x="10" y="20" width="30" height="40"/>
  <g id="layer">
    <path id="Wall_2" d="M 50 50 L 100 50 L 100 100 L 50 100 Z"/>
    <polygon id="Hui_Wall_3" points="0,0 5,0 5,5"/>
  </g>
  <rect id="Door_1" x="0" y="0" width="5" height="5"/>
  <rect id="Wall_flat" x="0" y="0" width="0" height="5"/>
  <path id="Wall_line" d="M0 0 L5 5"/>
</svg>`

func TestParseSVG(t *testing.T) {
	t.Parallel()

	mask, err := ParseSVG(strings.NewReader(wallMask))
	require.NoError(t, err)

	assert.Equal(t, 200.0, mask.Width)
	assert.Equal(t, 150.0, mask.Height)
	require.Len(t, mask.Contours, 3)
	assert.Equal(t, Contour{ID: "Wall_1", Points: []float64{10, 20, 40, 20, 40, 60, 10, 60}}, mask.Contours[0])
	assert.Equal(t, Contour{ID: "Wall_2", Points: []float64{50, 50, 100, 50, 100, 100, 50, 100}}, mask.Contours[1])
	assert.Equal(t, "Hui_Wall_3", mask.Contours[2].ID)
}

func TestParseSVG_WidthHeightWithoutViewBox(t *testing.T) {
	t.Parallel()

	mask, err := ParseSVG(strings.NewReader(`<svg width="640px" height="480"><rect id="Wall_1" x="0" y="0" width="1" height="1"/></svg>`))
	require.NoError(t, err)
	assert.Equal(t, 640.0, mask.Width)
	assert.Equal(t, 480.0, mask.Height)
	assert.Len(t, mask.Contours, 1)
}

func TestParseSVG_Errors(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{"", "<html></html>", "<svg><rect"} {
		_, err := ParseSVG(strings.NewReader(doc))
		assert.Error(t, err, doc)
	}
}

func TestMask_Scale(t *testing.T) {
	t.Parallel()

	mask := Mask{Width: 100, Height: 50, Contours: []Contour{{ID: "Wall_1", Points: []float64{10, 10, 20, 10, 20, 20}}}}
	scaled := mask.Scale(2, 4)

	assert.Equal(t, 200.0, scaled.Width)
	assert.Equal(t, 200.0, scaled.Height)
	assert.Equal(t, []float64{20, 40, 40, 40, 40, 80}, scaled.Contours[0].Points)
	assert.Equal(t, []float64{10, 10, 20, 10, 20, 20}, mask.Contours[0].Points, "original untouched")
}
