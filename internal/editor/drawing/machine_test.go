package drawing

import (
	"testing"

	"palitra/internal/editor/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_IgnoresPointsWhileIdle(t *testing.T) {
	t.Parallel()

	m := New()
	assert.Equal(t, Idle, m.State())
	assert.False(t, m.AddPoint(geometry.Point{X: 1, Y: 1}))
	assert.Empty(t, m.Points())
}

func TestMachine_CompleteWithEnoughPoints(t *testing.T) {
	t.Parallel()

	for n := 3; n <= 6; n++ {
		m := New()
		m.Start()
		var want []geometry.Point
		for i := 0; i < n; i++ {
			p := geometry.Point{X: float64(i * 10), Y: float64(i * i)}
			require.True(t, m.AddPoint(p))
			want = append(want, p)
		}

		got, ok := m.Complete()
		require.True(t, ok)
		assert.Equal(t, want, got)
		assert.Equal(t, Idle, m.State())
		assert.Empty(t, m.Points())
	}
}

func TestMachine_CompleteWithTooFewPointsIsNoop(t *testing.T) {
	t.Parallel()

	for n := 0; n < 3; n++ {
		m := New()
		m.Start()
		for i := 0; i < n; i++ {
			m.AddPoint(geometry.Point{X: float64(i), Y: 0})
		}
		before := m.Points()

		got, ok := m.Complete()
		assert.False(t, ok)
		assert.Nil(t, got)
		assert.Equal(t, Drawing, m.State())
		assert.Equal(t, before, m.Points())
	}
}

func TestMachine_CompleteWhileIdleIsNoop(t *testing.T) {
	t.Parallel()

	m := New()
	_, ok := m.Complete()
	assert.False(t, ok)
	assert.Equal(t, Idle, m.State())
}

func TestMachine_RestartDiscardsPoints(t *testing.T) {
	t.Parallel()

	m := New()
	m.Start()
	m.AddPoint(geometry.Point{X: 1, Y: 1})
	m.Start()
	assert.True(t, m.Active())
	assert.Empty(t, m.Points())

	m.AddPoint(geometry.Point{X: 2, Y: 2})
	m.Discard()
	assert.False(t, m.Active())
	assert.Empty(t, m.Points())
}
