package pointer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceKind_String(t *testing.T) {
	assert.Equal(t, "mouse", Mouse.String())
	assert.Equal(t, "touch", Touch.String())
	assert.Equal(t, "pen", Pen.String())
	assert.Equal(t, "kind(99)", DeviceKind(99).String())
}

func TestParseDeviceKind_RoundTrip(t *testing.T) {
	for _, k := range []DeviceKind{Mouse, Touch, Pen} {
		got, err := ParseDeviceKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseDeviceKind("trackball")
	assert.Error(t, err)
}

func TestButtons_Contains(t *testing.T) {
	b := ButtonPrimary | ButtonSecondary

	assert.True(t, b.Contains(ButtonPrimary))
	assert.True(t, b.Contains(ButtonPrimary|ButtonSecondary))
	assert.False(t, b.Contains(ButtonTertiary))
	assert.False(t, b.Contains(ButtonPrimary|ButtonTertiary))
}

func TestPointer_InitAndReset(t *testing.T) {
	var p Pointer
	p.Init(7, Template{
		Kind:    Touch,
		Pos:     Point{X: 10, Y: 20},
		Buttons: ButtonPrimary,
		Flags:   3,
	})

	assert.Equal(t, ID(7), p.ID)
	assert.Equal(t, Touch, p.Kind)
	assert.Equal(t, Point{X: 10, Y: 20}, p.Pos)
	// PrevPos starts equal to Pos
	assert.Equal(t, p.Pos, p.PrevPos)
	assert.Equal(t, ButtonPrimary, p.Buttons)
	assert.Equal(t, Flags(3), p.Flags)
	assert.False(t, p.Pressed())

	p.Reset()
	assert.Equal(t, None, p.ID)
	assert.Equal(t, Pointer{}, p)
}

type fakeLayer struct{ name string }

func (l *fakeLayer) Name() string { return l.name }

func TestOwnership_Valid(t *testing.T) {
	var p Pointer
	p.Init(1, Template{Kind: Mouse})

	assert.False(t, p.Press.Valid())
	assert.False(t, p.Pressed())

	p.Press = Ownership{Layer: &fakeLayer{name: "canvas"}, Context: "hit-data"}
	assert.True(t, p.Press.Valid())
	assert.True(t, p.Pressed())

	p.Press = Ownership{}
	assert.False(t, p.Pressed())
}
