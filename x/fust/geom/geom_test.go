package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectangleEdges(t *testing.T) {
	r := Rectangle{X: 10, Y: 20, Width: 5, Height: 8}
	assert.Equal(t, int32(14), r.Right())
	assert.Equal(t, int32(27), r.Bottom())
	assert.Equal(t, int64(40), r.Area())
}

func TestImageViewValid(t *testing.T) {
	assert.True(t, ImageView{Pixels: make([]uint8, 12), Width: 4, Height: 3}.Valid())
	assert.False(t, ImageView{Pixels: make([]uint8, 11), Width: 4, Height: 3}.Valid())
	assert.False(t, ImageView{Pixels: nil, Width: 0, Height: 0}.Valid())
}

func TestImageViewAt(t *testing.T) {
	v := ImageView{Pixels: []uint8{0, 1, 2, 3, 4, 5}, Width: 3, Height: 2}
	assert.Equal(t, uint8(4), v.At(1, 1))
}
