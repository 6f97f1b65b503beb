// Package geom holds the plain data types shared across the detection
// pipeline: rectangles, detection results and the borrowed view over a
// grayscale image plane.
package geom

// Rectangle is an axis-aligned box. X and Y are signed because a candidate
// window can extend outside the source image before it is padded; Width and
// Height are always non-negative.
type Rectangle struct {
	X, Y          int32
	Width, Height uint32
}

// Right returns the inclusive right edge, x + width - 1.
func (r Rectangle) Right() int32 {
	return r.X + int32(r.Width) - 1
}

// Bottom returns the inclusive bottom edge, y + height - 1.
func (r Rectangle) Bottom() int32 {
	return r.Y + int32(r.Height) - 1
}

// Area returns width * height.
func (r Rectangle) Area() int64 {
	return int64(r.Width) * int64(r.Height)
}

// FaceInfo is a single detection result: a bounding box, a confidence score
// and three pose angles. This system never estimates pose, so Roll, Pitch
// and Yaw are always zero; the fields exist to preserve the shape callers
// of a full face-analysis pipeline expect.
type FaceInfo struct {
	Bbox             Rectangle
	Score            float64
	Roll, Pitch, Yaw float64
}

// ImageView is a borrowed view over an 8-bit grayscale plane. Stride always
// equals Width; there is an implicit channel count of one.
type ImageView struct {
	Pixels        []uint8
	Width, Height int
}

// Valid reports whether the view's length is consistent with its declared
// dimensions and non-empty. Feature maps reject any view that fails this
// check.
func (v ImageView) Valid() bool {
	return v.Width > 0 && v.Height > 0 && len(v.Pixels) == v.Width*v.Height
}

// At returns the pixel at (x, y). Callers must keep x, y within bounds;
// this is a hot path queried for every window and does not bounds-check.
func (v ImageView) At(x, y int) uint8 {
	return v.Pixels[y*v.Width+x]
}
