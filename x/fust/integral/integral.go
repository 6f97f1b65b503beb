// Package integral computes integral (summed-area) images in place over a
// row-major plane, so that any rectangle sum can later be read back in four
// lookups.
package integral

// InPlaceI32 turns data, a width*height plane of raw values, into its
// integral image in place: data[y*width+x] becomes the sum of all source
// values at or above and at or left of (x, y).
func InPlaceI32(data []int32, width, height int) {
	if width == 0 || height == 0 {
		return
	}

	for c := 1; c < width; c++ {
		data[c] += data[c-1]
	}

	for r := 1; r < height; r++ {
		row := r * width
		prev := row - width
		s := data[row]
		data[row] += data[prev]
		for c := 1; c < width; c++ {
			s += data[row+c]
			data[row+c] = data[prev+c] + s
		}
	}
}

// InPlaceU32 is InPlaceI32 for an unsigned plane. Addition wraps on
// overflow, which is intentional: the squared-intensity integral relies on
// it.
func InPlaceU32(data []uint32, width, height int) {
	if width == 0 || height == 0 {
		return
	}

	for c := 1; c < width; c++ {
		data[c] += data[c-1]
	}

	for r := 1; r < height; r++ {
		row := r * width
		prev := row - width
		s := data[row]
		data[row] += data[prev]
		for c := 1; c < width; c++ {
			s += data[row+c]
			data[row+c] = data[prev+c] + s
		}
	}
}

// RectSumI32 returns the sum over [x0,x1) x [y0,y1) of the plane whose
// integral image is img (width x height), using the standard four-corner
// formula. Bounds are assumed valid.
func RectSumI32(img []int32, width, x0, y0, x1, y1 int) int64 {
	br := cornerI32(img, width, x1-1, y1-1)
	tr := cornerI32(img, width, x1-1, y0-1)
	bl := cornerI32(img, width, x0-1, y1-1)
	tl := cornerI32(img, width, x0-1, y0-1)
	return br - tr - bl + tl
}

func cornerI32(img []int32, width, x, y int) int64 {
	if x < 0 || y < 0 {
		return 0
	}
	return int64(img[y*width+x])
}

// RectSumU32 is RectSumI32 for a plane whose integral image was built with
// InPlaceU32. Subtraction wraps the same way the forward pass did, so the
// result is only meaningful modulo 2^32 (which is exactly what the
// squared-intensity integral needs).
func RectSumU32(img []uint32, width, x0, y0, x1, y1 int) uint32 {
	br := cornerU32(img, width, x1-1, y1-1)
	tr := cornerU32(img, width, x1-1, y0-1)
	bl := cornerU32(img, width, x0-1, y1-1)
	tl := cornerU32(img, width, x0-1, y0-1)
	return br - tr - bl + tl
}

func cornerU32(img []uint32, width, x, y int) uint32 {
	if x < 0 || y < 0 {
		return 0
	}
	return img[y*width+x]
}
