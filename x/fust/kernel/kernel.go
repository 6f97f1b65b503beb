// Package kernel implements the elementwise numeric primitives shared by the
// LAB and SURF feature maps: widening, squaring, absolute value, vector
// add/sub and an f32 inner product.
//
// The upstream engine these kernels are modeled on dispatches to AVX2/SSSE3/SSE
// assembly when the target CPU supports it. This port keeps the scalar
// fallback only: the feature-map callers never assume a SIMD width, and
// hand-written assembly for five tiny loops would trade a few cycles per
// call for a maintenance burden and a correctness risk this module isn't
// willing to take on. Every kernel here is safe to call with dst aliasing
// one of the sources.
package kernel

// WidenU8ToI32 zero-extends each byte of src into dst. len(dst) must be >=
// len(src); only the first len(src) elements of dst are written.
func WidenU8ToI32(src []uint8, dst []int32) {
	for i, v := range src {
		dst[i] = int32(v)
	}
}

// SquareI32ToU32 writes the square of each element of src into dst,
// reinterpreted as u32. Overflow of the square is expected for
// pixel-intensity-squared integrals and wraps rather than panics.
func SquareI32ToU32(src []int32, dst []uint32) {
	for i, v := range src {
		dst[i] = uint32(v * v)
	}
}

// AbsI32 writes the signed absolute value of each element of src into dst.
// The caller never exercises src[i] == math.MinInt32.
func AbsI32(src, dst []int32) {
	for i, v := range src {
		if v < 0 {
			v = -v
		}
		dst[i] = v
	}
}

// VecAddI32 computes dst[i] = left[i] + right[i]. dst may alias left and/or
// right.
func VecAddI32(left, right, dst []int32) {
	n := len(left)
	for i := 0; i < n; i++ {
		dst[i] = left[i] + right[i]
	}
}

// VecSubI32 computes dst[i] = left[i] - right[i]. dst may alias left and/or
// right.
func VecSubI32(left, right, dst []int32) {
	n := len(left)
	for i := 0; i < n; i++ {
		dst[i] = left[i] - right[i]
	}
}

// InnerProductF32 returns the dot product of left and right, both of which
// must have the same length.
func InnerProductF32(left, right []float32) float32 {
	var sum float32
	for i, v := range left {
		sum += v * right[i]
	}
	return sum
}
