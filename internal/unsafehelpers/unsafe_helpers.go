// Package unsafehelpers centralises **all** unavoidable usage of the
// `unsafe` standard-library package so that the rest of the swarm core stays
// clean and easier to audit. Every helper is documented with clear pre-/post-
// conditions.
//
// The swarm stores instances as raw bytes inside arena bins (see
// internal/arena) and reinterprets a slot's bytes as a live *A only while a
// handler holds it exclusively. Every such reinterpretation funnels through
// here so the rest of the module stays free of unsafe.Pointer casts.
//
// ⚠️  **DISCLAIMER**   These helpers deliberately break the Go memory-safety
// model for the sake of in-place, zero-copy access to packed instance
// storage. Use ONLY inside this module; they are not part of the public API
// and may change without notice. Misuse will lead to subtle corruption.
package unsafehelpers

import "unsafe"

/* -------------------------------------------------------------------------
   1. Pointer <-> typed value
   ------------------------------------------------------------------------- */

// AsPtr reinterprets the start of a byte slice as a *T. The caller must
// guarantee len(b) is at least the size of T; arena bins allocate slot
// strides that already satisfy this for their size class.
func AsPtr[T any](b []byte) *T {
	if len(b) == 0 {
		return nil
	}
	return (*T)(unsafe.Pointer(unsafe.SliceData(b)))
}

// AsBytes returns a []byte view over *T of length n, without copying.
func AsBytes[T any](p *T, n int) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), n)
}

/* -------------------------------------------------------------------------
   2. Generic pointer -> slice helpers
   ------------------------------------------------------------------------- */

// PtrSlice converts an arbitrary *T pointer + element count into a []T
// without copying. Useful when an arena-allocated run of fixed-size records
// (e.g. slot-map chunks) needs to be treated as a slice for iteration.
func PtrSlice[T any](ptr *T, n int) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice(ptr, n)
}

// ByteSliceFrom returns a []byte view of raw memory starting at ptr with the
// given length. Caller must ensure the memory block is at least length
// bytes.
func ByteSliceFrom(ptr unsafe.Pointer, length uintptr) []byte {
	return unsafe.Slice((*byte)(ptr), length)
}

/* -------------------------------------------------------------------------
   3. Alignment / size-class helpers
   ------------------------------------------------------------------------- */

// AlignUp rounds x up to the nearest multiple of align (which must be a power
// of two). Fast bit-twiddling alternative to math.Ceil for sizes.
func AlignUp(x, align uintptr) uintptr {
	return (x + align - 1) &^ (align - 1)
}

// IsPowerOfTwo returns true if x is a power of two (exactly one bit set).
func IsPowerOfTwo(x uintptr) bool {
	return x != 0 && (x&(x-1)) == 0
}

// NextPowerOfTwo returns the smallest power of two >= x. x must be > 0.
func NextPowerOfTwo(x uintptr) uintptr {
	if IsPowerOfTwo(x) {
		return x
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	return x + 1
}
