// Package arrayval implements the Array/Large-Object value facility of
// spec.md §2 (component C11): the internal N-dimensional array
// representation with element ref/assign/clip, and the indirect-blob
// segment list plus pipelined reassembly reader spec.md §6 describes for
// large-object values.
package arrayval

import (
	"io"

	"github.com/weaverdb/weaverdb-sub001/access"
	"github.com/weaverdb/weaverdb-sub001/errs"
)

// Value is the internal N-dimensional array representation, grounded on
// arrayfuncs.c's ArrayType header layout (size/ndim/flags followed by a
// dims array then a lower-bounds array) — kept here as explicit Dims and
// LowerBound slices (SUPPLEMENTED FEATURES #8) rather than a flat
// dimension count, so Slice/clip can compute strides faithfully. Elems is
// the flattened element storage in row-major order (the last subscript
// varies fastest, matching GetOffset's linearization).
type Value struct {
	Dims       []int
	LowerBound []int
	Elems      []interface{}
}

// NewValue builds a Value, validating that dims/lowerBound agree in rank
// and that elems has exactly the product-of-dims element count.
func NewValue(dims, lowerBound []int, elems []interface{}) (*Value, error) {
	if len(dims) != len(lowerBound) {
		return nil, errs.Internal.New("array dims and lowerBound differ in rank")
	}
	n := 1
	for _, d := range dims {
		n *= d
	}
	if n != len(elems) {
		return nil, errs.Internal.New("array element count does not match dims")
	}
	return &Value{
		Dims:       append([]int(nil), dims...),
		LowerBound: append([]int(nil), lowerBound...),
		Elems:      append([]interface{}(nil), elems...),
	}, nil
}

// strides returns each dimension's linear-offset multiplier, row-major
// (the last dimension has stride 1), mirroring mda_get_prod.
func (v *Value) strides() []int {
	s := make([]int, len(v.Dims))
	acc := 1
	for i := len(v.Dims) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= v.Dims[i]
	}
	return s
}

// offset linearizes idx (in the array's own lower-bound-relative
// subscript space) into a flat Elems index, mirroring GetOffset.
func (v *Value) offset(idx []int) (int, error) {
	if len(idx) != len(v.Dims) {
		return 0, errs.Internal.New("array subscript count does not match rank")
	}
	strides := v.strides()
	off := 0
	for i, x := range idx {
		d := x - v.LowerBound[i]
		if d < 0 || d >= v.Dims[i] {
			return 0, errs.Internal.New("array subscript out of range")
		}
		off += d * strides[i]
	}
	return off, nil
}

// Element implements expr.Slicer: a single-element read, grounded on
// array_ref's element (non-slice) branch.
func (v *Value) Element(idx []int) (interface{}, error) {
	off, err := v.offset(idx)
	if err != nil {
		return nil, err
	}
	return v.Elems[off], nil
}

// Slice implements expr.Slicer: a rectangular sub-array copy bounded by
// lower/upper per dimension (inclusive), grounded on array_clip. The
// result is always a fresh Value; the receiver is never mutated.
func (v *Value) Slice(lower, upper []int) (interface{}, error) {
	if len(lower) != len(v.Dims) || len(upper) != len(v.Dims) {
		return nil, errs.Internal.New("array slice subscript count does not match rank")
	}
	newDims := make([]int, len(v.Dims))
	for i := range v.Dims {
		newDims[i] = upper[i] - lower[i] + 1
		if newDims[i] <= 0 {
			return nil, errs.Internal.New("array slice has empty or inverted range")
		}
	}
	total := 1
	for _, d := range newDims {
		total *= d
	}
	elems := make([]interface{}, 0, total)

	idx := append([]int(nil), lower...)
	for {
		off, err := v.offset(idx)
		if err != nil {
			return nil, err
		}
		elems = append(elems, v.Elems[off])

		pos := len(idx) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] <= upper[pos] {
				break
			}
			idx[pos] = lower[pos]
			pos--
		}
		if pos < 0 {
			break
		}
	}

	return &Value{
		Dims:       newDims,
		LowerBound: append([]int(nil), lower...),
		Elems:      elems,
	}, nil
}

// WithElement implements expr.Slicer: assignment returns a new Value with
// idx replaced, never mutating the receiver, grounded on array_assgn/
// array_set and spec.md §4.6 "assignment returns a new array value ...
// so that expression semantics stay pure."
func (v *Value) WithElement(idx []int, val interface{}) (interface{}, error) {
	off, err := v.offset(idx)
	if err != nil {
		return nil, err
	}
	elems := append([]interface{}(nil), v.Elems...)
	elems[off] = val
	return &Value{
		Dims:       append([]int(nil), v.Dims...),
		LowerBound: append([]int(nil), v.LowerBound...),
		Elems:      elems,
	}, nil
}

// BlobSegment mirrors blobstorage.h's BlobIndex: one on-disk
// (ItemPointer, length) pair locating a piece of an indirect (out-of-line)
// large-object value, per spec.md §6's persisted indirect-blob layout.
type BlobSegment struct {
	Pointer access.ItemPointer
	Length  int32
}

// SegmentSource resolves one BlobSegment's bytes. Implemented by whichever
// storage layer owns the blob heap; kept narrow here so arrayval does not
// need to import a storage package.
type SegmentSource interface {
	ReadSegment(access.ItemPointer) ([]byte, error)
}

// LargeObject is an indirect (out-of-line) blob value: an ordered segment
// list plus the source that resolves each one, grounded on blobstorage.h's
// BlobIndex list together with open_read_pipeline_blob/
// read_pipeline_segment_blob's segment-at-a-time pull protocol.
type LargeObject struct {
	Segments []BlobSegment
	Source   SegmentSource
}

// Reader returns an io.Reader that reassembles the object's segments in
// order, pulling one segment at a time rather than buffering the whole
// object in memory, mirroring read_pipeline_segment_blob's repeated-pull
// loop (the original's open_read_pipeline_blob/close_read_pipeline_blob
// pair becomes Go's usual open-then-drain-then-GC lifecycle).
func (lo *LargeObject) Reader() io.Reader {
	return &segmentReader{lo: lo}
}

type segmentReader struct {
	lo  *LargeObject
	idx int
	buf []byte
}

func (r *segmentReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.idx >= len(r.lo.Segments) {
			return 0, io.EOF
		}
		seg := r.lo.Segments[r.idx]
		r.idx++
		b, err := r.lo.Source.ReadSegment(seg.Pointer)
		if err != nil {
			return 0, err
		}
		r.buf = b
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
