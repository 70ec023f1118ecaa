// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"unicode/utf8"

	"github.com/pkg/errors"
)

// TensorString is the host layout of a string tensor: every element
// concatenated without separators into Buf, and the start of each element
// in Offsets. Element i spans Buf[Offsets[i]:Offsets[i+1]], the last one
// ending at len(Buf).
type TensorString struct {
	Buf     []byte
	Offsets []int
	Shape   []int
}

// NewTensorString concatenates strs into a TensorString with the given
// shape. The number of strings must match the shape.
func NewTensorString(strs []string, shape []int) (TensorString, error) {
	size, err := elementCount(shape)
	if err != nil {
		return TensorString{}, err
	}
	if size != len(strs) {
		return TensorString{}, errors.Wrapf(ErrInvalidShape,
			"the size computed from shape (%d) does not match the number of strings (%d)", size, len(strs))
	}
	return tensorStringOf(strs, shape), nil
}

func tensorStringOf(strs []string, shape []int) TensorString {
	total := 0
	for _, s := range strs {
		total += len(s)
	}
	ts := TensorString{
		Buf:     make([]byte, 0, total),
		Offsets: make([]int, len(strs)),
		Shape:   copyShape(shape),
	}
	for i, s := range strs {
		ts.Offsets[i] = len(ts.Buf)
		ts.Buf = append(ts.Buf, s...)
	}
	return ts
}

// Len returns the number of string elements.
func (ts TensorString) Len() int {
	return len(ts.Offsets)
}

// Validate checks that the offsets are non-decreasing and within Buf, and
// that their number matches the shape.
func (ts TensorString) Validate() error {
	if err := ts.validateOffsets(); err != nil {
		return err
	}
	size, err := elementCount(ts.Shape)
	if err != nil {
		return err
	}
	if size != len(ts.Offsets) {
		return errors.Wrapf(ErrInvalidShape,
			"the size computed from shape (%d) does not match the number of offsets (%d)", size, len(ts.Offsets))
	}
	return nil
}

func (ts TensorString) validateOffsets() error {
	prev := 0
	for i, off := range ts.Offsets {
		if off < prev || off > len(ts.Buf) {
			return errors.Wrapf(ErrMalformedString, "offset %d (%d) out of range [%d, %d]", i, off, prev, len(ts.Buf))
		}
		prev = off
	}
	return nil
}

// element returns the bytes of element i. Offsets must be valid.
func (ts TensorString) element(i int) []byte {
	end := len(ts.Buf)
	if i+1 < len(ts.Offsets) {
		end = ts.Offsets[i+1]
	}
	return ts.Buf[ts.Offsets[i]:end]
}

// Strings returns every element as a string. It fails with
// ErrMalformedString if the offsets are invalid or an element is not
// valid UTF-8.
func (ts TensorString) Strings() ([]string, error) {
	if err := ts.validateOffsets(); err != nil {
		return nil, err
	}
	strs := make([]string, len(ts.Offsets))
	for i := range ts.Offsets {
		b := ts.element(i)
		if !utf8.Valid(b) {
			return nil, errors.Wrapf(ErrMalformedString, "element %d is not valid UTF-8", i)
		}
		strs[i] = string(b)
	}
	return strs, nil
}

// LossyStrings returns the valid UTF-8 elements as strings, silently
// skipping malformed ones: the result can be shorter than Len and then
// no longer matches Shape. Elements are also dropped from the first
// invalid offset onwards.
func (ts TensorString) LossyStrings() []string {
	strs := make([]string, 0, len(ts.Offsets))
	prev := 0
	for i, off := range ts.Offsets {
		if off < prev || off > len(ts.Buf) {
			break
		}
		prev = off
		end := len(ts.Buf)
		if i+1 < len(ts.Offsets) {
			end = ts.Offsets[i+1]
		}
		if end < off || end > len(ts.Buf) {
			break
		}
		if b := ts.Buf[off:end]; utf8.Valid(b) {
			strs = append(strs, string(b))
		}
	}
	return strs
}
