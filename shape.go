// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// checkedMul multiplies two non-negative integers and checks for overflow.
func checkedMul[T constraints.Integer](a, b T) (T, error) {
	c := a * b
	if a > 1 && b > 1 && c/a != b {
		return c, errors.Errorf("multiplication overflow: %d * %d", a, b)
	}
	return c, nil
}

// elementCount returns the number of elements of a tensor with the given
// shape. An empty shape denotes a scalar, with one element.
func elementCount(shape []int) (int, error) {
	size := 1
	for _, v := range shape {
		if v < 0 {
			return 0, errors.Wrapf(ErrInvalidShape, "shape %v contains a negative value", shape)
		}
		var err error
		if size, err = checkedMul(size, v); err != nil {
			return 0, errors.Wrapf(ErrInvalidShape, "shape %v: %v", shape, err)
		}
	}
	return size, nil
}

func copyShape(shape []int) []int {
	if len(shape) == 0 {
		return nil
	}
	c := make([]int, len(shape))
	copy(c, shape)
	return c
}

// shapeFromHost converts host dimensions. Symbolic (negative) dimensions
// are rejected, since a materialised tensor always has a concrete shape.
func shapeFromHost(dims []int64) ([]int, error) {
	if len(dims) == 0 {
		return nil, nil
	}
	shape := make([]int, len(dims))
	for i, d := range dims {
		if d < 0 || d > math.MaxInt {
			return nil, errors.Wrapf(ErrInvalidShape, "host dimension %d is %d", i, d)
		}
		shape[i] = int(d)
	}
	return shape, nil
}

func shapeToHost(shape []int) []int64 {
	dims := make([]int64, len(shape))
	for i, v := range shape {
		dims[i] = int64(v)
	}
	return dims
}
