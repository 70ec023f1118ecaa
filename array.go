// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"github.com/pkg/errors"

	"github.com/nlpodyssey/customop/elemtype"
	"github.com/nlpodyssey/customop/ortapi"
)

// Element is the set of Go types that can be exchanged with the host as
// tensor elements, one per elemtype.ElementType.
type Element interface {
	bool | int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64 | string
}

// Array is a shaped multi-dimensional array of elements of type T, stored
// in row-major order.
//
// An Array used as a kernel input borrows host memory: it is only valid
// during the Compute call that received it. Use Clone to keep its content
// past the call.
type Array[T Element] struct {
	shape []int
	data  []T
}

// NewArray returns an Array with the given shape and data.
//
// An empty or nil shape denotes a scalar. The shape must not contain
// negative values and the number of data elements must match it. The
// shape is copied, data is not.
func NewArray[T Element](shape []int, data []T) (Array[T], error) {
	size, err := elementCount(shape)
	if err != nil {
		return Array[T]{}, err
	}
	if size != len(data) {
		return Array[T]{}, errors.Wrapf(ErrInvalidShape,
			"the size computed from shape (%d) does not match data length (%d)", size, len(data))
	}
	return Array[T]{shape: copyShape(shape), data: data}, nil
}

// Full returns an Array with the given shape and every element set to v.
// It panics if the shape is invalid.
func Full[T Element](shape []int, v T) Array[T] {
	size, err := elementCount(shape)
	if err != nil {
		panic(err)
	}
	data := make([]T, size)
	for i := range data {
		data[i] = v
	}
	return Array[T]{shape: copyShape(shape), data: data}
}

// Scalar returns a zero-dimensional Array holding v.
func Scalar[T Element](v T) Array[T] {
	return Array[T]{data: []T{v}}
}

// Shape returns a copy of the shape of the array.
func (a Array[T]) Shape() []int {
	return copyShape(a.shape)
}

// Data returns the elements of the array. The slice is not a copy.
func (a Array[T]) Data() []T {
	return a.data
}

// Len returns the number of elements.
func (a Array[T]) Len() int {
	return len(a.data)
}

// ElementType returns the element type of T.
func (a Array[T]) ElementType() elemtype.ElementType {
	return elementTypeOf[T]()
}

// Clone returns a deep copy of the array, which does not share memory with
// the host.
func (a Array[T]) Clone() Array[T] {
	data := make([]T, len(a.data))
	copy(data, a.data)
	return Array[T]{shape: copyShape(a.shape), data: data}
}

func (a Array[T]) slotElementType() elemtype.ElementType {
	return elementTypeOf[T]()
}

func (a Array[T]) slotCharacteristic() ortapi.Characteristic {
	return ortapi.CharacteristicRequired
}

func (a *Array[T]) decodeSlot(v Value) error {
	arr, err := AsArray[T](v)
	if err != nil {
		return err
	}
	*a = arr
	return nil
}

func (a *Array[T]) decodeAbsent() error {
	return errors.Wrap(ErrArity, "required value is missing")
}

func (a Array[T]) encodeSlot() (Value, bool) {
	return ValueOf(a), true
}

// elementTypeOf returns the ElementType matching the Go type T.
func elementTypeOf[T Element]() elemtype.ElementType {
	var zero T
	switch any(zero).(type) {
	case bool:
		return elemtype.Bool
	case int8:
		return elemtype.I8
	case int16:
		return elemtype.I16
	case int32:
		return elemtype.I32
	case int64:
		return elemtype.I64
	case uint8:
		return elemtype.U8
	case uint16:
		return elemtype.U16
	case uint32:
		return elemtype.U32
	case uint64:
		return elemtype.U64
	case float32:
		return elemtype.F32
	case float64:
		return elemtype.F64
	case string:
		return elemtype.String
	}
	panic("unreachable")
}
