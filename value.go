// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"github.com/pkg/errors"

	"github.com/nlpodyssey/customop/elemtype"
)

// A Value is a shaped tensor of one of the supported element types.
//
// For a correctly formed Value, the ElementType and the type of Data
// match each other, according to the following pairs:
//
//	ElementType | Data type
//	------------+--------------
//	Bool        | []bool
//	I8          | []int8
//	I16         | []int16
//	I32         | []int32
//	I64         | []int64
//	U8          | []uint8
//	U16         | []uint16
//	U32         | []uint32
//	U64         | []uint64
//	F32         | []float32
//	F64         | []float64
//	String      | TensorString
//
// A Value decoded from a host tensor borrows the host memory for every
// type except String, and must not be retained past the call that
// produced it.
type Value struct {
	elementType elemtype.ElementType
	shape       []int
	data        any
}

// NewValue performs validity checks over the given properties and returns
// a Value with those properties if validation succeeds, otherwise an error.
//
// The rules applied for validation are:
//   - the element type must be valid (see elemtype.ElementType.Validate)
//   - an empty or nil shape is allowed (a scalar value is implied)
//   - the shape must not contain negative values
//   - the type of data must match the element type, according to the pairs
//     listed on Value documentation
//   - the number of data elements must match the shape
//
// The shape is copied; data is not.
func NewValue(et elemtype.ElementType, shape []int, data any) (Value, error) {
	dataLen, err := checkTypesAndGetDataLen(et, data)
	if err != nil {
		return Value{}, err
	}
	shapeSize, err := elementCount(shape)
	if err != nil {
		return Value{}, err
	}
	if shapeSize != dataLen {
		return Value{}, errors.Wrapf(ErrInvalidShape,
			"the size computed from shape (%d) does not match data length (%d)", shapeSize, dataLen)
	}
	return Value{
		elementType: et,
		shape:       copyShape(shape),
		data:        data,
	}, nil
}

func checkTypesAndGetDataLen(et elemtype.ElementType, data any) (int, error) {
	switch et {
	case elemtype.Bool:
		return resolveDataLen[bool](et, data)
	case elemtype.I8:
		return resolveDataLen[int8](et, data)
	case elemtype.I16:
		return resolveDataLen[int16](et, data)
	case elemtype.I32:
		return resolveDataLen[int32](et, data)
	case elemtype.I64:
		return resolveDataLen[int64](et, data)
	case elemtype.U8:
		return resolveDataLen[uint8](et, data)
	case elemtype.U16:
		return resolveDataLen[uint16](et, data)
	case elemtype.U32:
		return resolveDataLen[uint32](et, data)
	case elemtype.U64:
		return resolveDataLen[uint64](et, data)
	case elemtype.F32:
		return resolveDataLen[float32](et, data)
	case elemtype.F64:
		return resolveDataLen[float64](et, data)
	case elemtype.String:
		ts, ok := data.(TensorString)
		if !ok {
			return 0, errors.Wrapf(ErrTypeMismatch, "expected %s to match data type TensorString, actual data type %T", et, data)
		}
		if err := ts.validateOffsets(); err != nil {
			return 0, err
		}
		return len(ts.Offsets), nil
	}
	return 0, errors.Wrapf(ErrUnsupportedElementType, "%s", et)
}

func resolveDataLen[T Element](et elemtype.ElementType, data any) (int, error) {
	if data == nil {
		return 0, nil
	}
	y, ok := data.([]T)
	if !ok {
		return 0, errors.Wrapf(ErrTypeMismatch, "expected %s to match data type %T, actual data type %T", et, y, data)
	}
	return len(y), nil
}

// ValueOf returns a Value sharing the data of a. String arrays are
// converted into a TensorString.
func ValueOf[T Element](a Array[T]) Value {
	et := elementTypeOf[T]()
	var data any = a.data
	if et == elemtype.String {
		data = tensorStringOf(any(a.data).([]string), a.shape)
	}
	return Value{elementType: et, shape: copyShape(a.shape), data: data}
}

// AsArray returns the content of v as an Array of T. It fails with
// ErrTypeMismatch if the element type of v is not the one of T, and with
// ErrMalformedString if a string element is not valid UTF-8.
func AsArray[T Element](v Value) (Array[T], error) {
	want := elementTypeOf[T]()
	if v.elementType != want {
		return Array[T]{}, errors.Wrapf(ErrTypeMismatch, "expected %s tensor, found %s", want, v.elementType)
	}
	if want == elemtype.String {
		ts, _ := v.data.(TensorString)
		strs, err := ts.Strings()
		if err != nil {
			return Array[T]{}, err
		}
		return Array[T]{shape: copyShape(v.shape), data: any(strs).([]T)}, nil
	}
	data, _ := v.data.([]T)
	return Array[T]{shape: copyShape(v.shape), data: data}, nil
}

// ElementType returns the element type of the value.
func (v Value) ElementType() elemtype.ElementType {
	return v.elementType
}

// Shape returns a copy of the shape of the value.
func (v Value) Shape() []int {
	return copyShape(v.shape)
}

// Data returns the data of the value, as documented on Value. It is not
// a copy.
func (v Value) Data() any {
	return v.data
}

// Len returns the number of elements of the value.
func (v Value) Len() int {
	if ts, ok := v.data.(TensorString); ok {
		return ts.Len()
	}
	n, _ := checkTypesAndGetDataLen(v.elementType, v.data)
	return n
}

// Clone returns a deep copy of the value, which does not share memory with
// the host.
func (v Value) Clone() Value {
	c := Value{elementType: v.elementType, shape: copyShape(v.shape)}
	switch data := v.data.(type) {
	case TensorString:
		c.data = TensorString{
			Buf:     cloneSlice(data.Buf),
			Offsets: cloneSlice(data.Offsets),
			Shape:   copyShape(data.Shape),
		}
	case []bool:
		c.data = cloneSlice(data)
	case []int8:
		c.data = cloneSlice(data)
	case []int16:
		c.data = cloneSlice(data)
	case []int32:
		c.data = cloneSlice(data)
	case []int64:
		c.data = cloneSlice(data)
	case []uint8:
		c.data = cloneSlice(data)
	case []uint16:
		c.data = cloneSlice(data)
	case []uint32:
		c.data = cloneSlice(data)
	case []uint64:
		c.data = cloneSlice(data)
	case []float32:
		c.data = cloneSlice(data)
	case []float64:
		c.data = cloneSlice(data)
	default:
		c.data = v.data
	}
	return c
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	c := make([]T, len(s))
	copy(c, s)
	return c
}
