// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package orttest

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/nlpodyssey/customop/ortapi"
)

// Element is the set of fixed-width Go types a test can store in host
// tensors.
type Element interface {
	bool | int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64
}

var elementSizes = map[ortapi.ElementDataType]int{
	ortapi.ElementDataTypeFloat:          4,
	ortapi.ElementDataTypeUint8:          1,
	ortapi.ElementDataTypeInt8:           1,
	ortapi.ElementDataTypeUint16:         2,
	ortapi.ElementDataTypeInt16:          2,
	ortapi.ElementDataTypeInt32:          4,
	ortapi.ElementDataTypeInt64:          8,
	ortapi.ElementDataTypeBool:           1,
	ortapi.ElementDataTypeFloat16:        2,
	ortapi.ElementDataTypeDouble:         8,
	ortapi.ElementDataTypeUint32:         4,
	ortapi.ElementDataTypeUint64:         8,
	ortapi.ElementDataTypeComplex64:      8,
	ortapi.ElementDataTypeComplex128:     16,
	ortapi.ElementDataTypeBFloat16:       2,
	ortapi.ElementDataTypeFloat8E4M3FN:   1,
	ortapi.ElementDataTypeFloat8E4M3FNUZ: 1,
	ortapi.ElementDataTypeFloat8E5M2:     1,
	ortapi.ElementDataTypeFloat8E5M2FNUZ: 1,
	ortapi.ElementDataTypeUint4:          1,
	ortapi.ElementDataTypeInt4:           1,
}

// tensor is a host value. Fixed-width data live in words, so that every
// element type is aligned; strings live in strs.
type tensor struct {
	onnxType ortapi.ONNXType
	code     ortapi.ElementDataType
	shape    []int64
	count    int
	words    []uint64
	strs     []string
}

func newTensor(code ortapi.ElementDataType, shape []int64) (*tensor, error) {
	count := 1
	for _, d := range shape {
		if d < 0 {
			return nil, errors.Errorf("negative dimension in shape %v", shape)
		}
		count *= int(d)
	}
	t := &tensor{
		onnxType: ortapi.ONNXTypeTensor,
		code:     code,
		shape:    append([]int64(nil), shape...),
		count:    count,
	}
	if code == ortapi.ElementDataTypeString {
		t.strs = make([]string, count)
		return t, nil
	}
	size, ok := elementSizes[code]
	if !ok {
		return nil, errors.Errorf("unknown element type %d", code)
	}
	t.words = make([]uint64, (count*size+7)/8)
	return t, nil
}

func (t *tensor) ptr() unsafe.Pointer {
	if len(t.words) == 0 {
		return nil
	}
	return unsafe.Pointer(&t.words[0])
}

func view[T Element](t *tensor) []T {
	if t.count == 0 {
		return nil
	}
	return unsafe.Slice((*T)(t.ptr()), t.count)
}

func equalShapes(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// HostCode returns the host element type code of T.
func HostCode[T Element]() ortapi.ElementDataType {
	var zero T
	switch any(zero).(type) {
	case bool:
		return ortapi.ElementDataTypeBool
	case int8:
		return ortapi.ElementDataTypeInt8
	case int16:
		return ortapi.ElementDataTypeInt16
	case int32:
		return ortapi.ElementDataTypeInt32
	case int64:
		return ortapi.ElementDataTypeInt64
	case uint8:
		return ortapi.ElementDataTypeUint8
	case uint16:
		return ortapi.ElementDataTypeUint16
	case uint32:
		return ortapi.ElementDataTypeUint32
	case uint64:
		return ortapi.ElementDataTypeUint64
	case float32:
		return ortapi.ElementDataTypeFloat
	case float64:
		return ortapi.ElementDataTypeDouble
	}
	panic("unreachable")
}

// addValue must be called with h.mu held.
func (h *Host) addValue(t *tensor) ortapi.Value {
	v := ortapi.Value(h.nextHandle())
	h.values[v] = t
	return v
}

// NewTensor returns a new host tensor holding a copy of data. It panics if
// the number of elements does not match the shape.
func NewTensor[T Element](h *Host, shape []int64, data []T) ortapi.Value {
	t, err := newTensor(HostCode[T](), shape)
	if err != nil {
		panic(err)
	}
	if len(data) != t.count {
		panic(fmt.Sprintf("orttest: %d elements for shape %v", len(data), shape))
	}
	copy(view[T](t), data)
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addValue(t)
}

// NewStringTensor returns a new host string tensor. It panics if the
// number of strings does not match the shape.
func (h *Host) NewStringTensor(shape []int64, strs []string) ortapi.Value {
	t, err := newTensor(ortapi.ElementDataTypeString, shape)
	if err != nil {
		panic(err)
	}
	if len(strs) != t.count {
		panic(fmt.Sprintf("orttest: %d strings for shape %v", len(strs), shape))
	}
	copy(t.strs, strs)
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addValue(t)
}

// NewRawTensor returns a new zero-filled host tensor of any fixed-width
// element type known to the host.
func (h *Host) NewRawTensor(code ortapi.ElementDataType, shape []int64) ortapi.Value {
	t, err := newTensor(code, shape)
	if err != nil {
		panic(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addValue(t)
}

// NewNonTensor returns a new host value of a kind other than tensor.
func (h *Host) NewNonTensor(typ ortapi.ONNXType) ortapi.Value {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addValue(&tensor{onnxType: typ})
}

func (h *Host) mustValue(v ortapi.Value) *tensor {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.values[v]
	if !ok {
		panic(fmt.Sprintf("orttest: invalid value %d", v))
	}
	return t
}

// TensorData returns a copy of the data of a host tensor. It panics if the
// tensor element type is not the one of T.
func TensorData[T Element](h *Host, v ortapi.Value) []T {
	t := h.mustValue(v)
	if want := HostCode[T](); t.code != want {
		panic(fmt.Sprintf("orttest: value %d has element type %d, not %d", v, t.code, want))
	}
	return append([]T{}, view[T](t)...)
}

// StringTensorData returns a copy of the data of a host string tensor.
func (h *Host) StringTensorData(v ortapi.Value) []string {
	t := h.mustValue(v)
	if t.code != ortapi.ElementDataTypeString {
		panic(fmt.Sprintf("orttest: value %d is not a string tensor", v))
	}
	return append([]string{}, t.strs...)
}

// TensorShape returns the shape of a host tensor.
func (h *Host) TensorShape(v ortapi.Value) []int64 {
	return append([]int64{}, h.mustValue(v).shape...)
}

// TensorElementType returns the element type code of a host tensor.
func (h *Host) TensorElementType(v ortapi.Value) ortapi.ElementDataType {
	return h.mustValue(v).code
}
