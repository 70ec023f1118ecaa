// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/nlpodyssey/customop/elemtype"
	"github.com/nlpodyssey/customop/ortapi"
)

// decodeValue returns a Value viewing the host tensor v.
//
// Non-string data are not copied: the Value borrows host memory. String
// data are copied into a TensorString.
func decodeValue(api ortapi.API, v ortapi.Value) (Value, error) {
	typ, st := api.GetValueType(v)
	if err := statusToError(api, st); err != nil {
		return Value{}, errors.Wrap(err, "failed to get value type")
	}
	if typ != ortapi.ONNXTypeTensor {
		return Value{}, errors.Wrapf(ErrTypeMismatch, "expected a tensor, found ONNX type %d", typ)
	}

	et, shape, count, err := tensorTypeAndShape(api, v)
	if err != nil {
		return Value{}, err
	}

	if et == elemtype.String {
		ts, err := readTensorString(api, v, shape, count)
		if err != nil {
			return Value{}, err
		}
		return Value{elementType: et, shape: shape, data: ts}, nil
	}

	ptr, st := api.GetTensorMutableData(v)
	if err := statusToError(api, st); err != nil {
		return Value{}, errors.Wrap(err, "failed to get tensor data")
	}
	data, err := viewHostData(et, ptr, count)
	if err != nil {
		return Value{}, err
	}
	return Value{elementType: et, shape: shape, data: data}, nil
}

// tensorTypeAndShape reads the element type, the shape and the element
// count of a host tensor.
func tensorTypeAndShape(api ortapi.API, v ortapi.Value) (_ elemtype.ElementType, _ []int, _ int, err error) {
	info, st := api.GetTensorTypeAndShape(v)
	if err = statusToError(api, st); err != nil {
		return 0, nil, 0, errors.Wrap(err, "failed to get tensor type and shape")
	}
	defer api.ReleaseTensorTypeAndShapeInfo(info)

	code, st := api.GetTensorElementType(info)
	if err = statusToError(api, st); err != nil {
		return 0, nil, 0, errors.Wrap(err, "failed to get tensor element type")
	}
	et, err := elemtype.FromHostCode(code)
	if err != nil {
		return 0, nil, 0, err
	}

	n, st := api.GetDimensionsCount(info)
	if err = statusToError(api, st); err != nil {
		return 0, nil, 0, errors.Wrap(err, "failed to get dimensions count")
	}
	dims := make([]int64, n)
	if err = statusToError(api, api.GetDimensions(info, dims)); err != nil {
		return 0, nil, 0, errors.Wrap(err, "failed to get dimensions")
	}
	shape, err := shapeFromHost(dims)
	if err != nil {
		return 0, nil, 0, err
	}
	size, err := elementCount(shape)
	if err != nil {
		return 0, nil, 0, err
	}

	count, st := api.GetTensorShapeElementCount(info)
	if err = statusToError(api, st); err != nil {
		return 0, nil, 0, errors.Wrap(err, "failed to get element count")
	}
	if count != size {
		return 0, nil, 0, errors.Wrapf(ErrInvalidShape, "host element count %d does not match shape %v", count, shape)
	}
	return et, shape, count, nil
}

func readTensorString(api ortapi.API, v ortapi.Value, shape []int, count int) (TensorString, error) {
	total, st := api.GetStringTensorDataLength(v)
	if err := statusToError(api, st); err != nil {
		return TensorString{}, errors.Wrap(err, "failed to get string tensor data length")
	}
	ts := TensorString{
		Buf:     make([]byte, total),
		Offsets: make([]int, count),
		Shape:   shape,
	}
	if err := statusToError(api, api.GetStringTensorContent(v, ts.Buf, ts.Offsets)); err != nil {
		return TensorString{}, errors.Wrap(err, "failed to get string tensor content")
	}
	if err := ts.validateOffsets(); err != nil {
		return TensorString{}, err
	}
	return ts, nil
}

func viewHostData(et elemtype.ElementType, ptr unsafe.Pointer, n int) (any, error) {
	if err := checkHostData(et, ptr, n); err != nil {
		return nil, err
	}
	switch et {
	case elemtype.Bool:
		return hostSlice[bool](ptr, n)
	case elemtype.I8:
		return hostSlice[int8](ptr, n)
	case elemtype.I16:
		return hostSlice[int16](ptr, n)
	case elemtype.I32:
		return hostSlice[int32](ptr, n)
	case elemtype.I64:
		return hostSlice[int64](ptr, n)
	case elemtype.U8:
		return hostSlice[uint8](ptr, n)
	case elemtype.U16:
		return hostSlice[uint16](ptr, n)
	case elemtype.U32:
		return hostSlice[uint32](ptr, n)
	case elemtype.U64:
		return hostSlice[uint64](ptr, n)
	case elemtype.F32:
		return hostSlice[float32](ptr, n)
	case elemtype.F64:
		return hostSlice[float64](ptr, n)
	}
	return nil, errors.Wrapf(ErrUnsupportedElementType, "no fixed-width view for %s", et)
}

// checkHostData checks that n elements of type et fit in memory and
// that ptr is aligned to the element size.
func checkHostData(et elemtype.ElementType, ptr unsafe.Pointer, n int) error {
	size := et.Size()
	if size <= 0 {
		return errors.Wrapf(ErrUnsupportedElementType, "no fixed-width data for %s", et)
	}
	if n == 0 {
		return nil
	}
	if ptr == nil {
		return errors.Wrapf(ErrInvalidShape, "null data for %d elements", n)
	}
	if _, err := checkedMul(n, size); err != nil {
		return errors.Wrapf(ErrInvalidShape, "%d %s elements: %v", n, et, err)
	}
	if uintptr(ptr)%uintptr(size) != 0 {
		return errors.Errorf("tensor data at %p is not aligned for %s", ptr, et)
	}
	return nil
}

// hostSlice views n elements of type T starting at ptr, without copying.
// The data must have passed checkHostData.
func hostSlice[T Element](ptr unsafe.Pointer, n int) ([]T, error) {
	if n == 0 {
		return []T{}, nil
	}
	return unsafe.Slice((*T)(ptr), n), nil
}
