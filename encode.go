// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"bytes"
	"runtime"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/nlpodyssey/customop/elemtype"
	"github.com/nlpodyssey/customop/ortapi"
)

// encodeValue copies v into the host tensor out, which must have been
// allocated with the shape of v.
func encodeValue(api ortapi.API, out ortapi.Value, v Value) error {
	et, _, count, err := tensorTypeAndShape(api, out)
	if err != nil {
		return err
	}
	if et != v.elementType {
		return errors.Wrapf(ErrTypeMismatch, "output is a %s tensor, value is %s", et, v.elementType)
	}

	if et == elemtype.String {
		ts, _ := v.data.(TensorString)
		if ts.Len() != count {
			return errors.Wrapf(ErrInvalidShape, "output has %d elements, value has %d", count, ts.Len())
		}
		return fillStringTensor(api, out, ts)
	}

	if count == 0 {
		return nil
	}
	ptr, st := api.GetTensorMutableData(out)
	if err := statusToError(api, st); err != nil {
		return errors.Wrap(err, "failed to get output data")
	}
	return copyToHost(et, ptr, count, v.data)
}

func copyToHost(et elemtype.ElementType, ptr unsafe.Pointer, n int, data any) error {
	if err := checkHostData(et, ptr, n); err != nil {
		return err
	}
	switch et {
	case elemtype.Bool:
		return copyHostSlice[bool](ptr, n, data)
	case elemtype.I8:
		return copyHostSlice[int8](ptr, n, data)
	case elemtype.I16:
		return copyHostSlice[int16](ptr, n, data)
	case elemtype.I32:
		return copyHostSlice[int32](ptr, n, data)
	case elemtype.I64:
		return copyHostSlice[int64](ptr, n, data)
	case elemtype.U8:
		return copyHostSlice[uint8](ptr, n, data)
	case elemtype.U16:
		return copyHostSlice[uint16](ptr, n, data)
	case elemtype.U32:
		return copyHostSlice[uint32](ptr, n, data)
	case elemtype.U64:
		return copyHostSlice[uint64](ptr, n, data)
	case elemtype.F32:
		return copyHostSlice[float32](ptr, n, data)
	case elemtype.F64:
		return copyHostSlice[float64](ptr, n, data)
	}
	return errors.Wrapf(ErrUnsupportedElementType, "no fixed-width copy for %s", et)
}

func copyHostSlice[T Element](ptr unsafe.Pointer, n int, data any) error {
	src, ok := data.([]T)
	if !ok {
		return errors.Wrapf(ErrTypeMismatch, "expected data type %T, actual data type %T", src, data)
	}
	if len(src) != n {
		return errors.Wrapf(ErrInvalidShape, "output has %d elements, value has %d", n, len(src))
	}
	dst, err := hostSlice[T](ptr, n)
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

// fillStringTensor passes every element of ts to the host as a
// NUL-terminated string. The host copies them during the call.
func fillStringTensor(api ortapi.API, out ortapi.Value, ts TensorString) error {
	if err := ts.validateOffsets(); err != nil {
		return err
	}
	cstrings := make([]*byte, ts.Len())
	for i := range cstrings {
		b := ts.element(i)
		if bytes.IndexByte(b, 0) >= 0 {
			return errors.Wrapf(ErrMalformedString, "element %d contains a NUL byte", i)
		}
		cs := make([]byte, len(b)+1)
		copy(cs, b)
		cstrings[i] = &cs[0]
	}
	err := statusToError(api, api.FillStringTensor(out, cstrings))
	runtime.KeepAlive(cstrings)
	if err != nil {
		return errors.Wrap(err, "failed to fill string tensor")
	}
	return nil
}
