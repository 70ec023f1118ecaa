// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"math"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlpodyssey/customop/elemtype"
	"github.com/nlpodyssey/customop/ortapi"
	"github.com/nlpodyssey/customop/ortapi/orttest"
)

// roundTrip encodes an array into a host tensor and decodes it back.
func roundTrip[T Element](t *testing.T, shape []int, data []T) {
	t.Helper()
	h := orttest.New()

	a, err := NewArray(shape, data)
	require.NoError(t, err)

	out := h.NewRawTensor(elementTypeOf[T]().HostCode(), shapeToHost(shape))
	require.NoError(t, encodeValue(h, out, ValueOf(a)))

	v, err := decodeValue(h, out)
	require.NoError(t, err)
	got, err := AsArray[T](v)
	require.NoError(t, err)

	if diff := cmp.Diff(data, got.Data()); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(shape, got.Shape()); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}

	h.ReleaseValue(out)
	require.NoError(t, h.Leaks())
}

func TestRoundTrip(t *testing.T) {
	t.Run("Bool", func(t *testing.T) { roundTrip(t, []int{2, 2}, []bool{true, false, false, true}) })
	t.Run("I8", func(t *testing.T) { roundTrip(t, []int{3}, []int8{math.MinInt8, 0, math.MaxInt8}) })
	t.Run("I16", func(t *testing.T) { roundTrip(t, []int{3}, []int16{math.MinInt16, -1, math.MaxInt16}) })
	t.Run("I32", func(t *testing.T) { roundTrip(t, []int{1, 3}, []int32{math.MinInt32, 7, math.MaxInt32}) })
	t.Run("I64", func(t *testing.T) { roundTrip(t, []int{3, 1}, []int64{math.MinInt64, 0, math.MaxInt64}) })
	t.Run("U8", func(t *testing.T) { roundTrip(t, []int{5}, []uint8{0, 1, 2, 254, 255}) })
	t.Run("U16", func(t *testing.T) { roundTrip(t, []int{3}, []uint16{0, 1, math.MaxUint16}) })
	t.Run("U32", func(t *testing.T) { roundTrip(t, []int{3}, []uint32{0, 1, math.MaxUint32}) })
	t.Run("U64", func(t *testing.T) { roundTrip(t, []int{3}, []uint64{0, 1, math.MaxUint64}) })
	t.Run("F32", func(t *testing.T) {
		roundTrip(t, []int{2, 3}, []float32{-1.5, 0, 1, math.MaxFloat32, math.SmallestNonzeroFloat32, float32(math.Inf(-1))})
	})
	t.Run("F64", func(t *testing.T) {
		roundTrip(t, []int{2}, []float64{math.Pi, math.Inf(1)})
	})
	t.Run("String", func(t *testing.T) { roundTrip(t, []int{3}, []string{"", "ab", "c"}) })
	t.Run("Unicode", func(t *testing.T) { roundTrip(t, []int{2, 1}, []string{"héllo", "世界"}) })
	t.Run("Scalar", func(t *testing.T) { roundTrip(t, nil, []float64{42}) })
	t.Run("Empty", func(t *testing.T) { roundTrip(t, []int{0, 3}, []int32{}) })
}

func TestDecode_BorrowsHostMemory(t *testing.T) {
	h := orttest.New()
	in := orttest.NewTensor(h, []int64{3}, []float32{1, 2, 3})

	v, err := decodeValue(h, in)
	require.NoError(t, err)
	a, err := AsArray[float32](v)
	require.NoError(t, err)
	a.Data()[0] = 10

	assert.Equal(t, []float32{10, 2, 3}, orttest.TensorData[float32](h, in))

	h.ReleaseValue(in)
	require.NoError(t, h.Leaks())
}

func TestDecode_StringLayout(t *testing.T) {
	h := orttest.New()
	in := h.NewStringTensor([]int64{3}, []string{"", "ab", "c"})

	v, err := decodeValue(h, in)
	require.NoError(t, err)
	ts := v.Data().(TensorString)
	assert.Equal(t, "abc", string(ts.Buf))
	assert.Equal(t, []int{0, 0, 2}, ts.Offsets)

	h.ReleaseValue(in)
	require.NoError(t, h.Leaks())
}

func TestDecode_Errors(t *testing.T) {
	testCases := map[string]struct {
		value func(h *orttest.Host) ortapi.Value
		err   error
	}{
		"unsupported element type": {
			func(h *orttest.Host) ortapi.Value { return h.NewRawTensor(ortapi.ElementDataTypeFloat16, []int64{2}) },
			ErrUnsupportedElementType,
		},
		"unknown future element type": {
			func(h *orttest.Host) ortapi.Value { return h.NewRawTensor(ortapi.ElementDataTypeInt4, []int64{2}) },
			ErrUnsupportedElementType,
		},
		"not a tensor": {
			func(h *orttest.Host) ortapi.Value { return h.NewNonTensor(ortapi.ONNXTypeSequence) },
			ErrTypeMismatch,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			h := orttest.New()
			v := tc.value(h)
			_, err := decodeValue(h, v)
			assert.Truef(t, errors.Is(err, tc.err), "got %v", err)
			h.ReleaseValue(v)
			// The type and shape info is released on failure too.
			require.NoError(t, h.Leaks())
		})
	}
}

func TestDecode_HostFailure(t *testing.T) {
	h := orttest.New()
	in := orttest.NewTensor(h, []int64{1}, []int64{1})
	h.FailNext("GetTensorTypeAndShape", ortapi.ErrorCodeRuntimeException, "boom")

	_, err := decodeValue(h, in)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ortapi.ErrorCodeRuntimeException, se.Code)
	assert.Equal(t, "boom", se.Message)

	h.ReleaseValue(in)
	require.NoError(t, h.Leaks())
}

func TestEncode_Errors(t *testing.T) {
	t.Run("type mismatch", func(t *testing.T) {
		h := orttest.New()
		out := h.NewRawTensor(ortapi.ElementDataTypeInt32, []int64{2})
		err := encodeValue(h, out, ValueOf(Full([]int{2}, float32(1))))
		assert.True(t, errors.Is(err, ErrTypeMismatch))
		h.ReleaseValue(out)
		require.NoError(t, h.Leaks())
	})

	t.Run("size mismatch", func(t *testing.T) {
		h := orttest.New()
		out := h.NewRawTensor(ortapi.ElementDataTypeFloat, []int64{3})
		err := encodeValue(h, out, ValueOf(Full([]int{2}, float32(1))))
		assert.True(t, errors.Is(err, ErrInvalidShape))
		h.ReleaseValue(out)
		require.NoError(t, h.Leaks())
	})

	t.Run("interior NUL", func(t *testing.T) {
		h := orttest.New()
		out := h.NewStringTensor([]int64{2}, []string{"", ""})
		a, err := NewArray([]int{2}, []string{"ok", "a\x00b"})
		require.NoError(t, err)
		err = encodeValue(h, out, ValueOf(a))
		assert.True(t, errors.Is(err, ErrMalformedString))
		h.ReleaseValue(out)
		require.NoError(t, h.Leaks())
	})
}

func unsafePointerAt(words []uint64, offset int) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(&words[0]), offset)
}

func TestViewHostData_Misaligned(t *testing.T) {
	words := []uint64{0, 0}
	ptr := unsafePointerAt(words, 1)
	_, err := viewHostData(elemtype.F32, ptr, 2)
	assert.ErrorContains(t, err, "not aligned")

	// Single bytes are always aligned.
	data, err := viewHostData(elemtype.U8, ptr, 2)
	require.NoError(t, err)
	assert.Len(t, data, 2)
}

func TestViewHostData_Null(t *testing.T) {
	_, err := viewHostData(elemtype.I64, nil, 1)
	assert.True(t, errors.Is(err, ErrInvalidShape))

	data, err := viewHostData(elemtype.I64, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{}, data)
}

func TestCheckHostData(t *testing.T) {
	words := []uint64{0, 0}
	testCases := map[string]struct {
		et  elemtype.ElementType
		ptr unsafe.Pointer
		n   int
		err error
		msg string
	}{
		"aligned":       {elemtype.F64, unsafePointerAt(words, 0), 2, nil, ""},
		"empty":         {elemtype.F64, nil, 0, nil, ""},
		"string":        {elemtype.String, unsafePointerAt(words, 0), 1, ErrUnsupportedElementType, "STRING"},
		"invalid":       {0, unsafePointerAt(words, 0), 1, ErrUnsupportedElementType, "invalid ElementType(0)"},
		"null":          {elemtype.I32, nil, 1, ErrInvalidShape, "null data"},
		"byte overflow": {elemtype.F64, unsafePointerAt(words, 0), math.MaxInt/4 + 1, ErrInvalidShape, "F64 elements"},
		"misaligned":    {elemtype.I16, unsafePointerAt(words, 1), 1, nil, "not aligned for I16"},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			err := checkHostData(tc.et, tc.ptr, tc.n)
			if tc.msg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.msg)
			if tc.err != nil {
				assert.Truef(t, errors.Is(err, tc.err), "got %v", err)
			}
		})
	}
}

func TestCopyToHost_Misaligned(t *testing.T) {
	words := []uint64{0, 0}
	err := copyToHost(elemtype.U32, unsafePointerAt(words, 2), 1, []uint32{7})
	assert.ErrorContains(t, err, "not aligned")
	assert.Equal(t, []uint64{0, 0}, words)
}
