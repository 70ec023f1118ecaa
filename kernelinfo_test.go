// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlpodyssey/customop/elemtype"
	"github.com/nlpodyssey/customop/ortapi"
	"github.com/nlpodyssey/customop/ortapi/orttest"
)

type noInputs struct{}

type oneOutput struct {
	Y Array[bool]
}

type nopKernel struct{}

func (nopKernel) Compute(noInputs) (oneOutput, error) {
	return oneOutput{Y: Scalar(true)}, nil
}

// withKernelInfo calls f from within a kernel constructor given attrs.
func withKernelInfo(t *testing.T, h *orttest.Host, attrs orttest.Attributes, f func(info *KernelInfo)) {
	t.Helper()
	defer checkKernelCount(t, KernelCount())
	op := MustBuild(Definition[nopKernel, noInputs, oneOutput]{
		Name: "TestInfo",
		Create: func(info *KernelInfo) (nopKernel, error) {
			assert.Same(t, h, info.API())
			f(info)
			return nopKernel{}, nil
		},
	})
	k, err := h.CreateKernel(op, attrs)
	require.NoError(t, err)
	k.Destroy()
}

func TestKernelInfo_Attributes(t *testing.T) {
	h := orttest.New()
	tensor := orttest.NewTensor(h, []int64{2, 2}, []int32{1, 2, 3, 4})
	attrs := orttest.Attributes{
		"alpha":  float32(0.5),
		"count":  int64(-3),
		"name":   "héllo",
		"empty":  "",
		"floats": []float32{1, 2.5},
		"ints":   []int64{7, 8, 9},
		"none":   []int64{},
		"table":  tensor,
	}

	withKernelInfo(t, h, attrs, func(info *KernelInfo) {
		f, err := info.AttributeFloat32("alpha")
		require.NoError(t, err)
		assert.Equal(t, float32(0.5), f)

		i, err := info.AttributeInt64("count")
		require.NoError(t, err)
		assert.Equal(t, int64(-3), i)

		s, err := info.AttributeString("name")
		require.NoError(t, err)
		assert.Equal(t, "héllo", s)

		s, err = info.AttributeString("empty")
		require.NoError(t, err)
		assert.Equal(t, "", s)

		fs, err := info.AttributeFloat32s("floats")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2.5}, fs)

		is, err := info.AttributeInt64s("ints")
		require.NoError(t, err)
		assert.Equal(t, []int64{7, 8, 9}, is)

		is, err = info.AttributeInt64s("none")
		require.NoError(t, err)
		assert.Empty(t, is)

		v, err := info.AttributeTensor("table")
		require.NoError(t, err)
		assert.Equal(t, elemtype.I32, v.ElementType())
		assert.Equal(t, []int{2, 2}, v.Shape())
		assert.Equal(t, []int32{1, 2, 3, 4}, v.Data())

		a, err := AttributeArray[int32](info, "table")
		require.NoError(t, err)
		assert.Equal(t, []int32{1, 2, 3, 4}, a.Data())
	})

	h.ReleaseValue(tensor)
	require.NoError(t, h.Leaks())
}

func TestKernelInfo_AttributeTensorIsCopied(t *testing.T) {
	h := orttest.New()
	tensor := orttest.NewTensor(h, []int64{2}, []float64{1, 2})

	var got Array[float64]
	withKernelInfo(t, h, orttest.Attributes{"w": tensor}, func(info *KernelInfo) {
		var err error
		got, err = AttributeArray[float64](info, "w")
		require.NoError(t, err)
	})
	h.ReleaseValue(tensor)
	require.NoError(t, h.Leaks())

	// Still valid after the host memory is gone.
	assert.Equal(t, []float64{1, 2}, got.Data())
}

func TestKernelInfo_AttributeErrors(t *testing.T) {
	h := orttest.New()
	tensor := orttest.NewTensor(h, []int64{1}, []int64{1})
	attrs := orttest.Attributes{
		"alpha": float32(1),
		"count": int64(1),
		"table": tensor,
	}

	withKernelInfo(t, h, attrs, func(info *KernelInfo) {
		_, err := info.AttributeInt64("missing")
		assert.Truef(t, errors.Is(err, ErrAttributeMissing), "got %v", err)
		assert.ErrorContains(t, err, `attribute "missing"`)

		_, err = info.AttributeString("missing")
		assert.True(t, errors.Is(err, ErrAttributeMissing))
		_, err = info.AttributeFloat32s("missing")
		assert.True(t, errors.Is(err, ErrAttributeMissing))
		_, err = info.AttributeTensor("missing")
		assert.True(t, errors.Is(err, ErrAttributeMissing))

		_, err = info.AttributeInt64("alpha")
		assert.Truef(t, errors.Is(err, ErrAttributeType), "got %v", err)
		_, err = info.AttributeFloat32("count")
		assert.True(t, errors.Is(err, ErrAttributeType))
		_, err = info.AttributeString("count")
		assert.True(t, errors.Is(err, ErrAttributeType))
		_, err = info.AttributeInt64s("alpha")
		assert.True(t, errors.Is(err, ErrAttributeType))

		_, err = AttributeArray[float32](info, "table")
		assert.Truef(t, errors.Is(err, ErrAttributeType), "got %v", err)
	})

	h.ReleaseValue(tensor)
	require.NoError(t, h.Leaks())
}

func TestKernelInfo_AttributeHostFailure(t *testing.T) {
	h := orttest.New()
	withKernelInfo(t, h, orttest.Attributes{"count": int64(1)}, func(info *KernelInfo) {
		h.FailNext("KernelInfoGetAttributeInt64", ortapi.ErrorCodeRuntimeException, "boom")
		_, err := info.AttributeInt64("count")
		assert.False(t, errors.Is(err, ErrAttributeMissing))
		assert.False(t, errors.Is(err, ErrAttributeType))
		var se *StatusError
		require.True(t, errors.As(err, &se), "got %v", err)
		assert.Equal(t, ortapi.ErrorCodeRuntimeException, se.Code)
		assert.ErrorContains(t, err, `attribute "count"`)
	})
	require.NoError(t, h.Leaks())
}

func TestKernelInfo_AttributeErrorMessages(t *testing.T) {
	testCases := map[string]struct {
		code ortapi.ErrorCode
		msg  string
		err  error
	}{
		"missing":          {ortapi.ErrorCodeFail, "No attribute with name:'alpha'is defined.", ErrAttributeMissing},
		"missing list":     {ortapi.ErrorCodeFail, "No attribute with this name is defined.", ErrAttributeMissing},
		"type mismatch":    {ortapi.ErrorCodeFail, "Attribute name and type don't match", ErrAttributeType},
		"list type":        {ortapi.ErrorCodeFail, "Attribute: alpha expected to be of type: INTS but is of type: FLOAT", ErrAttributeType},
		"buffer too small": {ortapi.ErrorCodeInvalidArgument, "Result buffer is not large enough", nil},
		"other failure":    {ortapi.ErrorCodeFail, "boom", nil},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			h := orttest.New()
			info := &KernelInfo{api: h}
			err := info.attributeError("alpha", h.CreateStatus(tc.code, tc.msg))
			require.Error(t, err)
			assert.ErrorContains(t, err, `attribute "alpha"`)
			if tc.err != nil {
				assert.Truef(t, errors.Is(err, tc.err), "got %v", err)
			} else {
				assert.False(t, errors.Is(err, ErrAttributeMissing))
				assert.False(t, errors.Is(err, ErrAttributeType))
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, tc.code, se.Code)
			}
			require.NoError(t, h.Leaks())
		})
	}
}
