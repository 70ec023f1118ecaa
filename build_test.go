// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlpodyssey/customop/ortapi"
	"github.com/nlpodyssey/customop/ortapi/orttest"
)

type addInputs struct {
	X Array[float32]
	Y Array[float32]
}

type addOutputs struct {
	Z Array[float32]
}

type addKernel struct {
	constant float32
}

func (k addKernel) Compute(in addInputs) (addOutputs, error) {
	x, y := in.X.Data(), in.Y.Data()
	if len(x) != len(y) {
		return addOutputs{}, errors.Wrapf(ErrInvalidShape, "operands have shapes %v and %v", in.X.Shape(), in.Y.Shape())
	}
	z := make([]float32, len(x))
	for i := range z {
		z[i] = x[i] + y[i] + k.constant
	}
	out, err := NewArray(in.X.Shape(), z)
	return addOutputs{Z: out}, err
}

var addDefinition = Definition[addKernel, addInputs, addOutputs]{
	Name:   "TestAdd",
	Create: func(*KernelInfo) (addKernel, error) { return addKernel{}, nil },
}

var addConstantDefinition = Definition[addKernel, addInputs, addOutputs]{
	Name: "TestAddConstant",
	Create: func(info *KernelInfo) (addKernel, error) {
		c, err := info.AttributeInt64("constant")
		return addKernel{constant: float32(c)}, err
	},
}

type scaleInputs struct {
	Factor Array[float32]
	Xs     []Array[float32]
}

type scaleOutputs struct {
	Ys []Array[float32]
}

type scaleKernel struct{}

func (scaleKernel) Compute(in scaleInputs) (scaleOutputs, error) {
	f := in.Factor.Data()[0]
	out := scaleOutputs{Ys: make([]Array[float32], len(in.Xs))}
	for i, x := range in.Xs {
		y := x.Clone()
		for j := range y.Data() {
			y.Data()[j] *= f
		}
		out.Ys[i] = y
	}
	return out, nil
}

func scaleDefinition(minArity int) Definition[scaleKernel, scaleInputs, scaleOutputs] {
	return Definition[scaleKernel, scaleInputs, scaleOutputs]{
		Name:                  "TestScale",
		VariadicInputMinArity: minArity,
		Create:                func(*KernelInfo) (scaleKernel, error) { return scaleKernel{}, nil },
	}
}

// funcKernel adapts a function to a Kernel.
type funcKernel[I, O any] func(I) (O, error)

func (f funcKernel[I, O]) Compute(in I) (O, error) { return f(in) }

func funcDefinition[I, O any](name string, f func(I) (O, error)) Definition[funcKernel[I, O], I, O] {
	return Definition[funcKernel[I, O], I, O]{
		Name:   name,
		Create: func(*KernelInfo) (funcKernel[I, O], error) { return f, nil },
	}
}

// checkKernelCount fails the test if kernels were leaked. Use it as
// defer checkKernelCount(t, KernelCount()).
func checkKernelCount(t *testing.T, before int) {
	t.Helper()
	assert.Equal(t, before, KernelCount(), "kernels created and not destroyed")
}

func releaseAll(h *orttest.Host, values ...ortapi.Value) {
	for _, v := range values {
		if v != 0 {
			h.ReleaseValue(v)
		}
	}
}

func TestBuild_Metadata(t *testing.T) {
	op, err := Build(addDefinition)
	require.NoError(t, err)

	assert.Equal(t, ortapi.APIVersion, op.Version)
	assert.Equal(t, "TestAdd", op.GetName())
	assert.Equal(t, DefaultExecutionProvider, op.GetExecutionProviderType())

	assert.Equal(t, 2, op.GetInputTypeCount())
	assert.Equal(t, ortapi.ElementDataTypeFloat, op.GetInputType(0))
	assert.Equal(t, ortapi.ElementDataTypeFloat, op.GetInputType(1))
	assert.Equal(t, ortapi.CharacteristicRequired, op.GetInputCharacteristic(0))
	assert.Equal(t, ortapi.CharacteristicRequired, op.GetInputCharacteristic(1))
	assert.Equal(t, 0, op.GetVariadicInputMinArity())
	assert.False(t, op.GetVariadicInputHomogeneity())

	assert.Equal(t, 1, op.GetOutputTypeCount())
	assert.Equal(t, ortapi.ElementDataTypeFloat, op.GetOutputType(0))
	assert.Equal(t, ortapi.CharacteristicRequired, op.GetOutputCharacteristic(0))
	assert.Equal(t, 0, op.GetVariadicOutputMinArity())
	assert.False(t, op.GetVariadicOutputHomogeneity())
}

func TestBuild_VariadicMetadata(t *testing.T) {
	op := MustBuild(scaleDefinition(0))
	assert.Equal(t, 2, op.GetInputTypeCount())
	assert.Equal(t, ortapi.CharacteristicRequired, op.GetInputCharacteristic(0))
	assert.Equal(t, ortapi.CharacteristicVariadic, op.GetInputCharacteristic(1))
	assert.Equal(t, 1, op.GetVariadicInputMinArity())
	assert.True(t, op.GetVariadicInputHomogeneity())

	assert.Equal(t, 1, op.GetOutputTypeCount())
	assert.Equal(t, ortapi.CharacteristicVariadic, op.GetOutputCharacteristic(0))
	assert.Equal(t, 1, op.GetVariadicOutputMinArity())
	assert.True(t, op.GetVariadicOutputHomogeneity())

	op = MustBuild(scaleDefinition(4))
	assert.Equal(t, 4, op.GetVariadicInputMinArity())
}

func TestBuild_ExecutionProvider(t *testing.T) {
	def := addDefinition
	def.ExecutionProvider = "CUDAExecutionProvider"
	op := MustBuild(def)
	assert.Equal(t, "CUDAExecutionProvider", op.GetExecutionProviderType())
}

func TestBuild_InvalidDefinitions(t *testing.T) {
	t.Run("empty name", func(t *testing.T) {
		def := addDefinition
		def.Name = ""
		_, err := Build(def)
		assert.True(t, errors.Is(err, ErrInvalidDefinition))
		assert.ErrorContains(t, err, "empty name")
	})

	t.Run("nil Create", func(t *testing.T) {
		def := addDefinition
		def.Create = nil
		_, err := Build(def)
		assert.True(t, errors.Is(err, ErrInvalidDefinition))
		assert.ErrorContains(t, err, "nil Create function")
	})

	t.Run("min arity on a non-variadic input", func(t *testing.T) {
		def := addDefinition
		def.VariadicInputMinArity = 2
		_, err := Build(def)
		assert.True(t, errors.Is(err, ErrInvalidDefinition))
		assert.ErrorContains(t, err, `"TestAdd"`)
		assert.ErrorContains(t, err, "is not variadic")
	})

	t.Run("negative min arity", func(t *testing.T) {
		def := scaleDefinition(0)
		def.VariadicOutputMinArity = -1
		_, err := Build(def)
		assert.True(t, errors.Is(err, ErrInvalidDefinition))
		assert.ErrorContains(t, err, "negative")
	})

	t.Run("invalid slot types", func(t *testing.T) {
		def := funcDefinition("Bad", func(struct{ N int }) (struct{}, error) { return struct{}{}, nil })
		_, err := Build(def)
		assert.True(t, errors.Is(err, ErrInvalidDefinition))
		assert.ErrorContains(t, err, "has unsupported type int")
		assert.ErrorContains(t, err, "declares no outputs")
	})

	t.Run("MustBuild panics", func(t *testing.T) {
		def := addDefinition
		def.Name = ""
		assert.Panics(t, func() { MustBuild(def) })
	})
}

func TestAdd(t *testing.T) {
	defer checkKernelCount(t, KernelCount())
	h := orttest.New()
	op := MustBuild(addDefinition)

	k, err := h.CreateKernel(op, nil)
	require.NoError(t, err)

	x := orttest.NewTensor(h, []int64{2, 3}, []float32{1, 1, 1, 1, 1, 1})
	y := orttest.NewTensor(h, []int64{2, 3}, []float32{2, 2, 2, 2, 2, 2})
	outputs, err := k.Compute(1, x, y)
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	assert.Equal(t, ortapi.ElementDataTypeFloat, h.TensorElementType(outputs[0]))
	assert.Equal(t, []int64{2, 3}, h.TensorShape(outputs[0]))
	assert.Equal(t, []float32{3, 3, 3, 3, 3, 3}, orttest.TensorData[float32](h, outputs[0]))

	k.Destroy()
	assert.Equal(t, orttest.Calls{CreateKernel: 1, KernelCompute: 1, KernelDestroy: 1}, h.Calls())

	releaseAll(h, x, y)
	releaseAll(h, outputs...)
	require.NoError(t, h.Leaks())
}

func TestAdd_ConcurrentKernels(t *testing.T) {
	defer checkKernelCount(t, KernelCount())
	h := orttest.New()
	op := MustBuild(addConstantDefinition)

	k1, err := h.CreateKernel(op, orttest.Attributes{"constant": int64(10)})
	require.NoError(t, err)
	k2, err := h.CreateKernel(op, orttest.Attributes{"constant": int64(20)})
	require.NoError(t, err)

	x := orttest.NewTensor(h, []int64{2}, []float32{1, 2})
	done := make(chan []float32, 2)
	for _, k := range []*orttest.Kernel{k1, k2} {
		go func() {
			outputs, err := k.Compute(1, x, x)
			if err != nil {
				done <- nil
				return
			}
			done <- orttest.TensorData[float32](h, outputs[0])
			releaseAll(h, outputs...)
		}()
	}
	got := [][]float32{<-done, <-done}
	assert.ElementsMatch(t, [][]float32{{12, 14}, {22, 24}}, got)

	k1.Destroy()
	k2.Destroy()
	releaseAll(h, x)
	require.NoError(t, h.Leaks())
}

func TestCreateKernel_MissingAttribute(t *testing.T) {
	defer checkKernelCount(t, KernelCount())
	h := orttest.New()
	op := MustBuild(addConstantDefinition)

	_, err := h.CreateKernel(op, orttest.Attributes{})
	var oe *orttest.Error
	require.True(t, errors.As(err, &oe), "got %v", err)
	assert.Equal(t, ortapi.ErrorCodeFail, oe.Code)
	assert.Contains(t, oe.Message, "TestAddConstant")
	assert.Contains(t, oe.Message, `"constant"`)
	assert.Contains(t, oe.Message, ErrAttributeMissing.Error())

	// A failed constructor is never computed with nor destroyed.
	assert.Equal(t, orttest.Calls{CreateKernel: 1}, h.Calls())
	require.NoError(t, h.Leaks())
}

func TestCreateKernel_WrongAttributeType(t *testing.T) {
	defer checkKernelCount(t, KernelCount())
	h := orttest.New()
	op := MustBuild(addConstantDefinition)

	_, err := h.CreateKernel(op, orttest.Attributes{"constant": "ten"})
	var oe *orttest.Error
	require.True(t, errors.As(err, &oe), "got %v", err)
	assert.Contains(t, oe.Message, ErrAttributeType.Error())
	require.NoError(t, h.Leaks())
}

func TestCreateKernel_Panic(t *testing.T) {
	defer checkKernelCount(t, KernelCount())
	h := orttest.New()
	def := addDefinition
	def.Create = func(*KernelInfo) (addKernel, error) { panic("broken constructor") }

	_, err := h.CreateKernel(MustBuild(def), nil)
	var oe *orttest.Error
	require.True(t, errors.As(err, &oe), "got %v", err)
	assert.Equal(t, ortapi.ErrorCodeRuntimeException, oe.Code)
	assert.Equal(t, "TestAdd: panic: broken constructor", oe.Message)
	require.NoError(t, h.Leaks())
}

func TestVariadicInputs(t *testing.T) {
	const minArity = 3
	op := MustBuild(scaleDefinition(minArity))

	testCases := []struct {
		n       int
		wantErr bool
	}{
		{minArity, false},
		{minArity + 5, false},
		{minArity - 1, true},
		{0, true},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d values", tc.n), func(t *testing.T) {
			defer checkKernelCount(t, KernelCount())
			h := orttest.New()
			k, err := h.CreateKernel(op, nil)
			require.NoError(t, err)

			inputs := []ortapi.Value{orttest.NewTensor(h, nil, []float32{2})}
			for i := 0; i < tc.n; i++ {
				inputs = append(inputs, orttest.NewTensor(h, []int64{1}, []float32{float32(i)}))
			}
			outputs, err := k.Compute(tc.n, inputs...)
			if tc.wantErr {
				var oe *orttest.Error
				require.True(t, errors.As(err, &oe), "got %v", err)
				assert.Equal(t, ortapi.ErrorCodeInvalidArgument, oe.Code)
				assert.Contains(t, oe.Message, ErrArity.Error())
				assert.Contains(t, oe.Message, fmt.Sprintf("expected at least %d variadic inputs, found %d", minArity, tc.n))
			} else {
				require.NoError(t, err)
				require.Len(t, outputs, tc.n)
				for i, out := range outputs {
					assert.Equal(t, []float32{float32(2 * i)}, orttest.TensorData[float32](h, out))
				}
			}

			k.Destroy()
			releaseAll(h, inputs...)
			releaseAll(h, outputs...)
			require.NoError(t, h.Leaks())
		})
	}
}

func TestVariadicOutputs_CountMismatch(t *testing.T) {
	defer checkKernelCount(t, KernelCount())
	h := orttest.New()
	k, err := h.CreateKernel(MustBuild(scaleDefinition(0)), nil)
	require.NoError(t, err)

	inputs := []ortapi.Value{
		orttest.NewTensor(h, nil, []float32{2}),
		orttest.NewTensor(h, []int64{1}, []float32{1}),
	}
	// Two variadic outputs are requested, one is produced.
	_, err = k.Compute(2, inputs...)
	var oe *orttest.Error
	require.True(t, errors.As(err, &oe), "got %v", err)
	assert.Equal(t, ortapi.ErrorCodeInvalidArgument, oe.Code)
	assert.Contains(t, oe.Message, "produced 1 variadic outputs, host expects 2")

	k.Destroy()
	releaseAll(h, inputs...)
	require.NoError(t, h.Leaks())
}

func TestCompute_TypeMismatch(t *testing.T) {
	defer checkKernelCount(t, KernelCount())
	h := orttest.New()
	k, err := h.CreateKernel(MustBuild(addDefinition), nil)
	require.NoError(t, err)

	x := orttest.NewTensor(h, []int64{2}, []int32{1, 2})
	y := orttest.NewTensor(h, []int64{2}, []float32{1, 2})
	_, err = k.Compute(1, x, y)
	var oe *orttest.Error
	require.True(t, errors.As(err, &oe), "got %v", err)
	assert.Equal(t, ortapi.ErrorCodeInvalidArgument, oe.Code)
	assert.Contains(t, oe.Message, "TestAdd: input 0 (X)")
	assert.Contains(t, oe.Message, ErrTypeMismatch.Error())

	k.Destroy()
	releaseAll(h, x, y)
	require.NoError(t, h.Leaks())
}

func TestCompute_Arity(t *testing.T) {
	defer checkKernelCount(t, KernelCount())
	h := orttest.New()
	k, err := h.CreateKernel(MustBuild(addDefinition), nil)
	require.NoError(t, err)
	x := orttest.NewTensor(h, []int64{1}, []float32{1})

	testCases := map[string]struct {
		numOutputs int
		inputs     []ortapi.Value
		want       string
	}{
		"missing required input": {1, []ortapi.Value{x}, "input 1 (Y)"},
		"omitted required input": {1, []ortapi.Value{x, 0}, "input 1 (Y)"},
		"too many inputs":        {1, []ortapi.Value{x, x, x}, "expected at most 2 inputs, found 3"},
		"too many outputs":       {2, []ortapi.Value{x, x}, "expected at most 1 outputs, host expects 2"},
		"missing output":         {0, []ortapi.Value{x, x}, "host expects 0 outputs"},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := k.Compute(tc.numOutputs, tc.inputs...)
			var oe *orttest.Error
			require.True(t, errors.As(err, &oe), "got %v", err)
			assert.Equal(t, ortapi.ErrorCodeInvalidArgument, oe.Code)
			assert.Contains(t, oe.Message, tc.want)
		})
	}

	k.Destroy()
	releaseAll(h, x)
	require.NoError(t, h.Leaks())
}

type optionalInputs struct {
	X    Array[int64]
	Bias Optional[int64]
}

type optionalOutputs struct {
	Y     Array[int64]
	Extra Optional[int64]
}

func optionalAdd(in optionalInputs) (optionalOutputs, error) {
	y := in.X.Clone()
	if in.Bias.Valid {
		b := in.Bias.Array.Data()[0]
		for i := range y.Data() {
			y.Data()[i] += b
		}
		return optionalOutputs{Y: y, Extra: Some(in.Bias.Array.Clone())}, nil
	}
	return optionalOutputs{Y: y}, nil
}

func TestOptionalSlots(t *testing.T) {
	op := MustBuild(funcDefinition("TestOptionalAdd", optionalAdd))
	assert.Equal(t, ortapi.CharacteristicOptional, op.GetInputCharacteristic(1))
	assert.Equal(t, ortapi.CharacteristicOptional, op.GetOutputCharacteristic(1))

	testCases := map[string]struct {
		bias       bool
		omit       bool
		numOutputs int
		want       []int64
		wantExtra  bool
	}{
		"bias given":              {bias: true, numOutputs: 2, want: []int64{11, 12}, wantExtra: true},
		"bias omitted":            {omit: true, numOutputs: 2, want: []int64{1, 2}},
		"bias absent":             {numOutputs: 2, want: []int64{1, 2}},
		"extra output not wanted": {bias: true, numOutputs: 1, want: []int64{11, 12}},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			defer checkKernelCount(t, KernelCount())
			h := orttest.New()
			k, err := h.CreateKernel(op, nil)
			require.NoError(t, err)

			inputs := []ortapi.Value{orttest.NewTensor(h, []int64{2}, []int64{1, 2})}
			switch {
			case tc.bias:
				inputs = append(inputs, orttest.NewTensor(h, []int64{1}, []int64{10}))
			case tc.omit:
				inputs = append(inputs, 0)
			}

			outputs, err := k.Compute(tc.numOutputs, inputs...)
			require.NoError(t, err)
			require.Len(t, outputs, tc.numOutputs)
			assert.Equal(t, tc.want, orttest.TensorData[int64](h, outputs[0]))
			if tc.numOutputs > 1 {
				assert.Equal(t, tc.wantExtra, outputs[1] != 0)
			}

			k.Destroy()
			releaseAll(h, inputs...)
			releaseAll(h, outputs...)
			require.NoError(t, h.Leaks())
		})
	}
}

type stringInputs struct {
	S Array[string]
}

type stringOutputs struct {
	S Array[string]
	N Array[int64]
}

func TestStringSlots(t *testing.T) {
	defer checkKernelCount(t, KernelCount())
	op := MustBuild(funcDefinition("TestStrings", func(in stringInputs) (stringOutputs, error) {
		strs := in.S.Data()
		out := make([]string, len(strs))
		lens := make([]int64, len(strs))
		for i, s := range strs {
			out[i] = s + s
			lens[i] = int64(len(s))
		}
		s, err := NewArray(in.S.Shape(), out)
		if err != nil {
			return stringOutputs{}, err
		}
		n, err := NewArray(in.S.Shape(), lens)
		return stringOutputs{S: s, N: n}, err
	}))
	assert.Equal(t, ortapi.ElementDataTypeString, op.GetInputType(0))

	h := orttest.New()
	k, err := h.CreateKernel(op, nil)
	require.NoError(t, err)

	in := h.NewStringTensor([]int64{3}, []string{"", "ab", "é"})
	outputs, err := k.Compute(2, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "abab", "éé"}, h.StringTensorData(outputs[0]))
	assert.Equal(t, []int64{0, 2, 2}, orttest.TensorData[int64](h, outputs[1]))

	k.Destroy()
	releaseAll(h, in)
	releaseAll(h, outputs...)
	require.NoError(t, h.Leaks())
}

func TestCompute_Errors(t *testing.T) {
	type in struct{ X Array[float64] }
	type out struct{ Y Array[float64] }

	testCases := map[string]struct {
		compute  func(in) (out, error)
		wantCode ortapi.ErrorCode
		wantMsg  string
	}{
		"plain error": {
			func(in) (out, error) { return out{}, errors.New("out of luck") },
			ortapi.ErrorCodeFail,
			"TestFallible: out of luck",
		},
		"invalid argument": {
			func(in) (out, error) { return out{}, errors.Wrap(ErrInvalidShape, "bad input") },
			ortapi.ErrorCodeInvalidArgument,
			"TestFallible: bad input: invalid shape",
		},
		"status error keeps its code": {
			func(in) (out, error) {
				return out{}, &StatusError{Code: ortapi.ErrorCodeNotImplemented, Message: "later"}
			},
			ortapi.ErrorCodeNotImplemented,
			"TestFallible: later (NOT_IMPLEMENTED)",
		},
		"panic": {
			func(in) (out, error) { panic("kernel bug") },
			ortapi.ErrorCodeRuntimeException,
			"TestFallible: panic: kernel bug",
		},
		"nil pointer panic": {
			func(in) (out, error) {
				var p *int
				return out{Y: Scalar(float64(*p))}, nil
			},
			ortapi.ErrorCodeRuntimeException,
			"TestFallible: panic: runtime error: invalid memory address or nil pointer dereference",
		},
		"unset required output": {
			func(in) (out, error) { return out{}, nil },
			ortapi.ErrorCodeInvalidArgument,
			"TestFallible: output 0 (Y)",
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			defer checkKernelCount(t, KernelCount())
			h := orttest.New()
			k, err := h.CreateKernel(MustBuild(funcDefinition("TestFallible", tc.compute)), nil)
			require.NoError(t, err)

			x := orttest.NewTensor(h, []int64{1}, []float64{1})
			_, err = k.Compute(1, x)
			var oe *orttest.Error
			require.True(t, errors.As(err, &oe), "got %v", err)
			assert.Equal(t, tc.wantCode, oe.Code)
			assert.Contains(t, oe.Message, tc.wantMsg)

			// The kernel stays usable after a failed computation.
			_, _ = k.Compute(1, x)
			assert.Equal(t, 2, h.Calls().KernelCompute)

			k.Destroy()
			releaseAll(h, x)
			require.NoError(t, h.Leaks())
		})
	}
}

type closingKernel struct {
	closed *int
	err    error
}

func (k closingKernel) Compute(in addInputs) (addOutputs, error) {
	return addOutputs{}, errors.New("not used")
}

func (k closingKernel) Close() error {
	*k.closed++
	if k.err != nil {
		return k.err
	}
	panic("close panics after reporting")
}

func TestDestroy_ClosesKernel(t *testing.T) {
	defer checkKernelCount(t, KernelCount())
	h := orttest.New()
	closed := 0
	def := Definition[closingKernel, addInputs, addOutputs]{
		Name: "TestClosing",
		Create: func(*KernelInfo) (closingKernel, error) {
			return closingKernel{closed: &closed, err: errors.New("close failed")}, nil
		},
	}
	k, err := h.CreateKernel(MustBuild(def), nil)
	require.NoError(t, err)
	k.Destroy()
	assert.Equal(t, 1, closed)

	// A panicking Close does not cross the host boundary.
	def.Create = func(*KernelInfo) (closingKernel, error) { return closingKernel{closed: &closed}, nil }
	k, err = h.CreateKernel(MustBuild(def), nil)
	require.NoError(t, err)
	assert.NotPanics(t, k.Destroy)
	assert.Equal(t, 2, closed)

	require.NoError(t, h.Leaks())
}

func TestKernelHandles(t *testing.T) {
	before := KernelCount()
	h := wrapKernel(&wrappedKernel[addKernel, addInputs, addOutputs]{})
	assert.NotZero(t, h)
	assert.Equal(t, before+1, KernelCount())
	k, err := lookupKernel(h)
	require.NoError(t, err)
	assert.NotNil(t, k)

	_, err = releaseKernel(h)
	require.NoError(t, err)
	assert.Equal(t, before, KernelCount())

	_, err = lookupKernel(h)
	assert.True(t, errors.Is(err, ErrInvalidKernel))
	_, err = releaseKernel(h)
	assert.True(t, errors.Is(err, ErrInvalidKernel))
	assert.Equal(t, before, KernelCount())
}

func TestKernel_StaleHandle(t *testing.T) {
	defer checkKernelCount(t, KernelCount())
	h := orttest.New()
	op := MustBuild(addDefinition)

	handle, st := op.CreateKernel(h, 0)
	require.True(t, st.OK())
	op.KernelDestroy(handle)

	t.Run("destroy", func(t *testing.T) {
		before := KernelCount()
		assert.NotPanics(t, func() { op.KernelDestroy(handle) })
		assert.Equal(t, before, KernelCount())
	})

	t.Run("compute", func(t *testing.T) {
		ctx := h.NewKernelContext(nil, nil)
		st := op.KernelCompute(handle, ctx)
		assert.Empty(t, h.ReleaseKernelContext(ctx))
		require.False(t, st.OK())
		assert.Equal(t, ortapi.ErrorCodeRuntimeException, h.GetErrorCode(st))
		assert.Equal(t, fmt.Sprintf("TestAdd: handle %d: invalid kernel handle", handle), h.GetErrorMessage(st))
		h.ReleaseStatus(st)
	})

	t.Run("never created", func(t *testing.T) {
		ctx := h.NewKernelContext(nil, nil)
		defer h.ReleaseKernelContext(ctx)
		assert.Panics(t, func() { MustBuild(addDefinition).KernelCompute(0, ctx) })
	})

	require.NoError(t, h.Leaks())
}
