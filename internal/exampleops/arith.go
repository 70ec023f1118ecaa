// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exampleops

import (
	"github.com/pkg/errors"

	"github.com/nlpodyssey/customop"
)

// Add adds its two inputs.
var Add = customop.Definition[AddKernel, BinaryInputs[float32], UnaryOutput[float32]]{
	Name:   "CustomAdd",
	Create: func(*customop.KernelInfo) (AddKernel, error) { return AddKernel{}, nil },
}

// BinaryInputs are the inputs of element-wise binary operators.
type BinaryInputs[T customop.Element] struct {
	X customop.Array[T]
	Y customop.Array[T]
}

// UnaryInput is a single input.
type UnaryInput[T customop.Element] struct {
	X customop.Array[T]
}

// UnaryOutput is a single output.
type UnaryOutput[T customop.Element] struct {
	Z customop.Array[T]
}

// AddKernel is the stateless kernel of Add.
type AddKernel struct{}

// Compute adds X and Y element-wise. Their shapes must match.
func (AddKernel) Compute(in BinaryInputs[float32]) (UnaryOutput[float32], error) {
	z, err := zipWith(in.X, in.Y, add[float32])
	return UnaryOutput[float32]{Z: z}, err
}

// AddConstant adds the "constant" int attribute of its node to every
// element of its input.
var AddConstant = customop.Definition[AddConstantKernel, UnaryInput[int64], UnaryOutput[int64]]{
	Name: "AddConstant",
	Create: func(info *customop.KernelInfo) (AddConstantKernel, error) {
		c, err := info.AttributeInt64("constant")
		if err != nil {
			return AddConstantKernel{}, err
		}
		return AddConstantKernel{constant: c}, nil
	},
}

// AddConstantKernel is the kernel of AddConstant, holding the constant
// of its node.
type AddConstantKernel struct {
	constant int64
}

// Compute adds the constant to every element of X.
func (k AddConstantKernel) Compute(in UnaryInput[int64]) (UnaryOutput[int64], error) {
	z, err := mapValues(in.X, func(v int64) int64 { return v + k.constant })
	return UnaryOutput[int64]{Z: z}, err
}

// OptionalAdd adds its inputs, or copies the first one when the second
// is omitted.
var OptionalAdd = customop.Definition[OptionalAddKernel, OptionalAddInputs, UnaryOutput[float64]]{
	Name:   "OptionalAdd",
	Create: func(*customop.KernelInfo) (OptionalAddKernel, error) { return OptionalAddKernel{}, nil },
}

// OptionalAddInputs are the inputs of OptionalAdd. Y may be omitted.
type OptionalAddInputs struct {
	X customop.Array[float64]
	Y customop.Optional[float64]
}

// OptionalAddKernel is the stateless kernel of OptionalAdd.
type OptionalAddKernel struct{}

// Compute returns X + Y, or a copy of X if Y is omitted.
func (OptionalAddKernel) Compute(in OptionalAddInputs) (UnaryOutput[float64], error) {
	if !in.Y.Valid {
		return UnaryOutput[float64]{Z: in.X.Clone()}, nil
	}
	z, err := zipWith(in.X, in.Y.Array, add[float64])
	return UnaryOutput[float64]{Z: z}, err
}

// Sum adds any number of inputs of the same shape.
var Sum = customop.Definition[SumKernel, VariadicInputs[float32], UnaryOutput[float32]]{
	Name:   "CustomSum",
	Create: func(*customop.KernelInfo) (SumKernel, error) { return SumKernel{}, nil },
}

// VariadicInputs is a homogeneous list of at least one input.
type VariadicInputs[T customop.Element] struct {
	Xs []customop.Array[T]
}

// VariadicOutputs is a homogeneous list of at least one output.
type VariadicOutputs[T customop.Element] struct {
	Zs []customop.Array[T]
}

// SumKernel is the stateless kernel of Sum.
type SumKernel struct{}

// Compute adds all the inputs element-wise. It fails with
// customop.ErrArity if there are none.
func (SumKernel) Compute(in VariadicInputs[float32]) (UnaryOutput[float32], error) {
	if len(in.Xs) == 0 {
		return UnaryOutput[float32]{}, errors.Wrap(customop.ErrArity, "at least one input is required")
	}
	acc := in.Xs[0].Clone()
	for i, x := range in.Xs[1:] {
		var err error
		if acc, err = zipWith(acc, x, add[float32]); err != nil {
			return UnaryOutput[float32]{}, errors.Wrapf(err, "input %d", i+1)
		}
	}
	return UnaryOutput[float32]{Z: acc}, nil
}

// VariadicIdentity passes all its inputs through.
var VariadicIdentity = customop.Definition[VariadicIdentityKernel, VariadicInputs[float32], VariadicOutputs[float32]]{
	Name:   "VariadicIdentity",
	Create: func(*customop.KernelInfo) (VariadicIdentityKernel, error) { return VariadicIdentityKernel{}, nil },
}

// VariadicIdentityKernel is the stateless kernel of VariadicIdentity.
type VariadicIdentityKernel struct{}

// Compute returns a copy of every input, in order.
func (VariadicIdentityKernel) Compute(in VariadicInputs[float32]) (VariadicOutputs[float32], error) {
	out := VariadicOutputs[float32]{Zs: make([]customop.Array[float32], len(in.Xs))}
	for i, x := range in.Xs {
		out.Zs[i] = x.Clone()
	}
	return out, nil
}
