// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exampleops

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/nlpodyssey/customop"
)

// AttrShowcase reads one attribute of every supported kind. It adds the
// float and int attributes to its first two inputs, and appends
// " + {string attribute}" to every string of the third one.
var AttrShowcase = customop.Definition[*AttrShowcaseKernel, AttrShowcaseInputs, AttrShowcaseOutputs]{
	Name:   "AttrShowcase",
	Create: newAttrShowcaseKernel,
}

// AttrShowcaseInputs are the inputs of AttrShowcase.
type AttrShowcaseInputs struct {
	A customop.Array[float32]
	B customop.Array[int64]
	C customop.Array[string]
}

// AttrShowcaseOutputs are the outputs of AttrShowcase, one per input.
type AttrShowcaseOutputs struct {
	A customop.Array[float32]
	B customop.Array[int64]
	C customop.Array[string]
}

// AttrShowcaseKernel holds every attribute of an AttrShowcase node.
type AttrShowcaseKernel struct {
	Float   float32
	Int     int64
	String  string
	Floats  []float32
	Ints    []int64
	U8Table customop.Array[uint8]
}

// newAttrShowcaseKernel reports every missing or mistyped attribute at
// once.
func newAttrShowcaseKernel(info *customop.KernelInfo) (*AttrShowcaseKernel, error) {
	k := new(AttrShowcaseKernel)
	var errs, err error
	k.Float, err = info.AttributeFloat32("float_attr")
	errs = multierr.Append(errs, err)
	k.Int, err = info.AttributeInt64("int_attr")
	errs = multierr.Append(errs, err)
	k.String, err = info.AttributeString("string_attr")
	errs = multierr.Append(errs, err)
	k.Floats, err = info.AttributeFloat32s("floats_attr")
	errs = multierr.Append(errs, err)
	k.Ints, err = info.AttributeInt64s("ints_attr")
	errs = multierr.Append(errs, err)
	k.U8Table, err = customop.AttributeArray[uint8](info, "u8_tensor")
	errs = multierr.Append(errs, err)
	if errs != nil {
		return nil, errs
	}
	return k, nil
}

// Compute adds the scalar attributes to A and B, and appends the string
// attribute to every element of C.
func (k *AttrShowcaseKernel) Compute(in AttrShowcaseInputs) (AttrShowcaseOutputs, error) {
	a, err := mapValues(in.A, func(v float32) float32 { return v + k.Float })
	if err != nil {
		return AttrShowcaseOutputs{}, errors.Wrap(err, "A")
	}
	b, err := mapValues(in.B, func(v int64) int64 { return v + k.Int })
	if err != nil {
		return AttrShowcaseOutputs{}, errors.Wrap(err, "B")
	}
	c, err := mapValues(in.C, func(v string) string { return v + " + " + k.String })
	if err != nil {
		return AttrShowcaseOutputs{}, errors.Wrap(err, "C")
	}
	return AttrShowcaseOutputs{A: a, B: b, C: c}, nil
}
