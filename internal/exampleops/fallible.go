// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exampleops

import (
	"github.com/pkg/errors"

	"github.com/nlpodyssey/customop"
)

// ErrRequestedFailure is returned by the Fallible operator when asked to
// fail.
var ErrRequestedFailure = errors.New("failure requested by input")

// Fallible fails on request. Its node must carry the int attribute
// "crash_if_1", or the kernel cannot be created. Its input must be a
// scalar boolean: true makes the computation fail, false is passed
// through.
var Fallible = customop.Definition[FallibleKernel, UnaryInput[bool], UnaryOutput[bool]]{
	Name: "FallibleOp",
	Create: func(info *customop.KernelInfo) (FallibleKernel, error) {
		if _, err := info.AttributeInt64("crash_if_1"); err != nil {
			return FallibleKernel{}, err
		}
		return FallibleKernel{}, nil
	},
}

// FallibleKernel is the stateless kernel of Fallible.
type FallibleKernel struct{}

// Compute fails with ErrRequestedFailure if its scalar input is true,
// and returns false otherwise.
func (FallibleKernel) Compute(in UnaryInput[bool]) (UnaryOutput[bool], error) {
	if len(in.X.Shape()) != 0 {
		return UnaryOutput[bool]{}, errors.Wrapf(customop.ErrInvalidShape, "expected a scalar, found shape %v", in.X.Shape())
	}
	if in.X.Data()[0] {
		return UnaryOutput[bool]{}, ErrRequestedFailure
	}
	return UnaryOutput[bool]{Z: customop.Scalar(false)}, nil
}
