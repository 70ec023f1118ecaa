// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package exampleops implements a set of example custom operators,
// registered together in the "my.domain" domain.
package exampleops

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"

	"github.com/nlpodyssey/customop"
)

// Domain is the name of the domain of the example operators.
const Domain = "my.domain"

// OpSet returns a new set holding every example operator.
func OpSet() *customop.OpSet {
	return customop.NewOpSet(Domain).MustAdd(
		customop.MustBuild(Add),
		customop.MustBuild(AddConstant),
		customop.MustBuild(AttrShowcase),
		customop.MustBuild(ParseDateTime),
		customop.MustBuild(Fallible),
		customop.MustBuild(OptionalAdd),
		customop.MustBuild(Sum),
		customop.MustBuild(VariadicIdentity),
	)
}

// number is the set of numeric element types.
type number interface {
	customop.Element
	constraints.Integer | constraints.Float
}

// zipWith applies f element-wise to two arrays of the same shape.
func zipWith[T number](x, y customop.Array[T], f func(a, b T) T) (customop.Array[T], error) {
	if !equalShapes(x.Shape(), y.Shape()) {
		return customop.Array[T]{}, errors.Wrapf(customop.ErrInvalidShape,
			"operands have different shapes %v and %v", x.Shape(), y.Shape())
	}
	a, b := x.Data(), y.Data()
	out := make([]T, len(a))
	for i := range out {
		out[i] = f(a[i], b[i])
	}
	return customop.NewArray(x.Shape(), out)
}

// mapValues applies f to every element of x.
func mapValues[T, U customop.Element](x customop.Array[T], f func(T) U) (customop.Array[U], error) {
	out := make([]U, x.Len())
	for i, v := range x.Data() {
		out[i] = f(v)
	}
	return customop.NewArray(x.Shape(), out)
}

func add[T number](a, b T) T { return a + b }

func equalShapes(a, b []int) bool {
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
