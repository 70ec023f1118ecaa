// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

// DefaultExecutionProvider is the execution provider of a Definition that
// does not set one.
const DefaultExecutionProvider = "CPUExecutionProvider"

// Kernel is the state of one instance of a custom operator, created once
// per graph node.
//
// I and O are structs whose exported fields are the operator slots, in
// order:
//   - Array[T] is a required input or output;
//   - Optional[T] is an input the host may omit, or an output the kernel
//     may leave unset;
//   - []Array[T], allowed as the last field only, is a variadic tail of
//     values sharing the element type T.
//
// Compute is called once per inference. The arrays of in borrow host
// memory and are only valid until Compute returns. A Kernel must not
// mutate its own state during Compute.
//
// A Kernel implementing io.Closer is closed when the host destroys it.
type Kernel[I, O any] interface {
	Compute(in I) (O, error)
}

// Definition describes a custom operator whose kernels are of type K.
type Definition[K Kernel[I, O], I, O any] struct {
	// Name of the operator within its domain.
	Name string
	// ExecutionProvider defaults to DefaultExecutionProvider.
	ExecutionProvider string
	// VariadicInputMinArity is the minimum number of values of the variadic
	// input tail. It must be zero if I has no variadic slot; zero selects a
	// minimum of one otherwise.
	VariadicInputMinArity int
	// VariadicOutputMinArity is the output counterpart of
	// VariadicInputMinArity.
	VariadicOutputMinArity int
	// Create builds a kernel for one graph node, typically reading its
	// attributes. If it fails, the host never computes with nor destroys
	// the node kernel.
	Create func(info *KernelInfo) (K, error)
}
