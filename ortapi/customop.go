// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ortapi

// CustomOp is the table of callbacks a custom operator exposes to the
// host. All fields must be set.
//
// Type and characteristic queries address logical slots: a variadic tail
// counts as a single slot, reported with the element type shared by all
// its items.
type CustomOp struct {
	// Version is the host API version the table was built for.
	Version uint32

	GetName                  func() string
	GetExecutionProviderType func() string

	GetInputType            func(index int) ElementDataType
	GetInputTypeCount       func() int
	GetOutputType           func(index int) ElementDataType
	GetOutputTypeCount      func() int
	GetInputCharacteristic  func(index int) Characteristic
	GetOutputCharacteristic func(index int) Characteristic

	GetVariadicInputMinArity     func() int
	GetVariadicInputHomogeneity  func() bool
	GetVariadicOutputMinArity    func() int
	GetVariadicOutputHomogeneity func() bool

	// CreateKernel instantiates the operator for one graph node. On
	// failure it returns a zero kernel and a non-OK status owned by the
	// host, and the host never calls KernelCompute or KernelDestroy for
	// that node.
	CreateKernel func(api API, info KernelInfo) (kernel uintptr, status Status)
	// KernelCompute runs one inference call. Outputs are written into
	// host-allocated values through ctx.
	KernelCompute func(kernel uintptr, ctx KernelContext) Status
	// KernelDestroy releases a kernel returned by CreateKernel. The host
	// calls it exactly once per kernel.
	KernelDestroy func(kernel uintptr)
}
