// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ortapi describes the boundary between custom operators and the
// host runtime: opaque handles to host-owned objects, host codes, the
// table of host entry points (API) and the table of callbacks a custom
// operator exposes to the host (CustomOp).
//
// Nothing in this package allocates or interprets tensor memory: every
// handle refers to an object owned by the host.
package ortapi

import "unsafe"

// Opaque handles to host-owned objects. The zero value is the null handle.
type (
	// Status is the outcome of a host call. The zero Status means success;
	// a non-zero Status must be released with API.ReleaseStatus.
	Status uintptr
	// Value is a host tensor (or other ONNX value).
	Value uintptr
	// KernelContext is the per-call context passed to KernelCompute.
	KernelContext uintptr
	// KernelInfo is the per-node information passed to CreateKernel.
	KernelInfo uintptr
	// TensorTypeAndShapeInfo describes the element type and shape of a
	// tensor. It must be released with API.ReleaseTensorTypeAndShapeInfo.
	TensorTypeAndShapeInfo uintptr
	// Allocator is a host memory allocator.
	Allocator uintptr
	// CustomOpDomain is a named set of custom operators.
	CustomOpDomain uintptr
	// SessionOptions is the host session configuration.
	SessionOptions uintptr
)

// OK reports whether the status is the success status.
func (s Status) OK() bool { return s == 0 }

// API is the table of host entry points used by custom operators.
//
// Methods mirror the host C functions one to one. Every fallible method
// returns a Status; when the Status is not OK the other results are
// undefined and the caller owns the Status.
type API interface {
	// CreateStatus returns a new status carrying a copy of msg.
	CreateStatus(code ErrorCode, msg string) Status
	GetErrorCode(s Status) ErrorCode
	GetErrorMessage(s Status) string
	ReleaseStatus(s Status)

	KernelContextGetInputCount(ctx KernelContext) (int, Status)
	KernelContextGetOutputCount(ctx KernelContext) (int, Status)
	// KernelContextGetInput returns the input at index. The result is the
	// null Value for an omitted optional input.
	KernelContextGetInput(ctx KernelContext, index int) (Value, Status)
	// KernelContextGetOutput returns the output at index, allocating it
	// with the given shape.
	KernelContextGetOutput(ctx KernelContext, index int, shape []int64) (Value, Status)

	GetValueType(v Value) (ONNXType, Status)
	GetTensorTypeAndShape(v Value) (TensorTypeAndShapeInfo, Status)
	GetTensorElementType(info TensorTypeAndShapeInfo) (ElementDataType, Status)
	GetDimensionsCount(info TensorTypeAndShapeInfo) (int, Status)
	// GetDimensions fills dims, whose length must be the dimensions count.
	GetDimensions(info TensorTypeAndShapeInfo, dims []int64) Status
	GetTensorShapeElementCount(info TensorTypeAndShapeInfo) (int, Status)
	ReleaseTensorTypeAndShapeInfo(info TensorTypeAndShapeInfo)
	// GetTensorMutableData returns the address of the first element of a
	// non-string tensor. The memory stays owned by the host.
	GetTensorMutableData(v Value) (unsafe.Pointer, Status)
	// GetStringTensorDataLength returns the total byte length of all the
	// strings of a string tensor, without terminators.
	GetStringTensorDataLength(v Value) (int, Status)
	// GetStringTensorContent copies the concatenated strings into buf and
	// the start offset of each element into offsets.
	GetStringTensorContent(v Value, buf []byte, offsets []int) Status
	// FillStringTensor copies NUL-terminated strings into a string tensor.
	// The pointed memory only needs to stay valid for the duration of the
	// call.
	FillStringTensor(v Value, cstrings []*byte) Status
	ReleaseValue(v Value)

	KernelInfoGetAttributeFloat(info KernelInfo, name string) (float32, Status)
	KernelInfoGetAttributeInt64(info KernelInfo, name string) (int64, Status)
	// KernelInfoGetAttributeString works in two phases: with a nil buf it
	// stores the required size (NUL terminator included) into size;
	// otherwise it fills buf, which must be at least *size bytes long.
	KernelInfoGetAttributeString(info KernelInfo, name string, buf []byte, size *int) Status
	// KernelInfoGetAttributeArrayFloat follows the same two-phase protocol
	// as KernelInfoGetAttributeString, counting elements.
	KernelInfoGetAttributeArrayFloat(info KernelInfo, name string, out []float32, size *int) Status
	// KernelInfoGetAttributeArrayInt64 follows the same two-phase protocol
	// as KernelInfoGetAttributeString, counting elements.
	KernelInfoGetAttributeArrayInt64(info KernelInfo, name string, out []int64, size *int) Status
	GetAllocatorWithDefaultOptions() (Allocator, Status)
	// KernelInfoGetAttributeTensor returns a new Value owned by the caller.
	KernelInfoGetAttributeTensor(info KernelInfo, name string, alloc Allocator) (Value, Status)

	CreateCustomOpDomain(domain string) (CustomOpDomain, Status)
	CustomOpDomainAdd(domain CustomOpDomain, op *CustomOp) Status
	AddCustomOpDomain(options SessionOptions, domain CustomOpDomain) Status
	ReleaseCustomOpDomain(domain CustomOpDomain)
}
