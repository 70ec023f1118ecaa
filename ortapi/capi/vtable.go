// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build onnxruntime

package capi

// #include <stdlib.h>
// #include "capi.h"
import "C"

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/nlpodyssey/customop/ortapi"
)

// Host vtables live for the lifetime of the process: the host keeps
// pointers to them in every domain they are added to.
var (
	opsMu    sync.Mutex
	vtables  = map[*ortapi.CustomOp]*C.capi_custom_op{}
	handles  sync.Map // uintptr -> *ortapi.CustomOp
	opHandle atomic.Uintptr
)

// vtableOf returns the host vtable forwarding to op, allocating it on
// first use.
func vtableOf(op *ortapi.CustomOp) (*C.capi_custom_op, error) {
	opsMu.Lock()
	defer opsMu.Unlock()
	if vt, ok := vtables[op]; ok {
		return vt, nil
	}
	h := opHandle.Add(1)
	name := C.CString(op.GetName())
	ep := C.CString(op.GetExecutionProviderType())
	vt := C.capi_new_custom_op(C.uint32_t(op.Version), C.uintptr_t(h), name, ep)
	if vt == nil {
		C.free(unsafe.Pointer(name))
		C.free(unsafe.Pointer(ep))
		return nil, errors.Errorf("failed to allocate the vtable of custom operator %q", op.GetName())
	}
	handles.Store(h, op)
	vtables[op] = vt
	klog.V(2).InfoS("created custom operator vtable", "op", op.GetName(), "handle", h)
	return vt, nil
}

func lookupOp(h C.uintptr_t) *ortapi.CustomOp {
	op, ok := handles.Load(uintptr(h))
	if !ok {
		panic(errors.Errorf("unknown custom operator handle %d", h))
	}
	return op.(*ortapi.CustomOp)
}

func cBool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

//export goGetInputType
func goGetInputType(h C.uintptr_t, index C.size_t) C.int {
	return C.int(lookupOp(h).GetInputType(int(index)))
}

//export goGetInputTypeCount
func goGetInputTypeCount(h C.uintptr_t) C.size_t {
	return C.size_t(lookupOp(h).GetInputTypeCount())
}

//export goGetOutputType
func goGetOutputType(h C.uintptr_t, index C.size_t) C.int {
	return C.int(lookupOp(h).GetOutputType(int(index)))
}

//export goGetOutputTypeCount
func goGetOutputTypeCount(h C.uintptr_t) C.size_t {
	return C.size_t(lookupOp(h).GetOutputTypeCount())
}

//export goGetInputCharacteristic
func goGetInputCharacteristic(h C.uintptr_t, index C.size_t) C.int {
	return C.int(lookupOp(h).GetInputCharacteristic(int(index)))
}

//export goGetOutputCharacteristic
func goGetOutputCharacteristic(h C.uintptr_t, index C.size_t) C.int {
	return C.int(lookupOp(h).GetOutputCharacteristic(int(index)))
}

//export goGetVariadicInputMinArity
func goGetVariadicInputMinArity(h C.uintptr_t) C.int {
	return C.int(lookupOp(h).GetVariadicInputMinArity())
}

//export goGetVariadicInputHomogeneity
func goGetVariadicInputHomogeneity(h C.uintptr_t) C.int {
	return cBool(lookupOp(h).GetVariadicInputHomogeneity())
}

//export goGetVariadicOutputMinArity
func goGetVariadicOutputMinArity(h C.uintptr_t) C.int {
	return C.int(lookupOp(h).GetVariadicOutputMinArity())
}

//export goGetVariadicOutputHomogeneity
func goGetVariadicOutputHomogeneity(h C.uintptr_t) C.int {
	return cBool(lookupOp(h).GetVariadicOutputHomogeneity())
}

//export goCreateKernel
func goCreateKernel(h C.uintptr_t, api *C.OrtApi, info *C.OrtKernelInfo, kernel *C.uintptr_t) *C.OrtStatus {
	k, st := lookupOp(h).CreateKernel(&API{api: api}, fromC[ortapi.KernelInfo](info))
	*kernel = C.uintptr_t(k)
	return toC[C.OrtStatus](st)
}

//export goKernelCompute
func goKernelCompute(h C.uintptr_t, kernel C.uintptr_t, ctx *C.OrtKernelContext) *C.OrtStatus {
	st := lookupOp(h).KernelCompute(uintptr(kernel), fromC[ortapi.KernelContext](ctx))
	return toC[C.OrtStatus](st)
}

//export goKernelDestroy
func goKernelDestroy(h C.uintptr_t, kernel C.uintptr_t) {
	lookupOp(h).KernelDestroy(uintptr(kernel))
}
