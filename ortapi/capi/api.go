// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build onnxruntime

// Package capi binds ortapi to the ONNX Runtime C API through cgo.
//
// It needs onnxruntime_c_api.h on the include path (for example through
// CGO_CFLAGS) and is only built with the onnxruntime build tag. The host
// library itself is not linked: every entry point is reached through the
// OrtApi table the host hands over.
package capi

/*
#include <stdlib.h>
#include <onnxruntime_c_api.h>

static const OrtApi* capi_get_api(const OrtApiBase* base, uint32_t version) {
	return base->GetApi(version);
}

static const char* capi_get_version_string(const OrtApiBase* base) {
	return base->GetVersionString();
}

static OrtStatus* capi_CreateStatus(const OrtApi* api, OrtErrorCode code, const char* msg) {
	return api->CreateStatus(code, msg);
}

static OrtErrorCode capi_GetErrorCode(const OrtApi* api, OrtStatus* s) {
	return api->GetErrorCode(s);
}

static const char* capi_GetErrorMessage(const OrtApi* api, OrtStatus* s) {
	return api->GetErrorMessage(s);
}

static void capi_ReleaseStatus(const OrtApi* api, OrtStatus* s) {
	api->ReleaseStatus(s);
}

static OrtStatus* capi_KernelContext_GetInputCount(const OrtApi* api, OrtKernelContext* ctx, size_t* out) {
	return api->KernelContext_GetInputCount(ctx, out);
}

static OrtStatus* capi_KernelContext_GetOutputCount(const OrtApi* api, OrtKernelContext* ctx, size_t* out) {
	return api->KernelContext_GetOutputCount(ctx, out);
}

static OrtStatus* capi_KernelContext_GetInput(const OrtApi* api, OrtKernelContext* ctx, size_t index, OrtValue** out) {
	return api->KernelContext_GetInput(ctx, index, (const OrtValue**)out);
}

static OrtStatus* capi_KernelContext_GetOutput(const OrtApi* api, OrtKernelContext* ctx, size_t index, int64_t* dims, size_t count, OrtValue** out) {
	return api->KernelContext_GetOutput(ctx, index, dims, count, out);
}

static OrtStatus* capi_GetValueType(const OrtApi* api, OrtValue* v, int* out) {
	enum ONNXType t = ONNX_TYPE_UNKNOWN;
	OrtStatus* status = api->GetValueType(v, &t);
	*out = (int)t;
	return status;
}

static OrtStatus* capi_GetTensorTypeAndShape(const OrtApi* api, OrtValue* v, OrtTensorTypeAndShapeInfo** out) {
	return api->GetTensorTypeAndShape(v, out);
}

static OrtStatus* capi_GetTensorElementType(const OrtApi* api, OrtTensorTypeAndShapeInfo* info, int* out) {
	ONNXTensorElementDataType t = ONNX_TENSOR_ELEMENT_DATA_TYPE_UNDEFINED;
	OrtStatus* status = api->GetTensorElementType(info, &t);
	*out = (int)t;
	return status;
}

static OrtStatus* capi_GetDimensionsCount(const OrtApi* api, OrtTensorTypeAndShapeInfo* info, size_t* out) {
	return api->GetDimensionsCount(info, out);
}

static OrtStatus* capi_GetDimensions(const OrtApi* api, OrtTensorTypeAndShapeInfo* info, int64_t* dims, size_t count) {
	return api->GetDimensions(info, dims, count);
}

static OrtStatus* capi_GetTensorShapeElementCount(const OrtApi* api, OrtTensorTypeAndShapeInfo* info, size_t* out) {
	return api->GetTensorShapeElementCount(info, out);
}

static void capi_ReleaseTensorTypeAndShapeInfo(const OrtApi* api, OrtTensorTypeAndShapeInfo* info) {
	api->ReleaseTensorTypeAndShapeInfo(info);
}

static OrtStatus* capi_GetTensorMutableData(const OrtApi* api, OrtValue* v, void** out) {
	return api->GetTensorMutableData(v, out);
}

static OrtStatus* capi_GetStringTensorDataLength(const OrtApi* api, OrtValue* v, size_t* out) {
	return api->GetStringTensorDataLength(v, out);
}

static OrtStatus* capi_GetStringTensorContent(const OrtApi* api, OrtValue* v, void* s, size_t s_len, size_t* offsets, size_t offsets_len) {
	return api->GetStringTensorContent(v, s, s_len, offsets, offsets_len);
}

static OrtStatus* capi_FillStringTensor(const OrtApi* api, OrtValue* v, char** s, size_t len) {
	return api->FillStringTensor(v, (const char* const*)s, len);
}

static void capi_ReleaseValue(const OrtApi* api, OrtValue* v) {
	api->ReleaseValue(v);
}

static OrtStatus* capi_KernelInfoGetAttribute_float(const OrtApi* api, OrtKernelInfo* info, const char* name, float* out) {
	return api->KernelInfoGetAttribute_float(info, name, out);
}

static OrtStatus* capi_KernelInfoGetAttribute_int64(const OrtApi* api, OrtKernelInfo* info, const char* name, int64_t* out) {
	return api->KernelInfoGetAttribute_int64(info, name, out);
}

static OrtStatus* capi_KernelInfoGetAttribute_string(const OrtApi* api, OrtKernelInfo* info, const char* name, char* out, size_t* size) {
	return api->KernelInfoGetAttribute_string(info, name, out, size);
}

static OrtStatus* capi_KernelInfoGetAttributeArray_float(const OrtApi* api, OrtKernelInfo* info, const char* name, float* out, size_t* size) {
	return api->KernelInfoGetAttributeArray_float(info, name, out, size);
}

static OrtStatus* capi_KernelInfoGetAttributeArray_int64(const OrtApi* api, OrtKernelInfo* info, const char* name, int64_t* out, size_t* size) {
	return api->KernelInfoGetAttributeArray_int64(info, name, out, size);
}

static OrtStatus* capi_GetAllocatorWithDefaultOptions(const OrtApi* api, OrtAllocator** out) {
	return api->GetAllocatorWithDefaultOptions(out);
}

static OrtStatus* capi_KernelInfoGetAttribute_tensor(const OrtApi* api, OrtKernelInfo* info, const char* name, OrtAllocator* alloc, OrtValue** out) {
	return api->KernelInfoGetAttribute_tensor(info, name, alloc, out);
}

static OrtStatus* capi_CreateCustomOpDomain(const OrtApi* api, const char* domain, OrtCustomOpDomain** out) {
	return api->CreateCustomOpDomain(domain, out);
}

static OrtStatus* capi_CustomOpDomain_Add(const OrtApi* api, OrtCustomOpDomain* domain, OrtCustomOp* op) {
	return api->CustomOpDomain_Add(domain, op);
}

static OrtStatus* capi_AddCustomOpDomain(const OrtApi* api, OrtSessionOptions* options, OrtCustomOpDomain* domain) {
	return api->AddCustomOpDomain(options, domain);
}

static void capi_ReleaseCustomOpDomain(const OrtApi* api, OrtCustomOpDomain* domain) {
	api->ReleaseCustomOpDomain(domain);
}
*/
import "C"

import (
	"runtime"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/nlpodyssey/customop/ortapi"
)

// API implements ortapi.API on top of a host OrtApi table.
type API struct {
	api *C.OrtApi
}

var _ ortapi.API = (*API)(nil)

// FromBase returns the API table of version ortapi.APIVersion from an
// OrtApiBase pointer, as received by a RegisterCustomOps entry point.
func FromBase(base unsafe.Pointer) (*API, error) {
	if base == nil {
		return nil, errors.New("null OrtApiBase")
	}
	b := (*C.OrtApiBase)(base)
	api := C.capi_get_api(b, C.uint32_t(ortapi.APIVersion))
	if api == nil {
		return nil, errors.Errorf("onnxruntime %s does not provide API version %d",
			C.GoString(C.capi_get_version_string(b)), ortapi.APIVersion)
	}
	return &API{api: api}, nil
}

// SessionOptions converts an OrtSessionOptions pointer into a handle.
func SessionOptions(p unsafe.Pointer) ortapi.SessionOptions {
	return ortapi.SessionOptions(uintptr(p))
}

// StatusPointer converts a status handle back into an OrtStatus pointer,
// to be returned to the host.
func StatusPointer(s ortapi.Status) unsafe.Pointer {
	return unsafe.Pointer(toC[C.OrtStatus](s))
}

// toC converts a handle into the host pointer it wraps. Handles only ever
// hold C pointers, which the Go garbage collector does not track.
func toC[T any, H ~uintptr](h H) *T {
	return (*T)(unsafe.Pointer(uintptr(h)))
}

func fromC[H ~uintptr, T any](p *T) H {
	return H(uintptr(unsafe.Pointer(p)))
}

func (a *API) CreateStatus(code ortapi.ErrorCode, msg string) ortapi.Status {
	cmsg := C.CString(msg)
	defer C.free(unsafe.Pointer(cmsg))
	return fromC[ortapi.Status](C.capi_CreateStatus(a.api, C.OrtErrorCode(code), cmsg))
}

func (a *API) GetErrorCode(s ortapi.Status) ortapi.ErrorCode {
	return ortapi.ErrorCode(C.capi_GetErrorCode(a.api, toC[C.OrtStatus](s)))
}

func (a *API) GetErrorMessage(s ortapi.Status) string {
	return C.GoString(C.capi_GetErrorMessage(a.api, toC[C.OrtStatus](s)))
}

func (a *API) ReleaseStatus(s ortapi.Status) {
	C.capi_ReleaseStatus(a.api, toC[C.OrtStatus](s))
}

func (a *API) KernelContextGetInputCount(ctx ortapi.KernelContext) (int, ortapi.Status) {
	var n C.size_t
	st := C.capi_KernelContext_GetInputCount(a.api, toC[C.OrtKernelContext](ctx), &n)
	return int(n), fromC[ortapi.Status](st)
}

func (a *API) KernelContextGetOutputCount(ctx ortapi.KernelContext) (int, ortapi.Status) {
	var n C.size_t
	st := C.capi_KernelContext_GetOutputCount(a.api, toC[C.OrtKernelContext](ctx), &n)
	return int(n), fromC[ortapi.Status](st)
}

func (a *API) KernelContextGetInput(ctx ortapi.KernelContext, index int) (ortapi.Value, ortapi.Status) {
	var v *C.OrtValue
	st := C.capi_KernelContext_GetInput(a.api, toC[C.OrtKernelContext](ctx), C.size_t(index), &v)
	return fromC[ortapi.Value](v), fromC[ortapi.Status](st)
}

func (a *API) KernelContextGetOutput(ctx ortapi.KernelContext, index int, shape []int64) (ortapi.Value, ortapi.Status) {
	var v *C.OrtValue
	st := C.capi_KernelContext_GetOutput(a.api, toC[C.OrtKernelContext](ctx), C.size_t(index),
		(*C.int64_t)(unsafe.Pointer(unsafe.SliceData(shape))), C.size_t(len(shape)), &v)
	return fromC[ortapi.Value](v), fromC[ortapi.Status](st)
}

func (a *API) GetValueType(v ortapi.Value) (ortapi.ONNXType, ortapi.Status) {
	var t C.int
	st := C.capi_GetValueType(a.api, toC[C.OrtValue](v), &t)
	return ortapi.ONNXType(t), fromC[ortapi.Status](st)
}

func (a *API) GetTensorTypeAndShape(v ortapi.Value) (ortapi.TensorTypeAndShapeInfo, ortapi.Status) {
	var info *C.OrtTensorTypeAndShapeInfo
	st := C.capi_GetTensorTypeAndShape(a.api, toC[C.OrtValue](v), &info)
	return fromC[ortapi.TensorTypeAndShapeInfo](info), fromC[ortapi.Status](st)
}

func (a *API) GetTensorElementType(info ortapi.TensorTypeAndShapeInfo) (ortapi.ElementDataType, ortapi.Status) {
	var t C.int
	st := C.capi_GetTensorElementType(a.api, toC[C.OrtTensorTypeAndShapeInfo](info), &t)
	return ortapi.ElementDataType(t), fromC[ortapi.Status](st)
}

func (a *API) GetDimensionsCount(info ortapi.TensorTypeAndShapeInfo) (int, ortapi.Status) {
	var n C.size_t
	st := C.capi_GetDimensionsCount(a.api, toC[C.OrtTensorTypeAndShapeInfo](info), &n)
	return int(n), fromC[ortapi.Status](st)
}

func (a *API) GetDimensions(info ortapi.TensorTypeAndShapeInfo, dims []int64) ortapi.Status {
	st := C.capi_GetDimensions(a.api, toC[C.OrtTensorTypeAndShapeInfo](info),
		(*C.int64_t)(unsafe.Pointer(unsafe.SliceData(dims))), C.size_t(len(dims)))
	return fromC[ortapi.Status](st)
}

func (a *API) GetTensorShapeElementCount(info ortapi.TensorTypeAndShapeInfo) (int, ortapi.Status) {
	var n C.size_t
	st := C.capi_GetTensorShapeElementCount(a.api, toC[C.OrtTensorTypeAndShapeInfo](info), &n)
	return int(n), fromC[ortapi.Status](st)
}

func (a *API) ReleaseTensorTypeAndShapeInfo(info ortapi.TensorTypeAndShapeInfo) {
	C.capi_ReleaseTensorTypeAndShapeInfo(a.api, toC[C.OrtTensorTypeAndShapeInfo](info))
}

func (a *API) GetTensorMutableData(v ortapi.Value) (unsafe.Pointer, ortapi.Status) {
	var p unsafe.Pointer
	st := C.capi_GetTensorMutableData(a.api, toC[C.OrtValue](v), &p)
	return p, fromC[ortapi.Status](st)
}

func (a *API) GetStringTensorDataLength(v ortapi.Value) (int, ortapi.Status) {
	var n C.size_t
	st := C.capi_GetStringTensorDataLength(a.api, toC[C.OrtValue](v), &n)
	return int(n), fromC[ortapi.Status](st)
}

func (a *API) GetStringTensorContent(v ortapi.Value, buf []byte, offsets []int) ortapi.Status {
	coffsets := make([]C.size_t, len(offsets))
	st := C.capi_GetStringTensorContent(a.api, toC[C.OrtValue](v),
		unsafe.Pointer(unsafe.SliceData(buf)), C.size_t(len(buf)),
		unsafe.SliceData(coffsets), C.size_t(len(coffsets)))
	for i, o := range coffsets {
		offsets[i] = int(o)
	}
	return fromC[ortapi.Status](st)
}

func (a *API) FillStringTensor(v ortapi.Value, cstrings []*byte) ortapi.Status {
	// The pointer array is Go memory holding Go pointers: each string must
	// be pinned for the duration of the call.
	var pinner runtime.Pinner
	defer pinner.Unpin()
	for _, s := range cstrings {
		pinner.Pin(s)
	}
	st := C.capi_FillStringTensor(a.api, toC[C.OrtValue](v),
		(**C.char)(unsafe.Pointer(unsafe.SliceData(cstrings))), C.size_t(len(cstrings)))
	return fromC[ortapi.Status](st)
}

func (a *API) ReleaseValue(v ortapi.Value) {
	C.capi_ReleaseValue(a.api, toC[C.OrtValue](v))
}

func (a *API) KernelInfoGetAttributeFloat(info ortapi.KernelInfo, name string) (float32, ortapi.Status) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var f C.float
	st := C.capi_KernelInfoGetAttribute_float(a.api, toC[C.OrtKernelInfo](info), cname, &f)
	return float32(f), fromC[ortapi.Status](st)
}

func (a *API) KernelInfoGetAttributeInt64(info ortapi.KernelInfo, name string) (int64, ortapi.Status) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var i C.int64_t
	st := C.capi_KernelInfoGetAttribute_int64(a.api, toC[C.OrtKernelInfo](info), cname, &i)
	return int64(i), fromC[ortapi.Status](st)
}

func (a *API) KernelInfoGetAttributeString(info ortapi.KernelInfo, name string, buf []byte, size *int) ortapi.Status {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	n := C.size_t(len(buf))
	st := C.capi_KernelInfoGetAttribute_string(a.api, toC[C.OrtKernelInfo](info), cname,
		(*C.char)(unsafe.Pointer(unsafe.SliceData(buf))), &n)
	*size = int(n)
	return fromC[ortapi.Status](st)
}

func (a *API) KernelInfoGetAttributeArrayFloat(info ortapi.KernelInfo, name string, out []float32, size *int) ortapi.Status {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	n := C.size_t(len(out))
	st := C.capi_KernelInfoGetAttributeArray_float(a.api, toC[C.OrtKernelInfo](info), cname,
		(*C.float)(unsafe.Pointer(unsafe.SliceData(out))), &n)
	*size = int(n)
	return fromC[ortapi.Status](st)
}

func (a *API) KernelInfoGetAttributeArrayInt64(info ortapi.KernelInfo, name string, out []int64, size *int) ortapi.Status {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	n := C.size_t(len(out))
	st := C.capi_KernelInfoGetAttributeArray_int64(a.api, toC[C.OrtKernelInfo](info), cname,
		(*C.int64_t)(unsafe.Pointer(unsafe.SliceData(out))), &n)
	*size = int(n)
	return fromC[ortapi.Status](st)
}

func (a *API) GetAllocatorWithDefaultOptions() (ortapi.Allocator, ortapi.Status) {
	var alloc *C.OrtAllocator
	st := C.capi_GetAllocatorWithDefaultOptions(a.api, &alloc)
	return fromC[ortapi.Allocator](alloc), fromC[ortapi.Status](st)
}

func (a *API) KernelInfoGetAttributeTensor(info ortapi.KernelInfo, name string, alloc ortapi.Allocator) (ortapi.Value, ortapi.Status) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var v *C.OrtValue
	st := C.capi_KernelInfoGetAttribute_tensor(a.api, toC[C.OrtKernelInfo](info), cname, toC[C.OrtAllocator](alloc), &v)
	return fromC[ortapi.Value](v), fromC[ortapi.Status](st)
}

func (a *API) CreateCustomOpDomain(domain string) (ortapi.CustomOpDomain, ortapi.Status) {
	cdomain := C.CString(domain)
	defer C.free(unsafe.Pointer(cdomain))
	var d *C.OrtCustomOpDomain
	st := C.capi_CreateCustomOpDomain(a.api, cdomain, &d)
	return fromC[ortapi.CustomOpDomain](d), fromC[ortapi.Status](st)
}

func (a *API) CustomOpDomainAdd(domain ortapi.CustomOpDomain, op *ortapi.CustomOp) ortapi.Status {
	cop, err := vtableOf(op)
	if err != nil {
		return a.CreateStatus(ortapi.ErrorCodeFail, err.Error())
	}
	st := C.capi_CustomOpDomain_Add(a.api, toC[C.OrtCustomOpDomain](domain), (*C.OrtCustomOp)(unsafe.Pointer(cop)))
	return fromC[ortapi.Status](st)
}

func (a *API) AddCustomOpDomain(options ortapi.SessionOptions, domain ortapi.CustomOpDomain) ortapi.Status {
	st := C.capi_AddCustomOpDomain(a.api, toC[C.OrtSessionOptions](options), toC[C.OrtCustomOpDomain](domain))
	return fromC[ortapi.Status](st)
}

func (a *API) ReleaseCustomOpDomain(domain ortapi.CustomOpDomain) {
	C.capi_ReleaseCustomOpDomain(a.api, toC[C.OrtCustomOpDomain](domain))
}
