// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package orttest provides an in-memory host runtime implementing
// ortapi.API, for testing custom operators without the real runtime.
//
// The Host owns all tensor memory, drives kernels through their vtables
// the way the runtime does, counts the vtable callbacks it makes, and
// reports host objects left unreleased.
package orttest

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/nlpodyssey/customop/ortapi"
)

// defaultAllocator is the only allocator of a Host.
const defaultAllocator ortapi.Allocator = 1

// Error is a non-OK status returned to the test through a vtable call.
type Error struct {
	Code    ortapi.ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Calls counts the vtable callbacks made by a Host.
type Calls struct {
	CreateKernel  int
	KernelCompute int
	KernelDestroy int
}

type status struct {
	code ortapi.ErrorCode
	msg  string
}

type frame struct {
	inputs      []ortapi.Value
	outputs     []ortapi.Value
	outputTypes []ortapi.ElementDataType
}

type domain struct {
	name string
	ops  []*ortapi.CustomOp
}

type failure struct {
	code ortapi.ErrorCode
	msg  string
}

// Host is an in-memory host runtime. It is safe for concurrent use.
type Host struct {
	mu       sync.Mutex
	next     uintptr
	calls    Calls
	statuses map[ortapi.Status]status
	values   map[ortapi.Value]*tensor
	infos    map[ortapi.TensorTypeAndShapeInfo]*tensor
	frames   map[ortapi.KernelContext]*frame
	attrs    map[ortapi.KernelInfo]Attributes
	domains  map[ortapi.CustomOpDomain]*domain
	sessions map[ortapi.SessionOptions][]*domain
	kernels  map[uintptr]*ortapi.CustomOp
	failures map[string]failure
}

var _ ortapi.API = (*Host)(nil)

// New returns an empty Host.
func New() *Host {
	return &Host{
		statuses: make(map[ortapi.Status]status),
		values:   make(map[ortapi.Value]*tensor),
		infos:    make(map[ortapi.TensorTypeAndShapeInfo]*tensor),
		frames:   make(map[ortapi.KernelContext]*frame),
		attrs:    make(map[ortapi.KernelInfo]Attributes),
		domains:  make(map[ortapi.CustomOpDomain]*domain),
		sessions: make(map[ortapi.SessionOptions][]*domain),
		kernels:  make(map[uintptr]*ortapi.CustomOp),
		failures: make(map[string]failure),
	}
}

// nextHandle returns a new non-zero handle. h.mu must be held.
func (h *Host) nextHandle() uintptr {
	h.next++
	return h.next
}

// Calls returns the number of vtable callbacks made so far.
func (h *Host) Calls() Calls {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// FailNext makes the next call of the named API method fail with the given
// code and message.
func (h *Host) FailNext(method string, code ortapi.ErrorCode, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[method] = failure{code: code, msg: msg}
}

// injected returns the injected failure status of method, if any. h.mu
// must be held.
func (h *Host) injected(method string) ortapi.Status {
	f, ok := h.failures[method]
	if !ok {
		return 0
	}
	delete(h.failures, method)
	return h.newStatus(f.code, f.msg)
}

// newStatus must be called with h.mu held.
func (h *Host) newStatus(code ortapi.ErrorCode, msg string) ortapi.Status {
	s := ortapi.Status(h.nextHandle())
	h.statuses[s] = status{code: code, msg: msg}
	return s
}

// newStatusf must be called with h.mu held.
func (h *Host) newStatusf(code ortapi.ErrorCode, format string, args ...any) ortapi.Status {
	return h.newStatus(code, fmt.Sprintf(format, args...))
}

// Leaks returns an error listing every host object that was created and
// not released, or nil.
func (h *Host) Leaks() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var errs error
	for _, s := range sortedKeys(h.statuses) {
		errs = multierr.Append(errs, errors.Errorf("status %d (%q) not released", s, h.statuses[s].msg))
	}
	for _, v := range sortedKeys(h.values) {
		errs = multierr.Append(errs, errors.Errorf("value %d not released", v))
	}
	for _, i := range sortedKeys(h.infos) {
		errs = multierr.Append(errs, errors.Errorf("tensor type and shape info %d not released", i))
	}
	for _, k := range sortedKeys(h.kernels) {
		errs = multierr.Append(errs, errors.Errorf("kernel %d of %q not destroyed", k, h.kernels[k].GetName()))
	}
	for _, d := range sortedKeys(h.domains) {
		errs = multierr.Append(errs, errors.Errorf("domain %d (%q) not released", d, h.domains[d].name))
	}
	return errs
}

func sortedKeys[K ~uintptr, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}

// CreateStatus implements ortapi.API.
func (h *Host) CreateStatus(code ortapi.ErrorCode, msg string) ortapi.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.newStatus(code, msg)
}

func (h *Host) status(s ortapi.Status) status {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.statuses[s]
	if !ok {
		panic(fmt.Sprintf("orttest: invalid status %d", s))
	}
	return st
}

// GetErrorCode implements ortapi.API.
func (h *Host) GetErrorCode(s ortapi.Status) ortapi.ErrorCode {
	return h.status(s).code
}

// GetErrorMessage implements ortapi.API.
func (h *Host) GetErrorMessage(s ortapi.Status) string {
	return h.status(s).msg
}

// ReleaseStatus implements ortapi.API.
func (h *Host) ReleaseStatus(s ortapi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.statuses[s]; !ok {
		panic(fmt.Sprintf("orttest: releasing invalid status %d", s))
	}
	delete(h.statuses, s)
}

// takeError converts a status returned by a vtable callback into an error
// and releases it.
func (h *Host) takeError(s ortapi.Status) error {
	if s.OK() {
		return nil
	}
	st := h.status(s)
	h.ReleaseStatus(s)
	return &Error{Code: st.code, Message: st.msg}
}

// The methods below implement the per-call part of ortapi.API.

func (h *Host) frame(ctx ortapi.KernelContext) (*frame, bool) {
	f, ok := h.frames[ctx]
	return f, ok
}

// KernelContextGetInputCount implements ortapi.API.
func (h *Host) KernelContextGetInputCount(ctx ortapi.KernelContext) (int, ortapi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.frame(ctx)
	if !ok {
		return 0, h.newStatusf(ortapi.ErrorCodeInvalidArgument, "invalid kernel context %d", ctx)
	}
	return len(f.inputs), 0
}

// KernelContextGetOutputCount implements ortapi.API.
func (h *Host) KernelContextGetOutputCount(ctx ortapi.KernelContext) (int, ortapi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.frame(ctx)
	if !ok {
		return 0, h.newStatusf(ortapi.ErrorCodeInvalidArgument, "invalid kernel context %d", ctx)
	}
	return len(f.outputs), 0
}

// KernelContextGetInput implements ortapi.API.
func (h *Host) KernelContextGetInput(ctx ortapi.KernelContext, index int) (ortapi.Value, ortapi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.injected("KernelContextGetInput"); s != 0 {
		return 0, s
	}
	f, ok := h.frame(ctx)
	if !ok {
		return 0, h.newStatusf(ortapi.ErrorCodeInvalidArgument, "invalid kernel context %d", ctx)
	}
	if index < 0 || index >= len(f.inputs) {
		return 0, h.newStatusf(ortapi.ErrorCodeInvalidArgument, "input index %d out of range", index)
	}
	return f.inputs[index], 0
}

// KernelContextGetOutput implements ortapi.API.
func (h *Host) KernelContextGetOutput(ctx ortapi.KernelContext, index int, shape []int64) (ortapi.Value, ortapi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.frame(ctx)
	if !ok {
		return 0, h.newStatusf(ortapi.ErrorCodeInvalidArgument, "invalid kernel context %d", ctx)
	}
	if index < 0 || index >= len(f.outputs) {
		return 0, h.newStatusf(ortapi.ErrorCodeInvalidArgument, "output index %d out of range", index)
	}
	if v := f.outputs[index]; v != 0 {
		if t := h.values[v]; !equalShapes(t.shape, shape) {
			return 0, h.newStatusf(ortapi.ErrorCodeInvalidArgument, "output %d already allocated with shape %v", index, t.shape)
		}
		return v, 0
	}
	t, err := newTensor(f.outputTypes[index], shape)
	if err != nil {
		return 0, h.newStatus(ortapi.ErrorCodeInvalidArgument, err.Error())
	}
	v := ortapi.Value(h.nextHandle())
	h.values[v] = t
	f.outputs[index] = v
	return v, 0
}

func (h *Host) value(v ortapi.Value) (*tensor, ortapi.Status) {
	t, ok := h.values[v]
	if !ok {
		return nil, h.newStatusf(ortapi.ErrorCodeInvalidArgument, "invalid value %d", v)
	}
	return t, 0
}

// GetValueType implements ortapi.API.
func (h *Host) GetValueType(v ortapi.Value) (ortapi.ONNXType, ortapi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, st := h.value(v)
	if st != 0 {
		return ortapi.ONNXTypeUnknown, st
	}
	return t.onnxType, 0
}

// GetTensorTypeAndShape implements ortapi.API.
func (h *Host) GetTensorTypeAndShape(v ortapi.Value) (ortapi.TensorTypeAndShapeInfo, ortapi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.injected("GetTensorTypeAndShape"); s != 0 {
		return 0, s
	}
	t, st := h.value(v)
	if st != 0 {
		return 0, st
	}
	if t.onnxType != ortapi.ONNXTypeTensor {
		return 0, h.newStatusf(ortapi.ErrorCodeInvalidArgument, "value %d is not a tensor", v)
	}
	info := ortapi.TensorTypeAndShapeInfo(h.nextHandle())
	h.infos[info] = t
	return info, 0
}

func (h *Host) info(info ortapi.TensorTypeAndShapeInfo) (*tensor, ortapi.Status) {
	t, ok := h.infos[info]
	if !ok {
		return nil, h.newStatusf(ortapi.ErrorCodeInvalidArgument, "invalid tensor type and shape info %d", info)
	}
	return t, 0
}

// GetTensorElementType implements ortapi.API.
func (h *Host) GetTensorElementType(info ortapi.TensorTypeAndShapeInfo) (ortapi.ElementDataType, ortapi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, st := h.info(info)
	if st != 0 {
		return 0, st
	}
	return t.code, 0
}

// GetDimensionsCount implements ortapi.API.
func (h *Host) GetDimensionsCount(info ortapi.TensorTypeAndShapeInfo) (int, ortapi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, st := h.info(info)
	if st != 0 {
		return 0, st
	}
	return len(t.shape), 0
}

// GetDimensions implements ortapi.API.
func (h *Host) GetDimensions(info ortapi.TensorTypeAndShapeInfo, dims []int64) ortapi.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, st := h.info(info)
	if st != 0 {
		return st
	}
	if len(dims) != len(t.shape) {
		return h.newStatusf(ortapi.ErrorCodeInvalidArgument, "expected %d dimensions, got buffer of %d", len(t.shape), len(dims))
	}
	copy(dims, t.shape)
	return 0
}

// GetTensorShapeElementCount implements ortapi.API.
func (h *Host) GetTensorShapeElementCount(info ortapi.TensorTypeAndShapeInfo) (int, ortapi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, st := h.info(info)
	if st != 0 {
		return 0, st
	}
	return t.count, 0
}

// ReleaseTensorTypeAndShapeInfo implements ortapi.API.
func (h *Host) ReleaseTensorTypeAndShapeInfo(info ortapi.TensorTypeAndShapeInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.infos[info]; !ok {
		panic(fmt.Sprintf("orttest: releasing invalid tensor type and shape info %d", info))
	}
	delete(h.infos, info)
}

// GetTensorMutableData implements ortapi.API.
func (h *Host) GetTensorMutableData(v ortapi.Value) (unsafe.Pointer, ortapi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, st := h.value(v)
	if st != 0 {
		return nil, st
	}
	if t.code == ortapi.ElementDataTypeString {
		return nil, h.newStatusf(ortapi.ErrorCodeInvalidArgument, "value %d is a string tensor", v)
	}
	return t.ptr(), 0
}

// GetStringTensorDataLength implements ortapi.API.
func (h *Host) GetStringTensorDataLength(v ortapi.Value) (int, ortapi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, st := h.value(v)
	if st != 0 {
		return 0, st
	}
	if t.code != ortapi.ElementDataTypeString {
		return 0, h.newStatusf(ortapi.ErrorCodeInvalidArgument, "value %d is not a string tensor", v)
	}
	n := 0
	for _, s := range t.strs {
		n += len(s)
	}
	return n, 0
}

// GetStringTensorContent implements ortapi.API.
func (h *Host) GetStringTensorContent(v ortapi.Value, buf []byte, offsets []int) ortapi.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, st := h.value(v)
	if st != 0 {
		return st
	}
	if t.code != ortapi.ElementDataTypeString {
		return h.newStatusf(ortapi.ErrorCodeInvalidArgument, "value %d is not a string tensor", v)
	}
	if len(offsets) != len(t.strs) {
		return h.newStatusf(ortapi.ErrorCodeInvalidArgument, "offsets length %d, expected %d", len(offsets), len(t.strs))
	}
	pos := 0
	for i, s := range t.strs {
		if pos+len(s) > len(buf) {
			return h.newStatusf(ortapi.ErrorCodeInvalidArgument, "buffer of %d bytes is too small", len(buf))
		}
		offsets[i] = pos
		pos += copy(buf[pos:], s)
	}
	return 0
}

// FillStringTensor implements ortapi.API.
func (h *Host) FillStringTensor(v ortapi.Value, cstrings []*byte) ortapi.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, st := h.value(v)
	if st != 0 {
		return st
	}
	if t.code != ortapi.ElementDataTypeString {
		return h.newStatusf(ortapi.ErrorCodeInvalidArgument, "value %d is not a string tensor", v)
	}
	if len(cstrings) != len(t.strs) {
		return h.newStatusf(ortapi.ErrorCodeInvalidArgument, "got %d strings, expected %d", len(cstrings), len(t.strs))
	}
	for i, p := range cstrings {
		t.strs[i] = goString(p)
	}
	return 0
}

// goString copies a NUL-terminated string.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}

// ReleaseValue implements ortapi.API.
func (h *Host) ReleaseValue(v ortapi.Value) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.values[v]; !ok {
		panic(fmt.Sprintf("orttest: releasing invalid value %d", v))
	}
	delete(h.values, v)
}

// GetAllocatorWithDefaultOptions implements ortapi.API.
func (h *Host) GetAllocatorWithDefaultOptions() (ortapi.Allocator, ortapi.Status) {
	return defaultAllocator, 0
}
