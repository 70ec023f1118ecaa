// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package orttest

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/nlpodyssey/customop/ortapi"
)

// Attributes are the attributes of a graph node, by name. Values can be
// float32, int64, string, []float32, []int64, or a host tensor
// (ortapi.Value) for tensor attributes.
type Attributes map[string]any

// Kernel is a kernel instantiated by the Host for one graph node.
type Kernel struct {
	host      *Host
	op        *ortapi.CustomOp
	handle    uintptr
	destroyed bool
}

// CreateKernel instantiates op for a node with the given attributes, the
// way the runtime does when a session is created. A failing constructor is
// reported as an *Error.
func (h *Host) CreateKernel(op *ortapi.CustomOp, attrs Attributes) (*Kernel, error) {
	h.mu.Lock()
	info := ortapi.KernelInfo(h.nextHandle())
	h.attrs[info] = attrs
	h.calls.CreateKernel++
	h.mu.Unlock()

	handle, st := op.CreateKernel(h, info)

	h.mu.Lock()
	delete(h.attrs, info)
	h.mu.Unlock()
	if err := h.takeError(st); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.kernels[handle]; ok {
		panic(fmt.Sprintf("orttest: kernel handle %d returned twice", handle))
	}
	h.kernels[handle] = op
	return &Kernel{host: h, op: op, handle: handle}, nil
}

// outputType returns the declared element type of output i. Outputs past
// the declared slots share the type of the last one, as a variadic tail.
func outputType(op *ortapi.CustomOp, i int) ortapi.ElementDataType {
	n := op.GetOutputTypeCount()
	if i >= n {
		i = n - 1
	}
	return op.GetOutputType(i)
}

// Compute runs the kernel with the given inputs (0 for an omitted optional
// input) and numOutputs outputs. The caller owns the returned outputs; an
// output the kernel did not write is 0.
func (k *Kernel) Compute(numOutputs int, inputs ...ortapi.Value) ([]ortapi.Value, error) {
	h := k.host
	types := make([]ortapi.ElementDataType, numOutputs)
	for i := range types {
		types[i] = outputType(k.op, i)
	}

	h.mu.Lock()
	if k.destroyed {
		h.mu.Unlock()
		panic("orttest: compute on a destroyed kernel")
	}
	h.calls.KernelCompute++
	h.mu.Unlock()

	ctx := h.NewKernelContext(inputs, types)
	st := k.op.KernelCompute(k.handle, ctx)
	outputs := h.ReleaseKernelContext(ctx)
	if err := h.takeError(st); err != nil {
		for _, v := range outputs {
			if v != 0 {
				h.ReleaseValue(v)
			}
		}
		return nil, err
	}
	return outputs, nil
}

// NewKernelContext returns a kernel context serving the given inputs and
// allocating len(outputTypes) outputs of the given element types.
func (h *Host) NewKernelContext(inputs []ortapi.Value, outputTypes []ortapi.ElementDataType) ortapi.KernelContext {
	h.mu.Lock()
	defer h.mu.Unlock()
	ctx := ortapi.KernelContext(h.nextHandle())
	h.frames[ctx] = &frame{
		inputs:      append([]ortapi.Value(nil), inputs...),
		outputs:     make([]ortapi.Value, len(outputTypes)),
		outputTypes: append([]ortapi.ElementDataType(nil), outputTypes...),
	}
	return ctx
}

// ReleaseKernelContext ends the lifetime of a kernel context and returns
// its outputs, now owned by the caller.
func (h *Host) ReleaseKernelContext(ctx ortapi.KernelContext) []ortapi.Value {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.frames[ctx]
	if !ok {
		panic(fmt.Sprintf("orttest: releasing invalid kernel context %d", ctx))
	}
	delete(h.frames, ctx)
	return f.outputs
}

// Destroy destroys the kernel. It panics if called twice.
func (k *Kernel) Destroy() {
	h := k.host
	h.mu.Lock()
	if k.destroyed {
		h.mu.Unlock()
		panic("orttest: kernel destroyed twice")
	}
	k.destroyed = true
	delete(h.kernels, k.handle)
	h.calls.KernelDestroy++
	h.mu.Unlock()

	k.op.KernelDestroy(k.handle)
}

// Messages of the runtime attribute getters, which fail with
// ErrorCodeFail both for a missing attribute and for a type mismatch.
const (
	msgNoAttribute     = "No attribute with name:'%s'is defined."
	msgNoListAttribute = "No attribute with this name is defined."
	msgAttributeType   = "Attribute name and type don't match"
)

// typedAttribute returns the named attribute of a kernel info, or a
// non-OK status worded like the runtime one.
func typedAttribute[T any](h *Host, method string, info ortapi.KernelInfo, name string) (T, ortapi.Status) {
	var zero T
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.injected(method); s != 0 {
		return zero, s
	}
	attrs, ok := h.attrs[info]
	if !ok {
		return zero, h.newStatusf(ortapi.ErrorCodeInvalidArgument, "invalid kernel info %d", info)
	}
	v, ok := attrs[name]
	if !ok {
		switch any(zero).(type) {
		case []float32, []int64:
			return zero, h.newStatus(ortapi.ErrorCodeFail, msgNoListAttribute)
		}
		return zero, h.newStatusf(ortapi.ErrorCodeFail, msgNoAttribute, name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, h.newStatus(ortapi.ErrorCodeFail, msgAttributeType)
	}
	return t, 0
}

// KernelInfoGetAttributeFloat implements ortapi.API.
func (h *Host) KernelInfoGetAttributeFloat(info ortapi.KernelInfo, name string) (float32, ortapi.Status) {
	return typedAttribute[float32](h, "KernelInfoGetAttributeFloat", info, name)
}

// KernelInfoGetAttributeInt64 implements ortapi.API.
func (h *Host) KernelInfoGetAttributeInt64(info ortapi.KernelInfo, name string) (int64, ortapi.Status) {
	return typedAttribute[int64](h, "KernelInfoGetAttributeInt64", info, name)
}

// KernelInfoGetAttributeString implements ortapi.API.
func (h *Host) KernelInfoGetAttributeString(info ortapi.KernelInfo, name string, buf []byte, size *int) ortapi.Status {
	s, st := typedAttribute[string](h, "KernelInfoGetAttributeString", info, name)
	if st != 0 {
		return st
	}
	return h.twoPhase(len(s)+1, len(buf), buf == nil, size, func() {
		copy(buf, s)
		buf[len(s)] = 0
	})
}

// KernelInfoGetAttributeArrayFloat implements ortapi.API.
func (h *Host) KernelInfoGetAttributeArrayFloat(info ortapi.KernelInfo, name string, out []float32, size *int) ortapi.Status {
	a, st := typedAttribute[[]float32](h, "KernelInfoGetAttributeArrayFloat", info, name)
	if st != 0 {
		return st
	}
	return h.twoPhase(len(a), len(out), out == nil, size, func() { copy(out, a) })
}

// KernelInfoGetAttributeArrayInt64 implements ortapi.API.
func (h *Host) KernelInfoGetAttributeArrayInt64(info ortapi.KernelInfo, name string, out []int64, size *int) ortapi.Status {
	a, st := typedAttribute[[]int64](h, "KernelInfoGetAttributeArrayInt64", info, name)
	if st != 0 {
		return st
	}
	return h.twoPhase(len(a), len(out), out == nil, size, func() { copy(out, a) })
}

// twoPhase implements the size query protocol of attribute getters.
func (h *Host) twoPhase(need, have int, query bool, size *int, fill func()) ortapi.Status {
	if size == nil {
		return h.CreateStatus(ortapi.ErrorCodeInvalidArgument, "size must not be nil")
	}
	if query {
		*size = need
		return 0
	}
	if have < need {
		*size = need
		return h.CreateStatus(ortapi.ErrorCodeInvalidArgument, "Result buffer is not large enough")
	}
	fill()
	*size = need
	return 0
}

// KernelInfoGetAttributeTensor implements ortapi.API.
func (h *Host) KernelInfoGetAttributeTensor(info ortapi.KernelInfo, name string, alloc ortapi.Allocator) (ortapi.Value, ortapi.Status) {
	src, st := typedAttribute[ortapi.Value](h, "KernelInfoGetAttributeTensor", info, name)
	if st != 0 {
		return 0, st
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if alloc != defaultAllocator {
		return 0, h.newStatusf(ortapi.ErrorCodeInvalidArgument, "invalid allocator %d", alloc)
	}
	t, ok := h.values[src]
	if !ok {
		return 0, h.newStatusf(ortapi.ErrorCodeInvalidArgument, "attribute '%s' refers to invalid value %d", name, src)
	}
	c := *t
	c.shape = append([]int64(nil), t.shape...)
	c.words = append([]uint64(nil), t.words...)
	c.strs = append([]string(nil), t.strs...)
	return h.addValue(&c), 0
}

// NewSessionOptions returns new empty session options.
func (h *Host) NewSessionOptions() ortapi.SessionOptions {
	h.mu.Lock()
	defer h.mu.Unlock()
	o := ortapi.SessionOptions(h.nextHandle())
	h.sessions[o] = nil
	return o
}

// CreateCustomOpDomain implements ortapi.API.
func (h *Host) CreateCustomOpDomain(name string) (ortapi.CustomOpDomain, ortapi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.injected("CreateCustomOpDomain"); s != 0 {
		return 0, s
	}
	d := ortapi.CustomOpDomain(h.nextHandle())
	h.domains[d] = &domain{name: name}
	return d, 0
}

// CustomOpDomainAdd implements ortapi.API.
func (h *Host) CustomOpDomainAdd(d ortapi.CustomOpDomain, op *ortapi.CustomOp) ortapi.Status {
	err := validateCustomOp(op)
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.injected("CustomOpDomainAdd"); s != 0 {
		return s
	}
	if err != nil {
		return h.newStatus(ortapi.ErrorCodeInvalidArgument, err.Error())
	}
	dom, ok := h.domains[d]
	if !ok {
		return h.newStatusf(ortapi.ErrorCodeInvalidArgument, "invalid domain %d", d)
	}
	dom.ops = append(dom.ops, op)
	return 0
}

// validateCustomOp queries the vtable the way the runtime does when an
// operator is added to a domain.
func validateCustomOp(op *ortapi.CustomOp) error {
	if op == nil {
		return errors.New("nil custom op")
	}
	if op.Version == 0 || op.Version > ortapi.APIVersion {
		return errors.Errorf("unsupported custom op version %d", op.Version)
	}
	if op.GetName() == "" {
		return errors.New("empty custom op name")
	}
	for i := 0; i < op.GetInputTypeCount(); i++ {
		if op.GetInputCharacteristic(i) == ortapi.CharacteristicVariadic && i != op.GetInputTypeCount()-1 {
			return errors.Errorf("%s: variadic input %d is not the last one", op.GetName(), i)
		}
	}
	if op.GetOutputTypeCount() == 0 {
		return errors.Errorf("%s: no outputs", op.GetName())
	}
	for i := 0; i < op.GetOutputTypeCount(); i++ {
		if op.GetOutputType(i) == ortapi.ElementDataTypeUndefined {
			return errors.Errorf("%s: undefined output type %d", op.GetName(), i)
		}
		if op.GetOutputCharacteristic(i) == ortapi.CharacteristicVariadic && i != op.GetOutputTypeCount()-1 {
			return errors.Errorf("%s: variadic output %d is not the last one", op.GetName(), i)
		}
	}
	return nil
}

// AddCustomOpDomain implements ortapi.API.
func (h *Host) AddCustomOpDomain(options ortapi.SessionOptions, d ortapi.CustomOpDomain) ortapi.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.injected("AddCustomOpDomain"); s != 0 {
		return s
	}
	doms, ok := h.sessions[options]
	if !ok {
		return h.newStatusf(ortapi.ErrorCodeInvalidArgument, "invalid session options %d", options)
	}
	dom, ok := h.domains[d]
	if !ok {
		return h.newStatusf(ortapi.ErrorCodeInvalidArgument, "invalid domain %d", d)
	}
	h.sessions[options] = append(doms, dom)
	return 0
}

// ReleaseCustomOpDomain implements ortapi.API.
func (h *Host) ReleaseCustomOpDomain(d ortapi.CustomOpDomain) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.domains[d]; !ok {
		panic(fmt.Sprintf("orttest: releasing invalid domain %d", d))
	}
	delete(h.domains, d)
}

// LookupOp returns the operator registered in the session options under
// the given domain and name.
func (h *Host) LookupOp(options ortapi.SessionOptions, domain, name string) (*ortapi.CustomOp, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, d := range h.sessions[options] {
		if d.name != domain {
			continue
		}
		for _, op := range d.ops {
			if op.GetName() == name {
				return op, true
			}
		}
	}
	return nil, false
}
