// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"fmt"
	"io"
	"reflect"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"

	"github.com/nlpodyssey/customop/ortapi"
)

// Build returns the host vtable of the operator described by def.
//
// The input and output layouts are derived from I and O once, here; the
// vtable can then be added to any number of domains. Build fails with
// ErrInvalidDefinition if def or the slot types are not valid, including
// when a variadic minimum arity is set for a side that is not variadic.
func Build[K Kernel[I, O], I, O any](def Definition[K, I, O]) (*ortapi.CustomOp, error) {
	op, err := newOperator(def)
	if err != nil {
		return nil, err
	}
	return op.customOp(), nil
}

// MustBuild is like Build but panics if the definition is invalid. It
// simplifies safe initialization of global variables holding vtables.
func MustBuild[K Kernel[I, O], I, O any](def Definition[K, I, O]) *ortapi.CustomOp {
	op, err := Build(def)
	if err != nil {
		panic(err)
	}
	return op
}

type operator[K Kernel[I, O], I, O any] struct {
	name string
	ep   string
	in   *inputLayout
	out  *outputLayout
	def  Definition[K, I, O]
	// api is the host API of the last createKernel call, used to report
	// a stale kernel handle.
	api atomic.Pointer[hostAPI]
}

type hostAPI struct {
	ortapi.API
}

func newOperator[K Kernel[I, O], I, O any](def Definition[K, I, O]) (*operator[K, I, O], error) {
	op := &operator[K, I, O]{
		name: def.Name,
		ep:   def.ExecutionProvider,
		def:  def,
	}
	if op.ep == "" {
		op.ep = DefaultExecutionProvider
	}

	var errs error
	if def.Name == "" {
		errs = multierr.Append(errs, errors.New("empty name"))
	}
	if def.Create == nil {
		errs = multierr.Append(errs, errors.New("nil Create function"))
	}
	var err error
	if op.in, err = newInputLayout(reflect.TypeFor[I]()); err != nil {
		errs = multierr.Append(errs, err)
	} else if err = op.in.setMinArity(def.VariadicInputMinArity); err != nil {
		errs = multierr.Append(errs, err)
	}
	if op.out, err = newOutputLayout(reflect.TypeFor[O]()); err != nil {
		errs = multierr.Append(errs, err)
	} else if err = op.out.setMinArity(def.VariadicOutputMinArity); err != nil {
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidDefinition, def.Name, errs)
	}
	return op, nil
}

func (op *operator[K, I, O]) customOp() *ortapi.CustomOp {
	return &ortapi.CustomOp{
		Version:                      ortapi.APIVersion,
		GetName:                      func() string { return op.name },
		GetExecutionProviderType:     func() string { return op.ep },
		GetInputType:                 op.in.hostType,
		GetInputTypeCount:            op.in.count,
		GetOutputType:                op.out.hostType,
		GetOutputTypeCount:           op.out.count,
		GetInputCharacteristic:       op.in.characteristic,
		GetOutputCharacteristic:      op.out.characteristic,
		GetVariadicInputMinArity:     op.in.variadicMinArity,
		GetVariadicInputHomogeneity:  op.in.variadicHomogeneity,
		GetVariadicOutputMinArity:    op.out.variadicMinArity,
		GetVariadicOutputHomogeneity: op.out.variadicHomogeneity,
		CreateKernel:                 op.createKernel,
		KernelCompute:                op.kernelCompute,
		KernelDestroy:                op.kernelDestroy,
	}
}

func (op *operator[K, I, O]) createKernel(api ortapi.API, info ortapi.KernelInfo) (kernel uintptr, st ortapi.Status) {
	defer func() {
		if r := recover(); r != nil {
			kernel, st = 0, errorToStatus(api, op.name, &panicError{value: r})
		}
	}()
	op.api.Store(&hostAPI{api})

	k, err := op.def.Create(&KernelInfo{api: api, info: info})
	if err != nil {
		return 0, errorToStatus(api, op.name, err)
	}
	h := wrapKernel(&wrappedKernel[K, I, O]{op: op, api: api, kernel: k})
	klog.V(2).InfoS("Kernel created", "op", op.name, "kernel", h)
	return uintptr(h), 0
}

func (op *operator[K, I, O]) kernelCompute(kernel uintptr, ctx ortapi.KernelContext) ortapi.Status {
	k, err := lookupKernel(kernelHandle(kernel))
	if err != nil {
		api := op.api.Load()
		if api == nil {
			// Without a kernel the host API was never seen.
			panic(fmt.Sprintf("customop: %s: %v", op.name, err))
		}
		return errorToStatus(api.API, op.name, err)
	}
	return k.compute(ctx)
}

func (op *operator[K, I, O]) kernelDestroy(kernel uintptr) {
	k, err := releaseKernel(kernelHandle(kernel))
	if err != nil {
		klog.ErrorS(err, "Failed to destroy kernel", "op", op.name)
		return
	}
	k.destroy()
}

// wrappedKernel pairs a user kernel with the host API it was created with.
type wrappedKernel[K Kernel[I, O], I, O any] struct {
	op     *operator[K, I, O]
	api    ortapi.API
	kernel K
}

func (w *wrappedKernel[K, I, O]) compute(ctx ortapi.KernelContext) (st ortapi.Status) {
	defer func() {
		if r := recover(); r != nil {
			st = errorToStatus(w.api, w.op.name, &panicError{value: r})
		}
	}()
	return errorToStatus(w.api, w.op.name, w.run(ctx))
}

func (w *wrappedKernel[K, I, O]) run(ctx ortapi.KernelContext) error {
	c, err := newCallContext(w.api, ctx)
	if err != nil {
		return err
	}
	defer c.close()

	var in I
	if err := w.op.in.decode(c, reflect.ValueOf(&in).Elem()); err != nil {
		return err
	}
	out, err := w.kernel.Compute(in)
	if err != nil {
		return err
	}
	if err := c.beginOutputs(); err != nil {
		return err
	}
	if err := w.op.out.encode(c, reflect.ValueOf(&out).Elem()); err != nil {
		return err
	}
	klog.V(4).InfoS("Kernel computed", "op", w.op.name, "inputs", c.inputCount, "outputs", c.outputCount)
	return nil
}

func (w *wrappedKernel[K, I, O]) destroy() {
	defer func() {
		if r := recover(); r != nil {
			klog.ErrorS(&panicError{value: r}, "Kernel close panicked", "op", w.op.name)
		}
	}()
	if c, ok := any(w.kernel).(io.Closer); ok {
		if err := c.Close(); err != nil {
			klog.ErrorS(err, "Failed to close kernel", "op", w.op.name)
		}
	}
	klog.V(2).InfoS("Kernel destroyed", "op", w.op.name)
}
