// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/nlpodyssey/customop/ortapi"
)

// instance is a live kernel owned by the host.
type instance interface {
	compute(ctx ortapi.KernelContext) ortapi.Status
	destroy()
}

// kernelHandle is the opaque kernel pointer handed to the host.
type kernelHandle uintptr

// Kernels handed to the host are referenced by integer handles: host
// memory never holds Go pointers.
var (
	kernels      sync.Map // kernelHandle -> instance
	kernelIdx    atomic.Uintptr
	kernelsAlive atomic.Int64
)

func wrapKernel(k instance) kernelHandle {
	h := kernelHandle(kernelIdx.Add(1))
	if h == 0 {
		panic("customop: ran out of kernel handle space")
	}
	kernels.Store(h, k)
	kernelsAlive.Add(1)
	return h
}

// lookupKernel returns the kernel of a handle. It fails with
// ErrInvalidKernel for a handle that was never issued or was released.
func lookupKernel(h kernelHandle) (instance, error) {
	k, ok := kernels.Load(h)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidKernel, "handle %d", h)
	}
	return k.(instance), nil
}

// releaseKernel deletes a kernel handle. The handle must not be used
// afterwards.
func releaseKernel(h kernelHandle) (instance, error) {
	k, ok := kernels.LoadAndDelete(h)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidKernel, "handle %d", h)
	}
	kernelsAlive.Add(-1)
	return k.(instance), nil
}

// KernelCount returns the number of kernels created and not yet
// destroyed by the host.
func KernelCount() int {
	return int(kernelsAlive.Load())
}
