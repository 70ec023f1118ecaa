// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"github.com/pkg/errors"

	"github.com/nlpodyssey/customop/ortapi"
)

type callPhase uint8

const (
	phaseInputs callPhase = iota
	phaseOutputs
	phaseDone
)

var phaseNames = [...]string{
	phaseInputs:  "inputs",
	phaseOutputs: "outputs",
	phaseDone:    "done",
}

func (p callPhase) String() string { return phaseNames[p] }

// callContext is the only access to the host kernel context during one
// compute call. It serves input values while in the inputs phase and
// output values once beginOutputs has been called; a closed context
// serves nothing.
type callContext struct {
	api         ortapi.API
	ctx         ortapi.KernelContext
	phase       callPhase
	inputCount  int
	outputCount int
}

func newCallContext(api ortapi.API, ctx ortapi.KernelContext) (*callContext, error) {
	inputCount, st := api.KernelContextGetInputCount(ctx)
	if err := statusToError(api, st); err != nil {
		return nil, errors.Wrap(err, "failed to get input count")
	}
	outputCount, st := api.KernelContextGetOutputCount(ctx)
	if err := statusToError(api, st); err != nil {
		return nil, errors.Wrap(err, "failed to get output count")
	}
	return &callContext{
		api:         api,
		ctx:         ctx,
		inputCount:  inputCount,
		outputCount: outputCount,
	}, nil
}

func (c *callContext) checkPhase(want callPhase) error {
	if c.phase != want {
		return errors.Wrapf(ErrCallPhase, "%s requested during the %s phase", want, c.phase)
	}
	return nil
}

// input returns the host input at index, or the null Value for an omitted
// optional input.
func (c *callContext) input(index int) (ortapi.Value, error) {
	if err := c.checkPhase(phaseInputs); err != nil {
		return 0, err
	}
	if index < 0 || index >= c.inputCount {
		return 0, errors.Wrapf(ErrArity, "input index %d out of range [0, %d)", index, c.inputCount)
	}
	v, st := c.api.KernelContextGetInput(c.ctx, index)
	if err := statusToError(c.api, st); err != nil {
		return 0, errors.Wrapf(err, "failed to get input %d", index)
	}
	return v, nil
}

// inputValue returns the decoded input at index. present is false for an
// omitted optional input.
func (c *callContext) inputValue(index int) (v Value, present bool, err error) {
	h, err := c.input(index)
	if err != nil || h == 0 {
		return Value{}, false, err
	}
	v, err = decodeValue(c.api, h)
	if err != nil {
		return Value{}, false, err
	}
	return v, true, nil
}

// beginOutputs ends the inputs phase. Input values must not be requested
// afterwards.
func (c *callContext) beginOutputs() error {
	if err := c.checkPhase(phaseInputs); err != nil {
		return err
	}
	c.phase = phaseOutputs
	return nil
}

// writeOutput allocates the host output at index with the shape of v and
// copies v into it.
func (c *callContext) writeOutput(index int, v Value) error {
	if err := c.checkPhase(phaseOutputs); err != nil {
		return err
	}
	if index < 0 || index >= c.outputCount {
		return errors.Wrapf(ErrArity, "output index %d out of range [0, %d)", index, c.outputCount)
	}
	size, err := elementCount(v.shape)
	if err != nil {
		return err
	}
	if n := v.Len(); n != size {
		return errors.Wrapf(ErrInvalidShape, "the size computed from shape (%d) does not match data length (%d)", size, n)
	}
	h, st := c.api.KernelContextGetOutput(c.ctx, index, shapeToHost(v.shape))
	if err := statusToError(c.api, st); err != nil {
		return errors.Wrapf(err, "failed to get output %d", index)
	}
	return encodeValue(c.api, h, v)
}

func (c *callContext) close() {
	c.phase = phaseDone
}
