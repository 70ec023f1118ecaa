// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/nlpodyssey/customop/elemtype"
	"github.com/nlpodyssey/customop/ortapi"
)

// Errors reported by this package. They are always wrapped with context,
// and can be matched with errors.Is.
var (
	// ErrUnsupportedElementType is returned when the host supplies a tensor
	// whose element type has no ElementType counterpart.
	ErrUnsupportedElementType = elemtype.ErrUnsupported
	// ErrTypeMismatch is returned when a value does not have the element
	// type (or the kind) expected by a slot.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrArity is returned when the number of values supplied for inputs or
	// outputs does not fit the declared slots.
	ErrArity = errors.New("arity mismatch")
	// ErrAttributeMissing is returned when a node attribute is absent.
	ErrAttributeMissing = errors.New("attribute missing")
	// ErrAttributeType is returned when a node attribute exists with a
	// different type.
	ErrAttributeType = errors.New("attribute type mismatch")
	// ErrMalformedString is returned when a string element is not valid
	// UTF-8 or cannot be represented as a NUL-terminated string.
	ErrMalformedString = errors.New("malformed string")
	// ErrInvalidShape is returned when a shape is negative, overflows, or
	// does not match the number of elements.
	ErrInvalidShape = errors.New("invalid shape")
	// ErrCallPhase is returned when a call context is used out of order.
	ErrCallPhase = errors.New("call context used out of phase")
	// ErrInvalidDefinition is returned by Build for an operator definition
	// that cannot be turned into a vtable.
	ErrInvalidDefinition = errors.New("invalid operator definition")
	// ErrInvalidKernel is reported when the host passes a kernel handle
	// that was never created or was already destroyed.
	ErrInvalidKernel = errors.New("invalid kernel handle")
)

// StatusError is a non-OK host status converted into a Go error.
type StatusError struct {
	Code    ortapi.ErrorCode
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// panicError is a value recovered from a panic at the host boundary.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
