// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/nlpodyssey/customop/ortapi"
)

// KernelInfo gives a kernel constructor access to the attributes of its
// graph node. It is only valid during Definition.Create.
//
// Attribute errors wrap ErrAttributeMissing when the node has no such
// attribute, and ErrAttributeType when it exists with another type.
type KernelInfo struct {
	api  ortapi.API
	info ortapi.KernelInfo
}

// API returns the host API.
func (ki *KernelInfo) API() ortapi.API {
	return ki.api
}

// The host fails attribute reads with ErrorCodeFail whatever the cause,
// so failures are told apart by their message.
var (
	attributeMissingMessages = []string{
		"No attribute with name:",
		"No attribute with this name",
	}
	attributeTypeMessages = []string{
		"Attribute name and type don't match",
		"expected to be of type",
	}
)

// attributeError converts the failure of an attribute read. Failures
// that are neither a missing attribute nor a type mismatch keep the host
// status error.
func (ki *KernelInfo) attributeError(name string, st ortapi.Status) error {
	err := statusToError(ki.api, st)
	if err == nil {
		return nil
	}
	var se *StatusError
	if !errors.As(err, &se) {
		return errors.Wrapf(err, "attribute %q", name)
	}
	switch {
	case containsAny(se.Message, attributeMissingMessages):
		return errors.Wrapf(ErrAttributeMissing, "attribute %q: %s", name, se.Message)
	case containsAny(se.Message, attributeTypeMessages):
		return errors.Wrapf(ErrAttributeType, "attribute %q: %s", name, se.Message)
	}
	return errors.Wrapf(err, "attribute %q", name)
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// AttributeFloat32 returns a float attribute.
func (ki *KernelInfo) AttributeFloat32(name string) (float32, error) {
	v, st := ki.api.KernelInfoGetAttributeFloat(ki.info, name)
	if err := ki.attributeError(name, st); err != nil {
		return 0, err
	}
	return v, nil
}

// AttributeInt64 returns an int attribute.
func (ki *KernelInfo) AttributeInt64(name string) (int64, error) {
	v, st := ki.api.KernelInfoGetAttributeInt64(ki.info, name)
	if err := ki.attributeError(name, st); err != nil {
		return 0, err
	}
	return v, nil
}

// AttributeString returns a string attribute.
func (ki *KernelInfo) AttributeString(name string) (string, error) {
	var size int
	if err := ki.attributeError(name, ki.api.KernelInfoGetAttributeString(ki.info, name, nil, &size)); err != nil {
		return "", err
	}
	if size <= 1 {
		return "", nil
	}
	buf := make([]byte, size)
	if err := ki.attributeError(name, ki.api.KernelInfoGetAttributeString(ki.info, name, buf, &size)); err != nil {
		return "", err
	}
	// The size includes the NUL terminator.
	return string(buf[:size-1]), nil
}

// AttributeFloat32s returns a list-of-floats attribute.
func (ki *KernelInfo) AttributeFloat32s(name string) ([]float32, error) {
	var size int
	if err := ki.attributeError(name, ki.api.KernelInfoGetAttributeArrayFloat(ki.info, name, nil, &size)); err != nil {
		return nil, err
	}
	out := make([]float32, size)
	if size == 0 {
		return out, nil
	}
	if err := ki.attributeError(name, ki.api.KernelInfoGetAttributeArrayFloat(ki.info, name, out, &size)); err != nil {
		return nil, err
	}
	return out[:size], nil
}

// AttributeInt64s returns a list-of-ints attribute.
func (ki *KernelInfo) AttributeInt64s(name string) ([]int64, error) {
	var size int
	if err := ki.attributeError(name, ki.api.KernelInfoGetAttributeArrayInt64(ki.info, name, nil, &size)); err != nil {
		return nil, err
	}
	out := make([]int64, size)
	if size == 0 {
		return out, nil
	}
	if err := ki.attributeError(name, ki.api.KernelInfoGetAttributeArrayInt64(ki.info, name, out, &size)); err != nil {
		return nil, err
	}
	return out[:size], nil
}

// AttributeTensor returns a tensor attribute. The result is a copy owned
// by the caller.
func (ki *KernelInfo) AttributeTensor(name string) (Value, error) {
	alloc, st := ki.api.GetAllocatorWithDefaultOptions()
	if err := statusToError(ki.api, st); err != nil {
		return Value{}, errors.Wrap(err, "failed to get default allocator")
	}
	v, st := ki.api.KernelInfoGetAttributeTensor(ki.info, name, alloc)
	if err := ki.attributeError(name, st); err != nil {
		return Value{}, err
	}
	defer ki.api.ReleaseValue(v)

	val, err := decodeValue(ki.api, v)
	if err != nil {
		return Value{}, errors.Wrapf(err, "attribute %q", name)
	}
	return val.Clone(), nil
}

// AttributeArray returns a tensor attribute as an Array of T. It fails
// with ErrAttributeType if the tensor element type is not the one of T.
func AttributeArray[T Element](ki *KernelInfo, name string) (Array[T], error) {
	v, err := ki.AttributeTensor(name)
	if err != nil {
		return Array[T]{}, err
	}
	a, err := AsArray[T](v)
	if err != nil {
		return Array[T]{}, errors.Wrapf(ErrAttributeType, "attribute %q: %v", name, err)
	}
	return a, nil
}
