// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elemtype defines the closed set of tensor element types that
// custom operators can exchange with the host, and their mapping to host
// type codes.
package elemtype

import (
	"github.com/pkg/errors"

	"github.com/nlpodyssey/customop/ortapi"
)

// ErrUnsupported is returned when a host type code has no ElementType
// counterpart.
var ErrUnsupported = errors.New("unsupported element type")

// ElementType represents the type of every element of a tensor.
type ElementType uint8

const (
	// Bool represents an 8-bit boolean element.
	Bool ElementType = iota + 1
	// I8 represents an 8-bit signed integer element.
	I8
	// I16 represents a 16-bit signed integer element.
	I16
	// I32 represents a 32-bit signed integer element.
	I32
	// I64 represents a 64-bit signed integer element.
	I64
	// U8 represents an 8-bit unsigned integer element.
	U8
	// U16 represents a 16-bit unsigned integer element.
	U16
	// U32 represents a 32-bit unsigned integer element.
	U32
	// U64 represents a 64-bit unsigned integer element.
	U64
	// F32 represents a 32-bit floating point element.
	F32
	// F64 represents a 64-bit floating point element.
	F64
	// String represents a variable-length UTF-8 string element.
	String
)

var (
	elementTypeToString = [...]string{
		Bool:   "BOOL",
		I8:     "I8",
		I16:    "I16",
		I32:    "I32",
		I64:    "I64",
		U8:     "U8",
		U16:    "U16",
		U32:    "U32",
		U64:    "U64",
		F32:    "F32",
		F64:    "F64",
		String: "STRING",
	}
	elementTypeToSize = [...]int{
		Bool:   1,
		I8:     1,
		I16:    2,
		I32:    4,
		I64:    8,
		U8:     1,
		U16:    2,
		U32:    4,
		U64:    8,
		F32:    4,
		F64:    8,
		String: -1,
	}
	elementTypeToHostCode = [...]ortapi.ElementDataType{
		Bool:   ortapi.ElementDataTypeBool,
		I8:     ortapi.ElementDataTypeInt8,
		I16:    ortapi.ElementDataTypeInt16,
		I32:    ortapi.ElementDataTypeInt32,
		I64:    ortapi.ElementDataTypeInt64,
		U8:     ortapi.ElementDataTypeUint8,
		U16:    ortapi.ElementDataTypeUint16,
		U32:    ortapi.ElementDataTypeUint32,
		U64:    ortapi.ElementDataTypeUint64,
		F32:    ortapi.ElementDataTypeFloat,
		F64:    ortapi.ElementDataTypeDouble,
		String: ortapi.ElementDataTypeString,
	}
	hostCodeToElementType = func() map[ortapi.ElementDataType]ElementType {
		m := make(map[ortapi.ElementDataType]ElementType, len(elementTypeToHostCode))
		for _, et := range All() {
			m[elementTypeToHostCode[et]] = et
		}
		return m
	}()
)

// All returns every valid ElementType, in declaration order.
func All() []ElementType {
	out := make([]ElementType, 0, String)
	for et := Bool; et <= String; et++ {
		out = append(out, et)
	}
	return out
}

// Validate returns an error if the ElementType is not valid, otherwise nil.
func (et ElementType) Validate() error {
	if et == 0 || et > String {
		return errors.Errorf("invalid ElementType(%d)", et)
	}
	return nil
}

// String returns a string representation of an ElementType.
func (et ElementType) String() string {
	if err := et.Validate(); err != nil {
		return err.Error()
	}
	return elementTypeToString[et]
}

// Size returns the size in bytes of one element of this type, or -1 if
// the element type is String (which has no fixed width) or invalid.
func (et ElementType) Size() int {
	if err := et.Validate(); err != nil {
		return -1
	}
	return elementTypeToSize[et]
}

// HostCode returns the host type code of the element type, or
// ortapi.ElementDataTypeUndefined if the ElementType is invalid.
func (et ElementType) HostCode() ortapi.ElementDataType {
	if err := et.Validate(); err != nil {
		return ortapi.ElementDataTypeUndefined
	}
	return elementTypeToHostCode[et]
}

// FromHostCode returns the ElementType matching a host type code.
//
// The host knows more element types than this package (half precision
// and 8-bit floats, complex numbers, 4-bit integers, and any type added
// by future host versions): for all of them it returns ErrUnsupported.
func FromHostCode(code ortapi.ElementDataType) (ElementType, error) {
	et, ok := hostCodeToElementType[code]
	if !ok {
		return 0, errors.Wrapf(ErrUnsupported, "host type code %d", code)
	}
	return et, nil
}
