// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ortapi

import "fmt"

// APIVersion is the host API version requested by this package and
// written into every CustomOp vtable.
const APIVersion = 16

// ElementDataType is the host wire-level code of a tensor element type
// (ONNXTensorElementDataType).
type ElementDataType int32

// ElementDataType values, as defined by the host C API.
const (
	ElementDataTypeUndefined ElementDataType = iota
	ElementDataTypeFloat
	ElementDataTypeUint8
	ElementDataTypeInt8
	ElementDataTypeUint16
	ElementDataTypeInt16
	ElementDataTypeInt32
	ElementDataTypeInt64
	ElementDataTypeString
	ElementDataTypeBool
	ElementDataTypeFloat16
	ElementDataTypeDouble
	ElementDataTypeUint32
	ElementDataTypeUint64
	ElementDataTypeComplex64
	ElementDataTypeComplex128
	ElementDataTypeBFloat16
	ElementDataTypeFloat8E4M3FN
	ElementDataTypeFloat8E4M3FNUZ
	ElementDataTypeFloat8E5M2
	ElementDataTypeFloat8E5M2FNUZ
	ElementDataTypeUint4
	ElementDataTypeInt4
)

var elementDataTypeToString = [...]string{
	ElementDataTypeUndefined:      "UNDEFINED",
	ElementDataTypeFloat:          "FLOAT",
	ElementDataTypeUint8:          "UINT8",
	ElementDataTypeInt8:           "INT8",
	ElementDataTypeUint16:         "UINT16",
	ElementDataTypeInt16:          "INT16",
	ElementDataTypeInt32:          "INT32",
	ElementDataTypeInt64:          "INT64",
	ElementDataTypeString:         "STRING",
	ElementDataTypeBool:           "BOOL",
	ElementDataTypeFloat16:        "FLOAT16",
	ElementDataTypeDouble:         "DOUBLE",
	ElementDataTypeUint32:         "UINT32",
	ElementDataTypeUint64:         "UINT64",
	ElementDataTypeComplex64:      "COMPLEX64",
	ElementDataTypeComplex128:     "COMPLEX128",
	ElementDataTypeBFloat16:       "BFLOAT16",
	ElementDataTypeFloat8E4M3FN:   "FLOAT8E4M3FN",
	ElementDataTypeFloat8E4M3FNUZ: "FLOAT8E4M3FNUZ",
	ElementDataTypeFloat8E5M2:     "FLOAT8E5M2",
	ElementDataTypeFloat8E5M2FNUZ: "FLOAT8E5M2FNUZ",
	ElementDataTypeUint4:          "UINT4",
	ElementDataTypeInt4:           "INT4",
}

func (t ElementDataType) String() string {
	if t < 0 || int(t) >= len(elementDataTypeToString) {
		return fmt.Sprintf("ElementDataType(%d)", int32(t))
	}
	return elementDataTypeToString[t]
}

// ONNXType is the kind of a host value.
type ONNXType int32

// ONNXType values.
const (
	ONNXTypeUnknown ONNXType = iota
	ONNXTypeTensor
	ONNXTypeSequence
	ONNXTypeMap
	ONNXTypeOpaque
	ONNXTypeSparseTensor
	ONNXTypeOptional
)

// ErrorCode classifies a non-OK host status.
type ErrorCode int32

// ErrorCode values.
const (
	ErrorCodeOK ErrorCode = iota
	ErrorCodeFail
	ErrorCodeInvalidArgument
	ErrorCodeNoSuchFile
	ErrorCodeNoModel
	ErrorCodeEngineError
	ErrorCodeRuntimeException
	ErrorCodeInvalidProtobuf
	ErrorCodeModelLoaded
	ErrorCodeNotImplemented
	ErrorCodeInvalidGraph
	ErrorCodeEPFail
)

var errorCodeToString = [...]string{
	ErrorCodeOK:               "OK",
	ErrorCodeFail:             "FAIL",
	ErrorCodeInvalidArgument:  "INVALID_ARGUMENT",
	ErrorCodeNoSuchFile:       "NO_SUCHFILE",
	ErrorCodeNoModel:          "NO_MODEL",
	ErrorCodeEngineError:      "ENGINE_ERROR",
	ErrorCodeRuntimeException: "RUNTIME_EXCEPTION",
	ErrorCodeInvalidProtobuf:  "INVALID_PROTOBUF",
	ErrorCodeModelLoaded:      "MODEL_LOADED",
	ErrorCodeNotImplemented:   "NOT_IMPLEMENTED",
	ErrorCodeInvalidGraph:     "INVALID_GRAPH",
	ErrorCodeEPFail:           "EP_FAIL",
}

// String returns the host name of the error code.
func (c ErrorCode) String() string {
	if c < 0 || int(c) >= len(errorCodeToString) {
		return fmt.Sprintf("ErrorCode(%d)", int32(c))
	}
	return errorCodeToString[c]
}

// Characteristic classifies an input or output slot of a custom operator.
type Characteristic int32

// Characteristic values, as defined by the host C API.
const (
	CharacteristicRequired Characteristic = iota
	CharacteristicOptional
	CharacteristicVariadic
)

var characteristicToString = [...]string{
	CharacteristicRequired: "Required",
	CharacteristicOptional: "Optional",
	CharacteristicVariadic: "Variadic",
}

func (c Characteristic) String() string {
	if c < 0 || int(c) >= len(characteristicToString) {
		return fmt.Sprintf("Characteristic(%d)", int32(c))
	}
	return characteristicToString[c]
}
