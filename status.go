// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"fmt"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/nlpodyssey/customop/ortapi"
)

// statusToError converts a host status into an error, releasing the
// status. It returns nil for the OK status.
func statusToError(api ortapi.API, s ortapi.Status) error {
	if s.OK() {
		return nil
	}
	err := &StatusError{
		Code:    api.GetErrorCode(s),
		Message: api.GetErrorMessage(s),
	}
	api.ReleaseStatus(s)
	return err
}

// errorCode classifies err into the host error code reported for it.
func errorCode(err error) ortapi.ErrorCode {
	var pe *panicError
	if errors.As(err, &pe) || errors.Is(err, ErrInvalidKernel) {
		return ortapi.ErrorCodeRuntimeException
	}
	for _, target := range invalidArgumentErrors {
		if errors.Is(err, target) {
			return ortapi.ErrorCodeInvalidArgument
		}
	}
	var se *StatusError
	if errors.As(err, &se) && se.Code != ortapi.ErrorCodeOK {
		return se.Code
	}
	return ortapi.ErrorCodeFail
}

var invalidArgumentErrors = []error{
	ErrTypeMismatch,
	ErrArity,
	ErrUnsupportedElementType,
	ErrMalformedString,
	ErrInvalidShape,
}

// errorToStatus converts err into a new host status whose message is
// "{name}: {err}". The message is copied by the host. It returns the OK
// status for a nil error.
func errorToStatus(api ortapi.API, name string, err error) ortapi.Status {
	if err == nil {
		return 0
	}
	code := errorCode(err)
	klog.ErrorS(err, "Custom operator failed", "op", name, "code", code)
	return api.CreateStatus(code, fmt.Sprintf("%s: %v", name, err))
}
