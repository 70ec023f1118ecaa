// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build onnxruntime

// Command exampleops builds the example operators as an ONNX Runtime
// custom operator library:
//
//	go build -tags onnxruntime -buildmode=c-shared -o libexampleops.so ./cmd/exampleops
//
// The library is loaded with RegisterCustomOpsLibrary. Setting
// CUSTOMOP_VERBOSITY enables klog verbose logging.
package main

// #include <onnxruntime_c_api.h>
import "C"

import (
	"flag"
	"os"
	"unsafe"

	"k8s.io/klog/v2"

	"github.com/nlpodyssey/customop/internal/exampleops"
	"github.com/nlpodyssey/customop/ortapi/capi"
)

var opSet = exampleops.OpSet()

func init() {
	fs := flag.NewFlagSet("exampleops", flag.ContinueOnError)
	klog.InitFlags(fs)
	if v, ok := os.LookupEnv("CUSTOMOP_VERBOSITY"); ok {
		if err := fs.Set("v", v); err != nil {
			klog.ErrorS(err, "invalid CUSTOMOP_VERBOSITY", "value", v)
		}
	}
}

// RegisterCustomOps is the entry point looked up by the host when the
// library is loaded.
//
//export RegisterCustomOps
func RegisterCustomOps(options *C.OrtSessionOptions, base *C.OrtApiBase) *C.OrtStatus {
	api, err := capi.FromBase(unsafe.Pointer(base))
	if err != nil {
		// Without an API table there is no way to build a status.
		klog.ErrorS(err, "cannot register custom operators", "domain", exampleops.Domain)
		return nil
	}
	st := opSet.RegisterStatus(api, capi.SessionOptions(unsafe.Pointer(options)))
	if st.OK() {
		klog.V(1).InfoS("registered custom operators", "domain", exampleops.Domain, "ops", opSet.Names())
	}
	return (*C.OrtStatus)(capi.StatusPointer(st))
}

func main() {}
