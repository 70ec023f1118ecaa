// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exampleops

import (
	"math"

	"github.com/itchyny/timefmt-go"
	"k8s.io/klog/v2"

	"github.com/nlpodyssey/customop"
)

// ParseDateTime parses its input strings with the strftime format of the
// "fmt" attribute (for example "%d.%m.%Y %H:%M %P %z") and outputs unix
// timestamps in seconds. Strings that do not parse are mapped to NaN.
var ParseDateTime = customop.Definition[ParseDateTimeKernel, UnaryInput[string], UnaryOutput[float64]]{
	Name: "ParseDateTime",
	Create: func(info *customop.KernelInfo) (ParseDateTimeKernel, error) {
		format, err := info.AttributeString("fmt")
		if err != nil {
			return ParseDateTimeKernel{}, err
		}
		return ParseDateTimeKernel{format: format}, nil
	},
}

// ParseDateTimeKernel is the kernel of ParseDateTime, holding the format
// of its node.
type ParseDateTimeKernel struct {
	format string
}

// Compute parses every input string.
func (k ParseDateTimeKernel) Compute(in UnaryInput[string]) (UnaryOutput[float64], error) {
	z, err := mapValues(in.X, k.parse)
	return UnaryOutput[float64]{Z: z}, err
}

func (k ParseDateTimeKernel) parse(s string) float64 {
	t, err := timefmt.Parse(s, k.format)
	if err != nil {
		klog.V(4).InfoS("Unparsable datetime", "value", s, "format", k.format, "err", err)
		return math.NaN()
	}
	return float64(t.Unix())
}
