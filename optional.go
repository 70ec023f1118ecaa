// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"github.com/nlpodyssey/customop/elemtype"
	"github.com/nlpodyssey/customop/ortapi"
)

// Optional is an input or output slot that may be absent.
//
// As an input, Valid is false when the host omitted the value. As an
// output, the Array is written only if Valid is true.
type Optional[T Element] struct {
	Array Array[T]
	Valid bool
}

// Some returns a present Optional holding a.
func Some[T Element](a Array[T]) Optional[T] {
	return Optional[T]{Array: a, Valid: true}
}

func (o Optional[T]) slotElementType() elemtype.ElementType {
	return elementTypeOf[T]()
}

func (o Optional[T]) slotCharacteristic() ortapi.Characteristic {
	return ortapi.CharacteristicOptional
}

func (o *Optional[T]) decodeSlot(v Value) error {
	arr, err := AsArray[T](v)
	if err != nil {
		return err
	}
	*o = Optional[T]{Array: arr, Valid: true}
	return nil
}

func (o *Optional[T]) decodeAbsent() error {
	*o = Optional[T]{}
	return nil
}

func (o Optional[T]) encodeSlot() (Value, bool) {
	if !o.Valid {
		return Value{}, false
	}
	return ValueOf(o.Array), true
}
