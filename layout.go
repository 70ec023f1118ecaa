// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"reflect"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/nlpodyssey/customop/elemtype"
	"github.com/nlpodyssey/customop/ortapi"
)

// slot is implemented by the types allowed as fields of input and output
// structs: Array and Optional.
type slot interface {
	slotElementType() elemtype.ElementType
	slotCharacteristic() ortapi.Characteristic
}

type slotDecoder interface {
	slot
	decodeSlot(v Value) error
	decodeAbsent() error
}

type slotEncoder interface {
	slot
	encodeSlot() (Value, bool)
}

var (
	slotDecoderType = reflect.TypeFor[slotDecoder]()
	slotEncoderType = reflect.TypeFor[slotEncoder]()
)

type slotInfo struct {
	name           string
	field          int
	elementType    elemtype.ElementType
	characteristic ortapi.Characteristic
}

// layout describes the slots of an input or output struct, in field
// order. A variadic slot, if any, is the last one.
type layout struct {
	side     string
	typ      reflect.Type
	slots    []slotInfo
	variadic bool
	minArity int
}

// newLayout inspects the struct type t. Exported fields of type Array[T]
// are required slots, fields of type Optional[T] are optional slots, and
// a last field of type []Array[T] is a homogeneous variadic slot.
func newLayout(side string, t reflect.Type) (layout, error) {
	l := layout{side: side, typ: t}
	if t.Kind() != reflect.Struct {
		return l, errors.Errorf("%s type %s is not a struct", side, t)
	}
	var errs error
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			errs = multierr.Append(errs, errors.Errorf("%s field %s.%s is not exported", side, t, f.Name))
			continue
		}
		if s, ok := newSlot(f.Type); ok {
			l.slots = append(l.slots, slotInfo{
				name:           f.Name,
				field:          i,
				elementType:    s.slotElementType(),
				characteristic: s.slotCharacteristic(),
			})
			continue
		}
		if f.Type.Kind() == reflect.Slice {
			s, ok := newSlot(f.Type.Elem())
			switch {
			case !ok || s.slotCharacteristic() != ortapi.CharacteristicRequired:
				errs = multierr.Append(errs, errors.Errorf("%s field %s.%s: variadic items must be Array, found %s", side, t, f.Name, f.Type.Elem()))
			case i != t.NumField()-1:
				errs = multierr.Append(errs, errors.Errorf("%s field %s.%s: only the last field can be variadic", side, t, f.Name))
			default:
				l.slots = append(l.slots, slotInfo{
					name:           f.Name,
					field:          i,
					elementType:    s.slotElementType(),
					characteristic: ortapi.CharacteristicVariadic,
				})
				l.variadic = true
			}
			continue
		}
		errs = multierr.Append(errs, errors.Errorf("%s field %s.%s has unsupported type %s", side, t, f.Name, f.Type))
	}
	return l, errs
}

// newSlot returns a zero slot if t is one of the slot types.
func newSlot(t reflect.Type) (slot, bool) {
	if !reflect.PointerTo(t).Implements(slotDecoderType) || !t.Implements(slotEncoderType) {
		return nil, false
	}
	return reflect.New(t).Interface().(slot), true
}

// setMinArity validates and sets the variadic minimum arity. Zero selects
// the default of one value for a variadic layout.
func (l *layout) setMinArity(n int) error {
	switch {
	case n < 0:
		return errors.Errorf("negative variadic %s minimum arity %d", l.side, n)
	case n > 0 && !l.variadic:
		return errors.Errorf("variadic %s minimum arity %d declared, but %s type %s is not variadic", l.side, n, l.side, l.typ)
	case n == 0 && l.variadic:
		n = 1
	}
	l.minArity = n
	return nil
}

// prefix returns the number of positional slots.
func (l *layout) prefix() int {
	if l.variadic {
		return len(l.slots) - 1
	}
	return len(l.slots)
}

func (l *layout) count() int {
	return len(l.slots)
}

func (l *layout) hostType(index int) ortapi.ElementDataType {
	if index < 0 || index >= len(l.slots) {
		return ortapi.ElementDataTypeUndefined
	}
	return l.slots[index].elementType.HostCode()
}

func (l *layout) characteristic(index int) ortapi.Characteristic {
	if index < 0 || index >= len(l.slots) {
		return ortapi.CharacteristicRequired
	}
	return l.slots[index].characteristic
}

func (l *layout) variadicMinArity() int {
	return l.minArity
}

func (l *layout) variadicHomogeneity() bool {
	return l.variadic
}

type (
	decodeFunc func(c *callContext, in reflect.Value) error
	encodeFunc func(c *callContext, out reflect.Value) error
)

// inputLayout decodes host inputs into an input struct: one closure per
// positional slot, plus one for the variadic rest.
type inputLayout struct {
	layout
	decoders []decodeFunc
	rest     decodeFunc
}

func newInputLayout(t reflect.Type) (*inputLayout, error) {
	l, err := newLayout("input", t)
	if err != nil {
		return nil, err
	}
	il := &inputLayout{layout: l}
	for i, s := range l.slots[:l.prefix()] {
		il.decoders = append(il.decoders, decodePositional(i, s))
	}
	if l.variadic {
		il.rest = il.decodeRest(l.slots[l.prefix()])
	}
	return il, nil
}

func decodePositional(index int, s slotInfo) decodeFunc {
	return func(c *callContext, in reflect.Value) error {
		dst := in.Field(s.field).Addr().Interface().(slotDecoder)
		if index >= c.inputCount {
			return dst.decodeAbsent()
		}
		v, present, err := c.inputValue(index)
		if err != nil {
			return err
		}
		if !present {
			return dst.decodeAbsent()
		}
		return dst.decodeSlot(v)
	}
}

func (l *inputLayout) decodeRest(s slotInfo) decodeFunc {
	prefix := l.prefix()
	return func(c *callContext, in reflect.Value) error {
		n := c.inputCount - prefix
		if n < l.minArity {
			return errors.Wrapf(ErrArity, "expected at least %d variadic inputs, found %d", l.minArity, max(n, 0))
		}
		items := reflect.MakeSlice(in.Field(s.field).Type(), n, n)
		for j := 0; j < n; j++ {
			v, present, err := c.inputValue(prefix + j)
			if err != nil {
				return errors.Wrapf(err, "variadic input %d", j)
			}
			if !present {
				return errors.Wrapf(ErrArity, "variadic input %d is missing", j)
			}
			if err := items.Index(j).Addr().Interface().(slotDecoder).decodeSlot(v); err != nil {
				return errors.Wrapf(err, "variadic input %d", j)
			}
		}
		in.Field(s.field).Set(items)
		return nil
	}
}

// decode fills in, which must be a settable value of the layout type.
func (l *inputLayout) decode(c *callContext, in reflect.Value) error {
	if !l.variadic && c.inputCount > len(l.slots) {
		return errors.Wrapf(ErrArity, "expected at most %d inputs, found %d", len(l.slots), c.inputCount)
	}
	for i, dec := range l.decoders {
		if err := dec(c, in); err != nil {
			return errors.Wrapf(err, "input %d (%s)", i, l.slots[i].name)
		}
	}
	if l.rest != nil {
		if err := l.rest(c, in); err != nil {
			return errors.Wrapf(err, "input %s", l.slots[len(l.slots)-1].name)
		}
	}
	return nil
}

// outputLayout encodes an output struct into host outputs: one closure
// per positional slot, plus one for the variadic rest.
type outputLayout struct {
	layout
	encoders []encodeFunc
	rest     encodeFunc
}

func newOutputLayout(t reflect.Type) (*outputLayout, error) {
	l, err := newLayout("output", t)
	if err != nil {
		return nil, err
	}
	if len(l.slots) == 0 {
		return nil, errors.Errorf("output type %s declares no outputs", t)
	}
	ol := &outputLayout{layout: l}
	for i, s := range l.slots[:l.prefix()] {
		ol.encoders = append(ol.encoders, encodePositional(i, s))
	}
	if l.variadic {
		ol.rest = ol.encodeRest(l.slots[l.prefix()])
	}
	return ol, nil
}

func encodePositional(index int, s slotInfo) encodeFunc {
	return func(c *callContext, out reflect.Value) error {
		v, ok := out.Field(s.field).Interface().(slotEncoder).encodeSlot()
		if !ok {
			return nil
		}
		if index >= c.outputCount {
			if s.characteristic == ortapi.CharacteristicOptional {
				// Not requested by the host node.
				return nil
			}
			return errors.Wrapf(ErrArity, "host expects %d outputs", c.outputCount)
		}
		return c.writeOutput(index, v)
	}
}

func (l *outputLayout) encodeRest(s slotInfo) encodeFunc {
	prefix := l.prefix()
	return func(c *callContext, out reflect.Value) error {
		items := out.Field(s.field)
		n := items.Len()
		if n < l.minArity {
			return errors.Wrapf(ErrArity, "expected at least %d variadic outputs, produced %d", l.minArity, n)
		}
		if prefix+n != c.outputCount {
			return errors.Wrapf(ErrArity, "produced %d variadic outputs, host expects %d", n, c.outputCount-prefix)
		}
		for j := 0; j < n; j++ {
			v, _ := items.Index(j).Interface().(slotEncoder).encodeSlot()
			if err := c.writeOutput(prefix+j, v); err != nil {
				return errors.Wrapf(err, "variadic output %d", j)
			}
		}
		return nil
	}
}

// encode writes out, a value of the layout type, to the host outputs.
func (l *outputLayout) encode(c *callContext, out reflect.Value) error {
	if !l.variadic && c.outputCount > len(l.slots) {
		return errors.Wrapf(ErrArity, "expected at most %d outputs, host expects %d", len(l.slots), c.outputCount)
	}
	for i, enc := range l.encoders {
		if err := enc(c, out); err != nil {
			return errors.Wrapf(err, "output %d (%s)", i, l.slots[i].name)
		}
	}
	if l.rest != nil {
		if err := l.rest(c, out); err != nil {
			return errors.Wrapf(err, "output %s", l.slots[len(l.slots)-1].name)
		}
	}
	return nil
}
