package remold

import (
	"fmt"
	"reflect"
	"time"
)

// identityCodec encodes generically and coerces on decode.
type identityCodec struct{}

// Identity returns the default codec: values are encoded by the generic
// dispatcher and coerced into the field type on decode.
func Identity() Codec {
	return identityCodec{}
}

func (identityCodec) Encode(enc *Encoder, v reflect.Value) (any, bool, error) {
	return enc.EncodeValue(v)
}

func (identityCodec) Decode(dec *Decoder, doc any, target reflect.Type) (reflect.Value, error) {
	return dec.Decode(doc, target)
}

// dateCodec maps time.Time to epoch milliseconds.
type dateCodec struct{}

// Date returns a codec storing time.Time as milliseconds since the Unix
// epoch. Decoded times are in UTC; sub-millisecond precision is dropped.
func Date() Codec {
	return dateCodec{}
}

func (dateCodec) Encode(enc *Encoder, v reflect.Value) (any, bool, error) {
	v, leave, err := enc.unwrap(v)
	if err != nil {
		return nil, false, err
	}
	defer leave()
	if !v.IsValid() {
		return nil, true, nil
	}
	if v.Type() != timeType {
		return nil, false, fmt.Errorf("%w: date codec cannot encode %s", ErrTypeMismatch, v.Type())
	}
	return v.Interface().(time.Time).UnixMilli(), true, nil
}

func (dateCodec) Decode(_ *Decoder, doc any, target reflect.Type) (reflect.Value, error) {
	return decodeInto(doc, target, func(base reflect.Type) (reflect.Value, error) {
		if base != timeType {
			return reflect.Value{}, mismatch(doc, base)
		}
		if tm, ok := doc.(time.Time); ok {
			return reflect.ValueOf(tm.UTC()), nil
		}
		ms, err := toInt64(doc)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(time.UnixMilli(ms).UTC()), nil
	})
}

// arrayCodec applies an inner codec to every element of a sequence.
type arrayCodec struct {
	inner Codec
}

// Array returns a codec for slices and arrays whose elements use inner.
func Array(inner Codec) Codec {
	return arrayCodec{inner: inner}
}

func (c arrayCodec) Encode(enc *Encoder, v reflect.Value) (any, bool, error) {
	v, leave, err := enc.unwrap(v)
	if err != nil {
		return nil, false, err
	}
	defer leave()
	if !v.IsValid() {
		return nil, true, nil
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, false, fmt.Errorf("%w: array codec cannot encode %s", ErrTypeMismatch, v.Type())
	}
	return enc.encodeElements(v, c.inner)
}

func (c arrayCodec) Decode(dec *Decoder, doc any, target reflect.Type) (reflect.Value, error) {
	return decodeInto(doc, target, func(base reflect.Type) (reflect.Value, error) {
		if base.Kind() != reflect.Slice && base.Kind() != reflect.Array {
			return reflect.Value{}, mismatch(doc, base)
		}
		return dec.decodeElements(doc, base, c.inner)
	})
}

// setCodec maps set-shaped maps to sequences of members.
type setCodec struct {
	inner Codec
}

// Set returns a codec for map[K]struct{} and map[K]bool sets. Members are
// written as a sequence in sorted order, each through inner.
func Set(inner Codec) Codec {
	return setCodec{inner: inner}
}

func (c setCodec) Encode(enc *Encoder, v reflect.Value) (any, bool, error) {
	v, leave, err := enc.unwrap(v)
	if err != nil {
		return nil, false, err
	}
	defer leave()
	if !v.IsValid() {
		return nil, true, nil
	}
	if !isSetType(v.Type()) {
		return nil, false, fmt.Errorf("%w: set codec cannot encode %s", ErrTypeMismatch, v.Type())
	}
	return enc.encodeSetKeys(v, c.inner)
}

func (c setCodec) Decode(dec *Decoder, doc any, target reflect.Type) (reflect.Value, error) {
	return decodeInto(doc, target, func(base reflect.Type) (reflect.Value, error) {
		items, ok := doc.([]any)
		if !ok || !isSetType(base) {
			return reflect.Value{}, mismatch(doc, base)
		}
		return dec.decodeSet(items, base, c.inner)
	})
}

// mappingCodec maps Go maps to sequences of [key, value] pairs.
type mappingCodec struct {
	key   Codec
	value Codec
}

// Mapping returns a codec storing a map as a sequence of two-element
// [key, value] sequences, ordered by key. Keys of any comparable type
// survive, unlike the generic map encoding.
func Mapping(key, value Codec) Codec {
	return mappingCodec{key: key, value: value}
}

func (c mappingCodec) Encode(enc *Encoder, v reflect.Value) (any, bool, error) {
	v, leave, err := enc.unwrap(v)
	if err != nil {
		return nil, false, err
	}
	defer leave()
	if !v.IsValid() {
		return nil, true, nil
	}
	if v.Kind() != reflect.Map {
		return nil, false, fmt.Errorf("%w: mapping codec cannot encode %s", ErrTypeMismatch, v.Type())
	}
	if v.IsNil() {
		return nil, true, nil
	}
	pop, err := enc.enter(v)
	if err != nil {
		return nil, false, err
	}
	defer pop()

	keys := sortedKeys(v)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		kd, ok, err := c.key.Encode(enc, k)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			kd = nil
		}
		vd, ok, err := c.value.Encode(enc, v.MapIndex(k))
		if err != nil {
			return nil, false, err
		}
		if !ok {
			vd = nil
		}
		out = append(out, []any{kd, vd})
	}
	return out, true, nil
}

func (c mappingCodec) Decode(dec *Decoder, doc any, target reflect.Type) (reflect.Value, error) {
	return decodeInto(doc, target, func(base reflect.Type) (reflect.Value, error) {
		items, ok := doc.([]any)
		if !ok || base.Kind() != reflect.Map {
			return reflect.Value{}, mismatch(doc, base)
		}
		out := reflect.MakeMapWithSize(base, len(items))
		for i, item := range items {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				return reflect.Value{}, fmt.Errorf("%w: entry %d is not a [key, value] pair", ErrTypeMismatch, i)
			}
			k, err := c.key.Decode(dec, pair[0], base.Key())
			if err == nil {
				k, err = fit(k, base.Key())
			}
			if err != nil {
				return reflect.Value{}, fmt.Errorf("entry %d key: %w", i, err)
			}
			val, err := c.value.Decode(dec, pair[1], base.Elem())
			if err == nil {
				val, err = fit(val, base.Elem())
			}
			if err != nil {
				return reflect.Value{}, fmt.Errorf("entry %d value: %w", i, err)
			}
			out.SetMapIndex(k, val)
		}
		return out, nil
	})
}

// managedCodec forces the decorated path for a struct type.
type managedCodec struct {
	typ reflect.Type
}

// Managed returns a codec that encodes and decodes values of struct type t
// through its declared rules, even when t is not registered.
func Managed(t reflect.Type) Codec {
	return managedCodec{typ: baseType(t)}
}

// ManagedOf is Managed for a type parameter.
func ManagedOf[T any]() Codec {
	return Managed(reflect.TypeFor[T]())
}

func (c managedCodec) Encode(enc *Encoder, v reflect.Value) (any, bool, error) {
	v, leave, err := enc.unwrap(v)
	if err != nil {
		return nil, false, err
	}
	defer leave()
	if !v.IsValid() {
		return nil, true, nil
	}
	if v.Type() != c.typ {
		return nil, false, fmt.Errorf("%w: managed codec for %s cannot encode %s", ErrTypeMismatch, c.typ, v.Type())
	}
	doc, err := enc.encodeManaged(v)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (c managedCodec) Decode(dec *Decoder, doc any, target reflect.Type) (reflect.Value, error) {
	return decodeInto(doc, target, func(base reflect.Type) (reflect.Value, error) {
		if base != c.typ {
			return reflect.Value{}, mismatch(doc, base)
		}
		return dec.decodeManaged(base, doc)
	})
}
