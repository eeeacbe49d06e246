package remold

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// stringerCodec stores a value through its String method and parses it back.
type stringerCodec[T fmt.Stringer] struct {
	parse func(string) (T, error)
}

// Stringer returns a codec storing values of T as their String() form and
// restoring them with parse.
func Stringer[T fmt.Stringer](parse func(string) (T, error)) Codec {
	return stringerCodec[T]{parse: parse}
}

func (c stringerCodec[T]) Encode(_ *Encoder, v reflect.Value) (any, bool, error) {
	if isNil(v) {
		return nil, true, nil
	}
	val, ok := v.Interface().(T)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s is not %s", ErrTypeMismatch, v.Type(), reflect.TypeFor[T]())
	}
	return val.String(), true, nil
}

func (c stringerCodec[T]) Decode(_ *Decoder, doc any, target reflect.Type) (reflect.Value, error) {
	if doc == nil {
		return reflect.Zero(target), nil
	}
	s, ok := doc.(string)
	if !ok {
		return reflect.Value{}, mismatch(doc, target)
	}
	val, err := c.parse(s)
	if err != nil {
		return reflect.Value{}, err
	}
	return fit(reflect.ValueOf(val), target)
}

// textCodec uses encoding.TextMarshaler and encoding.TextUnmarshaler.
type textCodec struct{}

// Text returns a codec for types implementing encoding.TextMarshaler, with
// *T implementing encoding.TextUnmarshaler.
func Text() Codec {
	return textCodec{}
}

func (textCodec) Encode(_ *Encoder, v reflect.Value) (any, bool, error) {
	if isNil(v) {
		return nil, true, nil
	}
	m, ok := v.Interface().(encoding.TextMarshaler)
	if !ok && v.CanAddr() {
		m, ok = v.Addr().Interface().(encoding.TextMarshaler)
	}
	if !ok {
		return nil, false, fmt.Errorf("%w: %s does not implement encoding.TextMarshaler", ErrTypeMismatch, v.Type())
	}
	b, err := m.MarshalText()
	if err != nil {
		return nil, false, err
	}
	return string(b), true, nil
}

func (textCodec) Decode(_ *Decoder, doc any, target reflect.Type) (reflect.Value, error) {
	return decodeInto(doc, target, func(base reflect.Type) (reflect.Value, error) {
		s, ok := doc.(string)
		if !ok {
			return reflect.Value{}, mismatch(doc, base)
		}
		ptr := reflect.New(base)
		u, ok := ptr.Interface().(encoding.TextUnmarshaler)
		if !ok {
			return reflect.Value{}, fmt.Errorf("%w: %s does not implement encoding.TextUnmarshaler", ErrTypeMismatch, ptr.Type())
		}
		if err := u.UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	})
}

// jsonCodec stores a value as its JSON text.
type jsonCodec struct{}

// JSONConvertible returns a codec storing a value as a JSON string, using
// the value's own json.Marshaler and json.Unmarshaler when present.
func JSONConvertible() Codec {
	return jsonCodec{}
}

func (jsonCodec) Encode(_ *Encoder, v reflect.Value) (any, bool, error) {
	if isNil(v) {
		return nil, true, nil
	}
	b, err := json.Marshal(v.Interface())
	if err != nil {
		return nil, false, err
	}
	return string(b), true, nil
}

func (jsonCodec) Decode(_ *Decoder, doc any, target reflect.Type) (reflect.Value, error) {
	if doc == nil {
		return reflect.Zero(target), nil
	}
	s, ok := doc.(string)
	if !ok {
		return reflect.Value{}, mismatch(doc, target)
	}
	ptr := reflect.New(target)
	if err := json.Unmarshal([]byte(s), ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %w", ErrTypeMismatch, err)
	}
	return ptr.Elem(), nil
}

// UUID returns a codec storing uuid.UUID values in their canonical string
// form.
func UUID() Codec {
	return Func(
		func(id uuid.UUID) (string, error) { return id.String(), nil },
		uuid.Parse,
	)
}

// funcCodec adapts a pair of typed functions.
type funcCodec[T, U any] struct {
	encode func(T) (U, error)
	decode func(U) (T, error)
}

// Func returns a codec built from a typed encode/decode pair. The document
// value U is coerced generically before decode runs, so numeric widths and
// similar representation differences between formats are absorbed.
func Func[T, U any](encode func(T) (U, error), decode func(U) (T, error)) Codec {
	return funcCodec[T, U]{encode: encode, decode: decode}
}

func (c funcCodec[T, U]) Encode(enc *Encoder, v reflect.Value) (any, bool, error) {
	if isNil(v) {
		return nil, true, nil
	}
	val, ok := v.Interface().(T)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s is not %s", ErrTypeMismatch, v.Type(), reflect.TypeFor[T]())
	}
	out, err := c.encode(val)
	if err != nil {
		return nil, false, err
	}
	return enc.Encode(out)
}

func (c funcCodec[T, U]) Decode(dec *Decoder, doc any, target reflect.Type) (reflect.Value, error) {
	if doc == nil {
		return reflect.Zero(target), nil
	}
	u, ok := doc.(U)
	if !ok {
		rv, err := dec.Decode(doc, reflect.TypeFor[U]())
		if err != nil {
			return reflect.Value{}, err
		}
		u = rv.Interface().(U)
	}
	val, err := c.decode(u)
	if err != nil {
		return reflect.Value{}, err
	}
	return fit(reflect.ValueOf(val), target)
}
