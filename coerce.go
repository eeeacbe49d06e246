package remold

import (
	"encoding"
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

var (
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
	stringType          = reflect.TypeFor[string]()
)

// Decode converts a document value into a value of type target. Managed
// struct types go through their declared rules; everything else is coerced
// generically.
func (d *Decoder) Decode(doc any, target reflect.Type) (reflect.Value, error) {
	switch target.Kind() {
	case reflect.Pointer:
		return decodeInto(doc, target, func(base reflect.Type) (reflect.Value, error) {
			return d.Decode(doc, base)
		})
	case reflect.Interface:
		if doc == nil {
			return reflect.Zero(target), nil
		}
		v := reflect.ValueOf(doc)
		if !v.Type().AssignableTo(target) {
			return reflect.Value{}, mismatch(doc, target)
		}
		out := reflect.New(target).Elem()
		out.Set(v)
		return out, nil
	}

	if doc == nil {
		return reflect.Zero(target), nil
	}

	switch target {
	case timeType:
		tm, err := toTime(doc)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(tm), nil
	case durationType:
		dur, err := toDuration(doc)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(dur), nil
	}

	if v, ok, err := unmarshalHook(doc, target); ok {
		return v, err
	}
	if target.Kind() == reflect.Struct && d.engine.registry.IsManaged(target) {
		return d.decodeManaged(target, doc)
	}

	out := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.Bool:
		v := reflect.ValueOf(doc)
		if v.Kind() != reflect.Bool {
			return reflect.Value{}, mismatch(doc, target)
		}
		out.SetBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(doc)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w into %s", err, target)
		}
		if out.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("%w: %d overflows %s", ErrTypeMismatch, n, target)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := toUint64(doc)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w into %s", err, target)
		}
		if out.OverflowUint(n) {
			return reflect.Value{}, fmt.Errorf("%w: %d overflows %s", ErrTypeMismatch, n, target)
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := toFloat64(doc)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w into %s", err, target)
		}
		if out.OverflowFloat(f) {
			return reflect.Value{}, fmt.Errorf("%w: %g overflows %s", ErrTypeMismatch, f, target)
		}
		out.SetFloat(f)
	case reflect.String:
		v := reflect.ValueOf(doc)
		if v.Kind() != reflect.String {
			return reflect.Value{}, mismatch(doc, target)
		}
		out.SetString(v.String())
	case reflect.Slice:
		if target.Elem().Kind() == reflect.Uint8 {
			b, err := toBytes(doc)
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetBytes(b)
			return out, nil
		}
		return d.decodeElements(doc, target, Identity())
	case reflect.Array:
		return d.decodeElements(doc, target, Identity())
	case reflect.Map:
		if items, ok := doc.([]any); ok && isStructSet(target) {
			return d.decodeSet(items, target, Identity())
		}
		return d.decodeMap(doc, target)
	case reflect.Struct:
		return d.decodeStruct(doc, target)
	default:
		return reflect.Value{}, mismatch(doc, target)
	}
	return out, nil
}

// decodeElements builds a slice or array from a sequence.
func (d *Decoder) decodeElements(doc any, target reflect.Type, inner Codec) (reflect.Value, error) {
	items, ok := doc.([]any)
	if !ok {
		return reflect.Value{}, mismatch(doc, target)
	}
	var out reflect.Value
	if target.Kind() == reflect.Array {
		if len(items) > target.Len() {
			return reflect.Value{}, fmt.Errorf("%w: %d elements do not fit %s", ErrTypeMismatch, len(items), target)
		}
		out = reflect.New(target).Elem()
	} else {
		out = reflect.MakeSlice(target, len(items), len(items))
	}
	for i, item := range items {
		v, err := inner.Decode(d, item, target.Elem())
		if err == nil {
			v, err = fit(v, target.Elem())
		}
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(v)
	}
	return out, nil
}

// decodeSet builds a set-shaped map from a sequence of members.
func (d *Decoder) decodeSet(items []any, target reflect.Type, inner Codec) (reflect.Value, error) {
	out := reflect.MakeMapWithSize(target, len(items))
	member := reflect.New(target.Elem()).Elem()
	if target.Elem().Kind() == reflect.Bool {
		member.SetBool(true)
	}
	for i, item := range items {
		k, err := inner.Decode(d, item, target.Key())
		if err == nil {
			k, err = fit(k, target.Key())
		}
		if err != nil {
			return reflect.Value{}, fmt.Errorf("member %d: %w", i, err)
		}
		out.SetMapIndex(k, member)
	}
	return out, nil
}

// decodeMap builds a map from a document, parsing keys into the key type.
func (d *Decoder) decodeMap(doc any, target reflect.Type) (reflect.Value, error) {
	src, err := asDocument(doc)
	if err != nil {
		return reflect.Value{}, mismatch(doc, target)
	}
	out := reflect.MakeMapWithSize(target, src.Len())
	for _, key := range src.Keys() {
		k, err := parseMapKey(key, target.Key())
		if err != nil {
			return reflect.Value{}, err
		}
		raw, _ := src.Get(key)
		v, err := d.Decode(raw, target.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("key %q: %w", key, err)
		}
		out.SetMapIndex(k, v)
	}
	return out, nil
}

// decodeStruct fills an unmanaged struct by Go field name.
func (d *Decoder) decodeStruct(doc any, target reflect.Type) (reflect.Value, error) {
	src, err := asDocument(doc)
	if err != nil {
		return reflect.Value{}, mismatch(doc, target)
	}
	out := reflect.New(target).Elem()
	for _, f := range structFields(target) {
		raw, ok := src.Get(f.name)
		if !ok {
			continue
		}
		v, err := d.Decode(raw, f.typ)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("field %s: %w", f.name, err)
		}
		out.FieldByIndex(f.index).Set(v)
	}
	return out, nil
}

// parseMapKey converts a document key into a map key of type t.
func parseMapKey(key string, t reflect.Type) (reflect.Value, error) {
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		ptr := reflect.New(t)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(key)); err != nil {
			return reflect.Value{}, fmt.Errorf("%w: key %q: %w", ErrTypeMismatch, key, err)
		}
		return ptr.Elem(), nil
	}
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Interface:
		if !stringType.AssignableTo(t) {
			return reflect.Value{}, fmt.Errorf("%w: %s keys", ErrUnsupportedKey, t)
		}
		out.Set(reflect.ValueOf(key))
	case reflect.String:
		out.SetString(key)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(key, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: key %q: %w", ErrTypeMismatch, key, err)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := strconv.ParseUint(key, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: key %q: %w", ErrTypeMismatch, key, err)
		}
		out.SetUint(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(key)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: key %q: %w", ErrTypeMismatch, key, err)
		}
		out.SetBool(b)
	default:
		return reflect.Value{}, fmt.Errorf("%w: %s keys", ErrUnsupportedKey, t)
	}
	return out, nil
}

// toInt64 accepts any integral number, including named numeric types.
func toInt64(doc any) (int64, error) {
	v := reflect.ValueOf(doc)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if v.Uint() > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int64", ErrTypeMismatch, v.Uint())
		}
		return int64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, fmt.Errorf("%w: %g is not an integer", ErrTypeMismatch, f)
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("%w: %T is not a number", ErrTypeMismatch, doc)
}

// toUint64 accepts any non-negative integral number.
func toUint64(doc any) (uint64, error) {
	v := reflect.ValueOf(doc)
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f < 0 || f != math.Trunc(f) || f >= math.MaxUint64 {
			return 0, fmt.Errorf("%w: %g is not an unsigned integer", ErrTypeMismatch, f)
		}
		return uint64(f), nil
	}
	i, err := toInt64(doc)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrTypeMismatch, i)
	}
	return uint64(i), nil
}

// toFloat64 accepts any number.
func toFloat64(doc any) (float64, error) {
	v := reflect.ValueOf(doc)
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(v.Uint()), nil
	}
	i, err := toInt64(doc)
	if err != nil {
		return 0, err
	}
	return float64(i), nil
}

// toTime accepts time.Time values and RFC 3339 strings.
func toTime(doc any) (time.Time, error) {
	switch v := doc.(type) {
	case time.Time:
		return v, nil
	case string:
		tm, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %w", ErrTypeMismatch, err)
		}
		return tm, nil
	}
	return time.Time{}, mismatch(doc, timeType)
}

// toDuration accepts nanosecond counts and duration strings.
func toDuration(doc any) (time.Duration, error) {
	switch v := doc.(type) {
	case time.Duration:
		return v, nil
	case string:
		dur, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrTypeMismatch, err)
		}
		return dur, nil
	}
	n, err := toInt64(doc)
	if err != nil {
		return 0, err
	}
	return time.Duration(n), nil
}

// toBytes accepts byte slices, base64 strings and sequences of small integers.
func toBytes(doc any) ([]byte, error) {
	switch v := doc.(type) {
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTypeMismatch, err)
		}
		return b, nil
	case []any:
		out := make([]byte, len(v))
		for i, item := range v {
			n, err := toUint64(item)
			if err != nil || n > math.MaxUint8 {
				return nil, fmt.Errorf("%w: element %d is not a byte", ErrTypeMismatch, i)
			}
			out[i] = byte(n)
		}
		return out, nil
	}
	return nil, mismatch(doc, reflect.TypeFor[[]byte]())
}
