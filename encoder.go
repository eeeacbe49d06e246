package remold

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"
)

var (
	timeType          = reflect.TypeFor[time.Time]()
	durationType      = reflect.TypeFor[time.Duration]()
	errorType         = reflect.TypeFor[error]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	emptyStructType   = reflect.TypeFor[struct{}]()
)

// visitKey identifies a reference on the current encode path.
type visitKey struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

// Encoder turns values into documents. One Encoder serves one top-level
// Encode call; codecs receive it to encode nested values.
type Encoder struct {
	engine   *Engine
	visiting map[visitKey]struct{}
}

func newEncoder(e *Engine) *Encoder {
	return &Encoder{engine: e, visiting: make(map[visitKey]struct{})}
}

// Encode encodes v. ok is false when v has no document form.
func (e *Encoder) Encode(v any) (any, bool, error) {
	return e.EncodeValue(reflect.ValueOf(v))
}

// EncodeValue encodes a reflected value.
func (e *Encoder) EncodeValue(v reflect.Value) (any, bool, error) {
	if !v.IsValid() {
		return nil, true, nil
	}

	if doc, ok := encodeScalar(v); ok {
		return doc, true, nil
	}
	if doc, ok, err := marshalHook(v); ok {
		return doc, err == nil, err
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil, true, nil
		}
		return e.EncodeValue(v.Elem())
	case reflect.Pointer:
		if v.IsNil() {
			return nil, true, nil
		}
		leave, err := e.enter(v)
		if err != nil {
			return nil, false, err
		}
		defer leave()
		return e.EncodeValue(v.Elem())
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return nil, false, nil
	}

	if v.Kind() == reflect.Struct && e.engine.registry.IsManaged(v.Type()) {
		doc, err := e.encodeManaged(v)
		return doc, err == nil, err
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return e.encodeSequence(v)
	case reflect.Map:
		if isStructSet(v.Type()) {
			return e.encodeSetKeys(v, Identity())
		}
		return e.encodeMap(v)
	case reflect.Struct:
		return e.encodeStruct(v)
	}
	return nil, false, nil
}

// encodeScalar returns opaque values in their canonical document form.
func encodeScalar(v reflect.Value) (any, bool) {
	t := v.Type()
	switch t {
	case timeType:
		return v.Interface().(time.Time), true
	case durationType:
		return time.Duration(v.Int()), true
	}
	if v.Kind() != reflect.Interface && t.Implements(errorType) {
		if isNil(v) {
			return nil, true
		}
		return v.Interface().(error).Error(), true
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.String:
		return v.String(), true
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			if v.IsNil() {
				return nil, true
			}
			return append([]byte(nil), v.Bytes()...), true
		}
	}
	return nil, false
}

// enter pushes a pointer, map or slice onto the visiting path. The returned
// func pops it.
func (e *Encoder) enter(v reflect.Value) (func(), error) {
	var key visitKey
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() {
			return func() {}, nil
		}
		key = visitKey{ptr: v.Pointer(), typ: v.Type()}
	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 {
			return func() {}, nil
		}
		key = visitKey{ptr: v.Pointer(), typ: v.Type(), n: v.Len()}
	default:
		return func() {}, nil
	}
	if _, seen := e.visiting[key]; seen {
		return nil, newRuntimeError(ErrCircular, v.Type(), "", "value references itself")
	}
	e.visiting[key] = struct{}{}
	return func() { delete(e.visiting, key) }, nil
}

// unwrap strips interfaces and pointers, pushing pointers onto the visiting
// path. An invalid result means the value is nil.
func (e *Encoder) unwrap(v reflect.Value) (reflect.Value, func(), error) {
	var pops []func()
	leave := func() {
		for i := len(pops) - 1; i >= 0; i-- {
			pops[i]()
		}
	}
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return reflect.Value{}, leave, nil
		}
		if v.Kind() == reflect.Pointer {
			pop, err := e.enter(v)
			if err != nil {
				leave()
				return reflect.Value{}, func() {}, err
			}
			pops = append(pops, pop)
		}
		v = v.Elem()
	}
	return v, leave, nil
}

// encodeManaged runs the decorated path: statics, fields, then version.
func (e *Encoder) encodeManaged(v reflect.Value) (*Document, error) {
	t := v.Type()
	p, err := e.engine.registry.plan(t)
	if err != nil {
		return nil, err
	}

	doc := NewDocument()
	for _, rule := range p.statics {
		out, ok, err := rule.Codec.Encode(e, reflect.ValueOf(rule.ReadStatic()))
		if err != nil {
			return nil, wrapFieldError(t, rule.SourceKey, err)
		}
		if !ok {
			continue
		}
		if prev, exists := doc.Get(rule.DocumentKey); exists {
			if !reflect.DeepEqual(prev, out) {
				return nil, newRuntimeError(ErrKeyCollision, t, rule.DocumentKey,
					fmt.Sprintf("static field %s conflicts with an inherited static value", rule.SourceKey))
			}
			continue
		}
		doc.Set(rule.DocumentKey, out)
	}

	for _, f := range p.fields {
		fv := v.FieldByIndex(f.index)
		key := f.name
		var (
			out any
			ok  bool
		)
		if rule, ruled := p.rules[f.name]; ruled {
			if !rule.Included {
				continue
			}
			key = rule.DocumentKey
			out, ok, err = rule.Codec.Encode(e, fv)
		} else {
			out, ok, err = e.EncodeValue(fv)
		}
		if err != nil {
			return nil, wrapFieldError(t, f.name, err)
		}
		if !ok {
			continue
		}
		if doc.Has(key) {
			return nil, newRuntimeError(ErrKeyCollision, t, key,
				fmt.Sprintf("field %s is already a property of the document", f.name))
		}
		doc.Set(key, out)
	}

	if rec := e.engine.versionOf(p); rec != nil {
		if doc.Has(VersionKey) {
			return nil, newRuntimeError(ErrKeyCollision, t, VersionKey, "version is already a property of the document")
		}
		doc.Set(VersionKey, int64(rec.Version))
	}
	return doc, nil
}

// wrapFieldError adds field context to codec failures. Runtime errors pass
// through untouched.
func wrapFieldError(t reflect.Type, field string, err error) error {
	var re *RuntimeError
	if errors.As(err, &re) {
		return err
	}
	return fmt.Errorf("encode %s.%s: %w", t, field, err)
}

// encodeSequence encodes slices and arrays element-wise. Omitted elements
// become nil.
func (e *Encoder) encodeSequence(v reflect.Value) (any, bool, error) {
	return e.encodeElements(v, Identity())
}

func (e *Encoder) encodeElements(v reflect.Value, inner Codec) (any, bool, error) {
	if v.Kind() == reflect.Slice && v.IsNil() {
		return nil, true, nil
	}
	leave, err := e.enter(v)
	if err != nil {
		return nil, false, err
	}
	defer leave()

	out := make([]any, v.Len())
	for i := range out {
		doc, ok, err := inner.Encode(e, v.Index(i))
		if err != nil {
			return nil, false, err
		}
		if ok {
			out[i] = doc
		}
	}
	return out, true, nil
}

// isSetType reports whether t is a map the Set codec accepts:
// map[K]struct{} or map[K]bool.
func isSetType(t reflect.Type) bool {
	return t.Kind() == reflect.Map && (t.Elem() == emptyStructType || t.Elem().Kind() == reflect.Bool)
}

// isStructSet reports whether t is a map[K]struct{}, the only map shape the
// generic path encodes as a sequence. map[K]bool stays a mapping unless the
// field declares Set.
func isStructSet(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Elem() == emptyStructType
}

// encodeSetKeys encodes the members of a set-shaped map as a sorted sequence.
// For map[K]bool only true entries are members.
func (e *Encoder) encodeSetKeys(v reflect.Value, inner Codec) (any, bool, error) {
	if v.IsNil() {
		return nil, true, nil
	}
	leave, err := e.enter(v)
	if err != nil {
		return nil, false, err
	}
	defer leave()

	keys := sortedKeys(v)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		if v.Type().Elem().Kind() == reflect.Bool && !v.MapIndex(k).Bool() {
			continue
		}
		doc, ok, err := inner.Encode(e, k)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			doc = nil
		}
		out = append(out, doc)
	}
	return out, true, nil
}

// encodeMap encodes a map as a document with keys in sorted order.
func (e *Encoder) encodeMap(v reflect.Value) (any, bool, error) {
	if v.IsNil() {
		return nil, true, nil
	}
	leave, err := e.enter(v)
	if err != nil {
		return nil, false, err
	}
	defer leave()

	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, err := mapKeyString(iter.Key())
		if err != nil {
			return nil, false, newRuntimeError(ErrUnsupportedKey, v.Type(), "", err.Error())
		}
		entries = append(entries, entry{key: key, val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	doc := NewDocument()
	for _, en := range entries {
		out, ok, err := e.EncodeValue(en.val)
		if err != nil {
			return nil, false, err
		}
		if ok {
			doc.Set(en.key, out)
		}
	}
	return doc, true, nil
}

// encodeStruct encodes an unmanaged struct by Go field name.
func (e *Encoder) encodeStruct(v reflect.Value) (any, bool, error) {
	doc := NewDocument()
	for _, f := range structFields(v.Type()) {
		out, ok, err := e.EncodeValue(v.FieldByIndex(f.index))
		if err != nil {
			return nil, false, err
		}
		if ok {
			doc.Set(f.name, out)
		}
	}
	return doc, true, nil
}

// mapKeyString renders a map key as a document key.
func mapKeyString(k reflect.Value) (string, error) {
	if k.Kind() == reflect.Interface {
		if k.IsNil() {
			return "", fmt.Errorf("nil %s key", k.Type())
		}
		return mapKeyString(k.Elem())
	}
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if k.Type().Implements(textMarshalerType) {
		if k.Kind() == reflect.Pointer && k.IsNil() {
			return "", fmt.Errorf("nil %s key", k.Type())
		}
		b, err := k.Interface().(encoding.TextMarshaler).MarshalText()
		return string(b), err
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	case reflect.Bool:
		return strconv.FormatBool(k.Bool()), nil
	}
	return "", fmt.Errorf("%s keys cannot become document keys", k.Type())
}

// sortedKeys returns the keys of a map in a stable order.
func sortedKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return lessValue(keys[i], keys[j]) })
	return keys
}

func lessValue(a, b reflect.Value) bool {
	switch a.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() < b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() < b.Uint()
	case reflect.Float32, reflect.Float64:
		return a.Float() < b.Float()
	case reflect.String:
		return a.String() < b.String()
	case reflect.Bool:
		return !a.Bool() && b.Bool()
	}
	return fmt.Sprint(a.Interface()) < fmt.Sprint(b.Interface())
}
