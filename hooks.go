package remold

import (
	"fmt"
	"reflect"
)

var (
	documentMarshalerType   = reflect.TypeFor[DocumentMarshaler]()
	documentUnmarshalerType = reflect.TypeFor[DocumentUnmarshaler]()
	populatedType           = reflect.TypeFor[Populated]()
)

// marshalHook runs MarshalDocument when v implements it, directly or through
// its address. ok is false when the hook does not apply.
func marshalHook(v reflect.Value) (doc any, ok bool, err error) {
	var m DocumentMarshaler
	switch {
	case v.Kind() != reflect.Interface && v.Type().Implements(documentMarshalerType):
		if isNil(v) {
			return nil, true, nil
		}
		m = v.Interface().(DocumentMarshaler)
	case v.CanAddr() && v.Addr().Type().Implements(documentMarshalerType):
		m = v.Addr().Interface().(DocumentMarshaler)
	default:
		return nil, false, nil
	}
	doc, err = m.MarshalDocument()
	if err != nil {
		return nil, true, fmt.Errorf("%s: marshal document: %w", v.Type(), err)
	}
	return doc, true, nil
}

// unmarshalHook runs UnmarshalDocument when *t implements it.
func unmarshalHook(doc any, t reflect.Type) (reflect.Value, bool, error) {
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface || !reflect.PointerTo(t).Implements(documentUnmarshalerType) {
		return reflect.Value{}, false, nil
	}
	ptr := reflect.New(t)
	if err := ptr.Interface().(DocumentUnmarshaler).UnmarshalDocument(doc); err != nil {
		return reflect.Value{}, true, fmt.Errorf("%s: unmarshal document: %w", t, err)
	}
	return ptr.Elem(), true, nil
}

// populated runs the Populated hook on an addressable instance.
func populated(inst reflect.Value) error {
	if !inst.CanAddr() || !inst.Addr().Type().Implements(populatedType) {
		return nil
	}
	if err := inst.Addr().Interface().(Populated).DocumentPopulated(); err != nil {
		return fmt.Errorf("%s populated: %w", inst.Type(), err)
	}
	return nil
}
