package remold

import (
	"reflect"
)

// isNil reports whether v is absent: invalid, or a nil pointer, interface,
// map or slice.
func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// baseType strips pointers from t.
func baseType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// decodeInto decodes through any pointer levels of target: fn produces a
// value of the base type, which is then wrapped in freshly allocated pointers.
// A nil document yields the zero value of target.
func decodeInto(doc any, target reflect.Type, fn func(base reflect.Type) (reflect.Value, error)) (reflect.Value, error) {
	if doc == nil {
		return reflect.Zero(target), nil
	}
	if target.Kind() != reflect.Pointer {
		return fn(target)
	}
	elem, err := decodeInto(doc, target.Elem(), fn)
	if err != nil {
		return reflect.Value{}, err
	}
	ptr := reflect.New(target.Elem())
	ptr.Elem().Set(elem)
	return ptr, nil
}

// fit makes v assignable to target, converting between named types of the
// same kind and taking the address for pointer targets.
func fit(v reflect.Value, target reflect.Type) (reflect.Value, error) {
	if !v.IsValid() {
		return reflect.Zero(target), nil
	}
	vt := v.Type()
	switch {
	case vt == target:
		return v, nil
	case vt.AssignableTo(target):
		out := reflect.New(target).Elem()
		out.Set(v)
		return out, nil
	case vt.Kind() == target.Kind() && vt.ConvertibleTo(target):
		return v.Convert(target), nil
	case target.Kind() == reflect.Pointer:
		elem, err := fit(v, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	case vt.Kind() == reflect.Pointer && !v.IsNil():
		return fit(v.Elem(), target)
	}
	return reflect.Value{}, mismatch(v.Interface(), target)
}
