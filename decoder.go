package remold

import (
	"context"
	"fmt"
	"reflect"
	"sort"
)

// Decoder turns documents into values. One Decoder serves one top-level
// Decode call; codecs receive it to decode nested values.
type Decoder struct {
	engine *Engine
	ctx    context.Context
}

func newDecoder(ctx context.Context, e *Engine) *Decoder {
	return &Decoder{engine: e, ctx: ctx}
}

// decodeManaged builds an instance of struct type t from doc.
func (d *Decoder) decodeManaged(t reflect.Type, raw any) (reflect.Value, error) {
	src, err := asDocument(raw)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("decode %s: %w", t, mismatch(raw, t))
	}

	p, err := d.engine.registry.plan(t)
	if err != nil {
		return reflect.Value{}, err
	}

	rec := d.engine.versionOf(p)
	if rec != nil && rec.Migrator != nil && d.engine.shouldMigrate(src, rec) {
		from := documentVersion(src)
		migrated, err := rec.Migrator(src.Clone())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %s from version %d to %d: %w", ErrMigration, t, from, rec.Version, err)
		}
		if migrated == nil {
			return reflect.Value{}, fmt.Errorf("%w: %s migrator returned no document", ErrMigration, t)
		}
		src = migrated
		emitDecodeMigrated(d.ctx, typeName(t), from, rec.Version)
	}

	values := make(map[string]reflect.Value)
	causes := make(map[string]error)
	for _, key := range src.Keys() {
		if _, static := p.staticKeys[key]; static {
			continue
		}
		if rec != nil && key == VersionKey {
			continue
		}
		raw, _ := src.Get(key)

		if rule, ok := p.byDocument[key]; ok {
			if !rule.Included {
				continue
			}
			f, ok := p.fieldIndex[rule.SourceKey]
			if !ok {
				continue
			}
			val, err := rule.Codec.Decode(d, raw, f.typ)
			if err == nil {
				val, err = fit(val, f.typ)
			}
			if err != nil {
				causes[rule.SourceKey] = err
				continue
			}
			if rule.Validator != nil {
				if err := rule.Validator(val.Interface()); err != nil {
					causes[rule.SourceKey] = err
					continue
				}
			}
			values[rule.SourceKey] = val
			continue
		}

		// Pass-through: only unruled fields of the same name.
		f, ok := p.fieldIndex[key]
		if !ok {
			continue
		}
		if _, ruled := p.rules[key]; ruled {
			continue
		}
		val, err := d.Decode(raw, f.typ)
		if err != nil {
			causes[key] = err
			continue
		}
		values[key] = val
	}

	for _, rule := range p.excluded {
		f := p.fieldIndex[rule.SourceKey]
		val, err := d.defaultValue(rule.Default, f.typ)
		if err != nil {
			causes[rule.SourceKey] = err
			continue
		}
		values[rule.SourceKey] = val
	}

	if len(causes) > 0 {
		return reflect.Value{}, newValidationError(t, causes)
	}

	inst := p.factory()
	for _, f := range p.fields {
		if val, ok := values[f.name]; ok {
			inst.FieldByIndex(f.index).Set(val)
		}
	}

	if err := populated(inst); err != nil {
		return reflect.Value{}, err
	}
	return inst, nil
}

// defaultValue produces the decode value of an excluded field. Slice, map
// and pointer defaults are copied one level deep so decoded instances do not
// share storage with the registry or with each other.
func (d *Decoder) defaultValue(def any, target reflect.Type) (reflect.Value, error) {
	if def == nil {
		return reflect.Zero(target), nil
	}
	v, err := fit(reflect.ValueOf(def), target)
	if err != nil {
		v, err = d.Decode(def, target)
		if err != nil {
			return reflect.Value{}, err
		}
	}
	return detach(v), nil
}

// detach returns a shallow copy of slice, map and pointer values.
func detach(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(out, v)
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
		return out
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(v.Elem())
		return out
	}
	return v
}

// asDocument accepts *Document and plain string-keyed maps.
func asDocument(raw any) (*Document, error) {
	switch doc := raw.(type) {
	case *Document:
		if doc == nil {
			return NewDocument(), nil
		}
		return doc, nil
	case map[string]any:
		keys := make([]string, 0, len(doc))
		for k := range doc {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := NewDocument()
		for _, k := range keys {
			out.Set(k, doc[k])
		}
		return out, nil
	}
	return nil, ErrTypeMismatch
}
