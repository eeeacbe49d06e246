package remold

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zoobzio/sentinel"
)

func init() {
	sentinel.Tag("doc")
}

// Declaration records metadata for T in a registry. Methods chain; the first
// error is kept and every later call becomes a no-op. Check Err() when done.
//
//	err := remold.Declare[User](reg).
//		Field("Email").Rename("email").Expect(`value.contains("@")`).
//		Field("Created").Codec(remold.Date()).
//		Done().
//		Exclude("Session", nil).
//		Version(2, migrateUser).
//		Err()
type Declaration[T any] struct {
	reg *Registry
	typ reflect.Type
	err error
}

// Declare starts a declaration for struct type T and applies its `doc` tags.
// A nil registry selects DefaultRegistry().
func Declare[T any](reg *Registry) *Declaration[T] {
	if reg == nil {
		reg = defaultRegistry
	}
	d := &Declaration[T]{reg: reg, typ: reflect.TypeFor[T]()}
	if d.typ.Kind() != reflect.Struct {
		d.err = newConfigurationError(ErrNotStruct, d.typ, "", "")
		return d
	}
	if d.record(reg.Manage(d.typ)) {
		d.applyTags()
	}
	return d
}

// record keeps the first error and reports whether the declaration is still
// healthy.
func (d *Declaration[T]) record(err error) bool {
	if d.err == nil && err != nil {
		d.err = err
	}
	return d.err == nil
}

// applyTags reads `doc` tags: `doc:"name"`, `doc:"-"`, `doc:"name,date"`.
func (d *Declaration[T]) applyTags() {
	spec := sentinel.Scan[T]()
	for _, field := range spec.Fields {
		tag, ok := field.Tags["doc"]
		if !ok {
			continue
		}
		if !d.record(d.applyTag(field.Name, tag)) {
			return
		}
	}
}

func (d *Declaration[T]) applyTag(field, tag string) error {
	if tag == "-" {
		return d.reg.MarkExcluded(d.typ, field, nil)
	}
	parts := strings.Split(tag, ",")
	if name := strings.TrimSpace(parts[0]); name != "" && name != field {
		if err := d.reg.SetField(d.typ, field, AttrDocumentKey, name); err != nil {
			return err
		}
	}
	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		if !IsValidTagOption(TagOption(opt)) {
			return newConfigurationError(ErrInvalidTag, d.typ, field, fmt.Sprintf("unknown option %q", opt))
		}
		if err := d.reg.SetField(d.typ, field, AttrCodec, tagCodecs[TagOption(opt)]()); err != nil {
			return err
		}
	}
	return nil
}

// Field selects an instance field by Go name.
func (d *Declaration[T]) Field(sourceKey string) *FieldDeclaration[T] {
	return &FieldDeclaration[T]{decl: d, key: sourceKey}
}

// Exclude keeps a field out of documents; decode assigns def (zero when nil).
// Slice, map and pointer defaults are copied into each decoded instance.
func (d *Declaration[T]) Exclude(sourceKey string, def any) *Declaration[T] {
	if d.err == nil {
		d.record(d.reg.MarkExcluded(d.typ, sourceKey, def))
	}
	return d
}

// Static adds a type-level value written into every document of T. read is
// called on each encode.
func (d *Declaration[T]) Static(sourceKey string, read func() any) *StaticDeclaration[T] {
	if d.err == nil {
		d.record(d.reg.SetStaticField(d.typ, sourceKey, AttrDocumentKey, sourceKey, read))
	}
	return &StaticDeclaration[T]{decl: d, key: sourceKey}
}

// Extends makes parent the ancestor of T. Declare the parent link before a
// Version without migrator so the ancestor's migrator can be inherited.
func (d *Declaration[T]) Extends(parent reflect.Type) *Declaration[T] {
	if d.err == nil {
		d.record(d.reg.Extend(d.typ, parent))
	}
	return d
}

// Version declares the schema version of T. A nil migrator inherits the
// nearest ancestor's migrator.
func (d *Declaration[T]) Version(v int, migrator Migrator) *Declaration[T] {
	if d.err != nil {
		return d
	}
	if migrator == nil {
		if parent, ok := d.reg.Parent(d.typ); ok {
			if rec, ok := d.reg.Version(parent); ok {
				migrator = rec.Migrator
			}
		}
	}
	d.record(d.reg.SetVersion(d.typ, v, migrator))
	return d
}

// Factory sets how blank instances of T are allocated on decode.
func (d *Declaration[T]) Factory(fn func() T) *Declaration[T] {
	if d.err != nil {
		return d
	}
	t := d.typ
	d.record(d.reg.SetFactory(t, func() reflect.Value {
		v := reflect.New(t).Elem()
		v.Set(reflect.ValueOf(fn()))
		return v
	}))
	return d
}

// Err returns the first error recorded by the declaration.
func (d *Declaration[T]) Err() error {
	return d.err
}

// FieldDeclaration configures one instance field.
type FieldDeclaration[T any] struct {
	decl *Declaration[T]
	key  string
}

func (f *FieldDeclaration[T]) set(attr Attribute, value any) *FieldDeclaration[T] {
	if f.decl.err == nil {
		f.decl.record(f.decl.reg.SetField(f.decl.typ, f.key, attr, value))
	}
	return f
}

// Rename stores the field under documentKey.
func (f *FieldDeclaration[T]) Rename(documentKey string) *FieldDeclaration[T] {
	return f.set(AttrDocumentKey, documentKey)
}

// Codec sets the field's value codec.
func (f *FieldDeclaration[T]) Codec(c Codec) *FieldDeclaration[T] {
	return f.set(AttrCodec, c)
}

// Validate rejects decoded values for which pred returns false.
func (f *FieldDeclaration[T]) Validate(pred func(value any) bool) *FieldDeclaration[T] {
	return f.set(AttrValidator, pred)
}

// ValidateErr rejects decoded values for which v returns an error.
func (f *FieldDeclaration[T]) ValidateErr(v Validator) *FieldDeclaration[T] {
	return f.set(AttrValidator, v)
}

// Expect validates decoded values with a CEL expression over `value`.
func (f *FieldDeclaration[T]) Expect(expr string) *FieldDeclaration[T] {
	if f.decl.err != nil {
		return f
	}
	v, err := Expect(expr)
	if err != nil {
		f.decl.record(&ConfigurationError{Err: err, Type: typeName(f.decl.typ), Field: f.key})
		return f
	}
	return f.set(AttrValidator, v)
}

// Field moves on to another field of the same declaration.
func (f *FieldDeclaration[T]) Field(sourceKey string) *FieldDeclaration[T] {
	return f.decl.Field(sourceKey)
}

// Done returns to the enclosing declaration.
func (f *FieldDeclaration[T]) Done() *Declaration[T] {
	return f.decl
}

// StaticDeclaration configures one static field.
type StaticDeclaration[T any] struct {
	decl *Declaration[T]
	key  string
}

func (s *StaticDeclaration[T]) set(attr Attribute, value any) *StaticDeclaration[T] {
	if s.decl.err == nil {
		s.decl.record(s.decl.reg.SetStaticField(s.decl.typ, s.key, attr, value, nil))
	}
	return s
}

// Rename stores the static value under documentKey.
func (s *StaticDeclaration[T]) Rename(documentKey string) *StaticDeclaration[T] {
	return s.set(AttrDocumentKey, documentKey)
}

// Codec sets the static value's codec.
func (s *StaticDeclaration[T]) Codec(c Codec) *StaticDeclaration[T] {
	return s.set(AttrCodec, c)
}

// Done returns to the enclosing declaration.
func (s *StaticDeclaration[T]) Done() *Declaration[T] {
	return s.decl
}
