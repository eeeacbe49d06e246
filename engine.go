package remold

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

// Engine encodes values into documents and decodes documents into values
// using the rules of one Registry. Engines are safe for concurrent use.
type Engine struct {
	registry        *Registry
	migration       MigrationPolicy
	inheritVersions bool
}

// NewEngine returns an engine configured by opts.
func NewEngine(opts ...Option) *Engine {
	c := buildConfig(opts)
	if c.engine != nil {
		return c.engine
	}
	return &Engine{
		registry:        c.registry,
		migration:       c.migration,
		inheritVersions: c.inheritVersions,
	}
}

var defaultEngine = NewEngine()

// Default returns the engine backed by DefaultRegistry().
func Default() *Engine {
	return defaultEngine
}

// Registry returns the engine's metadata registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Encode converts v into its document form: a *Document, []any, scalar or
// nil. Values with no document form (funcs, channels) encode to nil.
func (e *Engine) Encode(ctx context.Context, v any) (any, error) {
	name := valueTypeName(v)
	start := time.Now()
	emitEncodeStart(ctx, name)

	doc, ok, err := newEncoder(e).Encode(v)
	if !ok {
		doc = nil
	}

	emitEncodeComplete(ctx, name, time.Since(start), fieldCount(doc), err)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode builds a value of type t from doc. Pointer types are allocated; the
// result holds a value of exactly type t.
func (e *Engine) Decode(ctx context.Context, t reflect.Type, doc any) (any, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil target type", ErrTypeMismatch)
	}
	name := typeName(t)
	start := time.Now()
	emitDecodeStart(ctx, name)

	v, err := newDecoder(ctx, e).Decode(doc, t)

	emitDecodeComplete(ctx, name, time.Since(start), fieldCount(doc), err)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// DecodeAs is Decode for a type parameter.
func DecodeAs[T any](ctx context.Context, e *Engine, doc any) (T, error) {
	var zero T
	v, err := e.Decode(ctx, reflect.TypeFor[T](), doc)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	return v.(T), nil
}

// Encode converts v with the default engine.
func Encode(v any) (any, error) {
	return defaultEngine.Encode(context.Background(), v)
}

// Decode builds a T from doc with the default engine.
func Decode[T any](doc any) (T, error) {
	return DecodeAs[T](context.Background(), defaultEngine, doc)
}

// versionOf returns the version record that applies to the planned type.
func (e *Engine) versionOf(p *plan) *VersionRecord {
	if e.inheritVersions {
		return p.nearest
	}
	return p.own
}

// shouldMigrate applies the migration policy to a stored document.
func (e *Engine) shouldMigrate(doc *Document, rec *VersionRecord) bool {
	if e.migration == MigrateAlways {
		return true
	}
	return documentVersion(doc) < rec.Version
}

func valueTypeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

// fieldCount reports the number of top-level keys of a document value.
func fieldCount(doc any) int {
	switch d := doc.(type) {
	case *Document:
		return d.Len()
	case map[string]any:
		return len(d)
	}
	return 0
}
