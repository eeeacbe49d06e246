package remold

import (
	"context"
	"reflect"
	"time"
)

// Serializer renders values of T to text in one format and parses them back,
// going through the engine's documents in both directions.
//
// Serializers are safe for concurrent use.
type Serializer[T any] struct {
	format   Format
	engine   *Engine
	typ      reflect.Type
	typeName string
}

// NewSerializer creates a Serializer for T. Without options it uses the
// default engine; WithEngine selects an engine, and any other option builds
// a dedicated one.
//
// When T is a struct its metadata is resolved up front, so conflicting
// document keys surface here rather than on first use.
func NewSerializer[T any](format Format, opts ...Option) (*Serializer[T], error) {
	engine := defaultEngine
	if len(opts) > 0 {
		engine = NewEngine(opts...)
	}

	typ := reflect.TypeFor[T]()
	if base := baseType(typ); base.Kind() == reflect.Struct {
		if _, err := engine.registry.plan(base); err != nil {
			return nil, err
		}
	}

	s := &Serializer[T]{
		format:   format,
		engine:   engine,
		typ:      typ,
		typeName: typ.String(),
	}

	emitSerializerCreated(context.Background(), format.ContentType(), s.typeName)
	return s, nil
}

// Engine returns the serializer's engine.
func (s *Serializer[T]) Engine() *Engine {
	return s.engine
}

// ContentType returns the content type of the serializer's format.
func (s *Serializer[T]) ContentType() string {
	return s.format.ContentType()
}

// Serialize encodes obj and marshals the document.
func (s *Serializer[T]) Serialize(ctx context.Context, obj *T) ([]byte, error) {
	start := time.Now()
	contentType := s.format.ContentType()
	emitSerializeStart(ctx, contentType, s.typeName)

	data, err := s.serialize(ctx, obj)

	emitSerializeComplete(ctx, contentType, s.typeName, len(data), time.Since(start), err)
	return data, err
}

func (s *Serializer[T]) serialize(ctx context.Context, obj *T) ([]byte, error) {
	var doc any
	if obj != nil {
		var err error
		doc, err = s.engine.Encode(ctx, *obj)
		if err != nil {
			return nil, err
		}
	}
	data, err := s.format.Marshal(doc)
	if err != nil {
		return nil, newFormatError(ErrMarshal, s.format.ContentType(), err)
	}
	return data, nil
}

// Deserialize unmarshals data and decodes the document into a new T.
func (s *Serializer[T]) Deserialize(ctx context.Context, data []byte) (*T, error) {
	start := time.Now()
	contentType := s.format.ContentType()
	emitDeserializeStart(ctx, contentType, s.typeName)

	obj, err := s.deserialize(ctx, data)

	emitDeserializeComplete(ctx, contentType, s.typeName, len(data), time.Since(start), err)
	return obj, err
}

func (s *Serializer[T]) deserialize(ctx context.Context, data []byte) (*T, error) {
	var doc any
	if err := s.format.Unmarshal(data, &doc); err != nil {
		return nil, newFormatError(ErrUnmarshal, s.format.ContentType(), err)
	}
	v, err := s.engine.Decode(ctx, s.typ, doc)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(T)
	if !ok {
		return nil, mismatch(v, s.typ)
	}
	return &obj, nil
}

// Serialize encodes v with the default engine and marshals it with format.
func Serialize(ctx context.Context, format Format, v any) ([]byte, error) {
	doc, err := defaultEngine.Encode(ctx, v)
	if err != nil {
		return nil, err
	}
	data, err := format.Marshal(doc)
	if err != nil {
		return nil, newFormatError(ErrMarshal, format.ContentType(), err)
	}
	return data, nil
}

// Deserialize parses data with format and decodes a T with the default
// engine.
func Deserialize[T any](ctx context.Context, format Format, data []byte) (T, error) {
	var zero T
	var doc any
	if err := format.Unmarshal(data, &doc); err != nil {
		return zero, newFormatError(ErrUnmarshal, format.ContentType(), err)
	}
	return DecodeAs[T](ctx, defaultEngine, doc)
}
