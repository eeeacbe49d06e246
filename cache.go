package remold

import (
	"reflect"
	"sync"
)

// cacheKey combines type and format for serializer lookup.
type cacheKey struct {
	typ         reflect.Type
	contentType string
}

var (
	serializers   = make(map[cacheKey]any)
	serializersMu sync.RWMutex
)

// Use returns a cached serializer or builds a new one.
// Serializers are cached by type and format content type; opts only apply
// when the serializer is first built.
func Use[T any](format Format, opts ...Option) (*Serializer[T], error) {
	key := cacheKey{typ: reflect.TypeFor[T](), contentType: format.ContentType()}

	// Fast path: read-lock cache check
	serializersMu.RLock()
	if cached, ok := serializers[key]; ok {
		serializersMu.RUnlock()
		return cached.(*Serializer[T]), nil
	}
	serializersMu.RUnlock()

	// Slow path: build and cache with write-lock
	serializersMu.Lock()
	defer serializersMu.Unlock()

	// Double-check pattern
	if cached, ok := serializers[key]; ok {
		return cached.(*Serializer[T]), nil
	}

	s, err := NewSerializer[T](format, opts...)
	if err != nil {
		return nil, err
	}

	serializers[key] = s
	return s, nil
}

// Reset clears the serializer cache.
// This is primarily useful for test isolation.
func Reset() {
	serializersMu.Lock()
	defer serializersMu.Unlock()
	serializers = make(map[cacheKey]any)
}
