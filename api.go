// Package remold converts Go values to and from ordered documents, driven by
// declared field metadata: renames, exclusions with defaults, per-field
// codecs and validators, type-level static fields, inheritance and schema
// versions with migration.
//
// # Documents
//
// A document is a tree of *Document (an insertion-ordered mapping), []any and
// scalars: nil, bool, string, int64, uint64, float64, []byte, time.Time and
// time.Duration. Formats render documents as bytes.
//
// # Declaring Metadata
//
// Types without metadata encode every exported field under its Go name.
// A Registry holds the rules that change this, declared with struct tags or
// the Declare builder:
//
//	type User struct {
//	    ID      uuid.UUID `doc:"id,uuid"`
//	    Email   string    `doc:"email"`
//	    Created time.Time `doc:"created,date"`
//	    Session string    `doc:"-"`
//	}
//
//	reg := remold.NewRegistry()
//	err := remold.Declare[User](reg).
//	    Field("Email").Codec(remold.Sealed(enc)).Expect(`value.contains("@")`).
//	    Done().
//	    Static("kind", func() any { return "user" }).Done().
//	    Version(2, migrateUser).
//	    Err()
//
// # Tag Syntax
//
//	doc:"-"             exclude the field; decode assigns its zero value
//	doc:"name"          store the field under name
//	doc:"name,option"   also apply a codec shortcut: date, text, json, uuid
//
// # Encoding and Decoding
//
//	e := remold.NewEngine(remold.WithRegistry(reg))
//	doc, _ := e.Encode(ctx, user)
//	back, _ := remold.DecodeAs[User](ctx, e, doc)
//
// Decode collects every failing field into one *ValidationError. Encoding a
// value that reaches itself fails with ErrCircular.
//
// # Serializers
//
// A Serializer pairs an engine with a Format:
//
//	s, _ := remold.NewSerializer[User](json.New(), remold.WithRegistry(reg))
//	data, _ := s.Serialize(ctx, &user)
//	restored, _ := s.Deserialize(ctx, data)
//
// Formats are available as subpackages:
//
//   - json - JSON with preserved key order (application/json)
//   - yaml - YAML with preserved key order (application/yaml)
//   - msgpack - MessagePack (application/msgpack)
//   - bson - BSON, top-level documents only (application/bson)
//   - protobuf - google.protobuf.Value, binary or protojson
//
// # Field Protection
//
//   - Sealed(enc) - reversible encryption with AES, XChaCha20, RSA or Envelope
//   - Hashed(h) - one-way digests with Argon2, Bcrypt, SHA256Hasher or SHA512Hasher
//   - Masked(fn), Redacted(s) - one-way masking for outbound documents
//
// # Observability
//
// Engines and serializers emit capitan signals (SignalEncodeComplete,
// SignalDecodeMigrated, ...) carrying the type name, duration and error.
package remold

import (
	"reflect"
)

// Codec converts a single field value between its instance form and its
// document form.
//
// Encode receives the field value and returns the document value; ok false
// means "omitted" and the key is left out. Decode receives the document value
// and returns a value assignable to target. Codecs handle nil (absent) values
// without invoking any wrapped codec.
type Codec interface {
	Encode(enc *Encoder, v reflect.Value) (doc any, ok bool, err error)
	Decode(dec *Decoder, doc any, target reflect.Type) (reflect.Value, error)
}

// Format provides content-type aware marshaling of documents.
type Format interface {
	// ContentType returns the MIME type for this format (e.g., "application/json").
	ContentType() string

	// Marshal renders a document value (a *Document, []any or scalar) as bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal parses data and stores the document value into v, which must
	// be a *any.
	Unmarshal(data []byte, v any) error
}

// Hook interfaces let a type take over part of its own conversion. When a
// type implements one, the engine calls it instead of walking the type's
// fields with reflection.

// DocumentMarshaler produces the document form of a value. The result may
// be any document value: a *Document, []any, scalar or nil.
type DocumentMarshaler interface {
	MarshalDocument() (any, error)
}

// DocumentUnmarshaler restores a value from its document form. It is called
// on a pointer to a blank value.
type DocumentUnmarshaler interface {
	UnmarshalDocument(doc any) error
}

// Populated is implemented by types that need to restore invariants after
// decoding. Decoding bypasses constructors; DocumentPopulated runs once all
// fields are set, and an error fails the decode.
type Populated interface {
	DocumentPopulated() error
}
