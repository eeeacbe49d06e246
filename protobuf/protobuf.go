// Package protobuf provides a format that carries remold documents as
// google.protobuf.Value messages.
//
// Protobuf structs are unordered, so decoded mappings list their keys in
// sorted order. Numbers travel as doubles: integral values within 2^53
// decode as int64, times are carried as RFC 3339 strings and byte slices as
// base64 strings.
package protobuf

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zoobzio/remold"
)

// maxExact is the largest integer a double holds without loss.
const maxExact = 1 << 53

// ErrPrecision is returned for integers a double cannot hold exactly.
var ErrPrecision = errors.New("protobuf: integer exceeds double precision")

type protoFormat struct {
	contentType string
	marshal     func(proto.Message) ([]byte, error)
	unmarshal   func([]byte, proto.Message) error
}

// New returns a format using the protobuf binary wire encoding.
func New() remold.Format {
	return &protoFormat{
		contentType: "application/x-protobuf",
		marshal:     proto.Marshal,
		unmarshal:   proto.Unmarshal,
	}
}

// JSON returns a format using the canonical protobuf JSON mapping.
func JSON() remold.Format {
	return &protoFormat{
		contentType: "application/x-protobuf+json",
		marshal:     protojson.Marshal,
		unmarshal:   protojson.Unmarshal,
	}
}

// ContentType returns the MIME type of the encoding.
func (f *protoFormat) ContentType() string {
	return f.contentType
}

// Marshal encodes a document value as a google.protobuf.Value.
func (f *protoFormat) Marshal(v any) ([]byte, error) {
	val, err := toValue(v)
	if err != nil {
		return nil, err
	}
	return f.marshal(val)
}

// Unmarshal decodes a google.protobuf.Value into v, which must be a *any.
func (f *protoFormat) Unmarshal(data []byte, v any) error {
	out, ok := v.(*any)
	if !ok {
		return fmt.Errorf("protobuf: unmarshal target must be *any, got %T", v)
	}
	val := &structpb.Value{}
	if err := f.unmarshal(data, val); err != nil {
		return err
	}
	*out = fromValue(val)
	return nil
}

func toValue(v any) (*structpb.Value, error) {
	switch val := v.(type) {
	case nil:
		return structpb.NewNullValue(), nil
	case *remold.Document:
		if val == nil {
			return structpb.NewNullValue(), nil
		}
		fields := make(map[string]*structpb.Value, val.Len())
		var err error
		val.Range(func(key string, item any) bool {
			var conv *structpb.Value
			if conv, err = toValue(item); err != nil {
				err = fmt.Errorf("%s: %w", key, err)
				return false
			}
			fields[key] = conv
			return true
		})
		if err != nil {
			return nil, err
		}
		return structpb.NewStructValue(&structpb.Struct{Fields: fields}), nil
	case []any:
		if val == nil {
			return structpb.NewNullValue(), nil
		}
		items := make([]*structpb.Value, 0, len(val))
		for i, item := range val {
			conv, err := toValue(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, conv)
		}
		return structpb.NewListValue(&structpb.ListValue{Values: items}), nil
	case bool:
		return structpb.NewBoolValue(val), nil
	case string:
		return structpb.NewStringValue(val), nil
	case int64:
		if val > maxExact || val < -maxExact {
			return nil, fmt.Errorf("%w: %d", ErrPrecision, val)
		}
		return structpb.NewNumberValue(float64(val)), nil
	case uint64:
		if val > maxExact {
			return nil, fmt.Errorf("%w: %d", ErrPrecision, val)
		}
		return structpb.NewNumberValue(float64(val)), nil
	case float64:
		return structpb.NewNumberValue(val), nil
	case time.Duration:
		return toValue(int64(val))
	case time.Time:
		return structpb.NewStringValue(val.Format(time.RFC3339Nano)), nil
	case []byte:
		return structpb.NewStringValue(base64.StdEncoding.EncodeToString(val)), nil
	}
	return nil, fmt.Errorf("protobuf: unsupported document value %T", v)
}

func fromValue(v *structpb.Value) any {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StructValue:
		fields := kind.StructValue.GetFields()
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		doc := remold.NewDocument()
		for _, k := range keys {
			doc.Set(k, fromValue(fields[k]))
		}
		return doc
	case *structpb.Value_ListValue:
		values := kind.ListValue.GetValues()
		items := make([]any, 0, len(values))
		for _, item := range values {
			items = append(items, fromValue(item))
		}
		return items
	case *structpb.Value_BoolValue:
		return kind.BoolValue
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n == math.Trunc(n) && math.Abs(n) <= maxExact {
			return int64(n)
		}
		return n
	}
	return nil
}
