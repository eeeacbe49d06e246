// Package bson provides a BSON format for remold documents.
//
// BSON can only hold a mapping at the top level, and stores times with
// millisecond precision.
package bson

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zoobzio/remold"
)

// ErrNotDocument is returned when marshaling anything but a mapping.
var ErrNotDocument = errors.New("bson: top-level value must be a document")

// bsonFormat implements remold.Format for BSON.
type bsonFormat struct{}

// New returns a BSON format.
func New() remold.Format {
	return &bsonFormat{}
}

// ContentType returns the MIME type for BSON.
func (f *bsonFormat) ContentType() string {
	return "application/bson"
}

// Marshal encodes a document as BSON.
func (f *bsonFormat) Marshal(v any) ([]byte, error) {
	doc, ok := v.(*remold.Document)
	if !ok || doc == nil {
		return nil, fmt.Errorf("%w, got %T", ErrNotDocument, v)
	}
	d, err := toD(doc)
	if err != nil {
		return nil, err
	}
	return bson.Marshal(d)
}

func toD(doc *remold.Document) (bson.D, error) {
	d := make(bson.D, 0, doc.Len())
	var err error
	doc.Range(func(key string, item any) bool {
		var val any
		if val, err = toBSON(item); err != nil {
			err = fmt.Errorf("bson: %s: %w", key, err)
			return false
		}
		d = append(d, bson.E{Key: key, Value: val})
		return true
	})
	return d, err
}

func toBSON(v any) (any, error) {
	switch val := v.(type) {
	case *remold.Document:
		if val == nil {
			return nil, nil
		}
		return toD(val)
	case []any:
		if val == nil {
			return nil, nil
		}
		a := make(bson.A, 0, len(val))
		for _, item := range val {
			conv, err := toBSON(item)
			if err != nil {
				return nil, err
			}
			a = append(a, conv)
		}
		return a, nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows int64", val)
		}
		return int64(val), nil
	case time.Duration:
		return int64(val), nil
	case time.Time:
		return primitive.NewDateTimeFromTime(val), nil
	}
	return v, nil
}

// Unmarshal decodes BSON data into v, which must be a *any. The result is
// always a *remold.Document.
func (f *bsonFormat) Unmarshal(data []byte, v any) error {
	out, ok := v.(*any)
	if !ok {
		return fmt.Errorf("bson: unmarshal target must be *any, got %T", v)
	}
	var d bson.D
	if err := bson.Unmarshal(data, &d); err != nil {
		return err
	}
	*out = fromD(d)
	return nil
}

func fromD(d bson.D) *remold.Document {
	doc := remold.NewDocument()
	for _, e := range d {
		doc.Set(e.Key, fromBSON(e.Value))
	}
	return doc
}

func fromBSON(v any) any {
	switch val := v.(type) {
	case bson.D:
		return fromD(val)
	case bson.M:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		doc := remold.NewDocument()
		for _, k := range keys {
			doc.Set(k, fromBSON(val[k]))
		}
		return doc
	case bson.A:
		items := make([]any, 0, len(val))
		for _, item := range val {
			items = append(items, fromBSON(item))
		}
		return items
	case int32:
		return int64(val)
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Binary:
		return val.Data
	case primitive.ObjectID:
		return val.Hex()
	case primitive.Decimal128:
		return val.String()
	case primitive.Null, primitive.Undefined:
		return nil
	}
	return v
}
