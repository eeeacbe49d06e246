// Package msgpack provides a MessagePack format for remold documents.
package msgpack

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
	"github.com/zoobzio/remold"
)

// msgpackFormat implements remold.Format for MessagePack.
type msgpackFormat struct{}

// New returns a MessagePack format. Mappings are written as msgpack maps
// in document key order.
func New() remold.Format {
	return &msgpackFormat{}
}

// ContentType returns the MIME type for MessagePack.
func (f *msgpackFormat) ContentType() string {
	return "application/msgpack"
}

// Marshal encodes a document value as MessagePack.
func (f *msgpackFormat) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := write(enc, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func write(enc *msgpack.Encoder, v any) error {
	switch val := v.(type) {
	case *remold.Document:
		if val == nil {
			return enc.EncodeNil()
		}
		if err := enc.EncodeMapLen(val.Len()); err != nil {
			return err
		}
		var err error
		val.Range(func(key string, item any) bool {
			if err = enc.EncodeString(key); err != nil {
				return false
			}
			err = write(enc, item)
			return err == nil
		})
		return err
	case []any:
		if val == nil {
			return enc.EncodeNil()
		}
		if err := enc.EncodeArrayLen(len(val)); err != nil {
			return err
		}
		for _, item := range val {
			if err := write(enc, item); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.Encode(val)
	}
}

// Unmarshal decodes MessagePack data into v, which must be a *any.
func (f *msgpackFormat) Unmarshal(data []byte, v any) error {
	out, ok := v.(*any)
	if !ok {
		return fmt.Errorf("msgpack: unmarshal target must be *any, got %T", v)
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	val, err := read(dec)
	if err != nil {
		return err
	}
	if _, err := dec.PeekCode(); !errors.Is(err, io.EOF) {
		return errors.New("msgpack: unexpected data after top-level value")
	}
	*out = val
	return nil
}

func read(dec *msgpack.Decoder) (any, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}

	switch {
	case msgpcode.IsFixedMap(code) || code == msgpcode.Map16 || code == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		doc := remold.NewDocument()
		for i := 0; i < n; i++ {
			key, err := dec.DecodeString()
			if err != nil {
				return nil, fmt.Errorf("msgpack: map key: %w", err)
			}
			item, err := read(dec)
			if err != nil {
				return nil, err
			}
			doc.Set(key, item)
		}
		return doc, nil
	case msgpcode.IsFixedArray(code) || code == msgpcode.Array16 || code == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		items := make([]any, 0, n)
		for i := 0; i < n; i++ {
			item, err := read(dec)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	}

	val, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, err
	}
	if t, ok := val.(time.Time); ok {
		return t.UTC(), nil
	}
	return val, nil
}
