// Package json provides a JSON format for remold documents.
package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/zoobzio/remold"
)

// jsonFormat implements remold.Format for JSON.
type jsonFormat struct{}

// New returns a JSON format. Mappings keep their key order on output;
// integers decode as int64 and other numbers as float64.
func New() remold.Format {
	return &jsonFormat{}
}

// ContentType returns the MIME type for JSON.
func (f *jsonFormat) ContentType() string {
	return "application/json"
}

// Marshal encodes a document value as JSON.
func (f *jsonFormat) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := write(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func write(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case *remold.Document:
		if val == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('{')
		var err error
		i := 0
		val.Range(func(key string, item any) bool {
			if i > 0 {
				buf.WriteByte(',')
			}
			i++
			if err = writeScalar(buf, key); err != nil {
				return false
			}
			buf.WriteByte(':')
			err = write(buf, item)
			return err == nil
		})
		if err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil
	case []any:
		if val == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := write(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		return writeScalar(buf, val)
	}
}

func writeScalar(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// Unmarshal decodes JSON data into v, which must be a *any.
func (f *jsonFormat) Unmarshal(data []byte, v any) error {
	out, ok := v.(*any)
	if !ok {
		return fmt.Errorf("json: unmarshal target must be *any, got %T", v)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	val, err := read(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("json: unexpected data after top-level value")
	}
	*out = val
	return nil
}

func read(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			doc := remold.NewDocument()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("json: unexpected object key %v", keyTok)
				}
				item, err := read(dec)
				if err != nil {
					return nil, err
				}
				doc.Set(key, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return doc, nil
		case '[':
			items := []any{}
			for dec.More() {
				item, err := read(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return items, nil
		}
		return nil, fmt.Errorf("json: unexpected delimiter %v", t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		return t.Float64()
	default:
		return t, nil
	}
}
