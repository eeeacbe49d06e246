package bson

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/remold"
)

func TestNew(t *testing.T) {
	f := New()
	if f == nil {
		t.Error("New() should return non-nil format")
	}
}

func TestContentType(t *testing.T) {
	f := New()
	if f.ContentType() != "application/bson" {
		t.Errorf("ContentType() = %q, want %q", f.ContentType(), "application/bson")
	}
}

func TestRoundTrip(t *testing.T) {
	f := New()

	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	doc := remold.NewDocument().
		Set("zeta", int64(7)).
		Set("alpha", "a").
		Set("small", uint64(9)).
		Set("wait", 2*time.Second).
		Set("at", at).
		Set("blob", []byte{1, 2, 3}).
		Set("none", nil).
		Set("items", []any{int64(1), "two"}).
		Set("nested", remold.NewDocument().Set("b", true).Set("a", 1.5))

	data, err := f.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var out any
	if err := f.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	restored, ok := out.(*remold.Document)
	if !ok {
		t.Fatalf("Unmarshal() produced %T, want *remold.Document", out)
	}

	keys := restored.Keys()
	want := doc.Keys()
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	checks := map[string]any{
		"zeta":  int64(7),
		"alpha": "a",
		"small": int64(9),
		"wait":  int64(2 * time.Second),
		"none":  nil,
	}
	for key, w := range checks {
		if g, _ := restored.Get(key); g != w {
			t.Errorf("%s = %#v, want %#v", key, g, w)
		}
	}

	gotAt, _ := restored.Get("at")
	if ts, ok := gotAt.(time.Time); !ok || !ts.Equal(at) {
		t.Errorf("at = %#v, want %v", gotAt, at)
	}

	blob, _ := restored.Get("blob")
	if b, ok := blob.([]byte); !ok || !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Errorf("blob = %#v", blob)
	}

	items, _ := restored.Get("items")
	list, ok := items.([]any)
	if !ok || len(list) != 2 || list[0] != int64(1) || list[1] != "two" {
		t.Errorf("items = %#v", items)
	}

	nested, _ := restored.Get("nested")
	inner, ok := nested.(*remold.Document)
	if !ok {
		t.Fatalf("nested = %T, want *remold.Document", nested)
	}
	if k := inner.Keys(); len(k) != 2 || k[0] != "b" || k[1] != "a" {
		t.Errorf("nested keys = %v, want [b a]", k)
	}
}

func TestMarshalRequiresDocument(t *testing.T) {
	f := New()

	for _, v := range []any{nil, "text", []any{int64(1)}} {
		if _, err := f.Marshal(v); !errors.Is(err, ErrNotDocument) {
			t.Errorf("Marshal(%#v) error = %v, want ErrNotDocument", v, err)
		}
	}
}

func TestMarshalOverflow(t *testing.T) {
	f := New()

	doc := remold.NewDocument().Set("big", uint64(1<<63))
	if _, err := f.Marshal(doc); err == nil {
		t.Error("Marshal() with uint64 overflow should return error")
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	f := New()

	var out any
	if err := f.Unmarshal([]byte{0x01, 0x02}, &out); err == nil {
		t.Error("Unmarshal(invalid) should return error")
	}
}

func TestUnmarshalTarget(t *testing.T) {
	f := New()

	data, err := f.Marshal(remold.NewDocument())
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var out map[string]any
	if err := f.Unmarshal(data, &out); err == nil {
		t.Error("Unmarshal() into non-*any should return error")
	}
}
