package yaml

import (
	"strings"
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
	if f.ContentType() != "application/yaml" {
		t.Errorf("ContentType() = %q, want %q", f.ContentType(), "application/yaml")
	}
}

func TestMarshalKeepsKeyOrder(t *testing.T) {
	f := New()

	doc := remold.NewDocument().
		Set("zeta", int64(1)).
		Set("alpha", "a").
		Set("items", []any{int64(1), "two"})

	data, err := f.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	out := string(data)
	z := strings.Index(out, "zeta:")
	a := strings.Index(out, "alpha:")
	i := strings.Index(out, "items:")
	if z < 0 || a < 0 || i < 0 || z > a || a > i {
		t.Errorf("Marshal() key order wrong:\n%s", out)
	}
}

func TestRoundTrip(t *testing.T) {
	f := New()

	doc := remold.NewDocument().
		Set("name", "test").
		Set("count", int64(42)).
		Set("ratio", 0.25).
		Set("ok", true).
		Set("quoted", "true").
		Set("none", nil).
		Set("items", []any{int64(1), "two"}).
		Set("nested", remold.NewDocument().Set("b", int64(2)).Set("a", "x"))

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

	for _, key := range []string{"name", "count", "ratio", "ok", "quoted", "none"} {
		want, _ := doc.Get(key)
		got, ok := restored.Get(key)
		if !ok || got != want {
			t.Errorf("%s = %#v, want %#v", key, got, want)
		}
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

func TestTimestamp(t *testing.T) {
	f := New()

	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	data, err := f.Marshal(remold.NewDocument().Set("at", at))
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var out any
	if err := f.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	got, _ := out.(*remold.Document).Get("at")
	decoded, err := remold.Decode[time.Time](got)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if !decoded.Equal(at) {
		t.Errorf("at = %v, want %v", decoded, at)
	}
}

func TestAlias(t *testing.T) {
	f := New()

	var out any
	src := "base: &b\n  x: 1\ncopy: *b\n"
	if err := f.Unmarshal([]byte(src), &out); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	copied, _ := out.(*remold.Document).Get("copy")
	inner, ok := copied.(*remold.Document)
	if !ok {
		t.Fatalf("copy = %T, want *remold.Document", copied)
	}
	if v, _ := inner.Get("x"); v != int64(1) {
		t.Errorf("copy.x = %#v, want int64(1)", v)
	}
}

func TestMarshalNil(t *testing.T) {
	f := New()

	data, err := f.Marshal(nil)
	if err != nil {
		t.Fatalf("Marshal(nil) error: %v", err)
	}

	var out any = "sentinel"
	if err := f.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if out != nil {
		t.Errorf("Unmarshal() = %#v, want nil", out)
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	f := New()

	var out any
	if err := f.Unmarshal([]byte("key: [unclosed"), &out); err == nil {
		t.Error("Unmarshal(invalid) should return error")
	}
}

func TestUnmarshalTarget(t *testing.T) {
	f := New()

	var out map[string]any
	if err := f.Unmarshal([]byte("a: 1"), &out); err == nil {
		t.Error("Unmarshal() into non-*any should return error")
	}
}
