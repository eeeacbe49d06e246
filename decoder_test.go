package remold

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type profile struct {
	P1   int
	P2   int
	Q1   int
	Name string
	Kept string
}

type migrated struct {
	Q1 int
}

type hooked struct {
	First string
	Last  string
	Full  string
}

func (h *hooked) DocumentPopulated() error {
	if h.First == "" {
		return errors.New("first name required")
	}
	h.Full = h.First + " " + h.Last
	return nil
}

func decodeAs[T any](t *testing.T, e *Engine, doc any) (T, error) {
	t.Helper()
	return DecodeAs[T](context.Background(), e, doc)
}

func TestDecode_ExcludedFieldGetsDefault(t *testing.T) {
	reg := NewRegistry()
	if err := reg.MarkExcluded(reflect.TypeFor[profile](), "P1", 7); err != nil {
		t.Fatalf("MarkExcluded() error: %v", err)
	}
	if err := reg.MarkExcluded(reflect.TypeFor[profile](), "Name", nil); err != nil {
		t.Fatalf("MarkExcluded() error: %v", err)
	}

	doc := NewDocument().Set("P1", int64(99)).Set("Name", "ignored").Set("P2", int64(3))
	got, err := decodeAs[profile](t, testEngine(reg), doc)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	if got.P1 != 7 {
		t.Errorf("P1 = %d, want default 7", got.P1)
	}
	if got.Name != "" {
		t.Errorf("Name = %q, want zero value", got.Name)
	}
	if got.P2 != 3 {
		t.Errorf("P2 = %d, want 3", got.P2)
	}
}

func TestDecode_ValidationAggregates(t *testing.T) {
	reg := NewRegistry()
	typ := reflect.TypeFor[profile]()
	positive := func(v any) bool { return v.(int) > 0 }
	for _, key := range []string{"P1", "P2"} {
		if err := reg.SetField(typ, key, AttrDocumentKey, strings.ToLower(key)); err != nil {
			t.Fatalf("SetField() error: %v", err)
		}
		if err := reg.SetField(typ, key, AttrValidator, positive); err != nil {
			t.Fatalf("SetField() error: %v", err)
		}
	}

	_, err := decodeAs[profile](t, testEngine(reg), NewDocument().Set("p1", int64(0)).Set("p2", int64(-1)))

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Decode() error = %v, want *ValidationError", err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("ValidationError should match ErrValidation")
	}
	if !reflect.DeepEqual(ve.Fields, []string{"P1", "P2"}) {
		t.Errorf("Fields = %v, want [P1 P2]", ve.Fields)
	}
	if len(ve.Errors) != 2 {
		t.Errorf("Errors has %d entries, want 2", len(ve.Errors))
	}
	if !errors.Is(ve.Cause("P1"), ErrInvalidField) {
		t.Errorf("Cause(P1) = %v, want ErrInvalidField", ve.Cause("P1"))
	}

	got, err := decodeAs[profile](t, testEngine(reg), NewDocument().Set("p1", int64(1)).Set("p2", int64(2)))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.P1 != 1 || got.P2 != 2 {
		t.Errorf("got %+v", got)
	}
}

func TestDecode_CoercionFailuresAggregate(t *testing.T) {
	e := testEngine(NewRegistry())
	if err := e.Registry().Manage(reflect.TypeFor[profile]()); err != nil {
		t.Fatalf("Manage() error: %v", err)
	}

	_, err := decodeAs[profile](t, e, NewDocument().Set("P1", "one").Set("Name", int64(3)))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Decode() error = %v, want *ValidationError", err)
	}
	if !reflect.DeepEqual(ve.Fields, []string{"Name", "P1"}) {
		t.Errorf("Fields = %v, want [Name P1]", ve.Fields)
	}
	if !errors.Is(ve.Cause("P1"), ErrTypeMismatch) {
		t.Errorf("Cause(P1) = %v, want ErrTypeMismatch", ve.Cause("P1"))
	}
}

func TestDecode_Rename(t *testing.T) {
	reg := NewRegistry()
	typ := reflect.TypeFor[profile]()
	if err := reg.SetField(typ, "Q1", AttrDocumentKey, "q1"); err != nil {
		t.Fatalf("SetField() error: %v", err)
	}

	got, err := decodeAs[profile](t, testEngine(reg), NewDocument().Set("q1", int64(42)).Set("Q1", int64(5)))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Q1 != 42 {
		t.Errorf("Q1 = %d, want 42 from the renamed key", got.Q1)
	}
}

func TestDecode_PassThroughAndUnknownKeys(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Manage(reflect.TypeFor[profile]()); err != nil {
		t.Fatalf("Manage() error: %v", err)
	}

	doc := map[string]any{"Name": "ann", "Kept": "yes", "Unknown": 1}
	got, err := decodeAs[profile](t, testEngine(reg), doc)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Name != "ann" || got.Kept != "yes" {
		t.Errorf("got %+v", got)
	}
}

func TestDecode_MigrationRenamesKey(t *testing.T) {
	reg := NewRegistry()
	typ := reflect.TypeFor[migrated]()
	if err := reg.SetField(typ, "Q1", AttrDocumentKey, "q1"); err != nil {
		t.Fatalf("SetField() error: %v", err)
	}

	calls := 0
	migrate := func(doc *Document) (*Document, error) {
		calls++
		if v, ok := doc.Get("p1"); ok {
			doc.Set("q1", v)
			doc.Delete("p1")
		}
		return doc, nil
	}
	if err := reg.SetVersion(typ, 2, migrate); err != nil {
		t.Fatalf("SetVersion() error: %v", err)
	}

	stored := NewDocument().Set("version", int64(1)).Set("p1", int64(42))
	got, err := decodeAs[migrated](t, testEngine(reg), stored)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Q1 != 42 {
		t.Errorf("Q1 = %d, want 42", got.Q1)
	}
	if calls != 1 {
		t.Errorf("migrator called %d times, want 1", calls)
	}
	if !stored.Has("p1") {
		t.Error("migration should not mutate the caller's document")
	}

	current := NewDocument().Set("version", int64(2)).Set("q1", int64(5))
	got, err = decodeAs[migrated](t, testEngine(reg), current)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Q1 != 5 || calls != 1 {
		t.Errorf("current document: Q1 = %d, calls = %d; want 5, 1", got.Q1, calls)
	}

	got, err = decodeAs[migrated](t, testEngine(reg), NewDocument().Set("p1", int64(8)))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Q1 != 8 || calls != 2 {
		t.Errorf("unversioned document: Q1 = %d, calls = %d; want 8, 2", got.Q1, calls)
	}
}

func TestDecode_MigrateAlways(t *testing.T) {
	reg := NewRegistry()
	typ := reflect.TypeFor[migrated]()

	calls := 0
	if err := reg.SetVersion(typ, 2, func(doc *Document) (*Document, error) {
		calls++
		return doc, nil
	}); err != nil {
		t.Fatalf("SetVersion() error: %v", err)
	}

	doc := NewDocument().Set("version", int64(2)).Set("Q1", int64(1))
	if _, err := decodeAs[migrated](t, testEngine(reg, WithMigration(MigrateAlways)), doc); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("migrator called %d times, want 1", calls)
	}

	if _, err := decodeAs[migrated](t, testEngine(reg), doc); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("MigrateOlder should skip current documents, calls = %d", calls)
	}
}

func TestDecode_MigrationError(t *testing.T) {
	reg := NewRegistry()
	cause := errors.New("cannot upgrade")
	if err := reg.SetVersion(reflect.TypeFor[migrated](), 2, func(*Document) (*Document, error) {
		return nil, cause
	}); err != nil {
		t.Fatalf("SetVersion() error: %v", err)
	}

	_, err := decodeAs[migrated](t, testEngine(reg), NewDocument())
	if !errors.Is(err, ErrMigration) || !errors.Is(err, cause) {
		t.Errorf("Decode() error = %v, want ErrMigration wrapping the cause", err)
	}
}

func TestDecode_VersionKeyOnlyReservedWhenVersioned(t *testing.T) {
	reg := NewRegistry()
	if err := reg.SetField(reflect.TypeFor[withVersionField](), "Version", AttrDocumentKey, VersionKey); err != nil {
		t.Fatalf("SetField() error: %v", err)
	}

	got, err := decodeAs[withVersionField](t, testEngine(reg), NewDocument().Set(VersionKey, int64(3)))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Version != 3 {
		t.Errorf("Version = %d, want 3", got.Version)
	}
}

func TestDecode_StaticKeysAreSkipped(t *testing.T) {
	reg := NewRegistry()
	typ := reflect.TypeFor[profile]()
	if err := reg.SetStaticField(typ, "kind", AttrDocumentKey, "Name", func() any { return "profile" }); err != nil {
		t.Fatalf("SetStaticField() error: %v", err)
	}

	got, err := decodeAs[profile](t, testEngine(reg), NewDocument().Set("Name", "profile").Set("Kept", "k"))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Name != "" || got.Kept != "k" {
		t.Errorf("got %+v", got)
	}
}

func TestDecode_PopulatedHook(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Manage(reflect.TypeFor[hooked]()); err != nil {
		t.Fatalf("Manage() error: %v", err)
	}
	e := testEngine(reg)

	got, err := decodeAs[hooked](t, e, NewDocument().Set("First", "Ada").Set("Last", "Lovelace"))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Full != "Ada Lovelace" {
		t.Errorf("Full = %q", got.Full)
	}

	if _, err := decodeAs[hooked](t, e, NewDocument().Set("Last", "x")); err == nil {
		t.Error("Decode() should fail when DocumentPopulated fails")
	}
}

func TestDecode_UnmarshalHook(t *testing.T) {
	e := testEngine(NewRegistry())

	got, err := decodeAs[opaque](t, e, "opaque:abc")
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.value != "abc" {
		t.Errorf("value = %q, want %q", got.value, "abc")
	}

	if _, err := decodeAs[opaque](t, e, int64(1)); err == nil {
		t.Error("Decode() should surface UnmarshalDocument errors")
	}
}

func TestDecode_Factory(t *testing.T) {
	reg := NewRegistry()
	typ := reflect.TypeFor[profile]()
	if err := reg.SetFactory(typ, func() reflect.Value {
		v := reflect.New(typ).Elem()
		v.Set(reflect.ValueOf(profile{Kept: "from factory"}))
		return v
	}); err != nil {
		t.Fatalf("SetFactory() error: %v", err)
	}

	got, err := decodeAs[profile](t, testEngine(reg), NewDocument().Set("Name", "n"))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Kept != "from factory" || got.Name != "n" {
		t.Errorf("got %+v", got)
	}
}

func TestDecode_ManagedTypeMismatch(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Manage(reflect.TypeFor[profile]()); err != nil {
		t.Fatalf("Manage() error: %v", err)
	}

	if _, err := decodeAs[profile](t, testEngine(reg), "not a document"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Decode() error = %v, want ErrTypeMismatch", err)
	}
}

func TestDecode_InheritedRules(t *testing.T) {
	reg := NewRegistry()
	if err := reg.SetField(recordType, "Created", AttrDocumentKey, "created_at"); err != nil {
		t.Fatalf("SetField() error: %v", err)
	}
	if err := reg.Extend(derivedType, recordType); err != nil {
		t.Fatalf("Extend() error: %v", err)
	}

	e := testEngine(reg)
	in := derivedRecord{ID: 1, Created: 1700000000, Label: "x"}
	doc := encodeDoc(t, e, in)
	if !doc.Has("created_at") {
		t.Fatalf("inherited rename missing: %v", doc.Keys())
	}

	got, err := decodeAs[derivedRecord](t, e, doc)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got != in {
		t.Errorf("round trip = %+v, want %+v", got, in)
	}
}

func TestDecode_PointerTarget(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Manage(reflect.TypeFor[profile]()); err != nil {
		t.Fatalf("Manage() error: %v", err)
	}
	e := testEngine(reg)

	got, err := decodeAs[*profile](t, e, NewDocument().Set("Name", "p"))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got == nil || got.Name != "p" {
		t.Errorf("got %+v", got)
	}

	got, err = decodeAs[*profile](t, e, nil)
	if err != nil {
		t.Fatalf("Decode(nil) error: %v", err)
	}
	if got != nil {
		t.Errorf("Decode(nil) = %+v, want nil", got)
	}
}
