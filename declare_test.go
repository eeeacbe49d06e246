package remold

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

type tagged struct {
	ID      string    `doc:"id"`
	Created time.Time `doc:"created,date"`
	Session string    `doc:"-"`
	Owner   uuid.UUID `doc:",uuid"`
	Plain   int
}

type badTag struct {
	X string `doc:"x,bogus"`
}

type person struct {
	Name  string
	Email string
	Age   int
	Token string
}

type versionedBase struct {
	ID string
}

type versionedChild struct {
	ID   string
	Rank int
}

func TestDeclare_Tags(t *testing.T) {
	reg := NewRegistry()
	if err := Declare[tagged](reg).Err(); err != nil {
		t.Fatalf("Declare() error: %v", err)
	}

	md := reg.Resolve(reflect.TypeFor[tagged]())
	if md["ID"].DocumentKey != "id" {
		t.Errorf("ID document key = %q, want id", md["ID"].DocumentKey)
	}
	if md["Session"].Included {
		t.Error("Session should be excluded")
	}
	if _, ok := md["Plain"]; ok {
		t.Error("untagged field should have no rule")
	}

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	owner := uuid.MustParse("0b8c7e2a-5f1d-4c3b-9a8e-7d6c5b4a3f21")
	doc := encodeDoc(t, testEngine(reg), tagged{ID: "t1", Created: at, Session: "s", Owner: owner, Plain: 2})

	want := []string{"id", "created", "Owner", "Plain"}
	if got := doc.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if v, _ := doc.Get("created"); v != at.UnixMilli() {
		t.Errorf("created = %#v, want %d", v, at.UnixMilli())
	}
	if v, _ := doc.Get("Owner"); v != owner.String() {
		t.Errorf("Owner = %#v, want %s", v, owner)
	}
}

func TestDeclare_UnknownTagOption(t *testing.T) {
	err := Declare[badTag](NewRegistry()).Err()
	if !errors.Is(err, ErrInvalidTag) {
		t.Fatalf("Declare() error = %v, want ErrInvalidTag", err)
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error %q should name the option", err)
	}
}

func TestDeclare_NotStruct(t *testing.T) {
	if err := Declare[int](NewRegistry()).Err(); !errors.Is(err, ErrNotStruct) {
		t.Errorf("Declare[int]() error = %v, want ErrNotStruct", err)
	}
}

func TestDeclare_Builder(t *testing.T) {
	reg := NewRegistry()
	err := Declare[person](reg).
		Field("Email").Rename("email").Expect(`value.contains("@")`).
		Field("Age").Validate(func(v any) bool { return v.(int) >= 0 }).
		Done().
		Exclude("Token", "none").
		Static("kind", func() any { return "person" }).Rename("_kind").Done().
		Factory(func() person { return person{Name: "anonymous"} }).
		Err()
	if err != nil {
		t.Fatalf("Declare() error: %v", err)
	}

	e := testEngine(reg)
	doc := encodeDoc(t, e, person{Name: "ada", Email: "ada@example.com", Age: 36, Token: "secret"})

	want := []string{"_kind", "Name", "email", "Age"}
	if got := doc.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}

	got, err := decodeAs[person](t, e, NewDocument().Set("email", "b@example.com").Set("Age", int64(1)))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	wantPerson := person{Name: "anonymous", Email: "b@example.com", Age: 1, Token: "none"}
	if got != wantPerson {
		t.Errorf("Decode() = %+v, want %+v", got, wantPerson)
	}

	_, err = decodeAs[person](t, e, NewDocument().Set("email", "nope").Set("Age", int64(-3)))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Decode() error = %v, want *ValidationError", err)
	}
	if !reflect.DeepEqual(verr.Fields, []string{"Age", "Email"}) {
		t.Errorf("Fields = %v, want [Age Email]", verr.Fields)
	}
}

func TestDeclare_FirstErrorWins(t *testing.T) {
	reg := NewRegistry()
	err := Declare[person](reg).
		Field("Email").Expect("value >").
		Field("Name").Rename("name").
		Done().
		Err()

	if !errors.Is(err, ErrInvalidExpression) || !errors.Is(err, ErrConfiguration) {
		t.Fatalf("Declare() error = %v, want configuration error wrapping ErrInvalidExpression", err)
	}
	if _, ok := reg.Resolve(reflect.TypeFor[person]())["Name"]; ok {
		t.Error("calls after the first error should be no-ops")
	}
}

func TestDeclare_UnknownField(t *testing.T) {
	err := Declare[person](NewRegistry()).Field("Missing").Rename("m").Done().Err()
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("Declare() error = %v, want ErrUnknownField", err)
	}
}

func TestDeclare_VersionInheritsMigrator(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	migrate := func(doc *Document) (*Document, error) {
		calls++
		return doc, nil
	}

	if err := Declare[versionedBase](reg).Version(2, migrate).Err(); err != nil {
		t.Fatalf("Declare(base) error: %v", err)
	}
	err := Declare[versionedChild](reg).
		Extends(reflect.TypeFor[versionedBase]()).
		Version(3, nil).
		Err()
	if err != nil {
		t.Fatalf("Declare(child) error: %v", err)
	}

	rec, ok := reg.OwnVersion(reflect.TypeFor[versionedChild]())
	if !ok || rec.Version != 3 || rec.Migrator == nil {
		t.Fatalf("OwnVersion() = %+v, %v", rec, ok)
	}

	if _, err := decodeAs[versionedChild](t, testEngine(reg), NewDocument().Set("ID", "c").Set(VersionKey, int64(1))); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("migrator calls = %d, want 1", calls)
	}

	if err := Declare[versionedChild](reg).Version(4, nil).Err(); !errors.Is(err, ErrVersionSet) {
		t.Errorf("second Version() error = %v, want ErrVersionSet", err)
	}
}
