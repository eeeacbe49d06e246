package remold

import (
	"errors"
	"reflect"
	"testing"
)

func TestConfigurationError_Is(t *testing.T) {
	err := newConfigurationError(ErrDuplicateKey, reflect.TypeFor[person](), "Email", "")

	if !errors.Is(err, ErrDuplicateKey) {
		t.Error("ConfigurationError should unwrap to ErrDuplicateKey")
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Error("ConfigurationError should match ErrConfiguration")
	}
	if errors.Is(err, ErrRuntime) || errors.Is(err, ErrUnknownField) {
		t.Error("ConfigurationError should not match other sentinels")
	}
}

func TestConfigurationError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "full context",
			err:  newConfigurationError(ErrUnknownField, reflect.TypeFor[person](), "Missing", ""),
			want: "unknown field (field remold.person.Missing)",
		},
		{
			name: "type with detail",
			err:  newConfigurationError(ErrVersionSet, reflect.TypeFor[person](), "", "already at version 2"),
			want: "version already set: already at version 2 (type remold.person)",
		},
		{
			name: "field only",
			err:  &ConfigurationError{Err: ErrInvalidTag, Field: "Password"},
			want: "invalid tag (field Password)",
		},
		{
			name: "bare",
			err:  &ConfigurationError{Err: ErrNotStruct},
			want: "not a struct type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRuntimeError(t *testing.T) {
	err := newRuntimeError(ErrKeyCollision, reflect.TypeFor[clash](), "k", "static value")

	if !errors.Is(err, ErrKeyCollision) || !errors.Is(err, ErrRuntime) {
		t.Errorf("RuntimeError should match ErrKeyCollision and ErrRuntime, got %v", err)
	}
	if errors.Is(err, ErrConfiguration) {
		t.Error("RuntimeError should not match ErrConfiguration")
	}

	want := `document key collision: static value (key "k") in remold.clash`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationError(t *testing.T) {
	ageErr := errors.New("too young")
	nameErr := errors.New("empty")
	err := newValidationError(reflect.TypeFor[person](), map[string]error{
		"Name": nameErr,
		"Age":  ageErr,
	})

	if !errors.Is(err, ErrValidation) {
		t.Error("ValidationError should unwrap to ErrValidation")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("errors.As() failed for %T", err)
	}
	if !reflect.DeepEqual(verr.Fields, []string{"Age", "Name"}) {
		t.Errorf("Fields = %v, want [Age Name]", verr.Fields)
	}
	if len(verr.Errors) != 2 {
		t.Errorf("len(Errors) = %d, want 2", len(verr.Errors))
	}
	if verr.Cause("Age") != ageErr || verr.Cause("Other") != nil {
		t.Errorf("Cause() mismatch: %v / %v", verr.Cause("Age"), verr.Cause("Other"))
	}

	want := "failed validating fields of remold.person: Age: too young; Name: empty"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got := verr.Errors.Get("Name"); got != "empty" {
		t.Errorf("Errors.Get(Name) = %q, want empty", got)
	}
}

func TestFormatError(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := newFormatError(ErrUnmarshal, "application/json", cause)

	if !errors.Is(err, ErrUnmarshal) {
		t.Error("FormatError should unwrap to ErrUnmarshal")
	}
	if errors.Is(err, ErrMarshal) {
		t.Error("FormatError should not match ErrMarshal")
	}

	want := "unmarshal failed (application/json): unexpected end of JSON input"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := &FormatError{Err: ErrMarshal, ContentType: "application/yaml"}
	if got := bare.Error(); got != "marshal failed (application/yaml)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestMismatch(t *testing.T) {
	err := mismatch("x", reflect.TypeFor[int]())
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("mismatch() = %v, want ErrTypeMismatch", err)
	}
	if got := err.Error(); got != "type mismatch: cannot decode string into int" {
		t.Errorf("Error() = %q", got)
	}
}
