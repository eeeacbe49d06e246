package testing

import (
	"context"
	"reflect"
	"testing"

	"github.com/zoobzio/remold"
)

func TestTestKey(t *testing.T) {
	key := TestKey(t)
	if len(key) != 32 {
		t.Errorf("TestKey() length = %d, want 32", len(key))
	}
}

func TestTestEncryptor(t *testing.T) {
	enc := TestEncryptor(t)

	plaintext := []byte("test")
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}

	if string(decrypted) != string(plaintext) {
		t.Errorf("round-trip failed")
	}
}

func TestFormats_DistinctContentTypes(t *testing.T) {
	seen := make(map[string]string)
	for name, f := range Formats() {
		if prev, ok := seen[f.ContentType()]; ok {
			t.Errorf("%s and %s share content type %s", prev, name, f.ContentType())
		}
		seen[f.ContentType()] = name
	}
}

func TestRegistry_DeclaresUser(t *testing.T) {
	reg := Registry(t)
	if !reg.IsManaged(reflect.TypeFor[User]()) || !reg.IsManaged(reflect.TypeFor[Address]()) {
		t.Fatal("Registry() should manage User and Address")
	}

	md := reg.Resolve(reflect.TypeFor[User]())
	if md["Session"].Included {
		t.Error("Session should be excluded")
	}
	if md["Email"].Validator == nil {
		t.Error("Email should carry a validator")
	}
}

func TestNewUser_Encodes(t *testing.T) {
	reg := Registry(t)
	e := remold.NewEngine(remold.WithRegistry(reg))

	doc, err := e.Encode(context.Background(), *NewUser())
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	d, ok := doc.(*remold.Document)
	if !ok {
		t.Fatalf("Encode() = %T, want *Document", doc)
	}
	want := []string{"id", "email", "password", "created", "roles", "address", "Balance", "version"}
	if got := d.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}
