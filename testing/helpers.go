// Package testing provides fixtures shared by remold's integration tests and
// benchmarks.
package testing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/remold"
	"github.com/zoobzio/remold/bson"
	"github.com/zoobzio/remold/json"
	"github.com/zoobzio/remold/msgpack"
	"github.com/zoobzio/remold/protobuf"
	"github.com/zoobzio/remold/yaml"
)

// TestKey returns a valid 32-byte key for testing.
func TestKey(tb testing.TB) []byte {
	tb.Helper()
	return []byte("32-byte-key-for-aes-256-encrypt!")
}

// TestEncryptor returns an XChaCha20 encryptor configured for testing.
func TestEncryptor(tb testing.TB) remold.Encryptor {
	tb.Helper()
	enc, err := remold.XChaCha20(TestKey(tb))
	if err != nil {
		tb.Fatalf("XChaCha20() error: %v", err)
	}
	return enc
}

// Formats returns every format remold ships, keyed by a short name.
func Formats() map[string]remold.Format {
	return map[string]remold.Format{
		"json":          json.New(),
		"yaml":          yaml.New(),
		"msgpack":       msgpack.New(),
		"bson":          bson.New(),
		"protobuf":      protobuf.New(),
		"protobuf+json": protobuf.JSON(),
	}
}

// Address is a nested managed type.
type Address struct {
	Street string `doc:"street"`
	City   string `doc:"city"`
}

// User exercises renames, codecs, exclusion, nesting and a sealed field.
type User struct {
	ID       uuid.UUID `doc:"id,uuid"`
	Email    string    `doc:"email"`
	Password string    `doc:"password"`
	Created  time.Time `doc:"created,date"`
	Session  string    `doc:"-"`
	Roles    []string  `doc:"roles"`
	Address  *Address  `doc:"address"`
	Balance  int64
}

// Registry returns a registry with User and Address declared. User.Email is
// sealed with TestEncryptor and must contain an @.
func Registry(tb testing.TB) *remold.Registry {
	tb.Helper()
	reg := remold.NewRegistry()
	if err := remold.Declare[Address](reg).Err(); err != nil {
		tb.Fatalf("Declare[Address]() error: %v", err)
	}
	err := remold.Declare[User](reg).
		Field("Email").Codec(remold.Sealed(TestEncryptor(tb))).Expect(`value.contains("@")`).
		Done().
		Version(1, nil).
		Err()
	if err != nil {
		tb.Fatalf("Declare[User]() error: %v", err)
	}
	return reg
}

// NewUser returns a populated User. Created has millisecond precision.
func NewUser() *User {
	return &User{
		ID:       uuid.MustParse("3f2c1b0a-9e8d-4c7b-a6f5-e4d3c2b1a090"),
		Email:    "alice@example.com",
		Password: "supersecret",
		Created:  time.Date(2024, 6, 1, 9, 30, 15, 250_000_000, time.UTC),
		Session:  "session-token",
		Roles:    []string{"admin", "ops"},
		Address:  &Address{Street: "1 Main St", City: "Springfield"},
		Balance:  1234,
	}
}
