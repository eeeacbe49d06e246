package remold

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"reflect"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Hasher performs one-way hashing.
type Hasher interface {
	// Hash returns the digest of plaintext as a string.
	// Password hashers embed salt and parameters in the result.
	Hash(plaintext []byte) (string, error)
}

// Argon2Params configures Argon2id hashing.
type Argon2Params struct {
	Time    uint32 // Number of iterations
	Memory  uint32 // Memory usage in KiB
	Threads uint8  // Parallelism factor
	KeyLen  uint32 // Output key length
	SaltLen uint32 // Salt length
}

// DefaultArgon2Params returns the OWASP-recommended Argon2id parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
		KeyLen:  32,
		SaltLen: 16,
	}
}

type argon2Hasher struct {
	params Argon2Params
}

// Argon2 returns an Argon2id hasher with default parameters.
func Argon2() Hasher {
	return Argon2WithParams(DefaultArgon2Params())
}

// Argon2WithParams returns an Argon2id hasher with custom parameters.
func Argon2WithParams(params Argon2Params) Hasher {
	return &argon2Hasher{params: params}
}

// Hash returns the PHC string $argon2id$v=19$m=...,t=...,p=...$salt$hash.
func (h *argon2Hasher) Hash(plaintext []byte) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey(plaintext, salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// BcryptCost represents the bcrypt cost factor.
type BcryptCost int

// Bcrypt cost constants.
const (
	BcryptMinCost     BcryptCost = BcryptCost(bcrypt.MinCost)
	BcryptDefaultCost BcryptCost = BcryptCost(bcrypt.DefaultCost)
	BcryptMaxCost     BcryptCost = BcryptCost(bcrypt.MaxCost)
)

type bcryptHasher struct {
	cost int
}

// Bcrypt returns a bcrypt hasher with default cost.
func Bcrypt() Hasher {
	return BcryptWithCost(BcryptDefaultCost)
}

// BcryptWithCost returns a bcrypt hasher with a specific cost factor.
func BcryptWithCost(cost BcryptCost) Hasher {
	return &bcryptHasher{cost: int(cost)}
}

func (h *bcryptHasher) Hash(plaintext []byte) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(plaintext, h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}

// digestHasher hex-encodes a deterministic digest.
// Use for fingerprinting, not passwords.
type digestHasher struct {
	sum func([]byte) []byte
}

func (h digestHasher) Hash(plaintext []byte) (string, error) {
	return hex.EncodeToString(h.sum(plaintext)), nil
}

// SHA256Hasher returns a SHA-256 hasher producing 64 hex characters.
func SHA256Hasher() Hasher {
	return digestHasher{sum: func(b []byte) []byte {
		s := sha256.Sum256(b)
		return s[:]
	}}
}

// SHA512Hasher returns a SHA-512 hasher producing 128 hex characters.
func SHA512Hasher() Hasher {
	return digestHasher{sum: func(b []byte) []byte {
		s := sha512.Sum512(b)
		return s[:]
	}}
}

// hashedCodec is one-way: encode stores the digest, decode keeps it.
type hashedCodec struct {
	h Hasher
}

// Hashed returns a codec that writes the digest of a string or []byte field.
// Decoding restores the stored digest unchanged, so a decoded instance holds
// the hash rather than the plaintext.
func Hashed(h Hasher) Codec {
	return hashedCodec{h: h}
}

func (c hashedCodec) Encode(_ *Encoder, v reflect.Value) (any, bool, error) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return nil, true, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, true, nil
	}
	plaintext, err := textBytes(v)
	if err != nil {
		return nil, false, err
	}
	digest, err := c.h.Hash(plaintext)
	if err != nil {
		return nil, false, err
	}
	return digest, true, nil
}

func (c hashedCodec) Decode(_ *Decoder, doc any, target reflect.Type) (reflect.Value, error) {
	return decodeInto(doc, target, func(base reflect.Type) (reflect.Value, error) {
		s, ok := doc.(string)
		if !ok {
			return reflect.Value{}, mismatch(doc, base)
		}
		return textValue([]byte(s), base)
	})
}
