package remold

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"reflect"

	"golang.org/x/crypto/chacha20poly1305"
)

// Encryption errors.
var (
	ErrInvalidKeySize   = errors.New("invalid key size")
	ErrCiphertextShort  = errors.New("ciphertext too short")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrMissingKey       = errors.New("missing key")
)

// Encryptor handles encryption/decryption operations.
type Encryptor interface {
	// Encrypt encrypts plaintext and returns ciphertext.
	Encrypt(plaintext []byte) ([]byte, error)

	// Decrypt decrypts ciphertext and returns plaintext.
	Decrypt(ciphertext []byte) ([]byte, error)
}

// aeadEncryptor seals with a random nonce prepended to the ciphertext.
type aeadEncryptor struct {
	aead cipher.AEAD
}

// AES returns an AES-GCM encryptor.
// Key must be 16, 24, or 32 bytes for AES-128, AES-192, or AES-256.
func AES(key []byte) (Encryptor, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &aeadEncryptor{aead: gcm}, nil
}

// XChaCha20 returns an XChaCha20-Poly1305 encryptor. Key must be 32 bytes.
// The 24-byte nonce makes random nonces safe for any message count.
func XChaCha20(key []byte) (Encryptor, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidKeySize, chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &aeadEncryptor{aead: aead}, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("%w: must be 16, 24, or 32 bytes, got %d", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (e *aeadEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	return seal(e.aead, plaintext)
}

func (e *aeadEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	return open(e.aead, ciphertext)
}

// seal returns nonce || ciphertext.
func seal(aead cipher.AEAD, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open reverses seal.
func open(aead cipher.AEAD, data []byte) ([]byte, error) {
	n := aead.NonceSize()
	if len(data) < n {
		return nil, ErrCiphertextShort
	}
	plaintext, err := aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// rsaEncryptor implements RSA-OAEP encryption.
type rsaEncryptor struct {
	pub  *rsa.PublicKey
	priv *rsa.PrivateKey
}

// RSA returns an RSA-OAEP encryptor.
// pub is required for encryption; priv is required for decryption.
// Either can be nil if only one operation is needed.
func RSA(pub *rsa.PublicKey, priv *rsa.PrivateKey) Encryptor {
	return &rsaEncryptor{pub: pub, priv: priv}
}

func (e *rsaEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if e.pub == nil {
		return nil, fmt.Errorf("%w: public key required for encryption", ErrMissingKey)
	}
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, e.pub, plaintext, nil)
}

func (e *rsaEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if e.priv == nil {
		return nil, fmt.Errorf("%w: private key required for decryption", ErrMissingKey)
	}
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, e.priv, ciphertext, nil)
}

// envelopeEncryptor seals a fresh AES-256 data key per message under the
// master key.
type envelopeEncryptor struct {
	master cipher.AEAD
}

// Envelope returns an envelope encryptor using a master key.
// Master key must be 16, 24, or 32 bytes.
func Envelope(masterKey []byte) (Encryptor, error) {
	gcm, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}
	return &envelopeEncryptor{master: gcm}, nil
}

// Layout: [2 bytes sealed key length][sealed data key][sealed data].
func (e *envelopeEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	dataKey := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, dataKey); err != nil {
		return nil, err
	}
	dataGCM, err := newGCM(dataKey)
	if err != nil {
		return nil, err
	}
	sealedData, err := seal(dataGCM, plaintext)
	if err != nil {
		return nil, err
	}
	sealedKey, err := seal(e.master, dataKey)
	if err != nil {
		return nil, err
	}
	if len(sealedKey) > 0xFFFF {
		return nil, errors.New("sealed data key exceeds maximum length")
	}

	out := make([]byte, 2, 2+len(sealedKey)+len(sealedData))
	out[0] = byte(len(sealedKey) >> 8)
	out[1] = byte(len(sealedKey))
	out = append(out, sealedKey...)
	return append(out, sealedData...), nil
}

func (e *envelopeEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 2 {
		return nil, ErrCiphertextShort
	}
	keyLen := int(ciphertext[0])<<8 | int(ciphertext[1])
	if len(ciphertext) < 2+keyLen {
		return nil, ErrCiphertextShort
	}

	dataKey, err := open(e.master, ciphertext[2:2+keyLen])
	if err != nil {
		return nil, fmt.Errorf("data key: %w", err)
	}
	dataGCM, err := newGCM(dataKey)
	if err != nil {
		return nil, err
	}
	return open(dataGCM, ciphertext[2+keyLen:])
}

// sealedCodec encrypts string and []byte fields into base64 ciphertext.
type sealedCodec struct {
	enc Encryptor
}

// Sealed returns a codec that stores string or []byte fields encrypted with
// enc, as standard base64 text.
func Sealed(enc Encryptor) Codec {
	return sealedCodec{enc: enc}
}

func (c sealedCodec) Encode(_ *Encoder, v reflect.Value) (any, bool, error) {
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
	ciphertext, err := c.enc.Encrypt(plaintext)
	if err != nil {
		return nil, false, err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), true, nil
}

func (c sealedCodec) Decode(_ *Decoder, doc any, target reflect.Type) (reflect.Value, error) {
	return decodeInto(doc, target, func(base reflect.Type) (reflect.Value, error) {
		s, ok := doc.(string)
		if !ok {
			return reflect.Value{}, mismatch(doc, base)
		}
		ciphertext, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
		}
		plaintext, err := c.enc.Decrypt(ciphertext)
		if err != nil {
			return reflect.Value{}, err
		}
		return textValue(plaintext, base)
	})
}

// textBytes reads a string or []byte value.
func textBytes(v reflect.Value) ([]byte, error) {
	switch {
	case v.Kind() == reflect.String:
		return []byte(v.String()), nil
	case v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8:
		return v.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %s is not a string or []byte", ErrTypeMismatch, v.Type())
}

// textValue builds a string or []byte value of type t.
func textValue(b []byte, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	switch {
	case t.Kind() == reflect.String:
		out.SetString(string(b))
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		out.SetBytes(b)
	default:
		return reflect.Value{}, fmt.Errorf("%w: %s is not a string or []byte", ErrTypeMismatch, t)
	}
	return out, nil
}
