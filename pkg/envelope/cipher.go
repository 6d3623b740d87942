package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"unicode/utf8"
)

// BlockSize is the AES block size used for padding and the leading zero block
const BlockSize = aes.BlockSize

// Key is a decoded shared secret. Its length selects AES-128, AES-192 or AES-256.
type Key struct {
	raw []byte
}

// ParseKey decodes a base64url shared secret (padding optional)
func ParseKey(secret string) (Key, error) {
	raw, err := DecodeBase64URL(secret)
	if err != nil {
		return Key{}, &KeyError{Reason: "secret is not valid base64url", Err: err}
	}
	return NewKey(raw)
}

// NewKey wraps raw key bytes, copying them
func NewKey(raw []byte) (Key, error) {
	switch len(raw) {
	case 16, 24, 32:
	default:
		return Key{}, &KeyError{Reason: fmt.Sprintf("unsupported key length %d bytes (want 16, 24 or 32)", len(raw))}
	}
	k := make([]byte, len(raw))
	copy(k, raw)
	return Key{raw: k}, nil
}

// Size returns the raw key length in bytes
func (k Key) Size() int {
	return len(k.raw)
}

// IsZero reports whether the key was never initialised
func (k Key) IsZero() bool {
	return len(k.raw) == 0
}

// String returns the key re-encoded as unpadded base64url
func (k Key) String() string {
	return EncodeBase64URL(k.raw)
}

// Cipher encrypts and decrypts envelopes under one key
type Cipher struct {
	key     Key
	entropy io.Reader
}

// Option configures a Cipher
type Option func(*Cipher)

// WithEntropy sets the source of the per-message IV. It must be safe for
// concurrent use if the Cipher is shared.
func WithEntropy(r io.Reader) Option {
	return func(c *Cipher) {
		if r != nil {
			c.entropy = r
		}
	}
}

// NewCipher creates a Cipher bound to key. The default entropy source is crypto/rand.
func NewCipher(key Key, opts ...Option) *Cipher {
	c := &Cipher{
		key:     key,
		entropy: rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encrypt seals plaintext and returns unpadded base64url ciphertext
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	ct, err := sealBytes([]byte(plaintext), c.key, c.entropy)
	if err != nil {
		return "", err
	}
	return EncodeBase64URL(ct), nil
}

// Decrypt opens base64url ciphertext produced by the partner API or by Encrypt
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	return Decrypt(ciphertext, c.key)
}

// Encrypt seals plaintext under key using crypto/rand for the IV
func Encrypt(plaintext string, key Key) (string, error) {
	return NewCipher(key).Encrypt(plaintext)
}

// Decrypt opens ciphertext under key
func Decrypt(ciphertext string, key Key) (string, error) {
	raw, err := DecodeBase64URL(ciphertext)
	if err != nil {
		return "", &DecryptionError{Reason: "ciphertext is not valid base64url", Err: err}
	}
	pt, err := openBytes(raw, key)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(pt) {
		return "", &DecryptionError{Reason: "plaintext is not valid UTF-8"}
	}
	return string(pt), nil
}

// sealBytes returns C0 ‖ C1 ‖ … ‖ Cn for plaintext. The random IV is consumed
// by the leading zero block and dropped.
func sealBytes(plaintext []byte, key Key, entropy io.Reader) ([]byte, error) {
	if key.IsZero() {
		return nil, &KeyError{Reason: "key is not set"}
	}
	block, err := aes.NewCipher(key.raw)
	if err != nil {
		return nil, &KeyError{Reason: "aes key rejected", Err: err}
	}

	iv := make([]byte, BlockSize)
	if _, err := io.ReadFull(entropy, iv); err != nil {
		return nil, fmt.Errorf("failed to draw iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, BlockSize)
	buf := make([]byte, BlockSize+len(padded))
	copy(buf[BlockSize:], padded)

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(buf, buf)
	return buf, nil
}

// openBytes CBC-decrypts everything after C0 using C0 as the IV and strips
// the padding leniently.
func openBytes(ct []byte, key Key) ([]byte, error) {
	if key.IsZero() {
		return nil, &KeyError{Reason: "key is not set"}
	}
	if len(ct) < 2*BlockSize {
		return nil, &DecryptionError{Reason: fmt.Sprintf("ciphertext too short: %d bytes", len(ct))}
	}
	if len(ct)%BlockSize != 0 {
		return nil, &DecryptionError{Reason: fmt.Sprintf("ciphertext length %d is not a multiple of %d", len(ct), BlockSize)}
	}
	block, err := aes.NewCipher(key.raw)
	if err != nil {
		return nil, &KeyError{Reason: "aes key rejected", Err: err}
	}

	iv := ct[:BlockSize]
	body := make([]byte, len(ct)-BlockSize)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(body, ct[BlockSize:])

	return pkcs7Trim(body)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// pkcs7Trim uses the last byte as a truncation length only. A pad byte of
// 0 truncates everything.
func pkcs7Trim(data []byte) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 {
		return data[:0], nil
	}
	if n > len(data) {
		return nil, &DecryptionError{Reason: fmt.Sprintf("pad length %d exceeds plaintext length %d", n, len(data))}
	}
	return data[:len(data)-n], nil
}
