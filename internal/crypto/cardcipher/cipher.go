// Package cardcipher encodes card numbers at rest and masks them for display.
package cardcipher

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyLen is the required codec key length in bytes.
const KeyLen = chacha20poly1305.KeySize

// Codec encrypts and decrypts card numbers with XChaCha20-Poly1305.
// Encoded values are base64(nonce || ciphertext).
type Codec struct {
	key []byte
}

// New constructs a Codec from a 32-byte key.
func New(key []byte) (*Codec, error) {
	if len(key) != KeyLen {
		return nil, errors.New("cardcipher: key must be 32 bytes")
	}
	k := make([]byte, KeyLen)
	copy(k, key)
	return &Codec{key: k}, nil
}

// Encode encrypts a plaintext card number into an opaque string.
func (c *Codec) Encode(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, []byte(plaintext), nil)...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decode decrypts an opaque string back into the plaintext card number.
func (c *Codec) Decode(opaque string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(opaque)
	if err != nil {
		return "", err
	}
	if len(blob) < chacha20poly1305.NonceSizeX {
		return "", errors.New("cardcipher: blob too short")
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := blob[:chacha20poly1305.NonceSizeX]
	ct := blob[chacha20poly1305.NonceSizeX:]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// Mask renders a card number for display, keeping only the last four
// digits. Values of four characters or fewer mask fully.
func Mask(number string) string {
	if len(number) <= 4 {
		return "****"
	}
	return "**** **** **** " + number[len(number)-4:]
}

// MaskEncoded decodes an opaque card number and masks it in one step.
func (c *Codec) MaskEncoded(opaque string) (string, error) {
	pt, err := c.Decode(opaque)
	if err != nil {
		return "", err
	}
	return Mask(strings.TrimSpace(pt)), nil
}
