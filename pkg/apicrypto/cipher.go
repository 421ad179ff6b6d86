package apicrypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize          = 16
	derivationRounds = 1024
)

// DeriveKey derives the per-session parameter-encryption key from the device
// identifier and the platform secret.
func DeriveKey(imei, secret string) []byte {
	return pbkdf2.Key([]byte(imei), []byte(secret), derivationRounds, keySize, sha256.New)
}

// Cipher encrypts request parameters into the opaque form the platform API
// expects: JSON-encoded parameters, AES-128-CBC with a random IV prepended,
// base64 output.
type Cipher struct {
	block cipher.Block
}

// NewCipher creates a Cipher from a 16-byte key, typically produced by
// DeriveKey.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key size: expected %d bytes, got %d", keySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Cipher{block: block}, nil
}

// EncryptParams serializes and encrypts one request's parameters.
func (c *Cipher) EncryptParams(params map[string]string) (string, error) {
	plain, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal params: %w", err)
	}

	padded := pkcs7Pad(plain, aes.BlockSize)

	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptParams reverses EncryptParams. The platform uses the same envelope
// for encrypted response payloads.
func (c *Cipher) DecryptParams(encoded string) (map[string]string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if len(raw) < aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("invalid payload length: %d", len(raw))
	}

	iv := raw[:aes.BlockSize]
	body := raw[aes.BlockSize:]

	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, body)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, err
	}

	var params map[string]string
	if err := json.Unmarshal(plain, &params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return params, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length: %d", len(data))
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("invalid padding byte: %d", padding)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("corrupt padding")
		}
	}
	return data[:len(data)-padding], nil
}
