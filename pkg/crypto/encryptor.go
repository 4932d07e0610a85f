package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
)

var ErrEmptyCiphertext = errors.New("empty ciphertext")

// Encryptor seals short secrets (one-time codes travelling through the job
// queue) with an age X25519 identity.
type Encryptor struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewEncryptor parses an AGE-SECRET-KEY identity. An empty key generates a
// throwaway identity, which only works when producer and consumer share the
// process.
func NewEncryptor(key string) (*Encryptor, error) {
	var (
		identity *age.X25519Identity
		err      error
	)

	if key == "" {
		identity, err = age.GenerateX25519Identity()
		if err != nil {
			return nil, fmt.Errorf("generating identity: %w", err)
		}
	} else {
		identity, err = age.ParseX25519Identity(key)
		if err != nil {
			return nil, fmt.Errorf("parsing identity: %w", err)
		}
	}

	return &Encryptor{identity: identity, recipient: identity.Recipient()}, nil
}

// GenerateKey returns a fresh identity string suitable for ENCRYPTION_KEY.
func GenerateKey() (string, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating identity: %w", err)
	}
	return identity.String(), nil
}

func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := age.Encrypt(&buf, e.recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing encryptor: %w", err)
	}

	return buf.Bytes(), nil
}

func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, ErrEmptyCiphertext
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), e.identity)
	if err != nil {
		return nil, fmt.Errorf("creating decryptor: %w", err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading plaintext: %w", err)
	}
	return plaintext, nil
}

// Seal encrypts s and returns it base64 encoded, ready for a JSON payload.
func (e *Encryptor) Seal(s string) (string, error) {
	ciphertext, err := e.Encrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open reverses Seal.
func (e *Encryptor) Open(sealed string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decoding base64: %w", err)
	}

	plaintext, err := e.Decrypt(decoded)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// PublicKey returns the recipient string for the configured identity.
func (e *Encryptor) PublicKey() string {
	return e.recipient.String()
}
