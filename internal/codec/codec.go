package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"chore-tracker/internal/sentinel"
)

const (
	KeySize   = 32
	NonceSize = 12
	TagSize   = 16
)

// Envelope is the on-disk form of an encrypted snapshot.
type Envelope struct {
	IV         []byte
	Tag        []byte
	Ciphertext []byte
}

type envelopeJSON struct {
	IV   string `json:"iv"`
	Tag  string `json:"tag"`
	Data string `json:"data"`
}

// Codec seals and opens snapshots with AES-256-GCM under a fixed key.
type Codec struct {
	aead cipher.AEAD
	rand io.Reader
}

// ParseKey decodes a hex encoded 256-bit key.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != KeySize*2 {
		return nil, fmt.Errorf("encryption key must be %d hex characters, got %d", KeySize*2, len(raw))
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	return key, nil
}

func NewCodec(key []byte) (*Codec, error) {
	return newCodec(key, rand.Reader)
}

func newCodec(key []byte, random io.Reader) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Codec{aead: aead, rand: random}, nil
}

// Encrypt seals plaintext under a fresh random IV.
func (c *Codec) Encrypt(plaintext []byte) (Envelope, error) {
	iv := make([]byte, NonceSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return Envelope{}, fmt.Errorf("generate iv: %w", err)
	}
	sealed := c.aead.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - TagSize
	return Envelope{
		IV:         iv,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
	}, nil
}

// Decrypt verifies the tag and returns the plaintext. Any verification
// failure yields ErrIntegrity and no plaintext.
func (c *Codec) Decrypt(env Envelope) ([]byte, error) {
	if len(env.IV) != NonceSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", sentinel.ErrIntegrity, NonceSize, len(env.IV))
	}
	if len(env.Tag) != TagSize {
		return nil, fmt.Errorf("%w: tag must be %d bytes, got %d", sentinel.ErrIntegrity, TagSize, len(env.Tag))
	}
	sealed := make([]byte, 0, len(env.Ciphertext)+TagSize)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)
	plaintext, err := c.aead.Open(nil, env.IV, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrIntegrity, err)
	}
	return plaintext, nil
}

// MarshalJSON writes the {iv, tag, data} record with hex fields.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeJSON{
		IV:   hex.EncodeToString(e.IV),
		Tag:  hex.EncodeToString(e.Tag),
		Data: hex.EncodeToString(e.Ciphertext),
	})
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw envelopeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	iv, err := hex.DecodeString(raw.IV)
	if err != nil {
		return fmt.Errorf("decode iv: %w", err)
	}
	tag, err := hex.DecodeString(raw.Tag)
	if err != nil {
		return fmt.Errorf("decode tag: %w", err)
	}
	ct, err := hex.DecodeString(raw.Data)
	if err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	*e = Envelope{IV: iv, Tag: tag, Ciphertext: ct}
	return nil
}

// UnmarshalEnvelope parses a stored envelope record. Malformed records are
// reported as ErrIntegrity since they cannot be authenticated.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: parse envelope: %v", sentinel.ErrIntegrity, err)
	}
	return env, nil
}
