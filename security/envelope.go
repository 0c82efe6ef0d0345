package security

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// envelopePrefix marks values written by a SecretProvider so stores can tell
// sealed columns from legacy plaintext.
const (
	envelopePrefix    = "acumatica.secret.v1:"
	envelopeAlgorithm = "aes-256-gcm"
)

// SecretProvider seals values persisted at rest, such as cached access
// tokens.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type envelope struct {
	KeyID      string `json:"kid"`
	Version    int    `json:"ver"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type EnvelopeMetadata struct {
	KeyID     string
	Version   int
	Algorithm string
}

// IsSealed reports whether value carries the envelope prefix.
func IsSealed(value []byte) bool {
	return strings.HasPrefix(string(value), envelopePrefix)
}

func ParseEnvelopeMetadata(ciphertext []byte) (EnvelopeMetadata, error) {
	env, err := decodeEnvelope(ciphertext)
	if err != nil {
		return EnvelopeMetadata{}, err
	}
	return EnvelopeMetadata{KeyID: env.KeyID, Version: env.Version, Algorithm: env.Algorithm}, nil
}

func encodeEnvelope(env envelope) ([]byte, error) {
	env.KeyID = strings.TrimSpace(env.KeyID)
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("security: encode envelope: %w", err)
	}
	return append([]byte(envelopePrefix), data...), nil
}

func decodeEnvelope(ciphertext []byte) (envelope, error) {
	if len(ciphertext) == 0 {
		return envelope{}, fmt.Errorf("security: ciphertext is required")
	}
	if !IsSealed(ciphertext) {
		return envelope{}, fmt.Errorf("security: invalid ciphertext envelope prefix")
	}
	var parsed envelope
	if err := json.Unmarshal(ciphertext[len(envelopePrefix):], &parsed); err != nil {
		return envelope{}, fmt.Errorf("security: decode envelope: %w", err)
	}
	parsed.Algorithm = strings.ToLower(strings.TrimSpace(parsed.Algorithm))
	if parsed.Ciphertext == "" {
		return envelope{}, fmt.Errorf("security: envelope ciphertext is required")
	}
	return parsed, nil
}

func decodePayload(value string, field string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("security: decode %s: %w", field, err)
	}
	return decoded, nil
}
