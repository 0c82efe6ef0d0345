package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// HeaderTokenVerifier checks a shared secret sent in a custom header, the
// mechanism Acumatica push notification destinations support natively.
type HeaderTokenVerifier struct {
	Header string
	Prefix string
	Token  string
}

func (v HeaderTokenVerifier) Verify(_ context.Context, delivery Delivery) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return fmt.Errorf("webhooks: verification token is required")
	}
	header := strings.TrimSpace(v.Header)
	if header == "" {
		header = "Authorization"
	}
	actual := strings.TrimSpace(headerValue(delivery.Headers, header))
	if actual == "" {
		return fmt.Errorf("webhooks: %s verification header is required", header)
	}
	actual = strings.TrimSpace(strings.TrimPrefix(actual, v.Prefix))
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return fmt.Errorf("webhooks: verification token mismatch")
	}
	return nil
}

// HeaderHMACVerifier checks an HMAC-SHA256 of the body, for deployments that
// front the receiver with a signing proxy.
type HeaderHMACVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func (v HeaderHMACVerifier) Verify(_ context.Context, delivery Delivery) error {
	header := strings.TrimSpace(headerValue(delivery.Headers, v.Header))
	if header == "" {
		return fmt.Errorf("webhooks: %s signature header is required", strings.TrimSpace(v.Header))
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	signature := strings.TrimSpace(strings.TrimPrefix(header, strings.TrimSpace(v.Prefix)))
	if signature == "" {
		return fmt.Errorf("webhooks: signature value is required")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(delivery.Body)
	expected := mac.Sum(nil)

	var (
		decoded []byte
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err = base64.StdEncoding.DecodeString(signature)
	default:
		decoded, err = hex.DecodeString(signature)
	}
	if err != nil {
		return fmt.Errorf("webhooks: decode signature: %w", err)
	}
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	return nil
}

var (
	_ Verifier = HeaderTokenVerifier{}
	_ Verifier = HeaderHMACVerifier{}
)
