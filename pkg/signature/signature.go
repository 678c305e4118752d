package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrSecretNotConfigured = errors.New("webhook secret not configured")
	ErrMissingSignature    = errors.New("missing signature header")
	ErrMalformedSignature  = errors.New("malformed signature header")
	ErrInvalidSignature    = errors.New("signature mismatch")
	ErrTimestampTolerance  = errors.New("signature timestamp outside tolerance")
)

// CustomPrefix is the scheme prefix of X-Windback-Signature values.
const CustomPrefix = "sha256="

// DefaultTolerance bounds the age of timestamped signatures (Paddle).
const DefaultTolerance = 5 * time.Minute

// ComputeHex returns the lowercase hex HMAC-SHA256 of payload under secret.
func ComputeHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign produces an X-Windback-Signature header value for an outbound body.
func Sign(secret string, body []byte) string {
	return CustomPrefix + ComputeHex(secret, body)
}

// equalHex compares a received hex digest against the expected one in constant time.
func equalHex(expected, received string) bool {
	want, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(received)))
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}

// VerifyCustom checks an X-Windback-Signature header ("sha256=<hex>").
func VerifyCustom(body []byte, header, secret string) error {
	if secret == "" {
		return ErrSecretNotConfigured
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrMissingSignature
	}
	if !strings.HasPrefix(header, CustomPrefix) {
		return ErrMalformedSignature
	}
	if !equalHex(ComputeHex(secret, body), strings.TrimPrefix(header, CustomPrefix)) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyRazorpay checks an X-Razorpay-Signature header (bare hex digest).
func VerifyRazorpay(body []byte, header, secret string) error {
	if secret == "" {
		return ErrSecretNotConfigured
	}
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}
	if !equalHex(ComputeHex(secret, body), header) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyPaddle checks a Paddle-Signature header of the form "ts=<unix>;h1=<hex>".
// The signed payload is "<ts>:<body>". A zero tolerance skips the age check.
func VerifyPaddle(body []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	if secret == "" {
		return ErrSecretNotConfigured
	}
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}

	var ts string
	var digests []string
	for _, part := range strings.Split(header, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return ErrMalformedSignature
		}
		switch key {
		case "ts":
			ts = value
		case "h1":
			digests = append(digests, value)
		}
	}
	if ts == "" || len(digests) == 0 {
		return ErrMalformedSignature
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrMalformedSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return ErrTimestampTolerance
		}
	}

	signed := make([]byte, 0, len(ts)+1+len(body))
	signed = append(signed, ts...)
	signed = append(signed, ':')
	signed = append(signed, body...)
	expected := ComputeHex(secret, signed)

	// Paddle may send several h1 values while a secret is being rotated.
	for _, d := range digests {
		if equalHex(expected, d) {
			return nil
		}
	}
	return ErrInvalidSignature
}
