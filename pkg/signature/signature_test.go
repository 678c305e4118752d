package signature

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testSecret = "whsec_test_secret"

func TestVerifyCustom(t *testing.T) {
	body := []byte(`{"event_type":"subscription.canceled","customer_id":"cus_1"}`)
	valid := Sign(testSecret, body)

	tests := []struct {
		name    string
		body    []byte
		header  string
		secret  string
		wantErr error
	}{
		{"valid", body, valid, testSecret, nil},
		{"uppercase hex accepted", body, CustomPrefix + upper(ComputeHex(testSecret, body)), testSecret, nil},
		{"missing header", body, "", testSecret, ErrMissingSignature},
		{"missing prefix", body, ComputeHex(testSecret, body), testSecret, ErrMalformedSignature},
		{"wrong secret", body, valid, "other", ErrInvalidSignature},
		{"not hex", body, CustomPrefix + "zz", testSecret, ErrInvalidSignature},
		{"no secret", body, valid, "", ErrSecretNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyCustom(tt.body, tt.header, tt.secret)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyCustomRejectsSingleByteMutation(t *testing.T) {
	body := []byte(`{"event_type":"payment.failed","amount":4900}`)
	header := Sign(testSecret, body)

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		assert.ErrorIs(t, VerifyCustom(mutated, header, testSecret), ErrInvalidSignature, "byte %d", i)
	}
}

func TestVerifyRazorpay(t *testing.T) {
	body := []byte(`{"event":"subscription.cancelled"}`)
	digest := ComputeHex(testSecret, body)

	assert.NoError(t, VerifyRazorpay(body, digest, testSecret))
	assert.ErrorIs(t, VerifyRazorpay(body, "", testSecret), ErrMissingSignature)
	assert.ErrorIs(t, VerifyRazorpay([]byte(`{"event":"subscription.cancellee"}`), digest, testSecret), ErrInvalidSignature)
}

func TestVerifyPaddle(t *testing.T) {
	body := []byte(`{"event_type":"subscription.canceled"}`)
	now := time.Unix(1_700_000_000, 0)
	ts := fmt.Sprintf("%d", now.Unix())
	digest := ComputeHex(testSecret, []byte(ts+":"+string(body)))

	t.Run("valid", func(t *testing.T) {
		header := fmt.Sprintf("ts=%s;h1=%s", ts, digest)
		assert.NoError(t, VerifyPaddle(body, header, testSecret, now, DefaultTolerance))
	})

	t.Run("rotated secret second digest", func(t *testing.T) {
		header := fmt.Sprintf("ts=%s;h1=%s;h1=%s", ts, ComputeHex("old", body), digest)
		assert.NoError(t, VerifyPaddle(body, header, testSecret, now, DefaultTolerance))
	})

	t.Run("stale timestamp", func(t *testing.T) {
		header := fmt.Sprintf("ts=%s;h1=%s", ts, digest)
		err := VerifyPaddle(body, header, testSecret, now.Add(10*time.Minute), DefaultTolerance)
		assert.ErrorIs(t, err, ErrTimestampTolerance)
	})

	t.Run("tolerance disabled", func(t *testing.T) {
		header := fmt.Sprintf("ts=%s;h1=%s", ts, digest)
		assert.NoError(t, VerifyPaddle(body, header, testSecret, now.Add(24*time.Hour), 0))
	})

	t.Run("malformed", func(t *testing.T) {
		assert.ErrorIs(t, VerifyPaddle(body, "h1="+digest, testSecret, now, 0), ErrMalformedSignature)
		assert.ErrorIs(t, VerifyPaddle(body, "garbage", testSecret, now, 0), ErrMalformedSignature)
		assert.ErrorIs(t, VerifyPaddle(body, "ts=abc;h1="+digest, testSecret, now, 0), ErrMalformedSignature)
	})

	t.Run("body mutated", func(t *testing.T) {
		header := fmt.Sprintf("ts=%s;h1=%s", ts, digest)
		err := VerifyPaddle([]byte(`{"event_type":"subscription.canceleD"}`), header, testSecret, now, DefaultTolerance)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
