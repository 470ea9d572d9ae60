package streaming

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Signer mints and validates HMAC-signed, time-boxed stream access tokens.
// A token grants access to exactly one track until its expiry; it is
// independent of the session JWT, so a signed URL works in contexts that
// cannot attach Authorization headers (the <audio> element, for one).
//
// Token format: base64url(payload JSON) "." base64url(HMAC-SHA256 of the
// encoded payload), both unpadded. There is no server-side token state;
// rotating the secret is the only revocation.
type Signer struct {
	secret []byte
	ttl    int64 // seconds

	// now is replaceable in tests.
	now func() time.Time
}

// signedPayload is the token payload. Field order is fixed by the struct,
// so serialization is deterministic.
type signedPayload struct {
	TrackID string `json:"trackId"`
	Exp     int64  `json:"exp"`
}

// NewSigner creates a Signer. The secret must be non-empty and the TTL
// positive; both come from startup configuration.
func NewSigner(secret string, ttlSeconds int) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret must not be empty")
	}
	if ttlSeconds <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %d", ttlSeconds)
	}
	return &Signer{
		secret: []byte(secret),
		ttl:    int64(ttlSeconds),
		now:    time.Now,
	}, nil
}

// Mint issues a token for trackID expiring ttl seconds from now. The caller
// is responsible for having verified the track exists and is active.
func (s *Signer) Mint(trackID string) (token string, expiresAt time.Time) {
	exp := s.now().Unix() + s.ttl

	payload, err := json.Marshal(signedPayload{TrackID: trackID, Exp: exp})
	if err != nil {
		// Marshalling a two-field struct cannot fail.
		panic(err)
	}

	payloadB64 := base64.RawURLEncoding.EncodeToString(payload)
	return payloadB64 + "." + s.sign(payloadB64), time.Unix(exp, 0).UTC()
}

// Validate checks a presented token and returns the track id it grants.
// Errors: ErrMalformedToken, ErrBadSignature, ErrExpired. Callers must
// still compare the returned id against the requested track and re-check
// track state at serve time; both may have changed since minting.
func (s *Signer) Validate(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ErrMalformedToken
	}

	// The HMAC covers the encoded payload segment, not the decoded JSON,
	// and is checked before the payload is decoded: any mutation of either
	// segment is a signature failure, and unauthenticated bytes are never
	// parsed.
	if !fixedTimeEqual([]byte(parts[1]), []byte(s.sign(parts[0]))) {
		return "", ErrBadSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrMalformedToken
	}

	var payload signedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", ErrMalformedToken
	}

	// exp itself is already expired: a token is valid for [mint, exp).
	if payload.Exp <= s.now().Unix() {
		return "", ErrExpired
	}

	return payload.TrackID, nil
}

func (s *Signer) sign(payloadB64 string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payloadB64))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// fixedTimeEqual compares got against want without leaking timing
// proportional to the matching prefix. On a length mismatch it still burns
// a full comparison against want before rejecting, so signature length
// cannot be probed faster than content.
func fixedTimeEqual(got, want []byte) bool {
	if len(got) != len(want) {
		subtle.ConstantTimeCompare(want, want)
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}
