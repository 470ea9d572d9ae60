package streaming

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestSigner(t *testing.T, secret string, ttl int) *Signer {
	t.Helper()
	s, err := NewSigner(secret, ttl)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return s
}

func TestNewSigner_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		ttl    int
	}{
		{name: "empty secret", secret: "", ttl: 60},
		{name: "zero ttl", secret: "s3cret", ttl: 0},
		{name: "negative ttl", secret: "s3cret", ttl: -5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSigner(tc.secret, tc.ttl); err == nil {
				t.Fatal("expected an error, got nil")
			}
		})
	}
}

func TestSigner_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		trackID string
		ttl     int
	}{
		{name: "uuid track id", trackID: "3f1d9a72-6a4e-4c0b-9f31-58d2f9a0b847", ttl: 60},
		{name: "short id", trackID: "t1", ttl: 1},
		{name: "id with dots and slashes", trackID: "a.b/c", ttl: 3600},
		{name: "unicode id", trackID: "トラック", ttl: 300},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSigner(t, "test-secret", tc.ttl)
			// Freeze the clock so a 1s TTL cannot expire mid-test.
			now := time.Now()
			s.now = func() time.Time { return now }

			token, expiresAt := s.Mint(tc.trackID)

			if got := time.Until(expiresAt); got <= 0 {
				t.Fatalf("expiry not in the future: %v", expiresAt)
			}
			if strings.Count(token, ".") != 1 {
				t.Fatalf("token must have exactly two segments, got %q", token)
			}
			if strings.ContainsAny(token, "=+/") {
				t.Fatalf("token must be unpadded base64url, got %q", token)
			}

			trackID, err := s.Validate(token)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if trackID != tc.trackID {
				t.Fatalf("round trip: want track %q, got %q", tc.trackID, trackID)
			}
		})
	}
}

func TestSigner_PayloadShape(t *testing.T) {
	s := newTestSigner(t, "test-secret", 60)
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	token, expiresAt := s.Mint("track-1")

	raw, err := base64.RawURLEncoding.DecodeString(strings.SplitN(token, ".", 2)[0])
	if err != nil {
		t.Fatalf("payload segment is not base64url: %v", err)
	}

	want := `{"trackId":"track-1","exp":1700000060}`
	if string(raw) != want {
		t.Fatalf("payload mismatch:\nwant %s\ngot  %s", want, raw)
	}
	if got := expiresAt.Unix(); got != 1_700_000_060 {
		t.Fatalf("expiresAt: want 1700000060, got %d", got)
	}
}

// Every single-character mutation of either segment must be rejected as a
// signature failure, no matter which byte it lands on.
func TestSigner_MutatedTokenFailsSignature(t *testing.T) {
	s := newTestSigner(t, "test-secret", 60)
	token, _ := s.Mint("track-1")

	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		flipped := byte('A')
		if token[i] == 'A' {
			flipped = 'B'
		}
		mutated := token[:i] + string(flipped) + token[i+1:]

		if _, err := s.Validate(mutated); !errors.Is(err, ErrBadSignature) {
			t.Fatalf("position %d: want ErrBadSignature, got %v", i, err)
		}
	}
}

func TestSigner_MalformedTokens(t *testing.T) {
	s := newTestSigner(t, "test-secret", 60)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "no separator", token: "abcdef"},
		{name: "empty payload", token: ".sig"},
		{name: "empty signature", token: "payload."},
		{name: "three segments", token: "a.b.c"},
		{name: "only separator", token: "."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Validate(tc.token); !errors.Is(err, ErrMalformedToken) {
				t.Fatalf("want ErrMalformedToken, got %v", err)
			}
		})
	}
}

func TestSigner_SignedGarbagePayloadIsMalformed(t *testing.T) {
	s := newTestSigner(t, "test-secret", 60)

	// Correctly signed but not JSON: must be malformed, not a signature error.
	payloadB64 := base64.RawURLEncoding.EncodeToString([]byte("not json"))
	token := payloadB64 + "." + s.sign(payloadB64)

	if _, err := s.Validate(token); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("want ErrMalformedToken, got %v", err)
	}
}

func TestSigner_Expiry(t *testing.T) {
	s := newTestSigner(t, "test-secret", 60)

	base := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return base }
	token, _ := s.Mint("track-1")

	tests := []struct {
		name    string
		at      time.Time
		wantErr error
	}{
		{name: "immediately valid", at: base, wantErr: nil},
		{name: "one second before expiry", at: base.Add(59 * time.Second), wantErr: nil},
		{name: "exactly at exp is expired", at: base.Add(60 * time.Second), wantErr: ErrExpired},
		{name: "well past expiry", at: base.Add(time.Hour), wantErr: ErrExpired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s.now = func() time.Time { return tc.at }
			_, err := s.Validate(token)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("want success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestSigner_FabricatedExpiredPayload(t *testing.T) {
	s := newTestSigner(t, "test-secret", 60)

	payload, _ := json.Marshal(signedPayload{TrackID: "track-1", Exp: time.Now().Unix() - 10})
	payloadB64 := base64.RawURLEncoding.EncodeToString(payload)
	token := payloadB64 + "." + s.sign(payloadB64)

	if _, err := s.Validate(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("want ErrExpired, got %v", err)
	}
}

func TestSigner_WrongSecret(t *testing.T) {
	minter := newTestSigner(t, "secret-a", 60)
	verifier := newTestSigner(t, "secret-b", 60)

	token, _ := minter.Mint("track-1")

	if _, err := verifier.Validate(token); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("want ErrBadSignature, got %v", err)
	}
}
