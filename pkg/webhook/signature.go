package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxAge is the freshness window applied to signature timestamps.
// Deliveries older than this are rejected as potential replays.
const DefaultMaxAge = 5 * time.Minute

// futureSkewTolerance allows for modest clock drift between sender and
// receiver without accepting far-future timestamps.
const futureSkewTolerance = time.Minute

// Signature is the parsed content of a webhook signature header.
type Signature struct {
	// Timestamp is the unix-second timestamp embedded in the header,
	// or zero when the header layout carries the timestamp separately.
	Timestamp int64

	// Digest is the hex-encoded HMAC-SHA256 of "{timestamp}.{rawBody}".
	Digest string
}

// Sign computes the hex-encoded HMAC-SHA256 digest of the canonical
// string "{timestamp}.{payload}". Both verification and test fixtures
// derive expected digests through this single code path.
func Sign(secret string, payload []byte, timestamp int64) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.", timestamp)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// ParseSignatureHeader parses a versioned, comma-separated signature
// header. Both "t=<ts>,v1=<hex>" and "v1,<hex>" layouts are accepted,
// with tokens in any order. The header is rejected when the v1 version
// tag is absent or the digest is missing.
func ParseSignatureHeader(header string) (Signature, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Signature{}, fmt.Errorf("%w: empty header", ErrMalformedHeader)
	}

	var sig Signature
	var versionSeen bool

	for _, token := range strings.Split(header, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		key, value, found := strings.Cut(token, "=")
		if !found {
			// Bare-token layout: "v1" marks the version, any other
			// token is the digest itself.
			if token == "v1" {
				versionSeen = true
			} else if sig.Digest == "" {
				sig.Digest = token
			}
			continue
		}

		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Signature{}, fmt.Errorf("%w: invalid timestamp token %q", ErrMalformedHeader, value)
			}
			sig.Timestamp = ts
		case "v1":
			versionSeen = true
			sig.Digest = value
		default:
			// Unknown schemes (v0, future versions) are skipped so that
			// providers can roll keys without breaking verification.
		}
	}

	if !versionSeen {
		return Signature{}, ErrUnsupportedVersion
	}
	if sig.Digest == "" {
		return Signature{}, fmt.Errorf("%w: missing digest", ErrMalformedHeader)
	}

	return sig, nil
}

// Verify checks that payload was signed with secret at the given
// timestamp. The digest comparison is constant-time; timing-safe
// comparison is a correctness requirement here, not an optimization.
// maxAge bounds the accepted timestamp age, use DefaultMaxAge unless
// the provider documents a different window.
//
// Verify is pure: it reads nothing but its arguments and never touches
// stored state, so a failed check cannot leave partial effects behind.
func Verify(secret string, payload []byte, sig Signature, maxAge time.Duration) error {
	return verifyAt(secret, payload, sig, maxAge, time.Now())
}

func verifyAt(secret string, payload []byte, sig Signature, maxAge time.Duration, now time.Time) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	if sig.Digest == "" {
		return fmt.Errorf("%w: missing digest", ErrMalformedHeader)
	}

	if maxAge > 0 {
		age := now.Sub(time.Unix(sig.Timestamp, 0))
		if age > maxAge {
			return fmt.Errorf("%w: %s", ErrTimestampTooOld, age.Truncate(time.Second))
		}
		if age < -futureSkewTolerance {
			return ErrTimestampInFuture
		}
	}

	expected := Sign(secret, payload, sig.Timestamp)
	if !hmac.Equal([]byte(expected), []byte(sig.Digest)) {
		return ErrSignatureMismatch
	}

	return nil
}
