// Package sign provides the two digest primitives the wire protocol needs:
// a keyed HMAC-SHA256 over request material and an unkeyed SHA-256 content
// digest for info-payload integrity tagging.
//
// Both operations are pure functions of their inputs. Application-level
// (pre-session) calls and session-scoped calls authenticate differently, so
// envelope construction picks the primitive required per call class.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/pkg/errors"
)

// Algorithm names as they appear in the algName attribute on the wire.
const (
	HMACAlgorithm = "HMACSHA256"
	HashAlgorithm = "SHA256"
)

// ErrEmptyKey is returned when a keyed operation is requested without key
// material. It indicates a configuration error, not a service condition.
var ErrEmptyKey = errors.New("sign: empty key for keyed digest")

// AuthData is a keyed digest ready for embedding in a request auth block.
type AuthData struct {
	Algorithm string
	Value     string // base64
}

// Digest is an unkeyed content digest.
type Digest struct {
	Algorithm string
	Value     string // base64
}

// Sign computes the keyed digest of payload under key.
func Sign(payload, key []byte) (AuthData, error) {
	if len(key) == 0 {
		return AuthData{}, ErrEmptyKey
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return AuthData{
		Algorithm: HMACAlgorithm,
		Value:     base64.StdEncoding.EncodeToString(mac.Sum(nil)),
	}, nil
}

// Hash computes the content digest of payload.
func Hash(payload []byte) Digest {
	sum := sha256.Sum256(payload)
	return Digest{
		Algorithm: HashAlgorithm,
		Value:     base64.StdEncoding.EncodeToString(sum[:]),
	}
}
