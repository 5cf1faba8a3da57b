package medwire

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// SessionCredential is a short-lived token plus shared secret issued by the
// service. It is usable only while the current time is strictly before
// ExpiresAt. Credentials are immutable once issued; a refresh replaces the
// whole value, never individual fields.
type SessionCredential struct {
	Token        string
	SharedSecret string
	ExpiresAt    time.Time
}

// Valid reports whether the credential is usable at instant now.
func (c *SessionCredential) Valid(now time.Time) bool {
	return c != nil && now.Before(c.ExpiresAt)
}

// AuthContext identifies the calling application and, optionally, the
// end-user record scope of a call. Immutable for the lifetime of a
// Connection.
type AuthContext struct {
	// AppID identifies the calling application.
	AppID uuid.UUID

	// RecordID scopes calls to one health record. Empty for anonymous or
	// application-level calls.
	RecordID string

	// MultiRecord marks the application as operating across records.
	MultiRecord bool
}

// MethodInvocation describes one method call: name, positive version, and an
// opaque XML body fragment. Constructed per call, not retained.
type MethodInvocation struct {
	Method  string
	Version int
	Body    []byte
}

// Validate checks the invariants every dispatched invocation must hold.
func (m MethodInvocation) Validate() error {
	if m.Method == "" {
		return errors.New("medwire: invocation method cannot be empty")
	}
	if m.Version <= 0 {
		return errors.Errorf("medwire: invocation version must be positive, got %d", m.Version)
	}
	return nil
}

// ResponseEnvelope is the parsed outer response document.
type ResponseEnvelope struct {
	// Status is the service-reported status identifier; 0 means success.
	Status int

	// Err is present iff Status is non-zero.
	Err *ResponseError

	// Info is the method-specific payload, present on successful calls that
	// return data. Nil on an empty success.
	Info *InfoPayload
}

// ResponseError is the error block of a failed response.
type ResponseError struct {
	Message string
	Context string
}

func (e *ResponseError) String() string {
	if e == nil {
		return ""
	}
	if e.Context != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Context)
	}
	return e.Message
}

// InfoPayload is the opaque method-specific subtree of a response. The
// protocol layer hands it back untouched; higher-level typed clients decode
// it.
type InfoPayload struct {
	// Namespace is the URI the service scoped the payload under.
	Namespace string

	// Raw is the inner XML of the payload element.
	Raw []byte
}

// Decode unmarshals the payload into out. The payload is presented to the
// decoder wrapped in an <info> element, so out should match element name
// "info" at the top level.
func (p *InfoPayload) Decode(out any) error {
	if p == nil {
		return errors.New("medwire: no info payload to decode")
	}
	doc := make([]byte, 0, len(p.Raw)+13)
	doc = append(doc, "<info>"...)
	doc = append(doc, p.Raw...)
	doc = append(doc, "</info>"...)
	if err := xml.Unmarshal(doc, out); err != nil {
		return errors.Wrap(err, "medwire: decoding info payload")
	}
	return nil
}

// Empty reports whether the payload carries no content.
func (p *InfoPayload) Empty() bool {
	return p == nil || len(p.Raw) == 0
}
