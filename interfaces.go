package medwire

import (
	"context"
	"encoding/xml"
)

// Transport delivers a serialized request document to the service and
// returns its raw response bytes. Implementations own socket-level policy
// (TLS, timeouts, retries); the protocol layer treats them as opaque.
// Implementations: transport/ (HTTP), fake/ (testing).
type Transport interface {
	// Send dispatches payload and returns the response body.
	Send(ctx context.Context, payload []byte) ([]byte, error)
}

// Codec builds request envelopes and parses response envelopes.
// Implementations: envelope/.
type Codec interface {
	// BuildRequest serializes one method call. When cred is nil (pre-session
	// calls, credential issuance itself) the auth block is written by src
	// instead of being signed with a session secret.
	BuildRequest(auth AuthContext, cred *SessionCredential, src CredentialSource, inv MethodInvocation) ([]byte, error)

	// ParseResponse decodes a response document into its envelope.
	ParseResponse(data []byte) (*ResponseEnvelope, error)
}

// CredentialIssuer performs the credential-issuance exchange and produces a
// fresh SessionCredential. Implementations: credential/.
type CredentialIssuer interface {
	Issue(ctx context.Context, auth AuthContext, src CredentialSource) (*SessionCredential, error)
}

// CredentialSource writes the credential-type-specific signed block of a
// pre-session request. Each issuance flow (application shared secret,
// platform-held material) implements this instead of subclassing anything.
// Implementations: credential/ (app secret, platform material).
type CredentialSource interface {
	// WriteBlock emits the block as children of the enclosing
	// <credential> element.
	WriteBlock(enc *xml.Encoder) error
}
