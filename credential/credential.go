// Package credential performs the session-credential issuance exchange and
// provides the credential-source strategies that sign pre-session requests.
package credential

import (
	"context"
	"encoding/xml"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	medwire "github.com/medwire/medwire-go"
	"github.com/medwire/medwire-go/envelope"
)

// IssuanceMethodVersion is the version of the issuance method dispatched on
// the wire.
const IssuanceMethodVersion = 2

// DefaultTTL is the validity window stamped on issued credentials when the
// service does not supply an expiry of its own. The observed protocol
// usually omits one, so the client applies this conservative local default.
const DefaultTTL = 4 * time.Hour

// Client implements medwire.CredentialIssuer over the injected codec and
// transport.
type Client struct {
	codec     medwire.Codec
	transport medwire.Transport
	ttl       time.Duration
	clk       clock.Clock
}

// compile-time check
var _ medwire.CredentialIssuer = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithTTL overrides the locally stamped validity window.
func WithTTL(d time.Duration) Option {
	return func(c *Client) { c.ttl = d }
}

// WithClock sets the time source used to stamp expirations.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clk = clk }
}

// New creates a credential Client.
func New(codec medwire.Codec, transport medwire.Transport, opts ...Option) *Client {
	c := &Client{
		codec:     codec,
		transport: transport,
		ttl:       DefaultTTL,
		clk:       clock.New(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type issuanceBody struct {
	XMLName xml.Name `xml:"session-token-request"`
	AppID   string   `xml:"app-id"`
}

type issuancePayload struct {
	XMLName      xml.Name `xml:"info"`
	Token        string   `xml:"token"`
	SharedSecret string   `xml:"shared-secret"`
	Expires      string   `xml:"expires"`
}

// Issue runs the issuance exchange: build a pre-session envelope signed by
// src, dispatch it, and extract the session token and shared secret from the
// response payload.
//
// The service rarely returns an expiry; when the payload carries a parseable
// <expires> instant it is preferred, otherwise the credential is stamped
// issuance-time plus the configured validity window.
func (c *Client) Issue(ctx context.Context, auth medwire.AuthContext, src medwire.CredentialSource) (*medwire.SessionCredential, error) {
	if src == nil {
		return nil, errors.New("credential: issuance requires a credential source")
	}

	body, err := xml.Marshal(issuanceBody{AppID: auth.AppID.String()})
	if err != nil {
		return nil, errors.Wrap(err, "credential: serializing issuance body")
	}
	inv := medwire.MethodInvocation{
		Method:  medwire.MethodCreateSessionToken,
		Version: IssuanceMethodVersion,
		Body:    body,
	}

	req, err := c.codec.BuildRequest(auth, nil, src, inv)
	if err != nil {
		return nil, err
	}

	issuedAt := c.clk.Now()
	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "credential: dispatching issuance request")
	}

	env, err := c.codec.ParseResponse(resp)
	if err != nil {
		return nil, err
	}
	if env.Status != 0 {
		return nil, &medwire.IssuanceError{Status: env.Status, Message: env.Err.String()}
	}

	want := envelope.ResponseNamespace(medwire.MethodCreateSessionToken)
	if env.Info == nil || env.Info.Namespace != want {
		return nil, &medwire.MalformedResponseError{Reason: "issuance payload missing or scoped under the wrong namespace"}
	}

	var payload issuancePayload
	if err := env.Info.Decode(&payload); err != nil {
		return nil, &medwire.MalformedResponseError{Reason: "undecodable issuance payload: " + err.Error()}
	}
	if payload.Token == "" || payload.SharedSecret == "" {
		return nil, &medwire.MalformedResponseError{Reason: "issuance payload missing token or shared secret"}
	}

	expiresAt := issuedAt.Add(c.ttl)
	if payload.Expires != "" {
		if authoritative, perr := time.Parse(time.RFC3339, payload.Expires); perr == nil {
			expiresAt = authoritative
		}
	}

	return &medwire.SessionCredential{
		Token:        payload.Token,
		SharedSecret: payload.SharedSecret,
		ExpiresAt:    expiresAt,
	}, nil
}
