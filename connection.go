// Package medwire is a client-side protocol engine for a remote XML-over-HTTP
// health-record service.
//
// The package establishes and refreshes an authenticated session, signs every
// outbound method call, serializes request envelopes, parses response
// envelopes, and translates service-reported status codes into typed errors.
// Collaborators (wire codec, transport, credential issuer) are injected via
// Option functions, keeping the engine independent of any specific HTTP
// stack.
//
// Example usage:
//
//	conn, err := medwire.NewConnection(
//	    medwire.Config{AppID: appID, RecordID: "rec-1"},
//	    medwire.WithCodec(codec),
//	    medwire.WithTransport(transport.New("https://service.example.com/wire")),
//	    medwire.WithIssuer(credential.New(codec, tp)),
//	    medwire.WithCredentialSource(credential.NewAppSecretSource(appID, secret)),
//	)
package medwire

import (
	"context"
	"io"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/medwire/medwire-go/status"
)

// MethodCreateSessionToken is the method name of the credential-issuance
// exchange.
const MethodCreateSessionToken = "CreateAuthenticatedSessionToken"

// Config holds the identity and behavior configuration of a Connection. It
// is passed in explicitly at construction; nothing is read from process-wide
// state.
type Config struct {
	// AppID identifies the calling application. Required.
	AppID uuid.UUID

	// RecordID scopes calls to one health record. Optional.
	RecordID string

	// MultiRecord marks the application as operating across records.
	MultiRecord bool
}

// Connection owns the current session credential, refreshes it when stale or
// rejected, and signs and dispatches every method call. It is safe for
// concurrent use; the held credential is the only shared mutable state and is
// replaced wholesale, never mutated in place.
type Connection struct {
	cfg    Config
	auth   AuthContext
	logger *logrus.Logger
	clk    clock.Clock

	codec     Codec
	transport Transport
	issuer    CredentialIssuer
	source    CredentialSource

	mu   sync.RWMutex
	cred *SessionCredential

	sf singleflight.Group
}

// Option configures the Connection.
type Option func(*Connection)

// WithLogger sets a structured logger. Connections are silent by default.
func WithLogger(l *logrus.Logger) Option {
	return func(c *Connection) { c.logger = l }
}

// WithClock sets the time source, letting tests drive credential expiry.
func WithClock(clk clock.Clock) Option {
	return func(c *Connection) { c.clk = clk }
}

// WithCodec sets the envelope codec implementation.
func WithCodec(codec Codec) Option {
	return func(c *Connection) { c.codec = codec }
}

// WithTransport sets the transport collaborator.
func WithTransport(t Transport) Option {
	return func(c *Connection) { c.transport = t }
}

// WithIssuer sets the credential issuer implementation.
func WithIssuer(i CredentialIssuer) Option {
	return func(c *Connection) { c.issuer = i }
}

// WithCredentialSource sets the signing material used for pre-session calls.
func WithCredentialSource(s CredentialSource) Option {
	return func(c *Connection) { c.source = s }
}

// NewConnection creates a Connection. The codec, transport, issuer, and
// credential source are mandatory collaborators.
func NewConnection(cfg Config, opts ...Option) (*Connection, error) {
	c := &Connection{cfg: cfg}
	for _, o := range opts {
		o(c)
	}

	if cfg.AppID == uuid.Nil {
		return nil, errors.New("medwire: Config.AppID is required")
	}
	if c.codec == nil {
		return nil, errors.New("medwire: a Codec is required, use WithCodec")
	}
	if c.transport == nil {
		return nil, errors.New("medwire: a Transport is required, use WithTransport")
	}
	if c.issuer == nil {
		return nil, errors.New("medwire: a CredentialIssuer is required, use WithIssuer")
	}
	if c.source == nil {
		return nil, errors.New("medwire: a CredentialSource is required, use WithCredentialSource")
	}

	if c.clk == nil {
		c.clk = clock.New()
	}
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.SetOutput(io.Discard)
	}

	c.auth = AuthContext{
		AppID:       cfg.AppID,
		RecordID:    cfg.RecordID,
		MultiRecord: cfg.MultiRecord,
	}
	return c, nil
}

// Config returns the connection configuration.
func (c *Connection) Config() Config { return c.cfg }

// Credential returns the currently held session credential, or nil when none
// has been issued yet.
func (c *Connection) Credential() *SessionCredential {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cred
}

// Execute dispatches one signed method call and returns its info payload
// (nil on an empty success).
//
// A missing or expired credential is re-issued first; concurrent callers
// coalesce onto a single issuance exchange. A call the service rejects with a
// credential-expired status is transparently retried exactly once after
// re-issuance; a second consecutive rejection is surfaced unchanged.
func (c *Connection) Execute(ctx context.Context, inv MethodInvocation) (*InfoPayload, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	cred, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := c.dispatch(ctx, inv, cred)
	if err == nil {
		return payload, nil
	}

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.Category != status.CategoryCredentialExpired {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"method":     inv.Method,
		"raw_status": svcErr.RawStatus,
	}).Warn("session credential rejected, re-issuing")

	c.invalidate(cred)
	cred, err = c.ensure(ctx)
	if err != nil {
		return nil, err
	}
	// Second rejection, if any, surfaces to the caller as-is.
	return c.dispatch(ctx, inv, cred)
}

// Close discards the held credential and closes the transport if it owns
// closable resources.
func (c *Connection) Close() error {
	c.mu.Lock()
	c.cred = nil
	c.mu.Unlock()

	if cl, ok := c.transport.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// ensure returns a credential usable right now, running at most one issuance
// exchange however many callers arrive at once. Issuance is detached from the
// winning caller's cancellation so that a cancelled waiter does not abort the
// refresh other waiters depend on.
func (c *Connection) ensure(ctx context.Context) (*SessionCredential, error) {
	c.mu.RLock()
	cred := c.cred
	c.mu.RUnlock()
	if cred.Valid(c.clk.Now()) {
		return cred, nil
	}

	issueCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan("credential", func() (any, error) {
		c.logger.WithField("app_id", c.auth.AppID).Info("issuing session credential")
		issued, err := c.issuer.Issue(issueCtx, c.auth, c.source)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cred = issued
		c.mu.Unlock()
		return issued, nil
	})

	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "medwire: waiting for credential issuance")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*SessionCredential), nil
	}
}

// invalidate drops the credential the service just rejected. A no-op when a
// concurrent refresh already replaced it.
func (c *Connection) invalidate(stale *SessionCredential) {
	c.mu.Lock()
	if c.cred == stale {
		c.cred = nil
	}
	c.mu.Unlock()
}

func (c *Connection) dispatch(ctx context.Context, inv MethodInvocation, cred *SessionCredential) (*InfoPayload, error) {
	req, err := c.codec.BuildRequest(c.auth, cred, nil, inv)
	if err != nil {
		return nil, err
	}

	start := c.clk.Now()
	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "medwire: dispatching %s", inv.Method)
	}

	env, err := c.codec.ParseResponse(resp)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"method":  inv.Method,
		"version": inv.Version,
		"status":  env.Status,
		"took":    c.clk.Since(start),
	}).Debug("dispatched request")

	if env.Status != 0 {
		code := status.Classify(env.Status)
		return nil, &ServiceError{
			Category:  code.Category,
			Message:   env.Err.String(),
			RawStatus: env.Status,
		}
	}
	return env.Info, nil
}
