// Package fake provides an in-memory Transport and canned wire responses
// for testing without a live service.
//
// The transport hands every request to a scripted Handler and records what
// crossed the wire, so tests can assert on call counts and ordering.
package fake

import (
	"context"
	"encoding/xml"
	"fmt"
	"sync"

	medwire "github.com/medwire/medwire-go"
	"github.com/medwire/medwire-go/envelope"
)

// Request is the dispatch metadata of one captured request.
type Request struct {
	Method  string
	Version int
	Raw     []byte
}

// Handler scripts the service side of an exchange.
type Handler func(req Request) ([]byte, error)

// Transport is a scripted in-memory medwire.Transport.
type Transport struct {
	mu       sync.Mutex
	handler  Handler
	requests []Request
}

// compile-time check
var _ medwire.Transport = (*Transport)(nil)

// NewTransport creates a Transport answering with h.
func NewTransport(h Handler) *Transport {
	return &Transport{handler: h}
}

type requestDoc struct {
	XMLName xml.Name `xml:"request"`
	Method  string   `xml:"method,attr"`
	Version int      `xml:"method-version,attr"`
}

// Send records the request and hands it to the handler.
func (t *Transport) Send(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc requestDoc
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("fake: undecodable request: %w", err)
	}
	req := Request{Method: doc.Method, Version: doc.Version, Raw: payload}

	t.mu.Lock()
	t.requests = append(t.requests, req)
	h := t.handler
	t.mu.Unlock()

	return h(req)
}

// Requests returns a copy of every captured request, in arrival order.
func (t *Transport) Requests() []Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Request, len(t.requests))
	copy(out, t.requests)
	return out
}

// Methods returns the method names of every captured request, in order.
func (t *Transport) Methods() []string {
	reqs := t.Requests()
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Method
	}
	return out
}

// CallsFor counts captured requests for one method.
func (t *Transport) CallsFor(method string) int {
	n := 0
	for _, r := range t.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}

// IssuanceResponse builds a successful issuance response carrying token and
// shared secret, scoped under the issuance response namespace.
func IssuanceResponse(token, secret string) []byte {
	return SuccessResponse(medwire.MethodCreateSessionToken,
		fmt.Sprintf("<token>%s</token><shared-secret>%s</shared-secret>", token, secret))
}

// IssuanceResponseWithExpiry is IssuanceResponse plus a server-supplied
// expiry instant (RFC 3339).
func IssuanceResponseWithExpiry(token, secret, expires string) []byte {
	return SuccessResponse(medwire.MethodCreateSessionToken,
		fmt.Sprintf("<token>%s</token><shared-secret>%s</shared-secret><expires>%s</expires>", token, secret, expires))
}

// SuccessResponse builds a status-0 response whose payload is scoped under
// the response namespace of method.
func SuccessResponse(method, inner string) []byte {
	return []byte(fmt.Sprintf(
		`<response><status>0</status><wc:info xmlns:wc=%q>%s</wc:info></response>`,
		envelope.ResponseNamespace(method), inner))
}

// EmptySuccessResponse builds a status-0 response with no payload.
func EmptySuccessResponse() []byte {
	return []byte(`<response><status>0</status></response>`)
}

// ErrorResponse builds a failed response with the given status and message.
func ErrorResponse(status int, message string) []byte {
	return []byte(fmt.Sprintf(
		`<response><status>%d</status><error><message>%s</message></error></response>`,
		status, message))
}
