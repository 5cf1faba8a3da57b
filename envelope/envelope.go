// Package envelope builds and parses the outer XML documents wrapping every
// request and response.
package envelope

import (
	"bytes"
	"encoding/xml"

	"github.com/pkg/errors"

	medwire "github.com/medwire/medwire-go"
	"github.com/medwire/medwire-go/sign"
)

// ResponseNamespacePrefix is the URN under which the service scopes
// per-method response payloads.
const ResponseNamespacePrefix = "urn:com.medwire.methods.response."

// namespaceExceptions lists methods whose response namespace token deviates
// from the method name. The service exposes no discoverable mapping for
// these, so the known case is hard-coded rather than inferred.
var namespaceExceptions = map[string]string{
	medwire.MethodCreateSessionToken: "CreateAuthenticatedSessionToken2",
}

// ResponseNamespace returns the namespace URI scoping the response payload
// of method. The token is the method name itself except for the documented
// exception.
func ResponseNamespace(method string) string {
	token := method
	if alt, ok := namespaceExceptions[method]; ok {
		token = alt
	}
	return ResponseNamespacePrefix + token
}

// Codec implements medwire.Codec over the service's request/response
// document shapes.
type Codec struct{}

// compile-time check
var _ medwire.Codec = (*Codec)(nil)

// New creates a Codec.
func New() *Codec { return &Codec{} }

type requestDoc struct {
	XMLName  xml.Name `xml:"request"`
	Method   string   `xml:"method,attr"`
	Version  int      `xml:"method-version,attr"`
	AuthInfo authInfo `xml:"auth-info"`
	Info     rawNode  `xml:"info"`
}

type authInfo struct {
	AppID      appIDNode `xml:"app-id"`
	RecordID   string    `xml:"record-id,omitempty"`
	Credential any       `xml:"credential"`
}

type appIDNode struct {
	MultiRecord string `xml:"multi-record,attr,omitempty"`
	Value       string `xml:",chardata"`
}

type rawNode struct {
	Inner []byte `xml:",innerxml"`
}

// sessionCredBlock is the signed block of session-scoped calls: the session
// token, a content digest of the info body, and a keyed digest of the info
// body under the session shared secret.
type sessionCredBlock struct {
	Token    string     `xml:"token"`
	InfoHash digestNode `xml:"info-hash"`
	AuthHMAC digestNode `xml:"auth-hmac"`
}

type digestNode struct {
	Algorithm string `xml:"algName,attr"`
	Value     string `xml:",chardata"`
}

// BuildRequest serializes one method call into a request document. With a
// session credential, the auth block is signed with the credential's shared
// secret; without one, src writes the flow-specific signed block.
func (c *Codec) BuildRequest(auth medwire.AuthContext, cred *medwire.SessionCredential, src medwire.CredentialSource, inv medwire.MethodInvocation) ([]byte, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	credBlock, err := c.credentialBlock(cred, src, inv.Body)
	if err != nil {
		return nil, err
	}

	doc := requestDoc{
		Method:  inv.Method,
		Version: inv.Version,
		AuthInfo: authInfo{
			AppID:      appIDNode{Value: auth.AppID.String()},
			RecordID:   auth.RecordID,
			Credential: credBlock,
		},
		Info: rawNode{Inner: inv.Body},
	}
	if auth.MultiRecord {
		doc.AuthInfo.AppID.MultiRecord = "true"
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "envelope: serializing request")
	}
	return append([]byte(xml.Header), out...), nil
}

func (c *Codec) credentialBlock(cred *medwire.SessionCredential, src medwire.CredentialSource, body []byte) (any, error) {
	switch {
	case cred != nil:
		mac, err := sign.Sign(body, []byte(cred.SharedSecret))
		if err != nil {
			return nil, errors.Wrap(err, "envelope: signing request")
		}
		hash := sign.Hash(body)
		return sessionCredBlock{
			Token:    cred.Token,
			InfoHash: digestNode{Algorithm: hash.Algorithm, Value: hash.Value},
			AuthHMAC: digestNode{Algorithm: mac.Algorithm, Value: mac.Value},
		}, nil

	case src != nil:
		var buf bytes.Buffer
		enc := xml.NewEncoder(&buf)
		if err := src.WriteBlock(enc); err != nil {
			return nil, errors.Wrap(err, "envelope: writing credential block")
		}
		if err := enc.Flush(); err != nil {
			return nil, errors.Wrap(err, "envelope: flushing credential block")
		}
		return rawNode{Inner: buf.Bytes()}, nil

	default:
		return nil, errors.New("envelope: request requires a session credential or a credential source")
	}
}

type responseDoc struct {
	XMLName xml.Name  `xml:"response"`
	Status  *int      `xml:"status"`
	Err     *errNode  `xml:"error"`
	Info    *infoNode `xml:"info"`
}

type errNode struct {
	Message string `xml:"message"`
	Context string `xml:"context"`
}

type infoNode struct {
	XMLName xml.Name `xml:"info"`
	Inner   []byte   `xml:",innerxml"`
}

// ParseResponse decodes a response document. It enforces the envelope
// invariants: the status node is mandatory, and a non-zero status must carry
// an error block. A zero status with no payload parses as an empty success.
func (c *Codec) ParseResponse(data []byte) (*medwire.ResponseEnvelope, error) {
	var doc responseDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &medwire.MalformedResponseError{Reason: "not well-formed XML: " + err.Error()}
	}
	if doc.Status == nil {
		return nil, &medwire.MalformedResponseError{Reason: "missing status node"}
	}

	env := &medwire.ResponseEnvelope{Status: *doc.Status}
	if doc.Err != nil {
		env.Err = &medwire.ResponseError{Message: doc.Err.Message, Context: doc.Err.Context}
	}
	if env.Status != 0 && env.Err == nil {
		return nil, &medwire.MalformedResponseError{Reason: "non-zero status without error block"}
	}
	if doc.Info != nil {
		env.Info = &medwire.InfoPayload{
			Namespace: doc.Info.XMLName.Space,
			Raw:       doc.Info.Inner,
		}
	}
	return env, nil
}
