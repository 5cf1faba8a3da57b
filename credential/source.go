package credential

import (
	"bytes"
	"encoding/xml"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	medwire "github.com/medwire/medwire-go"
	"github.com/medwire/medwire-go/sign"
)

// AppSecretSource signs issuance requests with the application shared
// secret. This is the ordinary server-to-server issuance flow.
type AppSecretSource struct {
	appID  uuid.UUID
	secret []byte
}

// compile-time check
var _ medwire.CredentialSource = (*AppSecretSource)(nil)

// NewAppSecretSource creates a source signing with the application secret.
func NewAppSecretSource(appID uuid.UUID, secret []byte) *AppSecretSource {
	return &AppSecretSource{appID: appID, secret: secret}
}

type appServerContent struct {
	XMLName xml.Name `xml:"content"`
	AppID   string   `xml:"app-id"`
	HMACAlg string   `xml:"hmac-alg"`
}

type appServerBlock struct {
	XMLName xml.Name         `xml:"appserver"`
	Content appServerContent `xml:"content"`
	Sig     sigNode          `xml:"sig"`
}

type sigNode struct {
	Algorithm string `xml:"algName,attr"`
	Value     string `xml:",chardata"`
}

// WriteBlock emits an <appserver> block whose signature is the keyed digest
// of the serialized <content> element under the application secret.
func (s *AppSecretSource) WriteBlock(enc *xml.Encoder) error {
	content := appServerContent{
		AppID:   s.appID.String(),
		HMACAlg: sign.HMACAlgorithm,
	}
	raw, err := xml.Marshal(content)
	if err != nil {
		return errors.Wrap(err, "credential: serializing signed content")
	}
	mac, err := sign.Sign(raw, s.secret)
	if err != nil {
		return errors.Wrap(err, "credential: signing issuance content")
	}
	return enc.Encode(appServerBlock{
		Content: content,
		Sig:     sigNode{Algorithm: mac.Algorithm, Value: mac.Value},
	})
}

// PlatformSource carries an opaque, already-signed credential block produced
// by platform secure storage. The block is emitted verbatim; this layer
// neither inspects nor re-signs it.
type PlatformSource struct {
	raw []byte
}

// compile-time check
var _ medwire.CredentialSource = (*PlatformSource)(nil)

// NewPlatformSource wraps pre-signed platform credential material.
func NewPlatformSource(raw []byte) *PlatformSource {
	return &PlatformSource{raw: raw}
}

// WriteBlock replays the platform-supplied block token by token, which also
// verifies it is well-formed XML before it reaches the wire.
func (s *PlatformSource) WriteBlock(enc *xml.Encoder) error {
	if len(bytes.TrimSpace(s.raw)) == 0 {
		return errors.New("credential: platform credential material is empty")
	}
	dec := xml.NewDecoder(bytes.NewReader(s.raw))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "credential: malformed platform credential material")
		}
		if err := enc.EncodeToken(tok); err != nil {
			return errors.Wrap(err, "credential: copying platform credential material")
		}
	}
}
