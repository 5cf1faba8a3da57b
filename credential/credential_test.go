package credential_test

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	medwire "github.com/medwire/medwire-go"
	"github.com/medwire/medwire-go/credential"
	"github.com/medwire/medwire-go/envelope"
	"github.com/medwire/medwire-go/fake"
	"github.com/medwire/medwire-go/sign"
)

var testAppID = uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")

func testAuth() medwire.AuthContext {
	return medwire.AuthContext{AppID: testAppID}
}

func testSource() medwire.CredentialSource {
	return credential.NewAppSecretSource(testAppID, []byte("app-secret"))
}

func TestIssue_Success(t *testing.T) {
	tp := fake.NewTransport(func(req fake.Request) ([]byte, error) {
		if req.Method != medwire.MethodCreateSessionToken {
			t.Errorf("method = %q, want %q", req.Method, medwire.MethodCreateSessionToken)
		}
		if req.Version != credential.IssuanceMethodVersion {
			t.Errorf("version = %d, want %d", req.Version, credential.IssuanceMethodVersion)
		}
		return fake.IssuanceResponse("T1", "S1"), nil
	})
	mock := clock.NewMock()
	c := credential.New(envelope.New(), tp, credential.WithClock(mock))

	cred, err := c.Issue(context.Background(), testAuth(), testSource())
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if cred.Token != "T1" || cred.SharedSecret != "S1" {
		t.Errorf("credential = %+v", cred)
	}
	if want := mock.Now().Add(credential.DefaultTTL); !cred.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", cred.ExpiresAt, want)
	}
}

func TestIssue_PrefersServerExpiry(t *testing.T) {
	expires := time.Date(2031, 5, 1, 12, 0, 0, 0, time.UTC)
	tp := fake.NewTransport(func(req fake.Request) ([]byte, error) {
		return fake.IssuanceResponseWithExpiry("T1", "S1", expires.Format(time.RFC3339)), nil
	})
	c := credential.New(envelope.New(), tp)

	cred, err := c.Issue(context.Background(), testAuth(), testSource())
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if !cred.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want server-supplied %v", cred.ExpiresAt, expires)
	}
}

func TestIssue_UnparseableExpiryFallsBack(t *testing.T) {
	tp := fake.NewTransport(func(req fake.Request) ([]byte, error) {
		return fake.IssuanceResponseWithExpiry("T1", "S1", "next tuesday"), nil
	})
	mock := clock.NewMock()
	c := credential.New(envelope.New(), tp, credential.WithClock(mock), credential.WithTTL(time.Hour))

	cred, err := c.Issue(context.Background(), testAuth(), testSource())
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if want := mock.Now().Add(time.Hour); !cred.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want fallback %v", cred.ExpiresAt, want)
	}
}

func TestIssue_Rejected(t *testing.T) {
	tp := fake.NewTransport(func(req fake.Request) ([]byte, error) {
		return fake.ErrorResponse(6, "unknown application"), nil
	})
	c := credential.New(envelope.New(), tp)

	_, err := c.Issue(context.Background(), testAuth(), testSource())
	var issuance *medwire.IssuanceError
	if !errors.As(err, &issuance) {
		t.Fatalf("Issue() err = %v, want IssuanceError", err)
	}
	if issuance.Status != 6 {
		t.Errorf("Status = %d, want 6", issuance.Status)
	}
}

func TestIssue_MissingFields(t *testing.T) {
	cases := []struct {
		name  string
		inner string
	}{
		{"no token", "<shared-secret>S1</shared-secret>"},
		{"no shared secret", "<token>T1</token>"},
		{"empty payload", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tp := fake.NewTransport(func(req fake.Request) ([]byte, error) {
				return fake.SuccessResponse(medwire.MethodCreateSessionToken, tc.inner), nil
			})
			c := credential.New(envelope.New(), tp)

			_, err := c.Issue(context.Background(), testAuth(), testSource())
			var malformed *medwire.MalformedResponseError
			if !errors.As(err, &malformed) {
				t.Fatalf("Issue() err = %v, want MalformedResponseError", err)
			}
		})
	}
}

// A payload under the naively derived namespace must be rejected: the
// issuance response is scoped under the fixed alternate token.
func TestIssue_NaiveNamespaceRejected(t *testing.T) {
	tp := fake.NewTransport(func(req fake.Request) ([]byte, error) {
		naive := envelope.ResponseNamespacePrefix + medwire.MethodCreateSessionToken
		body := fmt.Sprintf(
			`<response><status>0</status><wc:info xmlns:wc=%q><token>T1</token><shared-secret>S1</shared-secret></wc:info></response>`,
			naive)
		return []byte(body), nil
	})
	c := credential.New(envelope.New(), tp)

	_, err := c.Issue(context.Background(), testAuth(), testSource())
	var malformed *medwire.MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("Issue() err = %v, want MalformedResponseError", err)
	}
}

func TestIssue_NilSource(t *testing.T) {
	tp := fake.NewTransport(func(req fake.Request) ([]byte, error) {
		t.Fatal("transport should not be reached")
		return nil, nil
	})
	c := credential.New(envelope.New(), tp)
	if _, err := c.Issue(context.Background(), testAuth(), nil); err == nil {
		t.Fatal("Issue() expected error for nil source")
	}
}

func TestIssue_TransportFailurePropagates(t *testing.T) {
	sent := errors.New("connection refused")
	tp := fake.NewTransport(func(req fake.Request) ([]byte, error) {
		return nil, sent
	})
	c := credential.New(envelope.New(), tp)

	_, err := c.Issue(context.Background(), testAuth(), testSource())
	if !errors.Is(err, sent) {
		t.Fatalf("Issue() err = %v, want wrapped transport error", err)
	}
}

func writeBlock(t *testing.T, src medwire.CredentialSource) string {
	t.Helper()
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := src.WriteBlock(enc); err != nil {
		t.Fatalf("WriteBlock() error: %v", err)
	}
	if err := enc.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	return buf.String()
}

func TestAppSecretSource_WriteBlock(t *testing.T) {
	src := credential.NewAppSecretSource(testAppID, []byte("app-secret"))
	got := writeBlock(t, src)

	for _, want := range []string{
		"<appserver>",
		"<app-id>aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee</app-id>",
		"<hmac-alg>HMACSHA256</hmac-alg>",
		`<sig algName="HMACSHA256">`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("block missing %q:\n%s", want, got)
		}
	}

	if again := writeBlock(t, src); again != got {
		t.Error("block not deterministic")
	}
}

func TestAppSecretSource_EmptySecret(t *testing.T) {
	src := credential.NewAppSecretSource(testAppID, nil)
	var buf bytes.Buffer
	err := src.WriteBlock(xml.NewEncoder(&buf))
	if !errors.Is(err, sign.ErrEmptyKey) {
		t.Fatalf("WriteBlock() err = %v, want ErrEmptyKey", err)
	}
}

func TestPlatformSource_CopiesMaterial(t *testing.T) {
	src := credential.NewPlatformSource([]byte(`<keystore><blob>abc</blob></keystore>`))
	got := writeBlock(t, src)
	if !strings.Contains(got, "<blob>abc</blob>") {
		t.Errorf("material not copied:\n%s", got)
	}
}

func TestPlatformSource_RejectsBadMaterial(t *testing.T) {
	for _, raw := range []string{"", "   ", "<unclosed>"} {
		src := credential.NewPlatformSource([]byte(raw))
		var buf bytes.Buffer
		if err := src.WriteBlock(xml.NewEncoder(&buf)); err == nil {
			t.Errorf("WriteBlock(%q) expected error", raw)
		}
	}
}
