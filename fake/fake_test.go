package fake_test

import (
	"context"
	"testing"

	medwire "github.com/medwire/medwire-go"
	"github.com/medwire/medwire-go/envelope"
	"github.com/medwire/medwire-go/fake"
)

func TestTransport_RecordsDispatchMetadata(t *testing.T) {
	tp := fake.NewTransport(func(req fake.Request) ([]byte, error) {
		return fake.EmptySuccessResponse(), nil
	})

	payload := []byte(`<request method="GetThings" method-version="3"><info/></request>`)
	if _, err := tp.Send(context.Background(), payload); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	reqs := tp.Requests()
	if len(reqs) != 1 {
		t.Fatalf("len(Requests()) = %d, want 1", len(reqs))
	}
	if reqs[0].Method != "GetThings" || reqs[0].Version != 3 {
		t.Errorf("captured %+v", reqs[0])
	}
	if tp.CallsFor("GetThings") != 1 {
		t.Errorf("CallsFor(GetThings) = %d, want 1", tp.CallsFor("GetThings"))
	}
}

func TestTransport_RespectsCancelledContext(t *testing.T) {
	tp := fake.NewTransport(func(req fake.Request) ([]byte, error) {
		t.Fatal("handler should not run for a cancelled context")
		return nil, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tp.Send(ctx, []byte(`<request method="X" method-version="1"/>`)); err == nil {
		t.Fatal("Send() expected error for cancelled context")
	}
}

func TestCannedResponses_ParseCleanly(t *testing.T) {
	codec := envelope.New()

	env, err := codec.ParseResponse(fake.IssuanceResponse("T1", "S1"))
	if err != nil {
		t.Fatalf("ParseResponse(IssuanceResponse) error: %v", err)
	}
	if env.Status != 0 || env.Info == nil {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if want := envelope.ResponseNamespace(medwire.MethodCreateSessionToken); env.Info.Namespace != want {
		t.Errorf("Namespace = %q, want %q", env.Info.Namespace, want)
	}

	env, err = codec.ParseResponse(fake.ErrorResponse(11, "denied"))
	if err != nil {
		t.Fatalf("ParseResponse(ErrorResponse) error: %v", err)
	}
	if env.Status != 11 || env.Err == nil || env.Err.Message != "denied" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	env, err = codec.ParseResponse(fake.EmptySuccessResponse())
	if err != nil {
		t.Fatalf("ParseResponse(EmptySuccessResponse) error: %v", err)
	}
	if !env.Info.Empty() {
		t.Error("EmptySuccessResponse should parse to an empty success")
	}
}
