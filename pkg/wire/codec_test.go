package wire

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEncodeRequest(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		req := &RequestFrame{
			ID:     "r-1",
			Method: "sessions.list",
			Params: json.RawMessage(`{"limit":5}`),
		}

		data, err := EncodeRequest(req)
		if err != nil {
			t.Fatalf("EncodeRequest failed: %v", err)
		}

		dec, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if dec.Kind != KindRequest {
			t.Fatalf("Kind = %v, want KindRequest", dec.Kind)
		}
		if dec.Request.ID != "r-1" || dec.Request.Method != "sessions.list" {
			t.Errorf("decoded request = %+v", dec.Request)
		}
		if string(dec.Request.Params) != `{"limit":5}` {
			t.Errorf("params = %s", dec.Request.Params)
		}
	})

	t.Run("MissingID", func(t *testing.T) {
		_, err := EncodeRequest(&RequestFrame{Method: "ping"})
		if err == nil {
			t.Error("expected error for request without id")
		}
	})

	t.Run("MissingMethod", func(t *testing.T) {
		_, err := EncodeRequest(&RequestFrame{ID: "r-2"})
		if err == nil {
			t.Error("expected error for request without method")
		}
	})
}

func TestDecodeResponse(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		dec, err := Decode([]byte(`{"type":"res","id":"r-1","ok":true,"payload":{"n":1}}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if dec.Kind != KindResponse {
			t.Fatalf("Kind = %v, want KindResponse", dec.Kind)
		}
		if !dec.Response.OK {
			t.Error("ok = false, want true")
		}
		if dec.Response.Err() != nil {
			t.Errorf("Err() = %v, want nil", dec.Response.Err())
		}
	})

	t.Run("ApplicationError", func(t *testing.T) {
		dec, err := Decode([]byte(`{"type":"res","id":"r-2","ok":false,"error":{"code":"denied","message":"no scope"}}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		respErr := dec.Response.Err()
		if respErr == nil {
			t.Fatal("Err() = nil for failed response")
		}
		wireErr, ok := respErr.(*Error)
		if !ok {
			t.Fatalf("Err() type = %T, want *Error", respErr)
		}
		if wireErr.Code != "denied" || wireErr.Message != "no scope" {
			t.Errorf("error = %+v", wireErr)
		}
	})

	t.Run("FailedWithoutErrorObject", func(t *testing.T) {
		dec, err := Decode([]byte(`{"type":"res","id":"r-3","ok":false}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if dec.Response.Err() == nil {
			t.Error("Err() = nil, want generic error")
		}
	})

	t.Run("MissingID", func(t *testing.T) {
		if _, err := Decode([]byte(`{"type":"res","ok":true}`)); err == nil {
			t.Error("expected error for response without id")
		}
	})
}

func TestDecodeEvent(t *testing.T) {
	t.Run("EventType", func(t *testing.T) {
		dec, err := Decode([]byte(`{"type":"event","event":"chat","payload":{"x":1},"seq":7}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if dec.Kind != KindEvent {
			t.Fatalf("Kind = %v, want KindEvent", dec.Kind)
		}
		if dec.Event.Event != "chat" || dec.Event.Seq != 7 {
			t.Errorf("event = %+v", dec.Event)
		}
	})

	t.Run("EvtAlias", func(t *testing.T) {
		dec, err := Decode([]byte(`{"type":"evt","event":"agent"}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if dec.Kind != KindEvent || dec.Event.Event != "agent" {
			t.Errorf("decoded = %+v", dec)
		}
	})

	t.Run("PayloadJSONWins", func(t *testing.T) {
		dec, err := Decode([]byte(`{"type":"event","event":"tick","payload":{"a":1},"payloadJSON":"{\"b\":2}"}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if string(dec.Event.Payload) != `{"b":2}` {
			t.Errorf("payload = %s, want payloadJSON content", dec.Event.Payload)
		}
	})

	t.Run("EncoderEmitsEvent", func(t *testing.T) {
		data, err := EncodeEvent(&EventFrame{Event: "tick", Seq: 1})
		if err != nil {
			t.Fatalf("EncodeEvent failed: %v", err)
		}
		if !strings.Contains(string(data), `"type":"event"`) {
			t.Errorf("encoded = %s, want type event", data)
		}
	})
}

func TestDecodeInvalid(t *testing.T) {
	cases := map[string]string{
		"NotJSON":     `{{{`,
		"NoType":      `{"id":"x"}`,
		"UnknownType": `{"type":"bogus"}`,
		"EventNoName": `{"type":"event"}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(input)); err == nil {
				t.Errorf("Decode(%q) succeeded, want error", input)
			}
		})
	}
}

func TestDecodeChallenge(t *testing.T) {
	t.Run("StringNonce", func(t *testing.T) {
		nonce, err := DecodeChallenge(json.RawMessage(`{"nonce":"abc"}`))
		if err != nil || nonce != "abc" {
			t.Errorf("nonce = %q, err = %v", nonce, err)
		}
	})

	t.Run("NumericNonce", func(t *testing.T) {
		// Older bridge builds emit the nonce as a bare integer.
		nonce, err := DecodeChallenge(json.RawMessage(`{"nonce":1234567890}`))
		if err != nil || nonce != "1234567890" {
			t.Errorf("nonce = %q, err = %v", nonce, err)
		}
	})

	t.Run("AbsentNonce", func(t *testing.T) {
		nonce, err := DecodeChallenge(json.RawMessage(`{}`))
		if err != nil || nonce != "" {
			t.Errorf("nonce = %q, err = %v", nonce, err)
		}
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		nonce, err := DecodeChallenge(nil)
		if err != nil || nonce != "" {
			t.Errorf("nonce = %q, err = %v", nonce, err)
		}
	})
}

func TestConnectParamsValidate(t *testing.T) {
	valid := func() *ConnectParams {
		return &ConnectParams{
			MinProtocol: MinProtocolVersion,
			MaxProtocol: MaxProtocolVersion,
			Client:      ClientInfo{ID: "gatewire-cli", Version: "0.1.0", Platform: "linux", Mode: "interactive", InstanceID: "i-1"},
			Role:        "operator",
			Scopes:      []string{"chat"},
			Device:      DeviceAssertion{ID: "dev", PublicKey: "pk", Signature: "sig", SignedAt: 1},
		}
	}

	t.Run("Valid", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})

	t.Run("BadProtocolRange", func(t *testing.T) {
		p := valid()
		p.MaxProtocol = 0
		if err := p.Validate(); err == nil {
			t.Error("expected error for inverted protocol range")
		}
	})

	t.Run("MissingDevice", func(t *testing.T) {
		p := valid()
		p.Device.Signature = ""
		if err := p.Validate(); err == nil {
			t.Error("expected error for missing device signature")
		}
	})
}
