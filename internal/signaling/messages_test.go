package signaling

import (
	"encoding/json"
	"testing"
)

func TestParseStampEncodeRoundTrip(t *testing.T) {
	raw := []byte(`{"type":"offer","to":"bob","from":"spoofed","timestamp":1,"sdp":"v=0...","nested":{"a":[1,2]}}`)

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Type != "offer" || msg.To != "bob" {
		t.Fatalf("envelope: type=%q to=%q", msg.Type, msg.To)
	}

	msg.Stamp("alice", 1700000000123)
	encoded, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(encoded, &out); err != nil {
		t.Fatalf("decode encoded frame: %v", err)
	}
	if out["from"] != "alice" {
		t.Fatalf("from=%v, want stamped sender (client value must be overwritten)", out["from"])
	}
	if out["timestamp"] != float64(1700000000123) {
		t.Fatalf("timestamp=%v, want stamped value", out["timestamp"])
	}
	if out["to"] != "bob" || out["type"] != "offer" {
		t.Fatalf("envelope lost: %v", out)
	}
	if out["sdp"] != "v=0..." {
		t.Fatalf("payload field altered: %v", out["sdp"])
	}
	nested, ok := out["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested payload lost: %v", out["nested"])
	}
	if arr, ok := nested["a"].([]any); !ok || len(arr) != 2 {
		t.Fatalf("nested array altered: %v", nested["a"])
	}
}

func TestParseMessageMalformed(t *testing.T) {
	cases := []string{
		`not json`,
		`[1,2,3]`,
		`"just a string"`,
		`{"type":42}`,
		`{"type":"offer","to":7}`,
	}
	for _, raw := range cases {
		if _, err := ParseMessage([]byte(raw)); err == nil {
			t.Fatalf("ParseMessage(%q): expected error", raw)
		}
	}
}

func TestParseMessageMissingType(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"payload":"x"}`))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Type != "" {
		t.Fatalf("Type=%q, want empty", msg.Type)
	}
}

func TestBroadcastMessageOmitsTo(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"chat","body":"hi"}`))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	msg.Stamp("alice", 42)
	encoded, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(encoded, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, present := out["to"]; present {
		t.Fatalf("broadcast frame should carry no to field: %v", out)
	}
}

func TestNewErrorMessageShape(t *testing.T) {
	msg := NewErrorMessage("User bob not found in room")
	msg.Timestamp = 99

	encoded, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(encoded, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["type"] != "error" || out["payload"] != "User bob not found in room" || out["timestamp"] != float64(99) {
		t.Fatalf("error frame=%v", out)
	}
	if _, present := out["from"]; present {
		t.Fatalf("error frame should carry no sender: %v", out)
	}
}

func TestMessageKind(t *testing.T) {
	cases := map[string]Kind{
		"offer":     KindOffer,
		"answer":    KindAnswer,
		"candidate": KindCandidate,
		"join":      KindJoin,
		"leave":     KindLeave,
		"error":     KindError,
		"chat":      KindOpaque,
		"":          KindOpaque,
	}
	for msgType, want := range cases {
		if got := (&Message{Type: msgType}).Kind(); got != want {
			t.Fatalf("Kind(%q)=%v, want %v", msgType, got, want)
		}
	}
}
