package signaling

import (
	"encoding/json"
	"fmt"
)

// Well-known message types. Anything else is routed as opaque passthrough;
// the relay does not restrict the type vocabulary.
const (
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"
	TypeJoin      = "join"
	TypeLeave     = "leave"
	TypeError     = "error"
)

// Kind classifies a message by its type field. Routing never depends on the
// kind; it exists for logging and metrics.
type Kind int

const (
	KindOpaque Kind = iota
	KindOffer
	KindAnswer
	KindCandidate
	KindJoin
	KindLeave
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindOffer:
		return TypeOffer
	case KindAnswer:
		return TypeAnswer
	case KindCandidate:
		return TypeCandidate
	case KindJoin:
		return TypeJoin
	case KindLeave:
		return TypeLeave
	case KindError:
		return TypeError
	default:
		return "opaque"
	}
}

// Message is one signaling frame. The envelope fields (type, from, to,
// timestamp) are typed; every other field rides along verbatim in fields and
// survives the stamp/re-encode round trip untouched.
type Message struct {
	Type      string
	From      string
	To        string
	Timestamp int64

	fields map[string]json.RawMessage
}

// ParseMessage decodes a raw text frame. It only validates the envelope:
// the frame must be a JSON object, and type/to must be strings when present.
// A missing type parses successfully with Type == ""; the router reports
// that case to the sender separately from a malformed frame.
func ParseMessage(data []byte) (*Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	msg := &Message{fields: fields}
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &msg.Type); err != nil {
			return nil, fmt.Errorf("decode type: %w", err)
		}
	}
	if raw, ok := fields["to"]; ok {
		if err := json.Unmarshal(raw, &msg.To); err != nil {
			return nil, fmt.Errorf("decode to: %w", err)
		}
	}
	return msg, nil
}

// NewMessage builds a synthetic server-originated message such as a join or
// leave event.
func NewMessage(msgType string) *Message {
	return &Message{Type: msgType}
}

// NewErrorMessage builds the error notification sent back to an offending
// sender: {"type":"error","payload":<description>,"timestamp":...}.
func NewErrorMessage(description string) *Message {
	payload, _ := json.Marshal(description)
	return &Message{
		Type:   TypeError,
		fields: map[string]json.RawMessage{"payload": payload},
	}
}

func (m *Message) Kind() Kind {
	switch m.Type {
	case TypeOffer:
		return KindOffer
	case TypeAnswer:
		return KindAnswer
	case TypeCandidate:
		return KindCandidate
	case TypeJoin:
		return KindJoin
	case TypeLeave:
		return KindLeave
	case TypeError:
		return KindError
	default:
		return KindOpaque
	}
}

// Stamp sets the server-controlled envelope fields, overwriting whatever the
// client supplied. Senders must never be able to spoof identity.
func (m *Message) Stamp(from string, timestampMillis int64) {
	m.From = from
	m.Timestamp = timestampMillis
}

// Encode serializes the message for delivery. Envelope fields win over any
// client-supplied values of the same name; all other fields pass through.
func (m *Message) Encode() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.fields)+4)
	for k, v := range m.fields {
		out[k] = v
	}

	var err error
	if out["type"], err = json.Marshal(m.Type); err != nil {
		return nil, err
	}
	if out["timestamp"], err = json.Marshal(m.Timestamp); err != nil {
		return nil, err
	}
	if m.From != "" {
		if out["from"], err = json.Marshal(m.From); err != nil {
			return nil, err
		}
	} else {
		// Server-originated error notifications carry no sender.
		delete(out, "from")
	}
	if m.To != "" {
		if out["to"], err = json.Marshal(m.To); err != nil {
			return nil, err
		}
	} else {
		delete(out, "to")
	}

	return json.Marshal(out)
}
