package relay

import (
	"errors"

	"github.com/goccy/go-json"
	"github.com/goevery/relay/internal/ierr"
)

type Kind string

const (
	KindConnected   Kind = "connected"
	KindMessage     Kind = "message"
	KindMessageSent Kind = "message-sent"
	KindCallSignal  Kind = "call-signal"
	KindTyping      Kind = "typing"
	KindError       Kind = "error"
)

// Envelope is the unit exchanged over a live connection. The set of
// implementations is closed; each carries its own payload shape.
type Envelope interface {
	Kind() Kind
	envelope()
}

type SignalType string

const (
	SignalTypeOffer     SignalType = "offer"
	SignalTypeAnswer    SignalType = "answer"
	SignalTypeHangup    SignalType = "hangup"
	SignalTypeCandidate SignalType = "candidate"
)

func (t SignalType) Valid() bool {
	switch t {
	case SignalTypeOffer, SignalTypeAnswer, SignalTypeHangup, SignalTypeCandidate:
		return true
	default:
		return false
	}
}

type Connected struct {
	UserId string `json:"userId"`
}

// ChatFields are the message attributes relayed verbatim between peers.
type ChatFields struct {
	Id          string `json:"id,omitempty"`
	SenderId    string `json:"senderId,omitempty"`
	Content     string `json:"content"`
	MessageType string `json:"messageType,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	FileSize    string `json:"fileSize,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// Message is a chat message. ReceiverId is only present on inbound envelopes.
type Message struct {
	ReceiverId string `json:"receiverId,omitempty"`
	ChatFields
}

type MessageSent struct {
	ChatFields
}

type CallSignal struct {
	ToId       string          `json:"toId,omitempty"`
	FromId     string          `json:"fromId,omitempty"`
	SignalType SignalType      `json:"signalType"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  int64           `json:"timestamp,omitempty"`
}

type Typing struct {
	ReceiverId string `json:"receiverId,omitempty"`
	UserId     string `json:"userId,omitempty"`
	IsTyping   bool   `json:"isTyping"`
}

// Notice is a server-originated error or informational envelope.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (Connected) Kind() Kind   { return KindConnected }
func (Message) Kind() Kind     { return KindMessage }
func (MessageSent) Kind() Kind { return KindMessageSent }
func (CallSignal) Kind() Kind  { return KindCallSignal }
func (Typing) Kind() Kind      { return KindTyping }
func (Notice) Kind() Kind      { return KindError }

func (Connected) envelope()   {}
func (Message) envelope()     {}
func (MessageSent) envelope() {}
func (CallSignal) envelope()  {}
func (Typing) envelope()      {}
func (Notice) envelope()      {}

// Encode renders env as a flat JSON object tagged with "type".
func Encode(env Envelope) ([]byte, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}

	tag, err := json.Marshal(string(env.Kind()))
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, len(body)+len(tag)+9)
	buf = append(buf, `{"type":`...)
	buf = append(buf, tag...)

	if len(body) > 2 {
		buf = append(buf, ',')
		buf = append(buf, body[1:]...)
	} else {
		buf = append(buf, '}')
	}

	return buf, nil
}

type envelopeHead struct {
	Type Kind `json:"type"`
}

// DecodeEnvelope parses an envelope sent by a client. Only the kinds a client
// may originate are accepted; anything else fails with ErrorCodeNotFound, and
// undecodable input fails with ErrorCodeInvalidArgument.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var head envelopeHead
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, malformed(err)
	}

	switch head.Type {
	case KindMessage:
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, malformed(err)
		}
		if m.ReceiverId == "" {
			return nil, malformed(errors.New("missing receiverId"))
		}
		return m, nil
	case KindCallSignal:
		var s CallSignal
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, malformed(err)
		}
		if s.ToId == "" {
			return nil, malformed(errors.New("missing toId"))
		}
		if !s.SignalType.Valid() {
			return nil, malformed(errors.New("invalid signalType: " + string(s.SignalType)))
		}
		return s, nil
	case KindTyping:
		var t Typing
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, malformed(err)
		}
		if t.ReceiverId == "" {
			return nil, malformed(errors.New("missing receiverId"))
		}
		return t, nil
	case "":
		return nil, malformed(errors.New("missing type"))
	default:
		return nil, ierr.New(ierr.ErrorCodeNotFound, errors.New("unknown event kind: "+string(head.Type)))
	}
}

// DecodeServerEnvelope parses an envelope supplied by a trusted server-side
// caller for delivery to clients.
func DecodeServerEnvelope(data []byte) (Envelope, error) {
	var head envelopeHead
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, malformed(err)
	}

	var env Envelope
	var err error

	switch head.Type {
	case KindMessage:
		var m Message
		err = json.Unmarshal(data, &m)
		m.ReceiverId = ""
		env = m
	case KindMessageSent:
		var m MessageSent
		err = json.Unmarshal(data, &m)
		env = m
	case KindCallSignal:
		var s CallSignal
		err = json.Unmarshal(data, &s)
		s.ToId = ""
		env = s
	case KindTyping:
		var t Typing
		err = json.Unmarshal(data, &t)
		t.ReceiverId = ""
		env = t
	case KindError:
		var n Notice
		err = json.Unmarshal(data, &n)
		env = n
	case "":
		return nil, malformed(errors.New("missing type"))
	default:
		return nil, ierr.New(ierr.ErrorCodeNotFound, errors.New("unknown event kind: "+string(head.Type)))
	}

	if err != nil {
		return nil, malformed(err)
	}

	return env, nil
}

func malformed(err error) error {
	return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("malformed envelope: "+err.Error()))
}
