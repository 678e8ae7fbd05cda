package apns

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

const tokenSize = 32

// Message is an immutable push notification bound for one device token.
// It is converted to its on-wire frame by BinaryEncode once a Connection
// assigns it an identifier.
type Message struct {
	token       [tokenSize]byte
	payload     []byte
	expiration  time.Time
	certificate *Certificate
}

// MessageOption customizes a Message built by NewMessage.
type MessageOption func(*Message)

// WithExpiration sets the notification's expiration timestamp. APNS
// discards the notification, rather than queueing it for later delivery,
// once this time has passed.
func WithExpiration(t time.Time) MessageOption {
	return func(m *Message) { m.expiration = t }
}

// WithCertificate overrides the certificate a Sender would otherwise use
// for this message, routing it to a different Connection.
func WithCertificate(cert *Certificate) MessageOption {
	return func(m *Message) { m.certificate = cert }
}

// NewMessage builds a Message for the device identified by tokenHex, a
// 64-character hex string decoding to 32 raw bytes, carrying payload as its
// JSON body.
func NewMessage(tokenHex string, payload []byte, opts ...MessageOption) (*Message, error) {
	raw, err := hex.DecodeString(tokenHex)
	if err != nil {
		return nil, fmt.Errorf("apns: bad device token: %w", err)
	}
	if len(raw) != tokenSize {
		return nil, ErrBadToken
	}
	if len(payload) == 0 {
		return nil, ErrPayloadEmpty
	}
	msg := &Message{payload: payload}
	copy(msg.token[:], raw)
	for _, opt := range opts {
		opt(msg)
	}
	return msg, nil
}

// Certificate returns the message's certificate override, or nil if the
// sender's default certificate should be used.
func (m *Message) Certificate() *Certificate { return m.certificate }

// TokenString returns the device token as a lowercase hex string.
func (m *Message) TokenString() string { return hex.EncodeToString(m.token[:]) }

// ValidateLength reports whether the payload fits the legacy framing
// limit. It never mutates the message and never touches the network.
func (m *Message) ValidateLength() bool {
	return len(m.payload) > 0 && len(m.payload) <= MaxPayloadSize
}

// BinaryEncode produces the on-wire frame for this message under the given
// identifier: command byte 1, 4-byte big-endian identifier, 4-byte
// big-endian expiration (0 if unset), 2-byte token length, the 32 token
// bytes, 2-byte payload length, and the payload bytes.
func (m *Message) BinaryEncode(identifier uint32) []byte {
	var expiration uint32
	if !m.expiration.IsZero() {
		expiration = uint32(m.expiration.Unix())
	}
	buf := new(bytes.Buffer)
	buf.Grow(1 + 4 + 4 + 2 + tokenSize + 2 + len(m.payload))
	buf.WriteByte(1)
	binary.Write(buf, binary.BigEndian, identifier)
	binary.Write(buf, binary.BigEndian, expiration)
	binary.Write(buf, binary.BigEndian, uint16(tokenSize))
	buf.Write(m.token[:])
	binary.Write(buf, binary.BigEndian, uint16(len(m.payload)))
	buf.Write(m.payload)
	return buf.Bytes()
}

// NewAlertPayload assembles the conventional {"aps": {...}} JSON body for
// a simple alert/badge/sound notification. badge of 0 is included; sound
// of "" is omitted.
func NewAlertPayload(alert string, badge int, sound string) []byte {
	aps := map[string]interface{}{"alert": alert, "badge": badge}
	if sound != "" {
		aps["sound"] = sound
	}
	payload, err := json.Marshal(map[string]interface{}{"aps": aps})
	if err != nil {
		// aps is built entirely from this function's own arguments, so
		// marshaling cannot fail.
		panic(err)
	}
	return payload
}
