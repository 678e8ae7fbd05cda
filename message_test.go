package apns

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	token := strings.Repeat("ab", 32)
	payload := NewAlertPayload("hi", 1, "")

	msg, err := NewMessage(token, payload)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if msg.TokenString() != token {
		t.Fatalf("TokenString = %q, want %q", msg.TokenString(), token)
	}
	if msg.Certificate() != nil {
		t.Fatal("Certificate() should be nil without WithCertificate")
	}
}

func TestNewMessage_BadToken(t *testing.T) {
	cases := []string{
		"",
		"not-hex",
		strings.Repeat("ab", 31),
		strings.Repeat("ab", 33),
	}
	for _, tok := range cases {
		if _, err := NewMessage(tok, []byte("x")); err == nil {
			t.Errorf("NewMessage(%q) = nil error, want one", tok)
		}
	}
}

func TestNewMessage_EmptyPayload(t *testing.T) {
	token := strings.Repeat("ab", 32)
	if _, err := NewMessage(token, nil); err != ErrPayloadEmpty {
		t.Fatalf("err = %v, want %v", err, ErrPayloadEmpty)
	}
}

func TestMessage_ValidateLength(t *testing.T) {
	token := strings.Repeat("ab", 32)

	atLimit, err := NewMessage(token, bytes.Repeat([]byte("a"), MaxPayloadSize))
	if err != nil {
		t.Fatal(err)
	}
	if !atLimit.ValidateLength() {
		t.Error("payload exactly at MaxPayloadSize should validate")
	}

	overLimit, err := NewMessage(token, bytes.Repeat([]byte("a"), MaxPayloadSize+1))
	if err != nil {
		t.Fatal(err)
	}
	if overLimit.ValidateLength() {
		t.Error("payload one byte over MaxPayloadSize should not validate")
	}
}

func TestMessage_WithCertificate(t *testing.T) {
	cert := testCertificate(t, "")
	token := strings.Repeat("ab", 32)
	msg, err := NewMessage(token, []byte("x"), WithCertificate(cert))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Certificate() != cert {
		t.Fatal("Certificate() should return the override from WithCertificate")
	}
}

func TestMessage_BinaryEncode(t *testing.T) {
	token := strings.Repeat("ab", 32)
	payload := []byte(`{"aps":{"alert":"hi"}}`)
	expires := time.Unix(1700000000, 0)
	msg, err := NewMessage(token, payload, WithExpiration(expires))
	if err != nil {
		t.Fatal(err)
	}

	frame := msg.BinaryEncode(42)
	if frame[0] != 1 {
		t.Fatalf("command byte = %d, want 1", frame[0])
	}
	if id := binary.BigEndian.Uint32(frame[1:5]); id != 42 {
		t.Fatalf("identifier = %d, want 42", id)
	}
	if exp := binary.BigEndian.Uint32(frame[5:9]); exp != uint32(expires.Unix()) {
		t.Fatalf("expiration = %d, want %d", exp, expires.Unix())
	}
	if tl := binary.BigEndian.Uint16(frame[9:11]); tl != tokenSize {
		t.Fatalf("token length = %d, want %d", tl, tokenSize)
	}
	if !bytes.Equal(frame[11:11+tokenSize], mustDecodeToken(token)) {
		t.Fatal("token bytes mismatch")
	}
	plOff := 11 + tokenSize
	if pl := binary.BigEndian.Uint16(frame[plOff : plOff+2]); int(pl) != len(payload) {
		t.Fatalf("payload length = %d, want %d", pl, len(payload))
	}
	if !bytes.Equal(frame[plOff+2:], payload) {
		t.Fatal("payload bytes mismatch")
	}
	if len(frame) != 1+4+4+2+tokenSize+2+len(payload) {
		t.Fatalf("frame length = %d, want %d", len(frame), 1+4+4+2+tokenSize+2+len(payload))
	}
}

func TestMessage_BinaryEncode_NoExpiration(t *testing.T) {
	token := strings.Repeat("ab", 32)
	msg, err := NewMessage(token, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	frame := msg.BinaryEncode(1)
	if exp := binary.BigEndian.Uint32(frame[5:9]); exp != 0 {
		t.Fatalf("expiration = %d, want 0 when unset", exp)
	}
}

func TestNewAlertPayload(t *testing.T) {
	payload := NewAlertPayload("hello", 3, "default")
	if !bytes.Contains(payload, []byte(`"alert":"hello"`)) {
		t.Errorf("payload missing alert: %s", payload)
	}
	if !bytes.Contains(payload, []byte(`"badge":3`)) {
		t.Errorf("payload missing badge: %s", payload)
	}
	if !bytes.Contains(payload, []byte(`"sound":"default"`)) {
		t.Errorf("payload missing sound: %s", payload)
	}
}

func TestNewAlertPayload_NoSound(t *testing.T) {
	payload := NewAlertPayload("hello", 0, "")
	if bytes.Contains(payload, []byte("sound")) {
		t.Errorf("payload should omit sound when empty: %s", payload)
	}
}

func mustDecodeToken(hexToken string) []byte {
	raw := make([]byte, tokenSize)
	for i := 0; i < tokenSize; i++ {
		b := hexToken[i*2 : i*2+2]
		var v byte
		for _, c := range []byte(b) {
			v <<= 4
			switch {
			case c >= '0' && c <= '9':
				v |= c - '0'
			case c >= 'a' && c <= 'f':
				v |= c - 'a' + 10
			}
		}
		raw[i] = v
	}
	return raw
}
