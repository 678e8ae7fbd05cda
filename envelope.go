package apns

import "fmt"

// MessageEnvelope tracks one Message through a Connection: the identifier
// assigned to it, its terminal (or pending) status, and, if it was
// superseded by a resend, the envelope that replaced it.
//
// An envelope is created by Connection.Queue and mutated only by its owning
// Connection. It persists in that Connection's in-flight table for the
// Connection's lifetime, or until Connection.Reset discards the table.
type MessageEnvelope struct {
	identifier    uint32
	message       *Message
	status        Status
	retryEnvelope *MessageEnvelope
}

// Identifier returns the 32-bit identifier assigned to this envelope by its
// Connection. Identifiers are unique within a Connection and strictly
// increasing in issue order.
func (e *MessageEnvelope) Identifier() uint32 { return e.identifier }

// Message returns the envelope's underlying Message.
func (e *MessageEnvelope) Message() *Message { return e.message }

// Status returns the envelope's current status.
func (e *MessageEnvelope) Status() Status { return e.status }

// RetryEnvelope returns the envelope that superseded this one, or nil if
// this envelope was never resent.
func (e *MessageEnvelope) RetryEnvelope() *MessageEnvelope { return e.retryEnvelope }

// Resolve follows the RetryEnvelope chain to its end and returns the final
// envelope along that chain. For an envelope that was never resent, Resolve
// returns the envelope itself. The chain is finite: each resend produces a
// strictly newer identifier, so following it always terminates.
func (e *MessageEnvelope) Resolve() *MessageEnvelope {
	cur := e
	for cur.retryEnvelope != nil {
		cur = cur.retryEnvelope
	}
	return cur
}

func (e *MessageEnvelope) String() string {
	return fmt.Sprintf("envelope[%d] token=%s status=%s", e.identifier, e.message.TokenString(), e.status)
}
