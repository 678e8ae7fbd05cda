package apns

import (
	"errors"
	"time"
)

// Gateway addresses, keyed by environment.
const (
	ServerApns        = "gateway.push.apple.com:2195"
	ServerApnsSandbox = "gateway.sandbox.push.apple.com:2195"
)

// Timing knobs used by Connection.Flush. These exist because APNS reports
// failure asynchronously and unsolicited: there is no ack for success, so
// the only way to notice a rejection is to pause after writing and poll.
var (
	// TimeoutConnect bounds how long a TLS dial may take.
	TimeoutConnect = 30 * time.Second
	// InterSendPause is how long flush waits after each write so the kernel
	// buffer drains and a pending error frame has a chance to land before
	// the next opportunistic read.
	InterSendPause = 10 * time.Millisecond
	// PostDrainWindow is how long flush waits, once the send queue is
	// empty, for a trailing error frame before declaring the flush done.
	PostDrainWindow = 1 * time.Second
)

// maxFlushRounds bounds the recovery loop in Connection.Flush so a
// pathological failure cascade cannot recurse forever. See the Open
// Question resolution in SPEC_FULL.md.
const maxFlushRounds = 1000

// MaxPayloadSize is the legacy binary framing limit for a notification
// payload.
const MaxPayloadSize = 256

// Errors for building a Message. NewMessage returns ErrPayloadEmpty and
// ErrBadToken. ErrPayloadTooLarge is not returned by this package: an
// oversized payload is reported as StatusPayloadTooLong on its envelope.
var (
	ErrPayloadEmpty    = errors.New("apns: payload is empty")
	ErrPayloadTooLarge = errors.New("apns: payload exceeds the legacy framing limit")
	ErrBadToken        = errors.New("apns: device token must be 32 bytes")
)

// ErrTooManyRecoveryRounds is returned by Connection.Flush when more than
// maxFlushRounds recovery cycles occurred without the send queue and the
// post-drain window going quiet at the same time.
var ErrTooManyRecoveryRounds = errors.New("apns: too many recovery rounds in one flush")
