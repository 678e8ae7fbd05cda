package apns

import (
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"syscall"
	"time"
)

// dialFunc opens a transport-level connection to a certificate's gateway.
// It is a seam for testing: production code dials real TLS, tests
// substitute a scripted in-memory net.Conn.
type dialFunc func(cert *Certificate, timeout time.Duration) (net.Conn, error)

func dialTLS(cert *Certificate, timeout time.Duration) (net.Conn, error) {
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert.TLSCertificate()},
	}
	dialer := &net.Dialer{Timeout: timeout}
	return tls.DialWithDialer(dialer, "tcp", cert.Endpoint(), tlsConfig)
}

// Connection is a stateful, single-threaded sender for one certificate. It
// owns the TLS socket, the send queue, the identifier counter, and the
// dense in-flight table that makes selective resend possible after APNS
// reports a rejection and half-closes the connection.
//
// A Connection is not safe for concurrent use; callers must serialize
// access (Sender guards only its fingerprint-to-Connection map, not the
// Connections themselves).
type Connection struct {
	Certificate *Certificate
	Logger      *log.Logger
	// Signal is called once per iteration of the flush loop. Production
	// code leaves it nil; callers that want a cooperative cancellation
	// point can set it to check a context.Context, Go's idiomatic stand-in
	// for the asynchronous signal dispatch a non-Go implementation would
	// use.
	Signal func()

	dial            dialFunc
	connectTimeout  time.Duration
	interSendPause  time.Duration
	postDrainWindow time.Duration

	socket         net.Conn
	lastIdentifier uint32
	inFlight       []*MessageEnvelope
	sendQueue      []*MessageEnvelope
}

// NewConnection returns a Connection dialing real TLS for cert, using the
// package's default timing knobs.
func NewConnection(cert *Certificate) *Connection {
	return &Connection{
		Certificate:     cert,
		Logger:          log.Default(),
		dial:            dialTLS,
		connectTimeout:  TimeoutConnect,
		interSendPause:  InterSendPause,
		postDrainWindow: PostDrainWindow,
	}
}

// Queue assigns the next identifier, constructs an envelope, and stores it
// in the in-flight table before returning it. If the message's payload
// fails ValidateLength, the envelope is marked StatusPayloadTooLong and
// never enters the send queue; it is still returned, and still occupies an
// identifier, so that inFlight's identifier sequence has no gaps.
func (c *Connection) Queue(msg *Message) *MessageEnvelope {
	c.lastIdentifier++
	env := &MessageEnvelope{
		identifier: c.lastIdentifier,
		message:    msg,
		status:     StatusPending,
	}
	c.inFlight = append(c.inFlight, env)
	if !msg.ValidateLength() {
		env.status = StatusPayloadTooLong
		return env
	}
	c.sendQueue = append(c.sendQueue, env)
	return env
}

// QueueLength returns the number of envelopes awaiting a write.
func (c *Connection) QueueLength() int { return len(c.sendQueue) }

// Reset discards the in-flight table and rebases identifiers to zero. It
// is never called automatically: selective resend depends on inFlight
// retaining every envelope issued since the connection was last reset, so
// callers must only call this between flushes, once QueueLength is zero
// and no recovery could still be pending.
func (c *Connection) Reset() {
	c.inFlight = nil
	c.lastIdentifier = 0
}

// Disconnect closes the socket if one is open. It is always safe to call.
func (c *Connection) Disconnect() {
	if c.socket != nil {
		c.socket.Close()
		c.socket = nil
	}
}

func (c *Connection) logf(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

func (c *Connection) connect() error {
	socket, err := c.dial(c.Certificate, c.connectTimeout)
	if err != nil {
		return &ConnectError{Code: connectErrorCode(err), Err: err}
	}
	c.socket = socket
	return nil
}

// connectErrorCode extracts the OS-level errno behind a dial failure, if
// any. A TLS handshake rejected for a bad client certificate or passphrase
// never carries one (crypto/tls reports it as a plain error with no
// syscall underneath), so those failures are left at 0; a real transport
// failure such as connection-refused or host-unreachable always does.
func connectErrorCode(err error) int {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return 0
	}
	var errno syscall.Errno
	if !errors.As(opErr.Err, &errno) {
		return 0
	}
	return int(errno)
}

// Flush drains the send queue, writing each envelope's frame and
// interleaving opportunistic reads for an asynchronous error frame. Once
// the queue is empty, it waits up to PostDrainWindow for a trailing error
// frame; if recovery re-queues messages, it drains again. It returns once
// the queue is empty and a quiet post-drain window has elapsed, or a
// structural failure occurs.
func (c *Connection) Flush() error {
	for round := 0; round < maxFlushRounds; round++ {
		if err := c.drainQueue(); err != nil {
			return err
		}
		recovered, err := c.tryReadErrorFrame(c.postDrainWindow)
		if err != nil {
			return err
		}
		if !recovered {
			return nil
		}
		// A trailing error frame arrived and requeued some messages onto
		// sendQueue; loop to drain them and wait again.
	}
	return ErrTooManyRecoveryRounds
}

func (c *Connection) drainQueue() error {
	for len(c.sendQueue) > 0 {
		env := c.sendQueue[0]
		c.sendQueue = c.sendQueue[1:]
		if c.Signal != nil {
			c.Signal()
		}
		if err := c.sendOne(env); err != nil {
			return err
		}
		if c.interSendPause > 0 {
			time.Sleep(c.interSendPause)
		}
		if _, err := c.tryReadErrorFrame(0); err != nil {
			return err
		}
	}
	return nil
}

// sendOne writes env's frame to the socket, connecting first if needed. A
// short write is a transient transport failure, not a structural one: the
// envelope is marked StatusSendFailed and its message is immediately
// re-queued under a new envelope, without retrying the write in place.
func (c *Connection) sendOne(env *MessageEnvelope) error {
	if c.socket == nil {
		if err := c.connect(); err != nil {
			return err
		}
	}
	frame := env.message.BinaryEncode(env.identifier)
	n, err := c.socket.Write(frame)
	if err != nil || n < len(frame) {
		env.status = StatusSendFailed
		retry := c.Queue(env.message)
		env.retryEnvelope = retry
		c.logf("apns: short write for envelope %d (%d/%d bytes, err=%v), requeued as %d",
			env.identifier, n, len(frame), err, retry.identifier)
		return nil
	}
	env.status = StatusNoErrors
	return nil
}

// tryReadErrorFrame attempts to read a complete 6-byte error frame within
// timeout. It reports whether a frame was read and handled (which may have
// requeued messages onto sendQueue). A timeout with no data available is
// not an error: it means APNS has nothing to report yet.
func (c *Connection) tryReadErrorFrame(timeout time.Duration) (bool, error) {
	if c.socket == nil {
		return false, nil
	}
	deadline := time.Now().Add(timeout)
	if timeout <= 0 {
		deadline = time.Now()
	}
	if err := c.socket.SetReadDeadline(deadline); err != nil {
		return false, nil
	}
	var header [6]byte
	n, err := io.ReadFull(c.socket, header[:])
	c.socket.SetReadDeadline(time.Time{})
	if err != nil {
		if n == 0 {
			// Nothing arrived within the window: timeout, or the
			// connection has nothing buffered yet. Neither is an error
			// worth surfacing to the caller.
			return false, nil
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, nil
		}
		return false, nil
	}
	return c.handleErrorFrame(header[:])
}

// handleErrorFrame implements the recovery protocol in full: verify the
// command byte, close the now-useless socket, record the reported status
// on the rejected envelope, and walk inFlight from the rejected identifier
// forward, requeueing every envelope APNS silently dropped.
func (c *Connection) handleErrorFrame(header []byte) (bool, error) {
	command := header[0]
	if command != 8 {
		c.Disconnect()
		return false, &ProtocolError{
			Reason: fmt.Sprintf("expected command byte 8, got %d", command),
		}
	}
	status := Status(header[1])
	failedID := binary.BigEndian.Uint32(header[2:6])
	c.Disconnect()

	idx := int(failedID) - 1
	if idx >= 0 && idx < len(c.inFlight) {
		c.inFlight[idx].status = status
	}
	for i := idx + 1; i >= 0 && i < len(c.inFlight); i++ {
		env := c.inFlight[i]
		if env.status != StatusNoErrors {
			continue
		}
		env.status = StatusEarlierError
		retry := c.Queue(env.message)
		env.retryEnvelope = retry
	}
	c.logf("apns: envelope %d rejected (%s), recovery requeued trailing envelopes", failedID, status)
	return true, nil
}
