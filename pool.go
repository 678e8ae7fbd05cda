package apns

import "sync"

// GatewayFactory builds the Connection for a certificate. Production code
// uses DefaultGatewayFactory, which dials real TLS; tests substitute a
// factory whose Connections carry an in-memory scripted socket.
type GatewayFactory interface {
	Build(cert *Certificate) *Connection
}

type defaultGatewayFactory struct{}

func (defaultGatewayFactory) Build(cert *Certificate) *Connection {
	return NewConnection(cert)
}

// DefaultGatewayFactory dials real TLS connections to the certificate's
// gateway endpoint.
var DefaultGatewayFactory GatewayFactory = defaultGatewayFactory{}

// Sender fans a stream of outgoing Messages out across one Connection per
// certificate fingerprint, creating connections lazily. Two Certificate
// values with the same Fingerprint always share a Connection.
//
// Sender itself serializes access to its fingerprint-to-Connection map
// only. Send/Queue/Flush release that lock before using a Connection, and
// the Connections it creates are not individually safe for concurrent use,
// so concurrent calls that reach the same Connection must be serialized by
// the caller.
type Sender struct {
	factory    GatewayFactory
	defaultCrt *Certificate

	mu          sync.Mutex
	connections map[string]*Connection
}

// NewSender returns a Sender using factory to build connections. messages
// queued without a per-message certificate override use defaultCert.
func NewSender(factory GatewayFactory, defaultCert *Certificate) *Sender {
	if factory == nil {
		factory = DefaultGatewayFactory
	}
	return &Sender{
		factory:     factory,
		defaultCrt:  defaultCert,
		connections: make(map[string]*Connection),
	}
}

func (s *Sender) certificateFor(msg *Message) *Certificate {
	if cert := msg.Certificate(); cert != nil {
		return cert
	}
	return s.defaultCrt
}

func (s *Sender) connectionFor(cert *Certificate) *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp := cert.Fingerprint()
	if conn, ok := s.connections[fp]; ok {
		return conn
	}
	conn := s.factory.Build(cert)
	s.connections[fp] = conn
	return conn
}

// Send queues msg on the connection for its certificate (or the sender's
// default certificate) and flushes that connection immediately.
func (s *Sender) Send(msg *Message) (*MessageEnvelope, error) {
	conn := s.connectionFor(s.certificateFor(msg))
	env := conn.Queue(msg)
	if err := conn.Flush(); err != nil {
		return env, err
	}
	return env, nil
}

// Queue queues msg without flushing, for batching many messages across
// possibly many certificates before a single Flush call.
func (s *Sender) Queue(msg *Message) *MessageEnvelope {
	conn := s.connectionFor(s.certificateFor(msg))
	return conn.Queue(msg)
}

// Flush flushes every connection the sender has created so far. It stops
// at the first connection whose Flush fails and returns that error; the
// remaining connections are not flushed.
func (s *Sender) Flush() error {
	for _, conn := range s.snapshot() {
		if err := conn.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// QueueLength returns the sum of QueueLength across every connection the
// sender has created so far.
func (s *Sender) QueueLength() int {
	total := 0
	for _, conn := range s.snapshot() {
		total += conn.QueueLength()
	}
	return total
}

// Shutdown disconnects every connection the sender has created.
func (s *Sender) Shutdown() {
	for _, conn := range s.snapshot() {
		conn.Disconnect()
	}
}

func (s *Sender) snapshot() []*Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := make([]*Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		conns = append(conns, conn)
	}
	return conns
}
