package apns

import "testing"

func TestSender_ConnectionReuse(t *testing.T) {
	gw := &mockGateway{}
	cert := testCertificate(t, "shared")
	factory := &stubFactory{byFingerprint: map[string]*mockGateway{cert.Fingerprint(): gw}}
	sender := NewSender(factory, cert)

	c1 := sender.connectionFor(cert)
	c2 := sender.connectionFor(cert)
	if c1 != c2 {
		t.Fatal("two lookups for the same fingerprint should return the same Connection")
	}
}

func TestSender_DefaultCertificateFallback(t *testing.T) {
	gw := &mockGateway{}
	cert := testCertificate(t, "default")
	factory := &stubFactory{byFingerprint: map[string]*mockGateway{cert.Fingerprint(): gw}}
	sender := NewSender(factory, cert)

	msg, err := NewMessage(hexToken(0x10), NewAlertPayload("hi", 0, ""))
	if err != nil {
		t.Fatal(err)
	}
	if sender.certificateFor(msg) != cert {
		t.Fatal("a message with no certificate override should fall back to the sender's default")
	}
}

func TestSender_Send(t *testing.T) {
	gw := &mockGateway{}
	cert := testCertificate(t, "send")
	factory := &stubFactory{byFingerprint: map[string]*mockGateway{cert.Fingerprint(): gw}}
	sender := NewSender(factory, cert)

	msg, err := NewMessage(hexToken(0x11), NewAlertPayload("hi", 0, ""))
	if err != nil {
		t.Fatal(err)
	}
	env, err := sender.Send(msg)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if env.Status() != StatusNoErrors {
		t.Fatalf("status = %s, want %s", env.Status(), StatusNoErrors)
	}
	if sender.QueueLength() != 0 {
		t.Fatalf("QueueLength after Send = %d, want 0", sender.QueueLength())
	}
}

func TestNewSender_NilFactory(t *testing.T) {
	cert := testCertificate(t, "")
	sender := NewSender(nil, cert)
	if sender.factory != DefaultGatewayFactory {
		t.Error("NewSender(nil, ...) should fall back to DefaultGatewayFactory")
	}
}

func TestDefaultGatewayFactory_Build(t *testing.T) {
	cert := testCertificate(t, "")
	conn := DefaultGatewayFactory.Build(cert)
	if conn.Certificate != cert {
		t.Error("built Connection should carry the certificate it was built for")
	}
}

func TestSender_Shutdown(t *testing.T) {
	gw := &mockGateway{}
	cert := testCertificate(t, "shutdown")
	factory := &stubFactory{byFingerprint: map[string]*mockGateway{cert.Fingerprint(): gw}}
	sender := NewSender(factory, cert)

	msg, err := NewMessage(hexToken(0x12), NewAlertPayload("hi", 0, ""))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sender.Send(msg); err != nil {
		t.Fatal(err)
	}
	sender.Shutdown()
	// Shutdown must not panic or error on a second call against an already
	// disconnected connection.
	sender.Shutdown()
}
