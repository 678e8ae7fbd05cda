package apns

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/pkcs12"
)

// Certificate identifies a provider certificate to APNS: its TLS material,
// which gateway environment it dials, and a stable fingerprint used by
// Sender to decide whether two Certificate values should share a
// Connection.
type Certificate struct {
	tlsCert     tls.Certificate
	fingerprint string
	sandbox     bool
	passphrase  string
	hasPass     bool
}

// NewCertificate wraps an already-parsed tls.Certificate. sandbox selects
// the sandbox gateway; otherwise the production gateway is used.
func NewCertificate(cert tls.Certificate, sandbox bool) (*Certificate, error) {
	leaf, err := leafOf(cert)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(leaf.Raw)
	return &Certificate{
		tlsCert:     cert,
		fingerprint: hex.EncodeToString(sum[:]),
		sandbox:     sandbox,
	}, nil
}

// LoadCertificateP12 loads a provider certificate from a PKCS#12 (.p12)
// file, as exported from Keychain Access.
func LoadCertificateP12(filename, password string, sandbox bool) (*Certificate, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	privateKey, x509Cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, err
	}
	tlsCert := tls.Certificate{
		Certificate: [][]byte{x509Cert.Raw},
		PrivateKey:  privateKey,
		Leaf:        x509Cert,
	}
	cert, err := NewCertificate(tlsCert, sandbox)
	if err != nil {
		return nil, err
	}
	cert.passphrase = password
	cert.hasPass = password != ""
	return cert, nil
}

// LoadCertificatePEM loads a provider certificate from a PEM certificate
// and private key file pair.
func LoadCertificatePEM(certFile, keyFile string, sandbox bool) (*Certificate, error) {
	tlsCert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return NewCertificate(tlsCert, sandbox)
}

func leafOf(cert tls.Certificate) (*x509.Certificate, error) {
	if cert.Leaf != nil {
		return cert.Leaf, nil
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("apns: certificate has no leaf")
	}
	return x509.ParseCertificate(cert.Certificate[0])
}

// Fingerprint returns a stable identity string for this certificate. Two
// Certificate values with the same Fingerprint are treated as identical by
// Sender and will share a Connection.
func (c *Certificate) Fingerprint() string { return c.fingerprint }

// Endpoint returns the gateway address this certificate connects to.
func (c *Certificate) Endpoint() string {
	if c.sandbox {
		return ServerApnsSandbox
	}
	return ServerApns
}

// Sandbox reports whether this certificate targets the sandbox gateway.
func (c *Certificate) Sandbox() bool { return c.sandbox }

// TLSCertificate returns the underlying certificate and key material.
func (c *Certificate) TLSCertificate() tls.Certificate { return c.tlsCert }

// Passphrase returns the certificate's passphrase, if it was loaded from a
// password-protected file.
func (c *Certificate) Passphrase() (string, bool) { return c.passphrase, c.hasPass }

// CertificateInfo describes metadata parsed out of a certificate's subject
// and extensions: which bundle ID and topics it covers, which APNS
// environments it supports, and when it expires.
type CertificateInfo struct {
	CName       string
	OrgName     string
	OrgUnit     string
	Country     string
	BundleID    string
	Topics      []string
	Development bool
	Production  bool
	IsApple     bool
	Expire      time.Time
}

// Info parses and returns metadata about the certificate's leaf.
func (c *Certificate) Info() (*CertificateInfo, error) {
	leaf, err := leafOf(c.tlsCert)
	if err != nil {
		return nil, err
	}
	info := &CertificateInfo{
		CName:   leaf.Subject.CommonName,
		Expire:  leaf.NotAfter,
		IsApple: leaf.Issuer.CommonName == appleDevIssuerCN,
	}
	for _, attr := range leaf.Subject.Names {
		switch t := attr.Type; {
		case t.Equal(typeOrgName):
			if v, ok := attr.Value.(string); ok {
				info.OrgName = v
			}
		case t.Equal(typeOrgUnit):
			if v, ok := attr.Value.(string); ok {
				info.OrgUnit = v
			}
		case t.Equal(typeBundle):
			if v, ok := attr.Value.(string); ok {
				info.BundleID = v
			}
		case t.Equal(typeCountry):
			if v, ok := attr.Value.(string); ok {
				info.Country = v
			}
		}
	}
	for _, ext := range leaf.Extensions {
		switch t := ext.Id; {
		case t.Equal(typeDevelopment):
			info.Development = true
		case t.Equal(typeProduction):
			info.Production = true
		case t.Equal(typeTopics):
			info.Topics = parseTopics(ext.Value)
		}
	}
	return info, nil
}

// parseTopics decodes the APNS topics certificate extension, a sequence of
// (topic string, usage names) pairs.
func parseTopics(value []byte) []string {
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(value, &raw); err != nil {
		return nil
	}
	var topics []string
	for rest := raw.Bytes; len(rest) > 0; {
		var err error
		var topic string
		if rest, err = asn1.Unmarshal(rest, &topic); err != nil {
			break
		}
		topics = append(topics, topic)
		var names []string
		if rest, err = asn1.Unmarshal(rest, &names); err != nil {
			break
		}
	}
	return topics
}

// Support reports whether the certificate supports pushing to topic. A
// certificate with no topics extension supports only its own bundle ID.
func (i *CertificateInfo) Support(topic string) bool {
	if len(i.Topics) == 0 {
		return topic == i.BundleID
	}
	for _, name := range i.Topics {
		if name == topic {
			return true
		}
	}
	return false
}

func (i *CertificateInfo) String() string { return i.CName }

const appleDevIssuerCN = "Apple Worldwide Developer Relations Certification Authority"

var (
	typeCountry     = asn1.ObjectIdentifier{2, 5, 4, 6}
	typeOrgName     = asn1.ObjectIdentifier{2, 5, 4, 10}
	typeOrgUnit     = asn1.ObjectIdentifier{2, 5, 4, 11}
	typeBundle      = asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 1}
	typeDevelopment = asn1.ObjectIdentifier{1, 2, 840, 113635, 100, 6, 3, 1}
	typeProduction  = asn1.ObjectIdentifier{1, 2, 840, 113635, 100, 6, 3, 2}
	typeTopics      = asn1.ObjectIdentifier{1, 2, 840, 113635, 100, 6, 3, 6}
)
