package apns

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"encoding/pem"
	"errors"
	"os"
	"regexp"
	"strings"
)

// Config is the on-disk description of a provider certificate: its bundle
// ID, which environment it targets, and its PEM certificate chain and
// private key.
type Config struct {
	BundleID    string
	Sandbox     bool
	Certificate *Certificate
}

// LoadConfig reads and unmarshals a JSON-encoded Config from filename.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := new(Config)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}
	return config, nil
}

// configJSON is the wire shape of Config: a bundle ID, a sandbox flag, and
// PEM-encoded certificate chain blocks plus a PEM-encoded private key.
type configJSON struct {
	BundleID    string   `json:"bundleId"`
	Sandbox     bool     `json:"sandbox,omitempty"`
	Certificate [][]byte `json:"certificate"`
	PrivateKey  []byte   `json:"privateKey"`
}

// UnmarshalJSON decodes the configJSON wire shape and builds the
// Certificate from its PEM blocks.
func (config *Config) UnmarshalJSON(data []byte) error {
	var raw configJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tlsCert, err := tls.X509KeyPair(bytes.Join(raw.Certificate, []byte{'\n'}), raw.PrivateKey)
	if err != nil {
		return err
	}
	cert, err := NewCertificate(tlsCert, raw.Sandbox)
	if err != nil {
		return err
	}
	config.BundleID = raw.BundleID
	config.Sandbox = raw.Sandbox
	config.Certificate = cert
	return nil
}

// CreateConfig returns the indented JSON encoding of a configJSON built
// from a PEM certificate file and PEM private key file, ready to be written
// to a file as-is and later loaded with LoadConfig. If bundleID is empty, it
// attempts to recover one from the certificate file's subject line.
func CreateConfig(bundleID, certFile, keyFile string, sandbox bool) ([]byte, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, err
	}
	if bundleID == "" {
		if m := bundleIDPattern.FindSubmatch(certPEM); len(m) > 1 {
			bundleID = string(m[1])
		}
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, err
	}
	if _, err := tls.X509KeyPair(certPEM, keyPEM); err != nil {
		return nil, err
	}

	var certBlocks [][]byte
	rest := certPEM
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			certBlocks = append(certBlocks, pem.EncodeToMemory(block))
		}
	}
	if len(certBlocks) == 0 {
		return nil, errors.New("apns: no certificates found in " + certFile)
	}

	var keyBlock *pem.Block
	rest = keyPEM
	for {
		keyBlock, rest = pem.Decode(rest)
		if keyBlock == nil {
			return nil, errors.New("apns: failed to parse private key PEM data")
		}
		if keyBlock.Type == "PRIVATE KEY" || strings.HasSuffix(keyBlock.Type, " PRIVATE KEY") {
			break
		}
	}

	raw := configJSON{
		BundleID:    bundleID,
		Sandbox:     sandbox,
		Certificate: certBlocks,
		PrivateKey:  pem.EncodeToMemory(keyBlock),
	}
	return json.MarshalIndent(raw, "", "\t")
}

var bundleIDPattern = regexp.MustCompile(`subject=.*UID=([\w.-]{3,})`)
