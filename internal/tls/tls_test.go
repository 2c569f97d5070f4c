package tls

import (
	"crypto/x509"
	"testing"
)

func TestLoadTLSConfig_SelfSigned(t *testing.T) {
	cfg, err := LoadTLSConfig(Config{})
	if err != nil {
		t.Fatalf("Failed to build TLS config: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("Expected 1 certificate, got %d", len(cfg.Certificates))
	}

	leaf, err := x509.ParseCertificate(cfg.Certificates[0].Certificate[0])
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}
	if err := leaf.VerifyHostname("localhost"); err != nil {
		t.Errorf("Expected certificate valid for localhost: %v", err)
	}
}

func TestLoadTLSConfig_MissingFiles(t *testing.T) {
	_, err := LoadTLSConfig(Config{CertFile: "missing.pem", KeyFile: "missing.key"})
	if err == nil {
		t.Error("Expected error for missing key pair")
	}
}
