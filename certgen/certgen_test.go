// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package certgen

import (
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"
)

func TestNewTLSCertPairIsSelfSigned(t *testing.T) {
	certPEM, keyPEM, err := NewTLSCertPair("chialisten test", time.Hour, []string{"10.0.0.1", "peer.example"})
	if err != nil {
		t.Fatalf("NewTLSCertPair: %v", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		t.Fatal("certPEM did not decode as PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	if err := cert.CheckSignatureFrom(cert); err != nil {
		t.Fatalf("certificate is not self-signed: %v", err)
	}

	wantDNS := map[string]bool{"localhost": false, "peer.example": false}
	for _, name := range cert.DNSNames {
		if _, ok := wantDNS[name]; ok {
			wantDNS[name] = true
		}
	}
	for name, found := range wantDNS {
		if !found {
			t.Fatalf("expected DNS name %q on certificate, got %v", name, cert.DNSNames)
		}
	}
	if len(cert.IPAddresses) != 1 || cert.IPAddresses[0].String() != "10.0.0.1" {
		t.Fatalf("expected IP SAN 10.0.0.1, got %v", cert.IPAddresses)
	}

	if _, err := LoadCert(certPEM, keyPEM); err != nil {
		t.Fatalf("LoadCert: %v", err)
	}
}

func TestLoadCertRejectsMismatchedKey(t *testing.T) {
	cert1, _, err := NewTLSCertPair("a", time.Hour, nil)
	if err != nil {
		t.Fatalf("NewTLSCertPair: %v", err)
	}
	_, key2, err := NewTLSCertPair("b", time.Hour, nil)
	if err != nil {
		t.Fatalf("NewTLSCertPair: %v", err)
	}
	if _, err := LoadCert(cert1, key2); err == nil {
		t.Fatal("expected LoadCert to reject a certificate/key mismatch")
	}
}
