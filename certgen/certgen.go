// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package certgen generates the self-signed certificate pair a peer
// session presents during its TLS handshake (spec §4.2): "The client
// presents a self-signed certificate from a chain specific to this
// ecosystem; the peer presents the same; both accept any validly-formed
// certificate (no PKI, no hostname check)." Reconstructed from the
// well-known dcrd/exccd certgen package convention (no source file for
// it was retrievable; see DESIGN.md) since no third-party certificate
// library appears anywhere in the pack's dependency surface — the
// standard library's crypto/x509 and crypto/tls already do exactly this
// job.
package certgen

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"
)

// NewTLSCertPair generates a new PEM-encoded, DER-format certificate and
// its matching private key, valid for the given duration from now and
// covering the given extra hosts/IPs in addition to "localhost". The
// returned certificate has no issuer beyond itself: it is self-signed,
// matching the no-PKI model spec §4.2 requires of every peer.
func NewTLSCertPair(organization string, validFor time.Duration, extraHosts []string) (certPEM, keyPEM []byte, err error) {
	now := time.Now()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("certgen: generate key: %w", err)
	}

	serialLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, serialLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("certgen: generate serial: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{organization},
		},
		NotBefore: now.Add(-time.Hour),
		NotAfter:  now.Add(validFor),

		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,

		DNSNames: []string{"localhost"},
	}

	for _, host := range extraHosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, fmt.Errorf("certgen: create certificate: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})

	keyBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("certgen: marshal key: %w", err)
	}
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})

	return certPEM, keyPEM, nil
}

// LoadCert loads a PEM certificate/key pair as a tls.Certificate usable
// directly in a tls.Config, for either side of a session (spec §4.2
// requires the client and the peer both present one).
func LoadCert(certPEM, keyPEM []byte) (tls.Certificate, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("certgen: load key pair: %w", err)
	}
	return cert, nil
}
