// File: transport/tls/tls_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tls

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/zlinkio/zlink/api"
)

// writeSelfSignedCert generates a throwaway self-signed cert/key pair on
// disk for Dial/Listen to load; handshake tests have no business reaching
// out to a real CA.
func writeSelfSignedCert(t *testing.T) (certPath, keyPath string) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}

	certFile, err := os.CreateTemp(t.TempDir(), "cert-*.pem")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer certFile.Close()
	if err := pem.Encode(certFile, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		t.Fatalf("pem.Encode cert: %v", err)
	}

	keyBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}
	keyFile, err := os.CreateTemp(t.TempDir(), "key-*.pem")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer keyFile.Close()
	if err := pem.Encode(keyFile, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}); err != nil {
		t.Fatalf("pem.Encode key: %v", err)
	}

	return certFile.Name(), keyFile.Name()
}

func TestDialListenHandshakeRoundTrip(t *testing.T) {
	certPath, keyPath := writeSelfSignedCert(t)

	ln, err := Listen("127.0.0.1:0", &Config{CertFile: certPath, KeyFile: keyPath})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	srvDone := make(chan error, 1)
	go func() {
		srv, err := ln.Accept()
		if err != nil {
			srvDone <- err
			return
		}
		defer srv.Close()
		done := make(chan error, 1)
		srv.AsyncHandshake(context.Background(), api.HandshakeServer, func(err error) { done <- err })
		if err := <-done; err != nil {
			srvDone <- err
			return
		}
		buf := make([]byte, 5)
		if _, err := srv.ReadSome(buf); err != nil {
			srvDone <- err
			return
		}
		if _, err := srv.WriteSome(buf); err != nil {
			srvDone <- err
			return
		}
		srvDone <- nil
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cli, err := Dial(ctx, ln.Addr().String(), &Config{ServerName: "localhost", InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer cli.Close()

	handshakeDone := make(chan error, 1)
	cli.AsyncHandshake(ctx, api.HandshakeClient, func(err error) { handshakeDone <- err })
	if err := <-handshakeDone; err != nil {
		t.Fatalf("AsyncHandshake: %v", err)
	}

	if !cli.Features().SupportsHandshake {
		t.Error("want SupportsHandshake")
	}

	if _, err := cli.WriteSome([]byte("hello")); err != nil {
		t.Fatalf("WriteSome: %v", err)
	}
	buf := make([]byte, 5)
	n, err := cli.ReadSome(buf)
	if err != nil {
		t.Fatalf("ReadSome: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("got %q, want hello", buf[:n])
	}

	if err := <-srvDone; err != nil {
		t.Fatalf("server: %v", err)
	}
}
