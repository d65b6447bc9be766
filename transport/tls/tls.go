// File: transport/tls/tls.go
// Package tls provides the TLS carrier (zlink's "TLS" transport class):
// Dial for active sessions, Listen/Accept for passive ones, plus the
// handshake-as-async-op Transport decorator the engine drives explicitly
// before installing the ZMP decoder/encoder (spec §2, transport class TLS).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package tls

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/hkdf"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/transport"
)

// loadPEM reads a PEM-encoded certificate or CA bundle from disk.
func loadPEM(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Config carries the spec §9 SockOpt-level TLS knobs (cert/key/CA/verify/
// hostname/require-client-cert/trust-system) translated into a *tls.Config.
type Config struct {
	CertFile           string
	KeyFile            string
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool
	RequireClientCert  bool
	TrustSystemRoots   bool

	// TicketKeySeed, if set, deterministically derives the server's session
	// ticket encryption key via HKDF-SHA256 instead of relying on the
	// process-random default, so a load-balanced fleet of zctx processes
	// sharing TicketKeySeed can resume each other's sessions.
	TicketKeySeed []byte
}

// build turns cfg into a *tls.Config, loading certificates and CA pools as
// configured. server selects ClientAuth vs. plain verification.
func (cfg *Config) build(server bool) (*tls.Config, error) {
	tc := &tls.Config{
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("tls: load keypair: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		pool := x509.NewCertPool()
		if cfg.TrustSystemRoots {
			sys, err := x509.SystemCertPool()
			if err == nil {
				pool = sys
			}
		}
		pem, err := loadPEM(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("tls: load CA: %w", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("tls: no certs parsed from %s", cfg.CAFile)
		}
		if server {
			tc.ClientCAs = pool
		} else {
			tc.RootCAs = pool
		}
	}

	if server && cfg.RequireClientCert {
		tc.ClientAuth = tls.RequireAndVerifyClientCert
	}

	if server && len(cfg.TicketKeySeed) > 0 {
		var key [32]byte
		kdf := hkdf.New(sha256.New, cfg.TicketKeySeed, nil, []byte("zlink-tls-ticket-key"))
		if _, err := kdf.Read(key[:]); err != nil {
			return nil, fmt.Errorf("tls: derive ticket key: %w", err)
		}
		tc.SetSessionTicketKeys([][32]byte{key})
	}

	return tc, nil
}

// Dial opens the TCP connection and returns a Transport whose
// AsyncHandshake performs the TLS client handshake (spec §4.5.4
// SupportsHandshake path — the engine calls AsyncHandshake before loading
// its decoder/encoder).
func Dial(ctx context.Context, addr string, cfg *Config) (api.Transport, error) {
	tc, err := cfg.build(false)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tcpConn, ok := raw.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	conn := tls.Client(raw, tc)
	return newHandshakeTransport(conn, api.HandshakeClient), nil
}

// Listener accepts raw TCP connections and upgrades each to TLS lazily,
// deferring the handshake to the engine's AsyncHandshake call so a slow or
// hostile peer cannot block the accept loop.
type Listener struct {
	ln net.Listener
	tc *tls.Config
}

// Listen binds addr for passive TLS sockets.
func Listen(addr string, cfg *Config) (*Listener, error) {
	tc, err := cfg.build(true)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, tc: tc}, nil
}

// Accept returns the next inbound connection, not yet TLS-handshaken.
func (l *Listener) Accept() (api.Transport, error) {
	raw, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	if tcpConn, ok := raw.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	conn := tls.Server(raw, l.tc)
	return newHandshakeTransport(conn, api.HandshakeServer), nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// handshakeTransport decorates transport.StreamTransport, replacing its
// no-op AsyncHandshake with a real tls.Conn.HandshakeContext call and
// reporting SupportsHandshake in Features.
type handshakeTransport struct {
	*transport.StreamTransport
	conn *tls.Conn
	role api.HandshakeRole
}

func newHandshakeTransport(conn *tls.Conn, role api.HandshakeRole) *handshakeTransport {
	return &handshakeTransport{
		StreamTransport: transport.NewStream(transport.NewNetConn(conn)),
		conn:            conn,
		role:            role,
	}
}

func (t *handshakeTransport) AsyncHandshake(ctx context.Context, _ api.HandshakeRole, handler func(error)) {
	go func() {
		handler(t.conn.HandshakeContext(ctx))
	}()
}

func (t *handshakeTransport) Features() api.TransportFeatures {
	f := t.StreamTransport.Features()
	f.SupportsHandshake = true
	return f
}

var _ api.Transport = (*handshakeTransport)(nil)
