// File: api/socket.go
// Package api defines socket-type identity and the socket option surface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "fmt"

// SocketType identifies a zlink socket kind, exchanged in the ZMP HELLO frame.
type SocketType uint8

const (
	SocketPair SocketType = iota
	SocketPub
	SocketSub
	SocketXPub
	SocketXSub
	SocketDealer
	SocketRouter
	SocketStream
)

func (t SocketType) String() string {
	switch t {
	case SocketPair:
		return "PAIR"
	case SocketPub:
		return "PUB"
	case SocketSub:
		return "SUB"
	case SocketXPub:
		return "XPUB"
	case SocketXSub:
		return "XSUB"
	case SocketDealer:
		return "DEALER"
	case SocketRouter:
		return "ROUTER"
	case SocketStream:
		return "STREAM"
	default:
		return fmt.Sprintf("SocketType(%d)", uint8(t))
	}
}

// CompatiblePeer implements the handshake compatibility matrix of spec §4.5.2.
func CompatiblePeer(local, peer SocketType) bool {
	switch local {
	case SocketDealer, SocketRouter:
		return peer == SocketDealer || peer == SocketRouter
	case SocketPub, SocketXPub:
		return peer == SocketSub || peer == SocketXSub
	case SocketSub, SocketXSub:
		return peer == SocketPub || peer == SocketXPub
	case SocketPair:
		return peer == SocketPair
	case SocketStream:
		return peer == SocketStream
	default:
		return false
	}
}

// SockOpt is an integer-keyed socket option identifier. Per spec §9's design
// note, runtime option changes go through an exhaustive switch on this type
// rather than a string-keyed map, so the full surface is documented statically.
type SockOpt int

const (
	OptRoutingID SockOpt = iota
	OptIdentity          // deprecated alias of OptRoutingID, spec §9 open question
	OptRecvRoutingID
	OptSndHWM
	OptRcvHWM
	OptHeartbeatIntervalMs
	OptHeartbeatTTLDs
	OptHeartbeatTimeoutMs
	OptHandshakeIntervalMs
	OptReconnectIvlMs
	OptReconnectIvlMaxMs
	OptTCPKeepalive
	OptTCPMaxRtMs
	OptTLSCert
	OptTLSKey
	OptTLSCA
	OptTLSVerify
	OptTLSHostname
	OptTLSRequireClientCert
	OptTLSTrustSystem
	OptZMPMetadata
	OptRouterMandatory
	OptRouterHandover
	OptProbeRouter
)

func (o SockOpt) String() string {
	names := map[SockOpt]string{
		OptRoutingID:            "routing_id",
		OptIdentity:             "identity",
		OptRecvRoutingID:        "recv_routing_id",
		OptSndHWM:               "sndhwm",
		OptRcvHWM:               "rcvhwm",
		OptHeartbeatIntervalMs:  "heartbeat_interval_ms",
		OptHeartbeatTTLDs:       "heartbeat_ttl_ds",
		OptHeartbeatTimeoutMs:   "heartbeat_timeout_ms",
		OptHandshakeIntervalMs:  "handshake_interval_ms",
		OptReconnectIvlMs:       "reconnect_ivl_ms",
		OptReconnectIvlMaxMs:    "reconnect_ivl_max_ms",
		OptTCPKeepalive:         "tcp_keepalive",
		OptTCPMaxRtMs:           "tcp_maxrt_ms",
		OptTLSCert:              "tls_cert",
		OptTLSKey:               "tls_key",
		OptTLSCA:                "tls_ca",
		OptTLSVerify:            "tls_verify",
		OptTLSHostname:          "tls_hostname",
		OptTLSRequireClientCert: "tls_require_client_cert",
		OptTLSTrustSystem:       "tls_trust_system",
		OptZMPMetadata:          "zmp_metadata",
		OptRouterMandatory:      "router_mandatory",
		OptRouterHandover:       "router_handover",
		OptProbeRouter:          "probe_router",
	}
	if n, ok := names[o]; ok {
		return n
	}
	return fmt.Sprintf("SockOpt(%d)", int(o))
}
