// File: wire/wire_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package wire

import (
	"bytes"
	"testing"

	"github.com/zlinkio/zlink/api"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := NewEncoder()
	body := []byte("hello world")
	if err := enc.Load(FlagMore, body); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var wire []byte
	buf := make([]byte, 3) // small buffer forces several Pull calls
	for {
		n, done := enc.Pull(buf)
		wire = append(wire, buf[:n]...)
		if done {
			break
		}
	}

	dec := NewDecoder(0, nil)
	var frame *Frame
	for off := 0; off < len(wire); {
		dst := dec.NextBuffer()
		n := copy(dst, wire[off:])
		off += n
		fr, err := dec.Feed(n)
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		if fr != nil {
			frame = fr
		}
	}
	if frame == nil {
		t.Fatal("expected a decoded frame")
	}
	if !frame.Flags.More() {
		t.Error("expected More flag set")
	}
	if !bytes.Equal(frame.Body, body) {
		t.Errorf("body mismatch: got %q want %q", frame.Body, body)
	}
}

func TestDecoderRejectsBadMagic(t *testing.T) {
	dec := NewDecoder(0, nil)
	hdr := []byte{0x00, Version, 0, 0, 0, 0, 0, 0}
	dst := dec.NextBuffer()
	n := copy(dst, hdr)
	if _, err := dec.Feed(n); err != errInvalidMagic {
		t.Errorf("expected errInvalidMagic, got %v", err)
	}
}

func TestDecoderRejectsOversizeBody(t *testing.T) {
	dec := NewDecoder(16, nil)
	hdr := []byte{Magic, Version, 0, 0, 0, 0, 0, 32}
	dst := dec.NextBuffer()
	n := copy(dst, hdr)
	if _, err := dec.Feed(n); err != errBodyTooLarge {
		t.Errorf("expected errBodyTooLarge, got %v", err)
	}
}

func TestFlagValidateMutualExclusion(t *testing.T) {
	cases := []Flag{
		FlagControl | FlagMore,
		FlagControl | FlagIdentity,
		FlagSubscribe | FlagCancel,
		Flag(0x80),
	}
	for _, f := range cases {
		if err := f.validate(); err == nil {
			t.Errorf("flag %08b: expected validation error", f)
		}
	}
}

func TestHelloRoundTrip(t *testing.T) {
	body := EncodeHello(api.SocketDealer, []byte{0x01, 0x02, 0x03})
	ct, err := PeekControlType(body)
	if err != nil || ct != CtlHello {
		t.Fatalf("PeekControlType: %v %v", ct, err)
	}
	st, id, err := DecodeHello(body)
	if err != nil {
		t.Fatalf("DecodeHello: %v", err)
	}
	if st != api.SocketDealer {
		t.Errorf("socket type = %v, want Dealer", st)
	}
	if !bytes.Equal(id, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("routing id mismatch: %v", id)
	}
}

func TestHeartbeatShortForm(t *testing.T) {
	body := EncodeHeartbeat(0, nil)
	if len(body) != 1 {
		t.Fatalf("expected 1-byte short form, got %d bytes", len(body))
	}
	ttl, ctx, err := DecodeHeartbeat(body)
	if err != nil {
		t.Fatalf("DecodeHeartbeat: %v", err)
	}
	if ttl != 0 || ctx != nil {
		t.Errorf("expected zero ttl and nil ctx, got %d %v", ttl, ctx)
	}
}

func TestHeartbeatLongForm(t *testing.T) {
	body := EncodeHeartbeat(300, []byte("abc"))
	ttl, ctx, err := DecodeHeartbeat(body)
	if err != nil {
		t.Fatalf("DecodeHeartbeat: %v", err)
	}
	if ttl != 300 {
		t.Errorf("ttl = %d, want 300", ttl)
	}
	if string(ctx) != "abc" {
		t.Errorf("ctx = %q, want abc", ctx)
	}
}

func TestReadyRoundTrip(t *testing.T) {
	props := map[string]string{"Socket-Type": "DEALER", "Identity": "peer-1"}
	body := EncodeReady(props)
	got, err := DecodeReady(body)
	if err != nil {
		t.Fatalf("DecodeReady: %v", err)
	}
	for k, v := range props {
		if got[k] != v {
			t.Errorf("property %q = %q, want %q", k, got[k], v)
		}
	}
}

func TestErrorRoundTrip(t *testing.T) {
	body := EncodeError(api.ZMPErrSocketTypeMismatch, "incompatible peer")
	code, reason, err := DecodeError(body)
	if err != nil {
		t.Fatalf("DecodeError: %v", err)
	}
	if code != api.ZMPErrSocketTypeMismatch {
		t.Errorf("code = %v, want ZMPErrSocketTypeMismatch", code)
	}
	if reason != "incompatible peer" {
		t.Errorf("reason = %q", reason)
	}
}
