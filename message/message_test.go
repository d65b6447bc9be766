// File: message/message_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package message

import "testing"

func TestInitSizeInlineVsHeap(t *testing.T) {
	var small, big Message
	small.InitSize(8)
	if small.tier != tierInline {
		t.Errorf("expected inline tier for 8 bytes, got %v", small.tier)
	}
	big.InitSize(4096)
	if big.tier != tierHeap {
		t.Errorf("expected heap tier for 4096 bytes, got %v", big.tier)
	}
	small.Close()
	big.Close()
}

func TestMoveEmptiesSource(t *testing.T) {
	var src, dst Message
	src.InitSize(4)
	copy(src.Data(), []byte("abcd"))
	dst.Move(&src)
	if dst.Size() != 4 || string(dst.Data()) != "abcd" {
		t.Fatalf("dst payload wrong: %q", dst.Data())
	}
	if src.Size() != 0 {
		t.Errorf("src should be empty after Move, size=%d", src.Size())
	}
	dst.Close()
}

func TestCopySharesHeapViaPromotion(t *testing.T) {
	var src, a, b Message
	src.InitSize(64)
	copy(src.Data(), []byte("payload-data"))

	a.Copy(&src)
	b.Copy(&src)

	if string(a.Data()) != string(src.Data()) || string(b.Data()) != string(src.Data()) {
		t.Fatal("copies should observe the same bytes as source")
	}
	if src.tier != tierShared {
		t.Errorf("source should have been promoted to shared tier, got %v", src.tier)
	}

	src.Close()
	a.Close()
	b.Close()
}

func TestCloseIsIdempotent(t *testing.T) {
	var m Message
	m.InitSize(16)
	m.Close()
	m.Close() // must not panic or double-free
	if m.Size() != 0 {
		t.Errorf("expected empty message after double close, size=%d", m.Size())
	}
}

func TestInitSharedDtorRunsOnLastRelease(t *testing.T) {
	ran := false
	var m, cp Message
	m.InitShared([]byte("zero-copy"), func() { ran = true })
	cp.Copy(&m)

	m.Close()
	if ran {
		t.Fatal("dtor ran while a copy still references the buffer")
	}
	cp.Close()
	if !ran {
		t.Fatal("dtor should run once the last reference is closed")
	}
}

func TestFlagsRoundTrip(t *testing.T) {
	var m Message
	m.Init()
	m.SetFlags(FlagMore | FlagRoutingID)
	if !m.More() {
		t.Error("expected More() true")
	}
	if m.Flags()&FlagRoutingID == 0 {
		t.Error("expected FlagRoutingID set")
	}
	m.ResetFlags(FlagMore)
	if m.More() {
		t.Error("expected More() false after reset")
	}
}

func TestMetadataSharedAcrossCopies(t *testing.T) {
	md := NewMetadata(map[string]string{"Socket-Type": "DEALER"})
	var a, b Message
	a.Init()
	a.SetMetadata(md)
	b.Copy(&a)

	got, ok := b.Metadata()
	if !ok {
		t.Fatal("expected metadata on copy")
	}
	v, ok := got.Get("Socket-Type")
	if !ok || v != "DEALER" {
		t.Errorf("Get(Socket-Type) = %q, %v", v, ok)
	}
	a.Close()
	b.Close()
}

func TestFromDecodedBodySmallIsInline(t *testing.T) {
	m := FromDecodedBody([]byte("short"), true, false, false, false, false)
	if m.tier != tierInline {
		t.Errorf("expected inline tier, got %v", m.tier)
	}
	if !m.More() {
		t.Error("expected More flag")
	}
	m.Close()
}

func TestFromDecodedBodyLargeIsShared(t *testing.T) {
	body := make([]byte, 256)
	m := FromDecodedBody(body, false, true, false, false, false)
	if m.tier != tierShared {
		t.Errorf("expected shared tier, got %v", m.tier)
	}
	if m.Flags()&FlagCommand == 0 {
		t.Error("expected FlagCommand set")
	}
	m.Close()
}
