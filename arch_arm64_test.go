package hook

import (
	"bytes"
	"errors"
	"testing"
)

func TestArm64RedirectLenAndEncode(t *testing.T) {
	a := arm64Arch{}

	if n := a.RedirectLen(0x8000, 0x9000); n != 4 {
		t.Fatalf("near RedirectLen = %d, want 4", n)
	}
	if n := a.RedirectLen(0x8000, 0x8000+arm64NearWindow+0x1000); n != 20 {
		t.Fatalf("far RedirectLen = %d, want 20", n)
	}

	far, err := a.EncodeRedirect(0x8000, 0x8000+arm64NearWindow+0x1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(far) != 20 {
		t.Fatalf("far encode len = %d, want 20", len(far))
	}
	// last word is BR x16: 0xD61F0200
	last := uint32(far[16]) | uint32(far[17])<<8 | uint32(far[18])<<16 | uint32(far[19])<<24
	if last != 0xd61f0200 {
		t.Fatalf("BR word = %x, want d61f0200", last)
	}
}

func TestArm64RelocateCopiesNonReturn(t *testing.T) {
	a := arm64Arch{}
	// NOP (0xD503201F), little-endian word bytes.
	snapshot := []byte{0x1f, 0x20, 0x03, 0xd5, 0x1f, 0x20, 0x03, 0xd5}
	target := uintptr(0x10000)
	bodyAddr := uintptr(0x20000)

	p, err := a.Relocate(target, bodyAddr, snapshot, 4)
	if err != nil {
		t.Fatal(err)
	}
	if p.Consumed != 4 {
		t.Fatalf("Consumed = %d, want 4", p.Consumed)
	}
	if !bytes.Equal(p.Body[:4], snapshot[:4]) {
		t.Fatalf("relocated word = % x, want % x", p.Body[:4], snapshot[:4])
	}
	if len(p.Body) != 24 {
		t.Fatalf("body len = %d, want 24 (4 copied + 20 far jump)", len(p.Body))
	}
}

func TestArm64RelocateRejectsRet(t *testing.T) {
	a := arm64Arch{}
	// RET (0xD65F03C0)
	snapshot := []byte{0xc0, 0x03, 0x5f, 0xd6}

	_, err := a.Relocate(0x10000, 0x20000, snapshot, 4)
	if err == nil {
		t.Fatal("expected error for RET in prologue")
	}
	if !errors.Is(err, ErrUnsafePrologue) {
		t.Fatalf("got %v, want ErrUnsafePrologue", err)
	}
}
