package hook

import (
	"bytes"
	"errors"
	"testing"
)

func TestArm32RedirectLenAndEncode(t *testing.T) {
	a := arm32Arch{}

	if n := a.RedirectLen(0x8000, 0x9000); n != 4 {
		t.Fatalf("near RedirectLen = %d, want 4", n)
	}
	if n := a.RedirectLen(0x8000, 0x8000+armNearWindow+0x1000); n != 12 {
		t.Fatalf("far RedirectLen = %d, want 12", n)
	}

	far, err := a.EncodeRedirect(0x8000, 0x8000+armNearWindow+0x1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(far) != 12 {
		t.Fatalf("far encode len = %d, want 12", len(far))
	}
	// MOVW is cond=1110, opcode 0011 0000 -> top byte 0xE3, 0x0.
	if far[3] != 0xe3 {
		t.Fatalf("far[3] = %x, want movw top byte e3", far[3])
	}
}

func TestArm32RelocateCopiesNonReturn(t *testing.T) {
	a := arm32Arch{}
	// MOV R0, R0 (0xE1A00000), little-endian word bytes.
	snapshot := []byte{0x00, 0x00, 0xa0, 0xe1, 0x00, 0x00, 0xa0, 0xe1}
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
	if len(p.Body) != 16 {
		t.Fatalf("body len = %d, want 16 (4 copied + 12 far jump)", len(p.Body))
	}
}

func TestArm32RelocateRejectsBxLr(t *testing.T) {
	a := arm32Arch{}
	// BX LR (0xE12FFF1E)
	snapshot := []byte{0x1e, 0xff, 0x2f, 0xe1}

	_, err := a.Relocate(0x10000, 0x20000, snapshot, 4)
	if err == nil {
		t.Fatal("expected error for BX LR in prologue")
	}
	if !errors.Is(err, ErrUnsafePrologue) {
		t.Fatalf("got %v, want ErrUnsafePrologue", err)
	}
}
