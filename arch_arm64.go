package hook

import (
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
)

// arm64Arch implements Arch for AArch64. Not present in the C core (which
// special-cases 32-bit ARM encodings even under __aarch64__); this is a
// supplement, grounded by direct analogy to arm32Arch: MOVZ/MOVK build a
// 64-bit destination across four 16-bit shifts into a scratch register
// (x16, the architecture's conventional IP0 veneer/PLT-stub register) and
// BR branches to it, generalizing the 32-bit MOV/MOVT/BX idiom.
type arm64Arch struct{}

func (arm64Arch) ISA() ISA { return Arm64 }

func (arm64Arch) MaxInstrLen() int { return 4 }

const arm64NearWindow = 0x8000000 // 128 MiB: 26-bit signed word offset * 4

func (arm64Arch) RedirectLen(target, detour uintptr) int {
	diff := int64(detour) - int64(target)
	if -arm64NearWindow <= diff && diff < arm64NearWindow {
		return 4
	}
	return 20
}

func (arm64Arch) EncodeRedirect(target, detour uintptr) ([]byte, error) {
	diff := int64(detour) - int64(target)
	if -arm64NearWindow <= diff && diff < arm64NearWindow {
		return arm64EncodeNear(diff), nil
	}
	return arm64EncodeFar(uint64(detour)), nil
}

// arm64EncodeNear builds the 4-byte unconditional `B` instruction: opcode
// 000101 followed by a 26-bit signed word offset.
func arm64EncodeNear(diff int64) []byte {
	word := uint32(diff>>2)&0x03FFFFFF | 0x14000000
	b := make([]byte, 4)
	putLE32(b, word)
	return b
}

const arm64ScratchReg = 16 // x16 / ip0

// arm64EncodeFar builds MOVZ x16,#imm0 ; MOVK x16,#imm1,LSL#16 ;
// MOVK x16,#imm2,LSL#32 ; MOVK x16,#imm3,LSL#48 ; BR x16 — 20 bytes able to
// reach any 64-bit address.
func arm64EncodeFar(dest uint64) []byte {
	b := make([]byte, 20)
	for i := 0; i < 4; i++ {
		imm16 := uint32(dest>>(16*i)) & 0xFFFF
		var op uint32
		if i == 0 {
			op = 0xd2800000 // MOVZ (64-bit)
		} else {
			op = 0xf2800000 // MOVK (64-bit)
		}
		word := op | uint32(i)<<21 | imm16<<5 | arm64ScratchReg
		putLE32(b[i*4:i*4+4], word)
	}
	br := uint32(0xd61f0000) | uint32(arm64ScratchReg)<<5
	putLE32(b[16:20], br)
	return b
}

func (arm64Arch) TrapFill(buf []byte) {
	// BRK #0 (0xD4200000), AArch64's trap-on-execute instruction.
	for i := 0; i+4 <= len(buf); i += 4 {
		putLE32(buf[i:i+4], 0xd4200000)
	}
}

func (arm64Arch) Relocate(target, bodyAddr uintptr, snapshot []byte, redirLen int) (*Prologue, error) {
	if redirLen%4 != 0 || redirLen > len(snapshot) {
		return nil, newErr("arm64.Relocate", KindDecoderFailed, fmt.Errorf("bad redirect length %d", redirLen))
	}

	for off := 0; off < redirLen; off += 4 {
		inst, err := arm64asm.Decode(snapshot[off : off+4])
		if err != nil {
			return nil, newErr("arm64.Relocate", KindDecoderFailed, err)
		}
		if isARM64Return(inst.String()) {
			return nil, newErr("arm64.Relocate", KindUnsafePrologue, fmt.Errorf("return instruction at +%d", off))
		}
	}

	main := make([]byte, redirLen, redirLen+20)
	copy(main, snapshot[:redirLen])

	tailDst := target + uintptr(redirLen)
	main = append(main, arm64EncodeFar(uint64(tailDst))...)

	return &Prologue{Body: main, Consumed: redirLen}, nil
}

func isARM64Return(s string) bool {
	s = strings.ToUpper(s)
	return strings.HasPrefix(s, "RET")
}
