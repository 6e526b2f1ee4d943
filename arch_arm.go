package hook

import (
	"fmt"
	"strings"

	"golang.org/x/arch/arm/armasm"
)

// arm32Arch implements Arch for 32-bit ARM, grounded on
// original_source/src/inline_hook.c's arm_trampoline_t path:
// _arm_fill_jump_code{,_near,_far} for the exact B / MOV+MOVT+BX
// encodings, and the "copy 1 or 3 words verbatim, then far-jump to
// target+N" relocation policy.
type arm32Arch struct{}

func (arm32Arch) ISA() ISA { return Arm32 }

func (arm32Arch) MaxInstrLen() int { return 4 }

const armNearWindow = 0x2000000 // 32 MiB, per original_source's -0x2000000 <= diff < 0x2000000

func (arm32Arch) RedirectLen(target, detour uintptr) int {
	diff := int64(detour) - int64(target)
	if -armNearWindow <= diff && diff < armNearWindow {
		return 4
	}
	return 12
}

func (arm32Arch) EncodeRedirect(target, detour uintptr) ([]byte, error) {
	diff := int64(detour) - int64(target)
	if -armNearWindow <= diff && diff < armNearWindow {
		return armEncodeNear(diff), nil
	}
	return armEncodeFar(uint64(detour), 0), nil
}

// armEncodeNear builds the 4-byte unconditional `B` instruction: the 24-bit
// signed word offset encodes (diff-8)>>2.
func armEncodeNear(diff int64) []byte {
	word := uint32((diff-8)>>2)&0x00FFFFFF | 0xea000000
	b := make([]byte, 4)
	putLE32(b, word)
	return b
}

// armEncodeFar builds the 12-byte MOVW/MOVT/BX r(reg) sequence that loads a
// 32-bit absolute destination into a scratch register and branches to it,
// per original_source's _arm_fill_jump_code_far. reg
// selects the scratch register (0 = r0, matching the original; callers
// needing a different scratch pass a nonzero register number).
func armEncodeFar(dest uint64, reg uint32) []byte {
	lo := uint32(dest) & 0xFFFF
	hi := uint32(dest>>16) & 0xFFFF

	movw := (lo&0xFFF | (lo&0xF000)<<4) | 0xe3000000 | reg<<12
	movt := (hi&0xFFF | (hi&0xF000)<<4) | 0xe3400000 | reg<<12
	bx := 0xe12fff10 | reg

	b := make([]byte, 12)
	putLE32(b[0:4], movw)
	putLE32(b[4:8], movt)
	putLE32(b[8:12], bx)
	return b
}

func (arm32Arch) TrapFill(buf []byte) {
	// BKPT #0 (0xE1200070), repeated to fill any unused space. ARM has no
	// single-byte trap; fill word-at-a-time and let a trailing partial
	// word fall back to zero bytes (never executed standalone, only ever
	// exists within Relocate's own padding math).
	for i := 0; i+4 <= len(buf); i += 4 {
		putLE32(buf[i:i+4], 0xe1200070)
	}
}

func (arm32Arch) Relocate(target, bodyAddr uintptr, snapshot []byte, redirLen int) (*Prologue, error) {
	if redirLen%4 != 0 || redirLen > len(snapshot) {
		return nil, newErr("arm32.Relocate", KindDecoderFailed, fmt.Errorf("bad redirect length %d", redirLen))
	}

	for off := 0; off < redirLen; off += 4 {
		word := snapshot[off : off+4]
		inst, err := armasm.Decode(word, armasm.ModeARM)
		if err != nil {
			return nil, newErr("arm32.Relocate", KindDecoderFailed, err)
		}
		if isARMReturn(inst.String()) {
			return nil, newErr("arm32.Relocate", KindUnsafePrologue, fmt.Errorf("return instruction at +%d", off))
		}
	}

	main := make([]byte, redirLen, redirLen+12)
	copy(main, snapshot[:redirLen])

	tailDst := target + uintptr(redirLen)
	main = append(main, armEncodeFar(uint64(tailDst), 0)...)

	return &Prologue{Body: main, Consumed: redirLen}, nil
}

// isARMReturn recognizes the handful of return idioms compilers emit for
// small ARM leaf functions (BX LR, MOV PC, LR). This mirrors
// Dk2014-hinako/hinako.go's own isBranchInst, which classifies by matching
// a textual mnemonic prefix off the decoded instruction's String() rather
// than exhaustively enumerating opcode constants.
func isARMReturn(s string) bool {
	s = strings.ToUpper(s)
	return strings.HasPrefix(s, "BX LR") ||
		strings.HasPrefix(s, "MOV PC, LR") ||
		strings.Contains(s, "PC}") // POP/LDM pulling PC off the stack
}
