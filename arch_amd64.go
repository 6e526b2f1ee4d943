package hook

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// amd64Arch implements Arch for x86-64, grounded on Dk2014-hinako/hinako.go's
// use of golang.org/x/arch/x86/x86asm for prologue decode and on
// original_source/src/inline_hook.c's x86_64_trampoline_t for the exact
// redirect/relocation byte patterns.
type amd64Arch struct{}

func (amd64Arch) ISA() ISA { return X86_64 }

func (amd64Arch) MaxInstrLen() int { return 15 }

func (amd64Arch) RedirectLen(target, detour uintptr) int {
	if isNearInt32(int64(detour) - int64(target) - 5) {
		return 5
	}
	return 14
}

// EncodeRedirect emits the near 5-byte `E9 rel32` form when the destination
// fits a signed 32-bit displacement from the instruction after the jump,
// otherwise the far 14-byte `FF 25 00000000 <abs64>` indirect-through-the-
// next-8-bytes form (original_source's
// _x86_64_fill_jump_code{,_near,_far}).
func (amd64Arch) EncodeRedirect(target, detour uintptr) ([]byte, error) {
	return encodeJumpAt(target, detour)
}

func encodeJumpAt(src, dst uintptr) ([]byte, error) {
	diff := int64(dst) - int64(src) - 5
	if isNearInt32(diff) {
		b := make([]byte, 5)
		b[0] = 0xe9
		putLE32(b[1:], uint32(diff))
		return b, nil
	}
	b := make([]byte, 14)
	b[0] = 0xff
	b[1] = 0x25
	// b[2:6] already zero: jmp qword ptr [rip+0]
	putLE64(b[6:], uint64(dst))
	return b, nil
}

func (amd64Arch) TrapFill(buf []byte) {
	for i := range buf {
		buf[i] = 0xcc // INT3
	}
}

// condJumpOpcode maps each x86asm conditional-jump mnemonic to the second
// opcode byte of its 6-byte 0F 8x rel32 near-jump re-encoding, per
// original_source/src/inline_hook.c's _x86_64_try_convert_jmp. Covers all
// 16 Intel conditional-jump mnemonics (JB/JBE/JL/JLE/JNB/JNBE/JNL/JNLE/
// JNO/JNP/JNS/JNZ/JO/JP/JS/JZ), mapped onto x86asm's
// equivalently-named-or-aliased Op constants.
var condJumpOpcode = map[x86asm.Op]byte{
	x86asm.JB:   0x82,
	x86asm.JBE:  0x86,
	x86asm.JL:   0x8c,
	x86asm.JLE:  0x8e,
	x86asm.JAE:  0x83, // JNB
	x86asm.JA:   0x87, // JNBE
	x86asm.JGE:  0x8d, // JNL
	x86asm.JG:   0x8f, // JNLE
	x86asm.JNO:  0x81,
	x86asm.JNP:  0x8b,
	x86asm.JNS:  0x89,
	x86asm.JNE:  0x85, // JNZ
	x86asm.JO:   0x80,
	x86asm.JP:   0x8a,
	x86asm.JS:   0x88,
	x86asm.JE:   0x84, // JZ
}

// extRegionOffset is the fixed offset within the trampoline body where
// ext-area thunks (for JCXZ/JECXZ/JRCXZ, which have no near-jump form) begin.
// A far-redirect window copied verbatim plus one 15-byte straddling
// instruction and a 14-byte tail jump needs at most 43 bytes; relocated
// branches can grow beyond their original length (a 2-byte JMP rel8 may
// become a 14-byte far jump), so Relocate fails with EncodingOutOfRange
// whenever the main area would pass this offset. The value is larger than
// the C core's fixed offset of 31.
const extRegionOffset = 48

// extThunkSize is the maximum size of one ext-area thunk (a full far jump).
const extThunkSize = 14

// maxExtThunks bounds the ext area: the entire 5-byte near redirect window
// can consist of at most two 2-byte JCXZ/JECXZ/JRCXZ instructions plus one
// straddling one, so three thunks cover the worst case.
const maxExtThunks = 3

func (amd64Arch) Relocate(target, bodyAddr uintptr, snapshot []byte, redirLen int) (*Prologue, error) {
	main := make([]byte, 0, extRegionOffset)
	ext := make([]byte, 0, maxExtThunks*extThunkSize)

	tOffset := 0
	for tOffset < redirLen {
		if tOffset >= len(snapshot) {
			return nil, newErr("amd64.Relocate", KindDecoderFailed, fmt.Errorf("ran out of prologue bytes at +%d", tOffset))
		}
		inst, err := x86asm.Decode(snapshot[tOffset:], 64)
		if err != nil {
			return nil, newErr("amd64.Relocate", KindDecoderFailed, err)
		}
		if inst.Len == 0 {
			return nil, newErr("amd64.Relocate", KindDecoderFailed, fmt.Errorf("zero-length decode at +%d", tOffset))
		}

		switch {
		case inst.Op == x86asm.RET || inst.Op == x86asm.LRET:
			return nil, newErr("amd64.Relocate", KindUnsafePrologue, fmt.Errorf("RET at +%d, before redirect window is consumed", tOffset))

		case inst.Op == x86asm.JCXZ || inst.Op == x86asm.JECXZ || inst.Op == x86asm.JRCXZ:
			rel, ok := inst.Args[0].(x86asm.Rel)
			if !ok {
				return nil, newErr("amd64.Relocate", KindDecoderFailed, fmt.Errorf("%v missing Rel operand", inst.Op))
			}
			if len(ext)+extThunkSize > maxExtThunks*extThunkSize {
				return nil, newErr("amd64.Relocate", KindEncodingOutOfRange, fmt.Errorf("ext-area thunk table exhausted"))
			}
			destAddr := target + uintptr(tOffset) + uintptr(inst.Len) + uintptr(int32(rel))
			thunkAddr := bodyAddr + uintptr(extRegionOffset) + uintptr(len(ext))
			srcAfter := int64(bodyAddr) + int64(len(main)) + 2
			shortRel := int64(thunkAddr) - srcAfter
			if shortRel < -128 || shortRel > 127 {
				return nil, newErr("amd64.Relocate", KindEncodingOutOfRange, fmt.Errorf("ext thunk unreachable by short jump"))
			}
			main = append(main, 0xe3, byte(int8(shortRel)))
			jb, err := encodeJumpAt(thunkAddr, destAddr)
			if err != nil {
				return nil, newErr("amd64.Relocate", KindEncodingOutOfRange, err)
			}
			ext = append(ext, jb...)

		case inst.Op == x86asm.JMP:
			rel, ok := inst.Args[0].(x86asm.Rel)
			if !ok {
				if mem, bad := unsafeMemOperand(inst); bad {
					return nil, newErr("amd64.Relocate", KindUnsafePrologue, fmt.Errorf("RIP-relative JMP operand %v not relocatable", mem))
				}
				main = append(main, snapshot[tOffset:tOffset+inst.Len]...)
				break
			}
			destAddr := target + uintptr(tOffset) + uintptr(inst.Len) + uintptr(int32(rel))
			jb, err := encodeJumpAt(bodyAddr+uintptr(len(main)), destAddr)
			if err != nil {
				return nil, newErr("amd64.Relocate", KindEncodingOutOfRange, err)
			}
			main = append(main, jb...)

		default:
			if op, ok := condJumpOpcode[inst.Op]; ok {
				rel, ok2 := inst.Args[0].(x86asm.Rel)
				if !ok2 {
					return nil, newErr("amd64.Relocate", KindDecoderFailed, fmt.Errorf("%v missing Rel operand", inst.Op))
				}
				destAddr := target + uintptr(tOffset) + uintptr(inst.Len) + uintptr(int32(rel))
				srcAfter := int64(bodyAddr) + int64(len(main)) + 6
				relv := int64(destAddr) - srcAfter
				if !isNearInt32(relv) {
					return nil, newErr("amd64.Relocate", KindEncodingOutOfRange, fmt.Errorf("conditional jump target unreachable"))
				}
				main = append(main, 0x0f, op)
				main = appendLE32(main, uint32(relv))
				break
			}

			if mem, bad := unsafeMemOperand(inst); bad {
				return nil, newErr("amd64.Relocate", KindUnsafePrologue, fmt.Errorf("RIP-relative operand %v not relocatable", mem))
			}
			main = append(main, snapshot[tOffset:tOffset+inst.Len]...)
		}

		tOffset += inst.Len
	}

	tailDst := target + uintptr(tOffset)
	tailJmp, err := encodeJumpAt(bodyAddr+uintptr(len(main)), tailDst)
	if err != nil {
		return nil, newErr("amd64.Relocate", KindEncodingOutOfRange, err)
	}
	main = append(main, tailJmp...)

	if len(main) > extRegionOffset {
		return nil, newErr("amd64.Relocate", KindEncodingOutOfRange, fmt.Errorf("relocated prologue (%d bytes) overflowed ext-area offset %d", len(main), extRegionOffset))
	}

	body := make([]byte, extRegionOffset+len(ext))
	amd64Arch{}.TrapFill(body)
	copy(body, main)
	copy(body[extRegionOffset:], ext)

	return &Prologue{Body: body, Consumed: tOffset}, nil
}

func appendLE32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// unsafeMemOperand reports whether inst addresses memory relative to RIP —
// copying such an
// instruction verbatim into a trampoline at a different address would
// silently dereference the wrong location. This implementation rejects it
// rather than silently miscompiling it.
func unsafeMemOperand(inst x86asm.Inst) (x86asm.Mem, bool) {
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		if mem, ok := arg.(x86asm.Mem); ok && mem.Base == x86asm.RIP {
			return mem, true
		}
	}
	return x86asm.Mem{}, false
}
