package hook

import (
	"fmt"
	"strings"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// Dump renders a human-readable diagnostic of an active hook: the
// [INJECT] bytes written at the target, the [BACKUP] bytes they replaced,
// and an [OPCODE] disassembly of the trampoline body. Grounded on
// original_source/src/inline_hook.c's inline_hook_dump, generalized from
// printf-to-stdout into a returned string so callers choose where it goes.
func Dump(h *Handle) string {
	rec := h.rec
	var b strings.Builder

	fmt.Fprintf(&b, "target:  0x%x\n", rec.Target)
	fmt.Fprintf(&b, "detour:  0x%x\n", rec.Detour)
	fmt.Fprintf(&b, "trampoline: 0x%x\n", addrOf(rec.page))
	fmt.Fprintf(&b, "[INJECT] %s\n", hexBytes(rec.RedirectBytes))
	fmt.Fprintf(&b, "[BACKUP] %s\n", hexBytes(rec.BackupBytes))
	b.WriteString("[OPCODE]\n")
	b.WriteString(disassemble(rec.arch.ISA(), rec.Body, addrOf(rec.page)))

	return b.String()
}

func hexBytes(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", v)
	}
	return sb.String()
}

// disassemble renders body as one line per decoded instruction, falling
// back to a raw hex line of up to 4 bytes whenever the decoder rejects the
// bytes at the current offset (data inside the body, such as the 8-byte
// absolute address after an x86-64 far jump, is decoded as if it were code).
func disassemble(isa ISA, body []byte, base uintptr) string {
	var b strings.Builder
	off := 0
	for off < len(body) {
		var (
			asm string
			n   int
		)
		switch isa {
		case X86_64:
			inst, err := x86asm.Decode(body[off:], 64)
			if err == nil {
				asm = x86asm.GNUSyntax(inst, uint64(base)+uint64(off), nil)
				n = inst.Len
			}
		case Arm32:
			inst, err := armasm.Decode(body[off:], armasm.ModeARM)
			if err == nil {
				asm = inst.String()
				n = inst.Len
			}
		case Arm64:
			inst, err := arm64asm.Decode(body[off:])
			if err == nil {
				asm = inst.String()
				n = 4
			}
		}
		if n == 0 {
			fmt.Fprintf(&b, "  0x%x: .byte %s\n", uint64(base)+uint64(off), hexBytes(body[off:min(off+4, len(body))]))
			off += 4
			continue
		}
		fmt.Fprintf(&b, "  0x%x: %s\n", uint64(base)+uint64(off), asm)
		off += n
	}
	return b.String()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
