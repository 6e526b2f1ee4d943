package hook

import (
	"strconv"
	"unsafe"
)

// Record is the central entity of this library: one per active hook,
// owning the target/detour addresses, the redirect and backup byte
// snapshots, and the generated trampoline body.
//
// Fields are generalized from original_source/src/inline_hook.c's
// x86_64_trampoline_t / arm_trampoline_t fixed-size C arrays to Go slices:
// the invariants those C offsets encode (K_redir ≤ N_consumed, trap-filled
// padding, an ext area for short-only conditional branches) are what
// actually matters, not the specific byte offsets.
type Record struct {
	Target uintptr
	Detour uintptr

	RedirectBytes []byte // K_redir bytes written at Target to reach Detour
	BackupBytes   []byte // K_redir bytes originally at Target, for revert

	Body     []byte // the trampoline body: relocated prologue + tail jump (+ ext thunks)
	Consumed int     // N_consumed: target bytes the relocation consumed

	arch Arch
	page []byte // full executable page backing Body; freed on uninject
}

// snapshotMargin bounds how many bytes beyond the chosen redirect length a
// relocator may need to read to finish decoding a straddling instruction
// (N_consumed ≤ K_redir + L_max_insn).
func snapshotMargin(a Arch) int {
	return a.MaxInstrLen() + 4
}

// readMemory copies n bytes starting at addr out of live process memory,
// the same unsafe-pointer-walk Dk2014-hinako/hinako.go's
// unsafeReadMemory performs.
func readMemory(addr uintptr, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = *(*byte)(unsafe.Pointer(addr + uintptr(i)))
	}
	return out
}

// writeMemory copies src into live process memory starting at addr, the
// same unsafe-pointer-walk as Dk2014-hinako/hinako.go's unsafeWriteMemory.
// Callers must already hold write permission over the target range
// (see WithWritable).
func writeMemory(addr uintptr, src []byte) {
	for i, b := range src {
		*(*byte)(unsafe.Pointer(addr + uintptr(i))) = b
	}
}

// NewRecord builds a trampoline Record for (target, detour) on the given
// ISA: it allocates the executable page, encodes the redirect, snapshots
// and relocates the original prologue, but does not yet patch target —
// that is the patch engine's job (engine.go).
func NewRecord(arch Arch, target, detour uintptr) (*Record, error) {
	redirLen := arch.RedirectLen(target, detour)

	redirectBytes, err := arch.EncodeRedirect(target, detour)
	if err != nil {
		return nil, newErr("NewRecord", KindEncodingOutOfRange, err)
	}
	if len(redirectBytes) != redirLen {
		return nil, newErr("NewRecord", KindEncodingOutOfRange, errLenMismatch(len(redirectBytes), redirLen))
	}

	page, err := AllocExecPage(int(PageSize()))
	if err != nil {
		return nil, err
	}
	arch.TrapFill(page)
	bodyAddr := addrOf(page)

	snapshot := readMemory(target, redirLen+snapshotMargin(arch))
	backupBytes := append([]byte(nil), snapshot[:redirLen]...)

	prologue, err := arch.Relocate(target, bodyAddr, snapshot, redirLen)
	if err != nil {
		_ = FreeExecPage(page)
		return nil, err
	}
	if len(prologue.Body) > len(page) {
		_ = FreeExecPage(page)
		return nil, newErr("NewRecord", KindOutOfMemory, errLenMismatch(len(prologue.Body), len(page)))
	}
	copy(page, prologue.Body)

	logger.Debug("built trampoline record",
		"arch", arch.ISA(), "target", target, "detour", detour,
		"redirLen", redirLen, "consumed", prologue.Consumed, "body", bodyAddr)

	return &Record{
		Target:        target,
		Detour:        detour,
		RedirectBytes: redirectBytes,
		BackupBytes:   backupBytes,
		Body:          page[:len(prologue.Body)],
		Consumed:      prologue.Consumed,
		arch:          arch,
		page:          page,
	}, nil
}

func errLenMismatch(got, want int) error {
	return &lenMismatchError{got: got, want: want}
}

type lenMismatchError struct{ got, want int }

func (e *lenMismatchError) Error() string {
	return "length mismatch: got " + strconv.Itoa(e.got) + ", want " + strconv.Itoa(e.want)
}
