// Package hook implements inline (prologue-rewriting) function hooking
// for x86-64, ARM32, and AArch64 on Linux and Windows: given a target
// function's address and a detour function's address, it rewrites the
// target's entry to jump to the detour, and builds a trampoline that lets
// the detour still invoke the target's original behavior.
//
// GOT/PLT-based hooking, the dispatcher that picks between inline and
// GOT/PLT strategies, and any CLI/test-harness wrapper are out of scope
// for this package; it only implements the inline strategy.
package hook

import "runtime"

// DefaultISA maps the running GOARCH to the ISA this package should
// encode for. NewHookISA and Inject let callers override this, mainly for
// cross-arch-emission tests.
func DefaultISA() (ISA, error) {
	switch runtime.GOARCH {
	case "amd64":
		return X86_64, nil
	case "arm":
		return Arm32, nil
	case "arm64":
		return Arm64, nil
	default:
		return 0, newErr("DefaultISA", KindUnknown, unsupportedArchError(runtime.GOARCH))
	}
}

type unsupportedArchError string

func (e unsupportedArchError) Error() string { return "unsupported GOARCH: " + string(e) }

// Hook is a convenience wrapper over Inject/Uninject/Dump that owns a
// single trampoline for its lifetime, in the spirit of
// Dk2014-hinako/hinako.go's Hook/Close lifecycle.
type Hook struct {
	handle *Handle
}

// NewHook injects a hook from target to detour using the host's native
// ISA. Use NewHookISA or Inject to target a non-native ISA (e.g. under
// qemu-user or in cross-arch tests).
func NewHook(target, detour uintptr) (*Hook, error) {
	isa, err := DefaultISA()
	if err != nil {
		return nil, err
	}
	return NewHookISA(isa, target, detour)
}

// NewHookISA is NewHook with an explicit ISA.
func NewHookISA(isa ISA, target, detour uintptr) (*Hook, error) {
	h, err := Inject(isa, target, detour)
	if err != nil {
		return nil, err
	}
	return &Hook{handle: h}, nil
}

// Trampoline returns the address a detour calls to run the target's
// original, un-hooked behavior.
func (h *Hook) Trampoline() uintptr {
	if h.handle == nil {
		return 0
	}
	return h.handle.Addr()
}

// Close restores the target's original bytes and releases the
// trampoline. Calling Close again after it has run is a no-op that
// returns nil.
func (h *Hook) Close() error {
	if h.handle == nil {
		return nil
	}
	err := Uninject(h.handle)
	h.handle = nil
	return err
}

// Dump renders this hook's diagnostic, or "" once closed.
func (h *Hook) Dump() string {
	if h.handle == nil {
		return ""
	}
	return Dump(h.handle)
}
