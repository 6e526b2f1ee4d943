//go:build linux && amd64

package hook

import (
	"testing"

	"github.com/ebitengine/purego"
)

// TestInjectAndUninjectLibc hooks libc's abs(3), mirroring
// original_source/test/inline_callback.cpp's pattern of hooking a small,
// well-known cdecl function and checking both the detour's effect and
// that the trampoline still reproduces the original behavior. purego
// supplies the two primitives Go itself has no stdlib equivalent for:
// minting a callable address from a Go closure (NewCallback) and invoking
// a raw machine-code address with a C calling convention (SyscallN).
func TestInjectAndUninjectLibc(t *testing.T) {
	lib, err := purego.Dlopen("libc.so.6", purego.RTLD_NOW)
	if err != nil {
		t.Skipf("libc.so.6 not available: %v", err)
	}
	target, err := purego.Dlsym(lib, "abs")
	if err != nil {
		t.Skipf("abs not found: %v", err)
	}

	detour := purego.NewCallback(func(x int32) int32 {
		return 42
	})

	h, err := NewHook(target, detour)
	if err != nil {
		t.Fatalf("NewHook: %v", err)
	}

	r1, _, _ := purego.SyscallN(target, negFive)
	if int32(r1) != 42 {
		t.Fatalf("hooked abs(-5) = %d, want 42", int32(r1))
	}

	r1, _, _ = purego.SyscallN(h.Trampoline(), negFive)
	if int32(r1) != 5 {
		t.Fatalf("trampoline abs(-5) = %d, want 5 (original behavior)", int32(r1))
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r1, _, _ = purego.SyscallN(target, negFive)
	if int32(r1) != 5 {
		t.Fatalf("restored abs(-5) = %d, want 5", int32(r1))
	}
}

const negFive = uintptr(0xfffffffb) // int32(-5), zero-extended into a uintptr argument slot

func TestDumpRendersSections(t *testing.T) {
	lib, err := purego.Dlopen("libc.so.6", purego.RTLD_NOW)
	if err != nil {
		t.Skipf("libc.so.6 not available: %v", err)
	}
	target, err := purego.Dlsym(lib, "labs")
	if err != nil {
		t.Skipf("labs not found: %v", err)
	}
	detour := purego.NewCallback(func(x int64) int64 { return 7 })

	h, err := NewHook(target, detour)
	if err != nil {
		t.Fatalf("NewHook: %v", err)
	}
	defer h.Close()

	out := h.Dump()
	for _, want := range []string{"[INJECT]", "[BACKUP]", "[OPCODE]"} {
		if !contains(out, want) {
			t.Errorf("Dump() missing %q, got:\n%s", want, out)
		}
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
