//go:build linux && (arm || arm64) && cgo

package hook

/*
#include <stddef.h>

static void uhook_clear_cache(void *start, void *end) {
	__builtin___clear_cache(start, end);
}
*/
import "C"
import "unsafe"

// flushICacheArch invalidates the instruction cache for [addr, addr+size)
// via the GCC/Clang builtin, grounded directly on
// other_examples/bc17107b_qrdl-testaroli__override_arm64.go.go's
// C.flush_cache — the one example in the pack that patches live ARM code
// and needs exactly this primitive (also named explicitly in
// original_source/src/inline_hook.c's _flush_instruction_cache).
func flushICacheArch(addr, size uintptr) {
	start := unsafe.Pointer(addr)
	end := unsafe.Pointer(addr + size)
	C.uhook_clear_cache(start, end)
}
