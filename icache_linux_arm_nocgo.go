//go:build linux && (arm || arm64) && !cgo

package hook

import "sync"

var warnNoCgoOnce sync.Once

// flushICacheArch is the cgo-disabled fallback: ARM requires an explicit
// cache flush (unlike x86-64), and without cgo this module has no portable
// way to invoke __builtin___clear_cache or emit the DC/IC maintenance
// instructions itself. Rather than silently skipping the flush, this logs a
// one-time warning documenting the limitation for cross-compiled,
// cgo-disabled builds.
func flushICacheArch(addr, size uintptr) {
	warnNoCgoOnce.Do(func() {
		logger.Warn("instruction cache not flushed: built without cgo on ARM; self-modified code may not be coherent", "addr", addr, "size", size)
	})
}
