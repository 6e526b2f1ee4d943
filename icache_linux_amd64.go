//go:build linux && amd64

package hook

// x86-64 has architecturally coherent instruction and data caches for
// same-core self-modifying code, so this performs no cache maintenance and
// only logs at Debug. FlushICache still calls it, so the patch engine
// issues the flush the same way on every ISA.
func flushICacheArch(addr, size uintptr) {
	logger.Debug("icache flush is a no-op on amd64", "addr", addr, "size", size)
}
