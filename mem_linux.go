//go:build linux

package hook

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux platform memory services, grounded on
// original_source/src/inline_hook.c's #elif defined(__linux__) branch
// (mprotect/posix_memalign), implemented with golang.org/x/sys/unix the way
// gravwell-gravwell's ingesters/utils/caps/caps_linux.go and
// bobbydeveaux-starbucks-mugs's eBPF loader map and protect pages.

func platformPageSize() uintptr {
	return uintptr(unix.Getpagesize())
}

func viewAt(addr, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
}

func platformProtectRWX(addr, size uintptr) error {
	return unix.Mprotect(viewAt(addr, size), unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC)
}

func platformProtectRX(addr, size uintptr) error {
	return unix.Mprotect(viewAt(addr, size), unix.PROT_READ|unix.PROT_EXEC)
}

func platformAllocExec(size uintptr) ([]byte, error) {
	return unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
}

func platformFreeExec(b []byte) error {
	return unix.Munmap(b)
}

func platformFlushICache(addr, size uintptr) {
	flushICacheArch(addr, size)
}
