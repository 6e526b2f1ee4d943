package hook

import (
	"sync"
	"unsafe"
)

// addrOf returns the address of a slice's backing array, or 0 for an empty
// slice. Used for the trampoline's entry address and for log fields.
func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// Platform memory services. The cross-platform logic here
// (page-size rounding, the allocate/write/flush choreography) is shared;
// the OS-specific primitives it calls (platformPageSize, platformProtectRWX,
// platformProtectRX, platformAllocExec, platformFreeExec,
// platformFlushICache) live in mem_linux.go / mem_windows.go, generalizing
// Dk2014-hinako/hinako.go's Windows-only syscall.NewLazyDLL calls to both
// both OSes this library targets.

var pageSizeOnce sync.Once
var cachedPageSize uintptr

// PageSize returns the OS page size, falling back to 4096 if the platform
// reports a nonsensical value.
func PageSize() uintptr {
	pageSizeOnce.Do(func() {
		cachedPageSize = platformPageSize()
		if cachedPageSize == 0 {
			cachedPageSize = 4096
		}
	})
	return cachedPageSize
}

func pageFloor(addr, pageSize uintptr) uintptr {
	return addr &^ (pageSize - 1)
}

// WithWritable scopes acquisition of write+execute permission over the
// pages covering [addr, addr+size), calls f, then restores read+execute.
// Failure to acquire returns ErrProtectionFailed; failure to restore is
// treated as fatal, since leaving target pages writable
// violates an invariant this library cannot recover from.
func WithWritable(addr uintptr, size int, f func() error) error {
	ps := PageSize()
	start := pageFloor(addr, ps)
	end := addr + uintptr(size)
	nPages := (uintptr(end)-start-1)/ps + 1
	protectSize := nPages * ps

	logger.Debug("unlocking target page(s)", "addr", addr, "size", size, "protectStart", start, "protectSize", protectSize)
	if err := platformProtectRWX(start, protectSize); err != nil {
		return newErr("WithWritable", KindProtectionFailed, err)
	}

	ferr := f()

	if err := platformProtectRX(start, protectSize); err != nil {
		panic(newErr("WithWritable.restore", KindProtectionFailed, err))
	}
	logger.Debug("relocked target page(s)", "addr", addr)

	return ferr
}

// AllocExecPage returns an aligned RWX region at least minBytes large,
// zero-initialized by the OS allocator (callers fill it with the ISA's trap
// pattern before use).
func AllocExecPage(minBytes int) ([]byte, error) {
	size := uintptr(minBytes)
	ps := PageSize()
	if size == 0 {
		size = ps
	} else if rem := size % ps; rem != 0 {
		size += ps - rem
	}
	b, err := platformAllocExec(size)
	if err != nil {
		return nil, newErr("AllocExecPage", KindOutOfMemory, err)
	}
	logger.Debug("allocated executable page", "size", size, "addr", addrOf(b))
	return b, nil
}

// FreeExecPage releases memory obtained from AllocExecPage.
func FreeExecPage(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	logger.Debug("freeing executable page", "addr", addrOf(b))
	return platformFreeExec(b)
}

// FlushICache invalidates the instruction cache over [addr, addr+size).
func FlushICache(addr uintptr, size int) {
	platformFlushICache(addr, uintptr(size))
}
