//go:build windows

package hook

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows platform memory services, generalizing
// Dk2014-hinako/hinako.go's raw syscall.NewLazyDLL("kernel32.dll") +
// kernel32.NewProc(...) calls for VirtualAlloc/VirtualFree/VirtualProtect/
// FlushInstructionCache to the typed golang.org/x/sys/windows wrappers.

func platformPageSize() uintptr {
	var si windows.SystemInfo
	windows.GetSystemInfo(&si)
	return uintptr(si.PageSize)
}

func platformProtectRWX(addr, size uintptr) error {
	var old uint32
	return windows.VirtualProtect(addr, size, windows.PAGE_EXECUTE_READWRITE, &old)
}

func platformProtectRX(addr, size uintptr) error {
	var old uint32
	return windows.VirtualProtect(addr, size, windows.PAGE_EXECUTE_READ, &old)
}

func platformAllocExec(size uintptr) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size)), nil
}

func platformFreeExec(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return windows.VirtualFree(uintptr(unsafe.Pointer(&b[0])), 0, windows.MEM_RELEASE)
}

func platformFlushICache(addr, size uintptr) {
	h, err := windows.GetCurrentProcess()
	if err != nil {
		logger.Warn("FlushInstructionCache: could not get process handle", "err", err)
		return
	}
	if err := windows.FlushInstructionCache(h, unsafe.Pointer(addr), size); err != nil {
		logger.Warn("FlushInstructionCache failed", "err", err)
	}
}
