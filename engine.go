package hook

// Handle is the opaque result of a successful Inject: it owns the live
// Record and is the only way to Uninject or locate the trampoline's
// callable entry point. Generalizes Dk2014-hinako/hinako.go's Hook struct
// (which bundled target/original/trampoline together) into a type that
// does not leak the ISA-specific encoding.
type Handle struct {
	rec *Record
}

// Addr is the trampoline's entry point: calling it runs the relocated
// original prologue followed by a jump to the remainder of the original
// function, exactly reproducing the target's un-hooked behavior. Detours
// call this to invoke the original.
func (h *Handle) Addr() uintptr { return addrOf(h.rec.Body) }

// Target is the hooked function's original address.
func (h *Handle) Target() uintptr { return h.rec.Target }

// Detour is the function control was redirected to.
func (h *Handle) Detour() uintptr { return h.rec.Detour }

// Record exposes the underlying trampoline Record, mainly for Dump.
func (h *Handle) Record() *Record { return h.rec }

// Inject builds a trampoline for (target, detour) on isa and patches
// target in place. On any error no memory has been
// left writable and no page has leaked.
func Inject(isa ISA, target, detour uintptr) (*Handle, error) {
	arch, err := For(isa)
	if err != nil {
		return nil, err
	}

	rec, err := NewRecord(arch, target, detour)
	if err != nil {
		return nil, err
	}

	FlushICache(addrOf(rec.page), len(rec.Body))

	err = WithWritable(target, len(rec.RedirectBytes), func() error {
		writeMemory(target, rec.RedirectBytes)
		return nil
	})
	if err != nil {
		_ = FreeExecPage(rec.page)
		return nil, err
	}

	FlushICache(target, rec.Consumed)

	logger.Info("injected hook", "arch", isa, "target", target, "detour", detour, "trampoline", addrOf(rec.page))
	return &Handle{rec: rec}, nil
}

// Uninject restores the original bytes at h's target and releases the
// trampoline page. h must not be used again afterward. Calling Uninject
// twice on the same Handle is a no-op the second time.
func Uninject(h *Handle) error {
	if h.rec == nil {
		return nil
	}
	rec := h.rec

	err := WithWritable(rec.Target, len(rec.BackupBytes), func() error {
		writeMemory(rec.Target, rec.BackupBytes)
		return nil
	})
	if err != nil {
		return err
	}

	FlushICache(rec.Target, rec.Consumed)

	if ferr := FreeExecPage(rec.page); ferr != nil {
		logger.Warn("failed to free trampoline page", "err", ferr)
	}

	logger.Info("uninjected hook", "target", rec.Target)
	h.rec = nil
	return nil
}
