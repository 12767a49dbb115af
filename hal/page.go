package hal

// bootPageRoot is the page-table root installed by early boot.
const bootPageRoot uint64 = 0x1000

// PageCtx identifies a page-table root. It is an opaque per-task handle;
// the hardware resume path switches to the task's mapping as a side
// effect of loading its frame, never through this package.
type PageCtx struct {
	root uint64
}

// CurrentCtx returns the mapping context active at boot.
func CurrentCtx() PageCtx {
	return PageCtx{root: bootPageRoot}
}

// Root exposes the raw page-table root for diagnostics.
func (c PageCtx) Root() uint64 { return c.root }
