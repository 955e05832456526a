package scheduler

import "github.com/kestrelrt/kestrel/kernel/utils"

// SystemFailed is published when a system's job panics; the panic is
// isolated to that system's runner rather than taking down the frame.
type SystemFailed struct {
	ID   utils.ID
	Name string
}

func (SystemFailed) IsEvent() {}

// SystemStuck is published when a sweep makes no progress for a full pass
// over a phase's waiting runners — typically an unsatisfiable dependency
// (the depended-on system's Init failed, so it never joined the phase and
// never reached Executed).
type SystemStuck struct {
	ID   utils.ID
	Name string
}

func (SystemStuck) IsEvent() {}
