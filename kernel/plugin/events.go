package plugin

import "github.com/kestrelrt/kestrel/kernel/utils"

// Loaded is published after a plugin's prepare_plugin call succeeds.
type Loaded struct {
	ID   utils.ID
	Name string
}

func (Loaded) IsEvent() {}

// Unloaded is published after a plugin's unprepare_plugin call returns,
// whether or not it returned an error (the plugin is gone from the
// registry either way).
type Unloaded struct {
	ID   utils.ID
	Name string
}

func (Unloaded) IsEvent() {}

// LoadFailed is published when the load step of a hot reload fails
// (shadow copy, symbol resolution, or create/prepare); the plugin stays
// unregistered. A direct AddPlugin call that fails returns its error and
// publishes no event.
type LoadFailed struct {
	Name string
	Err  error
}

func (LoadFailed) IsEvent() {}
