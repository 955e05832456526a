package scheduler

import (
	"github.com/kestrelrt/kestrel/kernel/context"
	"github.com/kestrelrt/kestrel/kernel/utils"
)

// System is a unit of per-phase work. Run returns false to request the
// scheduler stop the overall frame loop after this frame (e.g. a shutdown
// system), mirroring App.run_once's boolean "keep going" contract.
type System interface {
	ID() utils.ID
	Name() string
	ShouldRunWhenNotFocused() bool
	Init(ctx *context.Context) error
	Run(ctx *context.Context) bool
	Uninit(ctx *context.Context) error
}

// ConfigurableSystem is optionally implemented by systems that load their
// own JSON config file (spec's per-system "<plugin>.<system>.config"
// convention). Nothing in the engine calls ReadConfig.
type ConfigurableSystem interface {
	System
	ReadConfig(pluginName string) error
}

// BaseSystem provides no-op Init/Uninit/ShouldRunWhenNotFocused so simple
// systems only need to implement Run, the way the teacher's smaller
// threads embed a no-op lifecycle base.
type BaseSystem struct {
	SystemID     utils.ID
	SystemName   string
	RunUnfocused bool
}

func (b *BaseSystem) ID() utils.ID                  { return b.SystemID }
func (b *BaseSystem) Name() string                  { return b.SystemName }
func (b *BaseSystem) ShouldRunWhenNotFocused() bool { return b.RunUnfocused }
func (b *BaseSystem) Init(*context.Context) error   { return nil }
func (b *BaseSystem) Uninit(*context.Context) error { return nil }
