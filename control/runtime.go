// control/runtime.go
// Author: momentics <momentics@gmail.com>
//
// Runtime composes ConfigStore and DebugProbes into the single live
// introspection surface a zctx.Context exposes to operators.

package control

import "github.com/zlinkio/zlink/api"

// Runtime is the api.Control/api.Debug implementation backing
// zctx.Context.Control(). Embedding both ConfigStore and DebugProbes avoids
// a second copy of their locking; Stats delegates to a caller-installed
// callback since the two don't own any stats themselves.
type Runtime struct {
	*ConfigStore
	*DebugProbes
	statsFn func() map[string]any
}

// NewRuntime builds an empty Runtime ready for SetStatsFn and config use.
func NewRuntime() *Runtime {
	return &Runtime{ConfigStore: NewConfigStore(), DebugProbes: NewDebugProbes()}
}

// SetStatsFn installs the callback Stats delegates to.
func (r *Runtime) SetStatsFn(fn func() map[string]any) { r.statsFn = fn }

// GetConfig implements api.Control.
func (r *Runtime) GetConfig() map[string]any { return r.GetSnapshot() }

// SetConfig implements api.Control; ConfigStore.SetConfig never fails.
func (r *Runtime) SetConfig(cfg map[string]any) error {
	r.ConfigStore.SetConfig(cfg)
	return nil
}

// Stats implements api.Control.
func (r *Runtime) Stats() map[string]any {
	if r.statsFn == nil {
		return map[string]any{}
	}
	return r.statsFn()
}

// RegisterDebugProbe implements api.Control by delegating to DebugProbes.
func (r *Runtime) RegisterDebugProbe(name string, fn func() any) { r.RegisterProbe(name, fn) }

var (
	_ api.Control = (*Runtime)(nil)
	_ api.Debug   = (*DebugProbes)(nil)
)
