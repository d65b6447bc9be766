// Package control provides the runtime configuration, metrics, and debug
// introspection layer: structured logging, a prometheus collector set, and
// the ConfigStore/DebugProbes pair a zctx.Context exposes as its Control
// surface.
// Author: momentics <momentics@gmail.com>
package control
