// control/runtime_test.go
// Author: momentics <momentics@gmail.com>

package control

import "testing"

func TestRuntimeConfigAndDebugRoundTrip(t *testing.T) {
	rt := NewRuntime()

	if err := rt.SetConfig(map[string]any{"a": 1}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if got := rt.GetConfig()["a"]; got != 1 {
		t.Fatalf("GetConfig()[a] = %v, want 1", got)
	}

	rt.RegisterDebugProbe("probe", func() any { return "value" })
	if got := rt.DumpState()["probe"]; got != "value" {
		t.Fatalf("DumpState()[probe] = %v, want value", got)
	}

	rt.SetStatsFn(func() map[string]any { return map[string]any{"n": 5} })
	if got := rt.Stats()["n"]; got != 5 {
		t.Fatalf("Stats()[n] = %v, want 5", got)
	}
}

func TestRuntimeStatsEmptyWithoutFn(t *testing.T) {
	rt := NewRuntime()
	if got := rt.Stats(); len(got) != 0 {
		t.Fatalf("Stats() with no fn = %v, want empty", got)
	}
}
