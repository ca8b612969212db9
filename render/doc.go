// Package render manages the GPU lifecycle of one visual effect.
//
// A Pipeline owns a rendering Context obtained from a Provider, compiles the
// effect's program, uploads its textures, and drives a per-frame callback
// loop through a host.Host. The graphics subsystem may invalidate the
// context at any time; the pipeline then pauses, waits a backoff delay and
// rebuilds everything from scratch.
//
// # States
//
//	Uninitialized ──Setup──▶ Ready ──loop──▶ Rendering
//	                            ▲                 │
//	                    rebuild │                 │ context lost
//	                            │                 ▼
//	                            └──retry── ContextLost ──budget spent──▶ Abandoned
//
// Teardown moves any state to Abandoned. A pipeline never leaves Abandoned.
//
// # Backends
//
// The package is API-agnostic: Provider and Context are interfaces.
// The WebGPU HAL implementation lives in internal/halgpu; effect programs
// live in the effect package.
//
// # Thread Safety
//
// Pipeline methods are safe for concurrent use. Frame callbacks run on the
// host's event goroutine; loss notifications may arrive from any goroutine.
package render
