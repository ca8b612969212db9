// Package envfx is a procedural environmental-effects engine.
//
// An Engine composes four parts:
//
//   - lightmap scans a lightmap image into point lights;
//   - light holds the bounded registry uploaded to lit effects;
//   - render runs one GPU pipeline per effect, with context loss recovery;
//   - phase cycles weather or machinery phases and publishes the blended
//     parameter vector into a params.Store.
//
// The engine renders offscreen through the wgpu HAL:
//
//	cfg, err := config.Load("envfx.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	eng, err := envfx.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//	if err := eng.Start(ctx); err != nil {
//	    log.Printf("some effects failed: %v", err)
//	}
//
// # Logging
//
// By default envfx produces no log output. Call SetLogger to enable it.
package envfx
