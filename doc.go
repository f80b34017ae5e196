// Package renderflow provides a plugin based workflow execution engine
// for graphics resource pipelines.
//
// Workflows are defined declaratively (YAML or JSON) as ordered step
// lists and run against a mutable execution context. Steps are resolved
// through a per run registry that instantiates only the step families a
// workflow actually references, transitively through sub workflow
// invocations, loop bodies and branch step lists.
//
// End users typically interact with the engine via the Service façade
// exposed by the root package:
//
//	srv := renderflow.New(renderflow.WithBaseURL("workflows"))
//	state := execution.NewContext()
//	process, err := srv.Run(ctx, "demo", "render_quad", state)
//
// Resource lifecycle steps (shader compile, pipeline create, buffer
// upload, framebuffer readback) drive a graphics.Device supplied in the
// context; graphics/memdev offers a byte accurate software device and
// graphics/wgpu a hal backed one.
//
// For more details see the README and individual sub packages.
package renderflow
