// Command renderflow loads a workflow from a package store and runs it
// to a terminal state.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/renderflow/renderflow"
	"github.com/renderflow/renderflow/ctxlog"
	"github.com/renderflow/renderflow/graphics"
	"github.com/renderflow/renderflow/graphics/memdev"
	"github.com/renderflow/renderflow/graphics/wgpu"
	"github.com/renderflow/renderflow/runtime/execution"
)

func main() {
	config := renderflow.DefaultConfig()
	flag.StringVar(&config.BaseURL, "base", ".", "workflow package store base URL")
	flag.StringVar(&config.Device, "device", config.Device, "graphics device: memory or wgpu")
	flag.IntVar(&config.LoopCeiling, "loop-ceiling", 0, "default loop iteration ceiling (0 keeps the built in default)")
	flag.StringVar(&config.Log.Level, "log-level", config.Log.Level, "log level: debug, info, warn or error")
	flag.StringVar(&config.Log.Format, "log-format", config.Log.Format, "log format: text or json")
	pkg := flag.String("package", "", "workflow package")
	name := flag.String("workflow", "", "workflow name")
	traceFile := flag.String("trace", "", "write OpenTelemetry spans to this file")
	flag.Parse()

	if err := run(config, *pkg, *name, *traceFile); err != nil {
		fmt.Fprintln(os.Stderr, "renderflow:", err)
		os.Exit(1)
	}
}

func run(config *renderflow.Config, pkg, name, traceFile string) error {
	if name == "" {
		return fmt.Errorf("-workflow is required")
	}
	if err := config.Validate(); err != nil {
		return err
	}
	options := config.Options()
	options = append(options, renderflow.WithDeviceProvider(deviceProvider(config.Device)))
	if traceFile != "" {
		options = append(options, renderflow.WithTracing("renderflow", "dev", traceFile))
	}
	srv := renderflow.New(options...)

	logger := ctxlog.New(config.Log.Level, config.Log.Format, os.Stderr)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	state := execution.NewContext()
	process, err := srv.Run(ctx, pkg, name, state)
	if err != nil {
		return err
	}
	fmt.Printf("workflow %v finished: %v in %v\n", process.Workflow, process.State, process.Duration())
	if process.Err != nil {
		return fmt.Errorf("step %v at position %v: %w", process.FailedType, process.FailedPosition, process.Err)
	}
	return nil
}

func deviceProvider(kind string) func(ctx context.Context) (graphics.Device, error) {
	return func(ctx context.Context) (graphics.Device, error) {
		if kind == "wgpu" {
			return wgpu.Open()
		}
		return memdev.New(), nil
	}
}
