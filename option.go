package renderflow

import (
	"github.com/renderflow/renderflow/extension"
	"github.com/renderflow/renderflow/service/dao/workflow"
	"github.com/renderflow/renderflow/service/step/gpu"
	"github.com/renderflow/renderflow/tracing"
	"github.com/viant/afs"
	"github.com/viant/x"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customizes the engine facade.
type Option func(s *Service)

// WithBaseURL sets the package store base URL workflows resolve under.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.storeOptions = append(s.storeOptions, workflow.WithBaseURL(baseURL))
	}
}

// WithFS sets the file system the package store loads through.
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.storeOptions = append(s.storeOptions, workflow.WithFS(fs))
	}
}

// WithStore sets a preconfigured package store.
func WithStore(store *workflow.Service) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithDeviceProvider sets the provider graphics.device.acquire consults.
func WithDeviceProvider(provider gpu.Provider) Option {
	return func(s *Service) {
		s.deviceProvider = provider
	}
}

// WithLoopCeiling sets the default loop iteration ceiling.
func WithLoopCeiling(ceiling int) Option {
	return func(s *Service) {
		if ceiling > 0 {
			s.loopCeiling = ceiling
		}
	}
}

// WithExtensionTypes registers data types usable by value.assert.type.
func WithExtensionTypes(types ...*x.Type) Option {
	return func(s *Service) {
		s.extensionTypes = append(s.extensionTypes, types...)
	}
}

// WithFamily binds a custom step family factory.
func WithFamily(family string, factory extension.Factory) Option {
	return func(s *Service) {
		s.families[family] = factory
	}
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty
// the stdout exporter is used. Safe to call multiple times, the first
// successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing with a custom
// SpanExporter, for example OTLP. Safe to call multiple times, the first
// successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
