//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"brain2-canvas/internal/config"

	"github.com/google/wire"
)

// ObservabilityProviders supply logging, metrics and tracing.
var ObservabilityProviders = wire.NewSet(
	provideLogLevel,
	provideLogger,
	provideErrorHandler,
	provideMetrics,
	provideTracer,
)

// InfrastructureProviders supply the store of record, the stats cache and the
// broadcast fan-out.
var InfrastructureProviders = wire.NewSet(
	provideRepository,
	provideCache,
	provideHub,
	provideRelay,
	provideBroadcaster,
)

// InterfaceProviders supply the service and its HTTP surface.
var InterfaceProviders = wire.NewSet(
	provideService,
	provideAuthConfig,
	provideCanvasHandler,
	provideStreamHandler,
	provideHealthHandler,
	provideHandler,
	provideServer,
)

// SuperSet is every provider the API needs.
var SuperSet = wire.NewSet(
	ObservabilityProviders,
	InfrastructureProviders,
	InterfaceProviders,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The returned cleanup
// releases connections in reverse order of creation.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
