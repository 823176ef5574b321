//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"
	"threadmark/internal"
	"threadmark/internal/backup"
	"threadmark/internal/controllers"
	"threadmark/internal/providers"
	"threadmark/internal/services"
	"threadmark/internal/storage"
	"threadmark/internal/structures"
	"threadmark/internal/tracker"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,
		providers.NewLimiterPoolProvider,

		storage.NewZstdCompressor,
		storage.NewKeyValueProvider,
		services.NewProgressService,
		tracker.NewClock,
		tracker.NewRegistry,
		backup.NewEngine,
		backup.NewFileManager,
		backup.NewScheduler,
		controllers.NewApiController,
		controllers.NewSessionController,
		controllers.NewBackupController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewHandler,
		internal.NewApp,
	)

	return nil, nil
}
