//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"
	"tgmed/internal"
	"tgmed/internal/controllers"
	"tgmed/internal/providers"
	"tgmed/internal/services"
	"tgmed/internal/store"
	"tgmed/internal/structures"
	"tgmed/internal/textextract"
	"tgmed/internal/webhook"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, func(), error) {

	wire.Build(
		providers.NewConfigProvider,
		provideLogger,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,
		providers.NewRateLimitProvider,

		provideCompressor,
		store.NewDocumentStore,
		services.NewLocker,
		services.NewFileFallback,
		services.NewReconciler,
		textextract.NewExtractor,
		webhook.NewClient,

		controllers.NewApiController,
		controllers.NewUploadController,
		controllers.NewRecommendationController,
		controllers.NewCallbackController,
		provideHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil, nil
}
