package internal

import (
	"net/http"
	"tgmed/internal/controllers"
	"tgmed/internal/providers"
	"tgmed/internal/structures"
)

func InitRoutes(
	apiController *controllers.ApiController,
	uploadController *controllers.UploadController,
	recommendationController *controllers.RecommendationController,
	callbackController *controllers.CallbackController,
	conf *structures.Config,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
	limiter *providers.RateLimiter,
) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	user := func(h http.HandlerFunc) http.Handler {
		return providers.TelegramAuth(conf, logger, metrics, providers.RateLimit(limiter, logger, h))
	}
	pipeline := func(h http.HandlerFunc) http.Handler {
		return providers.CallbackAuth(conf, logger, metrics, providers.RateLimit(limiter, logger, h))
	}

	routers.Get("/api/me", user(apiController.GetMe))
	routers.Post("/api/me", user(apiController.UpdateProfile))
	routers.Post("/api/analyses/summary", user(apiController.UpdateAnalyses))
	routers.Get("/api/analyses/history", user(apiController.GetHistory))
	routers.Post("/api/analyses/last-report", user(apiController.UpdateLastReport))
	routers.Post("/api/reco/basic", user(apiController.UpdateRecommendations))
	routers.Post("/api/notify-upload", user(apiController.NotifyUpload))
	routers.Post("/api/upload", user(uploadController.Upload))
	routers.Get("/api/recommendations/{analysisId}", user(recommendationController.Get))
	routers.Post("/api/recommendations/{analysisId}/generate", user(recommendationController.Generate))

	routers.Post("/webhook/analysis-result", pipeline(callbackController.AnalysisResult))
	routers.Post("/webhook/last-report", pipeline(callbackController.LastReport))
	routers.Post("/webhook/recommendation", pipeline(callbackController.Recommendation))
	return routers
}
