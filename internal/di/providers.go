package di

import (
	"tgmed/internal/controllers"
	"tgmed/internal/providers"
	"tgmed/internal/store"
	"tgmed/internal/structures"
)

func provideLogger(conf *structures.Config) (providers.Logger, func(), error) {
	logger, err := providers.NewLogProvider(conf)
	if err != nil {
		return nil, nil, err
	}
	return logger, logger.Close, nil
}

func provideCompressor() (store.CompressorInterface, func(), error) {
	compressor, err := store.NewZstdCompressor()
	if err != nil {
		return nil, nil, err
	}
	return compressor, compressor.Close, nil
}

func provideHealthController(documents store.DocumentStore) *controllers.HealthController {
	return controllers.NewHealthController(documents)
}
