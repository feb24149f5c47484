package providers

import (
	"fmt"
	"github.com/spf13/viper"
	"path/filepath"
	"strings"
	"tgmed/internal/structures"
	"time"
)

const appName = "TelegramMedBackend"

var envBindings = map[string][]string{
	"logger.level":                 {"TGMED_LOG_LEVEL"},
	"telegram.botToken":            {"TGMED_BOT_TOKEN", "BOT_TOKEN"},
	"telegram.initDataMaxAge":      {"TGMED_INITDATA_MAX_AGE"},
	"database.driver":              {"TGMED_DATABASE_DRIVER"},
	"database.dsn":                 {"TGMED_DATABASE_DSN", "DATABASE_URL"},
	"webhook.url":                  {"TGMED_WEBHOOK_URL", "ANALYSIS_WEBHOOK_URL"},
	"webhook.secret":               {"TGMED_WEBHOOK_SECRET"},
	"webhook.callbackSecret":       {"TGMED_CALLBACK_SECRET"},
	"recommendations.fallbackPath": {"TGMED_FALLBACK_PATH", "RECOMMENDATIONS_FALLBACK_PATH"},
	"textExtract.tikaURL":          {"TGMED_TIKA_URL"},
	"redis.addr":                   {"TGMED_REDIS_ADDR"},
	"redis.password":               {"TGMED_REDIS_PASSWORD"},
	"cache.enabled":                {"TGMED_CACHE_ENABLED"},
	"cache.size":                   {"TGMED_CACHE_SIZE"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("webServer.readTimeout", 15*time.Second)
	v.SetDefault("webServer.writeTimeout", 60*time.Second)
	v.SetDefault("webServer.idleTimeout", 60*time.Second)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 5*time.Minute)
	v.SetDefault("cache.ttl", 30*time.Second)
	v.SetDefault("webhook.fileTimeout", 30*time.Second)
	v.SetDefault("webhook.notifyTimeout", 5*time.Second)
	v.SetDefault("textExtract.timeout", 30*time.Second)
	v.SetDefault("rateLimit.rps", 10)
	v.SetDefault("rateLimit.burst", 20)
	v.SetDefault("redis.lockTTL", 10*time.Second)
	v.SetDefault("upload.maxSize", 10<<20)
}

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config
	v := viper.New()

	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")

	setDefaults(v)
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = appName
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
