package structures

import "time"

type Server struct {
	Host         string        `yaml:"host" validate:"required"`
	Port         int           `yaml:"port" validate:"required|uint|min:1|max:65535"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type TelegramConfig struct {
	BotToken string `yaml:"botToken" validate:"required"`
	// InitDataMaxAge rejects tokens with an older auth_date. Zero disables the check.
	InitDataMaxAge time.Duration `yaml:"initDataMaxAge"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" validate:"required|in:postgres,sqlite,memory"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	AutoMigrate     bool          `yaml:"autoMigrate"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type WebhookConfig struct {
	URL            string        `yaml:"url"`
	Secret         string        `yaml:"secret"`
	CallbackSecret string        `yaml:"callbackSecret"`
	FileTimeout    time.Duration `yaml:"fileTimeout"`
	NotifyTimeout  time.Duration `yaml:"notifyTimeout"`
}

type TextExtractConfig struct {
	Enabled bool          `yaml:"enabled"`
	TikaURL string        `yaml:"tikaURL"`
	Timeout time.Duration `yaml:"timeout"`
}

type RecommendationsConfig struct {
	FallbackPath string `yaml:"fallbackPath"`
}

type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lockTTL"`
}

type CorsConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type UploadConfig struct {
	MaxSize int64 `yaml:"maxSize"`
}

type Config struct {
	AppName         string
	Debug           bool
	Path            string
	WebServer       Server                `yaml:"webServer"`
	Logger          LoggerConfig          `yaml:"logger"`
	Telegram        TelegramConfig        `yaml:"telegram"`
	Database        DatabaseConfig        `yaml:"database"`
	Cache           CacheConfig           `yaml:"cache"`
	Metrics         MetricsConfig         `yaml:"metrics"`
	Webhook         WebhookConfig         `yaml:"webhook"`
	TextExtract     TextExtractConfig     `yaml:"textExtract"`
	Recommendations RecommendationsConfig `yaml:"recommendations"`
	RateLimit       RateLimitConfig       `yaml:"rateLimit"`
	Redis           RedisConfig           `yaml:"redis"`
	Cors            CorsConfig            `yaml:"cors"`
	Upload          UploadConfig          `yaml:"upload"`
}
