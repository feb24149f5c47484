package store

import (
	"fmt"
	"net/url"
	"strings"
	"tgmed/internal/providers"
	"tgmed/internal/structures"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenDatabase opens a pooled gorm connection for the configured driver.
func OpenDatabase(conf *structures.DatabaseConfig, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch conf.Driver {
	case "postgres":
		dsn, err := ensureTimezoneUTC(conf.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to parse database URL: %w", err)
		}
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(conf.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", conf.Driver)
	}

	logLevel := gormlogger.Warn
	if debug {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if conf.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(conf.MaxOpenConns)
	}
	if conf.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(conf.MaxIdleConns)
	}
	if conf.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(conf.ConnMaxLifetime)
	}
	return db, nil
}

func CloseDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// ensureTimezoneUTC adds TimeZone=UTC to URL-style DSNs. Keyword DSNs are
// returned unchanged.
func ensureTimezoneUTC(dsn string) (string, error) {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if q.Get("TimeZone") == "" {
		q.Set("TimeZone", "UTC")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// NewDocumentStore builds the configured store, wrapped with the record
// cache when it is enabled. The returned cleanup closes the database.
func NewDocumentStore(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface, cache providers.CacheProviderInterface, compressor CompressorInterface) (DocumentStore, func(), error) {
	var (
		inner   DocumentStore
		cleanup = func() {}
	)

	if conf.Database.Driver == "memory" {
		logger.Warnf(providers.TypeStore, "Using in-memory document store, records are lost on restart")
		inner = NewMemoryStore(logger)
	} else {
		db, err := OpenDatabase(&conf.Database, conf.Debug)
		if err != nil {
			return nil, nil, err
		}
		gs := NewGormStore(db, logger, metrics)
		if conf.Database.AutoMigrate {
			if err := gs.Migrate(); err != nil {
				_ = CloseDatabase(db)
				return nil, nil, fmt.Errorf("auto migrate: %w", err)
			}
		}
		inner = gs
		cleanup = func() {
			if err := CloseDatabase(db); err != nil {
				logger.Errorf(providers.TypeStore, "Close database: %s", err)
			}
		}
		logger.Infof(providers.TypeStore, "Document store ready (driver=%s)", conf.Database.Driver)
	}

	if !conf.Cache.Enabled {
		return inner, cleanup, nil
	}
	if conf.Redis.Enabled {
		// The record cache is per process; replicas sharing the redis lock
		// must read through to the database.
		logger.Warnf(providers.TypeStore, "Record cache disabled because redis locking is enabled")
		return inner, cleanup, nil
	}
	return NewCachedStore(inner, cache, compressor, logger), cleanup, nil
}
