package providers

import (
	"errors"
	"fmt"
	"tgmed/internal/structures"

	"github.com/gookit/validate"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %s", v.Errors.One())
	}

	switch {
	case cv.conf.Database.Driver != "memory" && cv.conf.Database.DSN == "":
		return errors.New("invalid config: database.dsn is required for driver " + cv.conf.Database.Driver)
	case cv.conf.Redis.Enabled && cv.conf.Redis.Addr == "":
		return errors.New("invalid config: redis.addr is required when redis is enabled")
	case cv.conf.TextExtract.Enabled && cv.conf.TextExtract.TikaURL == "":
		return errors.New("invalid config: textExtract.tikaURL is required when extraction is enabled")
	case cv.conf.RateLimit.Enabled && (cv.conf.RateLimit.RPS <= 0 || cv.conf.RateLimit.Burst <= 0):
		return errors.New("invalid config: rateLimit.rps and rateLimit.burst must be positive")
	}
	return nil
}
