package providers

import (
	"errors"
	"fmt"
	"threadmark/internal/structures"

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
		return fmt.Errorf("invalid config: %w", v.Errors)
	}

	switch cv.conf.Storage.Driver {
	case "file", "pebble":
		if cv.conf.Storage.Path == "" {
			return fmt.Errorf("invalid config: storage.path is required for the %s driver", cv.conf.Storage.Driver)
		}
	case "redis":
		if cv.conf.Storage.RedisURL == "" {
			return errors.New("invalid config: storage.redisUrl is required for the redis driver")
		}
	}

	if cv.conf.RateLimit.Enabled && (cv.conf.RateLimit.RPS <= 0 || cv.conf.RateLimit.Burst <= 0) {
		return errors.New("invalid config: rateLimit.rps and rateLimit.burst must be positive")
	}
	return nil
}
