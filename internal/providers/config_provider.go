package providers

import (
	"fmt"
	"github.com/spf13/viper"
	"path/filepath"
	"strings"
	"threadmark/internal/structures"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.SetDefault("storage.key", "threadsById")
	viper.SetDefault("tracker.dwellTime", "1500ms")
	viper.SetDefault("tracker.flushDebounce", "2s")
	viper.SetDefault("tracker.sweepInterval", "30s")
	viper.SetDefault("tracker.idleTimeout", "30m")

	viper.BindEnv("logger.level", "THREADMARK_LOG_LEVEL")
	viper.BindEnv("storage.driver", "THREADMARK_STORAGE_DRIVER")
	viper.BindEnv("storage.path", "THREADMARK_STORAGE_PATH")
	viper.BindEnv("storage.redisUrl", "THREADMARK_REDIS_URL")
	viper.BindEnv("persistence.saveInterval", "THREADMARK_SAVE_INTERVAL")
	viper.BindEnv("tracker.dwellTime", "THREADMARK_DWELL_TIME")
	viper.BindEnv("tracker.flushDebounce", "THREADMARK_FLUSH_DEBOUNCE")
	viper.BindEnv("cache.enabled", "THREADMARK_CACHE_ENABLED")
	viper.BindEnv("cache.size", "THREADMARK_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "Threadmark"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
