package config

import (
	"fmt"
	"os"
	"regexp"
	"skedit/pkg/client"
	"skedit/pkg/logger"
	"skedit/pkg/sanitizer"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	JWTSecret      string
	AllowedOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	StoreDriver        string
	SeedFile           string
	LockLeaseDuration  time.Duration
	LockSweepInterval  time.Duration
	HeartbeatInterval  time.Duration
	PointerMinInterval time.Duration
	PushEnabled        bool
	ConnSendBuffer     int

	FanoutDriver  string
	FanoutTopic   string
	RedisAddr     string
	RedisPassword string
	RedisChannel  string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	lease := getEnvDuration(EnvLockLeaseDuration, DefaultLockLeaseDuration)

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		JWTSecret:      getEnvStr(EnvJWTSecret, ""),
		AllowedOrigins: sanitizer.NormalizeOrigins(getEnvList(EnvAllowedOrigins)),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		StoreDriver:        getEnvStr(EnvStoreDriver, StoreMongo),
		SeedFile:           getEnvStr(EnvSeedFile, ""),
		LockLeaseDuration:  lease,
		LockSweepInterval:  getEnvDuration(EnvLockSweepInterval, DefaultSweepInterval(lease)),
		HeartbeatInterval:  getEnvDuration(EnvHeartbeatInterval, DefaultHeartbeatInterval),
		PointerMinInterval: getEnvDuration(EnvPointerMinInterval, DefaultPointerMinInterval),
		PushEnabled:        getEnvBool(EnvPushEnabled, DefaultPushEnabled),
		ConnSendBuffer:     getEnvNum(EnvConnSendBuffer, DefaultConnSendBuffer),

		FanoutDriver:  getEnvStr(EnvFanoutDriver, FanoutLocal),
		FanoutTopic:   getEnvStr(EnvFanoutTopic, DefaultFanoutTopic),
		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisChannel:  getEnvStr(EnvRedisChannel, DefaultRedisChannel),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, logger.INFO),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// DefaultSweepInterval derives the sweeper cadence from the lease so that a
// stale row outlives its expiry by at most a tenth of the lease.
func DefaultSweepInterval(lease time.Duration) time.Duration {
	if lease <= 0 {
		return time.Minute
	}
	return lease / DefaultSweepDivisor
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.StoreDriver != StoreMongo && cfg.StoreDriver != StoreMemory {
		errors = append(errors, fmt.Sprintf("StoreDriver must be one of [%s, %s], got: %s", StoreMongo, StoreMemory, cfg.StoreDriver))
	}

	if cfg.StoreDriver == StoreMongo {
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	}

	if cfg.JWTSecret == "" {
		errors = append(errors, "JWTSecret cannot be empty")
	} else if len(cfg.JWTSecret) < 16 {
		errors = append(errors, fmt.Sprintf("JWTSecret must be at least 16 characters, got: %d", len(cfg.JWTSecret)))
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.LockLeaseDuration <= 0 {
		errors = append(errors, fmt.Sprintf("LockLeaseDuration must be positive, got: %s", cfg.LockLeaseDuration))
	}
	if cfg.LockSweepInterval <= 0 {
		errors = append(errors, fmt.Sprintf("LockSweepInterval must be positive, got: %s", cfg.LockSweepInterval))
	}
	if cfg.HeartbeatInterval <= 0 {
		errors = append(errors, fmt.Sprintf("HeartbeatInterval must be positive, got: %s", cfg.HeartbeatInterval))
	} else if cfg.HeartbeatInterval*2 > cfg.LockLeaseDuration {
		errors = append(errors, fmt.Sprintf("HeartbeatInterval (%s) must be at most half of LockLeaseDuration (%s)", cfg.HeartbeatInterval, cfg.LockLeaseDuration))
	}
	if cfg.PointerMinInterval < 0 {
		errors = append(errors, fmt.Sprintf("PointerMinInterval cannot be negative, got: %s", cfg.PointerMinInterval))
	}
	if cfg.ConnSendBuffer <= 0 {
		errors = append(errors, fmt.Sprintf("ConnSendBuffer must be positive, got: %d", cfg.ConnSendBuffer))
	}

	switch cfg.FanoutDriver {
	case FanoutLocal:
	case FanoutKafka:
		if cfg.FanoutTopic == "" {
			errors = append(errors, "FanoutTopic cannot be empty when FanoutDriver is kafka")
		}
	case FanoutRedis:
		if cfg.RedisAddr == "" {
			errors = append(errors, "RedisAddr cannot be empty when FanoutDriver is redis")
		}
		if cfg.RedisChannel == "" {
			errors = append(errors, "RedisChannel cannot be empty when FanoutDriver is redis")
		}
	default:
		errors = append(errors, fmt.Sprintf("FanoutDriver must be one of [%s, %s, %s], got: %s", FanoutLocal, FanoutKafka, FanoutRedis, cfg.FanoutDriver))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"jwt_secret_set", cfg.JWTSecret != "",
		"allowed_origins", cfg.AllowedOrigins,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"store_driver", cfg.StoreDriver,
		"seed_file", cfg.SeedFile,
		"lock_lease_duration", cfg.LockLeaseDuration,
		"lock_sweep_interval", cfg.LockSweepInterval,
		"heartbeat_interval", cfg.HeartbeatInterval,
		"pointer_min_interval", cfg.PointerMinInterval,
		"push_enabled", cfg.PushEnabled,
		"ws_send_buffer", cfg.ConnSendBuffer,
		"fanout_driver", cfg.FanoutDriver,
		"fanout_topic", cfg.FanoutTopic,
		"redis_addr", cfg.RedisAddr,
		"redis_channel", cfg.RedisChannel,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}
