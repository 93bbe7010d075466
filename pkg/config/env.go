package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvJWTSecret      = "JWT_SECRET"
	EnvAllowedOrigins = "ALLOWED_ORIGINS"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvStoreDriver        = "LOCK_STORE_DRIVER"
	EnvSeedFile           = "SEED_FILE"
	EnvLockLeaseDuration  = "LOCK_LEASE_DURATION"
	EnvLockSweepInterval  = "LOCK_SWEEP_INTERVAL"
	EnvHeartbeatInterval  = "LOCK_HEARTBEAT_INTERVAL"
	EnvPointerMinInterval = "POINTER_MIN_INTERVAL"
	EnvPushEnabled        = "PUSH_ENABLED"
	EnvConnSendBuffer     = "WS_SEND_BUFFER"

	EnvFanoutDriver  = "FANOUT_DRIVER"
	EnvFanoutTopic   = "FANOUT_KAFKA_TOPIC"
	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisChannel  = "FANOUT_REDIS_CHANNEL"
)
