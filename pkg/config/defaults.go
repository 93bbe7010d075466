package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017/?replicaSet=rs0"
	DefaultMongoDatabaseName = "skedit"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultLockLeaseDuration  = 5 * time.Minute
	DefaultHeartbeatInterval  = 30 * time.Second
	DefaultPointerMinInterval = 50 * time.Millisecond
	DefaultPushEnabled        = true
	DefaultConnSendBuffer     = 64

	DefaultRedisAddr    = "localhost:6379"
	DefaultRedisChannel = "skedit:presence"
	DefaultFanoutTopic  = "skedit.presence"

	// sweep interval defaults to lease / DefaultSweepDivisor
	DefaultSweepDivisor = 10
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	FanoutLocal = "local"
	FanoutKafka = "kafka"
	FanoutRedis = "redis"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	AppointmentScheduled = "scheduled"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)
