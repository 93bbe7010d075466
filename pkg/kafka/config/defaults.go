package kafka_config

import "time"

const (
	DefaultKafkaBrokers = "localhost:9092"

	// Presence frames are latency sensitive and cheap to lose, so the
	// producer waits for the leader only and batches for a few milliseconds.
	DefaultProducerMaxAttempts  = 2
	DefaultProducerBatchTimeout = 5 * time.Millisecond
	DefaultProducerRequireAcks  = 1
	DefaultProducerCompression  = "snappy"

	DefaultConsumerMinBytes          = 1
	DefaultConsumerMaxBytes          = 1024 * 1024 // 1MB
	DefaultConsumerMaxWait           = 100 * time.Millisecond
	DefaultConsumerHeartbeatInterval = 3 * time.Second
	DefaultConsumerSessionTimeout    = 10 * time.Second
	DefaultConsumerCommitInterval    = time.Second
	DefaultConsumerGroupPrefix       = "skedit-presence"

	DefaultEnableMiddleware = true
)
