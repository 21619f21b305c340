package kafka_client

import "time"

const (
	MAX_RETRIES  = 5
	RETRY_DELAY  = 2 * time.Second
	READ_TIMEOUT = 1 * time.Second
	FLUSH_MS     = 5000
)
