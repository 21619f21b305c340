package clients

import "time"

const (
	MAX_RETRIES     = 3
	INITIAL_BACKOFF = 1200 * time.Millisecond
	PREVIEW_LENGTH  = 80
	USER_AGENT      = "moodjournal-client/1.0 (+https://github.com/spacesedan/moodjournal)"
)
