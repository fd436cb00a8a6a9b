package llmclient

import (
	"time"

	"golang.org/x/sync/semaphore"
)

func defaultTimeoutForTest() time.Duration { return time.Second }

func newSemForTest() *semaphore.Weighted { return semaphore.NewWeighted(4) }
